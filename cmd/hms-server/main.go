package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/account"
	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/domain/insurance"
	"github.com/hms/hms/internal/domain/lab"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/middleware"
	"github.com/hms/hms/internal/platform/seeder"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hms-server",
		Short: "Hospital Management System API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(labCmd())
	rootCmd.AddCommand(insuranceCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// connect loads config and opens the connection pool, the shared prelude
// of every command.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HMS API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "hospital_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "hospital_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage hospital tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new hospital schema and apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			dir, _ := cmd.Flags().GetString("dir")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating hospital schema: hospital_%s\n", name)
			if err := db.CreateTenantSchema(ctx, pool, name, dir); err != nil {
				return err
			}
			fmt.Println("Hospital tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Hospital identifier (alphanumeric)")
	createCmd.Flags().String("dir", "./migrations", "Path to migrations directory")

	cmd.AddCommand(createCmd)
	return cmd
}

func labCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lab",
		Short: "Lab order batch operations",
	}

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Promote lab orders whose tests are all complete",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			logger := newLogger()

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}

			ctx, release, err := db.ScopeToTenant(ctx, pool, tenant)
			if err != nil {
				return err
			}
			defer release()

			svc, err := newLabService(cfg, pool, logger)
			if err != nil {
				return err
			}
			report, err := svc.ReconcileOrders(ctx)
			if err != nil {
				return err
			}

			fmt.Println(reconcileSummary(report))
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d order(s) failed to update", len(report.Failed))
			}
			return nil
		},
	}
	reconcileCmd.Flags().String("tenant", "", "Hospital tenant (defaults to DEFAULT_TENANT)")
	cmd.AddCommand(reconcileCmd)

	seedCmd := &cobra.Command{
		Use:   "seed-critical",
		Short: "Seed a demo lab order with a critical potassium result",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			logger := newLogger()

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}

			ctx, release, err := db.ScopeToTenant(ctx, pool, tenant)
			if err != nil {
				return err
			}
			defer release()

			labSvc, err := newLabService(cfg, pool, logger)
			if err != nil {
				return err
			}
			identitySvc := identity.NewService(
				identity.NewPatientRepoPG(pool),
				identity.NewClinicianRepoPG(pool),
			)

			res, err := seeder.New(identitySvc, labSvc, logger).SeedCriticalScenario(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded order %s: patients=%d clinicians=%d catalog=%d results=%d\n",
				res.OrderNumber, res.Patients, res.Clinicians, res.CatalogRows, res.Results)
			return nil
		},
	}
	seedCmd.Flags().String("tenant", "", "Hospital tenant (defaults to DEFAULT_TENANT)")
	cmd.AddCommand(seedCmd)

	return cmd
}

func insuranceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insurance",
		Short: "Insurance coverage batch operations",
	}

	patchCmd := &cobra.Command{
		Use:   "patch",
		Short: "Patch matching coverage records with new field values",
		Long: `Patch updates whitelisted fields on every coverage record matching
the given criteria, for example:

  hms-server insurance patch --payer "Acme Health" --set copay_percentage=20 --set network_tier=PREFERRED`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			payer, _ := cmd.Flags().GetString("payer")
			patientID, _ := cmd.Flags().GetString("patient")
			member, _ := cmd.Flags().GetString("member")
			sets, _ := cmd.Flags().GetStringArray("set")
			logger := newLogger()

			criteria := insurance.PatchCriteria{}
			if payer != "" {
				criteria.PayerName = &payer
			}
			if member != "" {
				criteria.MemberNumber = &member
			}
			if patientID != "" {
				id, err := parseUUIDFlag(patientID)
				if err != nil {
					return fmt.Errorf("--patient: %w", err)
				}
				criteria.PatientID = id
			}

			fields, err := parseSetFlags(sets)
			if err != nil {
				return err
			}

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}

			ctx, release, err := db.ScopeToTenant(ctx, pool, tenant)
			if err != nil {
				return err
			}
			defer release()

			svc := insurance.NewService(insurance.NewRepoPG(pool), insurance.NewRuleRepoPG(pool), logger)
			report, err := svc.PatchCoverage(ctx, criteria, fields)
			if err != nil {
				return err
			}

			fmt.Printf("Patched %d coverage record(s).\n", report.Updated)
			for _, id := range report.MatchedIDs {
				fmt.Printf("  %s\n", id)
			}
			return nil
		},
	}
	patchCmd.Flags().String("tenant", "", "Hospital tenant (defaults to DEFAULT_TENANT)")
	patchCmd.Flags().String("payer", "", "Match records by payer name")
	patchCmd.Flags().String("patient", "", "Match records by patient UUID")
	patchCmd.Flags().String("member", "", "Match records by member number")
	patchCmd.Flags().StringArray("set", nil, "Field assignment in field=value form (repeatable)")
	cmd.AddCommand(patchCmd)

	return cmd
}

// parseSetFlags converts repeated field=value flags to a patch field map.
// Numeric and boolean values are converted so they bind to the right
// column types.
func parseSetFlags(sets []string) (map[string]interface{}, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("at least one --set field=value is required")
	}
	fields := make(map[string]interface{}, len(sets))
	for _, s := range sets {
		name, raw, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q, expected field=value", s)
		}
		switch {
		case raw == "true" || raw == "false":
			fields[name] = raw == "true"
		default:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				fields[name] = f
			} else {
				fields[name] = raw
			}
		}
	}
	return fields, nil
}

func newLabService(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*lab.Service, error) {
	svc := lab.NewService(
		lab.NewOrderRepoPG(pool),
		lab.NewOrderTestRepoPG(pool),
		lab.NewTestCatalogRepoPG(pool),
		logger,
	)
	classifier, err := lab.NewClassifierWithMultiplier(cfg.CriticalMultiplier)
	if err != nil {
		return nil, fmt.Errorf("invalid critical multiplier: %w", err)
	}
	svc.SetClassifier(classifier)
	return svc, nil
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	// Tenant middleware pins one pooled connection per request to the
	// hospital schema.
	e.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	public := e.Group("")
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Account / auth domain
	accountSvc := account.NewService(account.NewRepoPG(pool), []byte(cfg.AuthSigningKey), cfg.AuthIssuer, logger)
	account.NewHandler(accountSvc).RegisterRoutes(public, apiV1)

	// Identity domain
	identitySvc := identity.NewService(identity.NewPatientRepoPG(pool), identity.NewClinicianRepoPG(pool))
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)

	// Lab domain
	labSvc, err := newLabService(cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build lab service")
	}
	lab.NewHandler(labSvc).RegisterRoutes(apiV1)

	// Insurance domain
	insuranceSvc := insurance.NewService(insurance.NewRepoPG(pool), insurance.NewRuleRepoPG(pool), logger)
	insurance.NewHandler(insuranceSvc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// reconcileSummary renders the run counters; Promoted and Failed are
// collections keyed by order id, not counts.
func reconcileSummary(r lab.ReconcileReport) string {
	return fmt.Sprintf("Reconciliation complete: scanned=%d promoted=%d failed=%d",
		r.Scanned, len(r.Promoted), len(r.Failed))
}

func parseUUIDFlag(s string) (*uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID %q", s)
	}
	return &id, nil
}
