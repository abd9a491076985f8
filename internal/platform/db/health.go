package db

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// healthServiceName is echoed in the payload so fleet-wide probes can
// tell which API answered.
const healthServiceName = "hms"

const healthPingTimeout = 5 * time.Second

// PoolStats is the connection pool snapshot reported by /health/db.
type PoolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

func snapshotPool(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		MaxConns:      stat.MaxConns(),
	}
}

// healthPayload derives the response status and body from the ping
// outcome. A nil stats snapshot is reported as an empty pool.
func healthPayload(stats *PoolStats, pingErr error) (int, map[string]interface{}) {
	if stats == nil {
		stats = &PoolStats{}
	}
	body := map[string]interface{}{
		"service": healthServiceName,
		"pool":    stats,
	}
	if pingErr != nil {
		body["status"] = "unhealthy"
		if errors.Is(pingErr, context.DeadlineExceeded) {
			body["error"] = "database ping timed out"
		} else {
			body["error"] = pingErr.Error()
		}
		return http.StatusServiceUnavailable, body
	}
	body["status"] = "healthy"
	return http.StatusOK, body
}

// HealthHandler serves the database health check. Readiness probes use
// the status code; the body carries pool counters for operators.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthPingTimeout)
		defer cancel()

		code, body := healthPayload(snapshotPool(pool), pool.Ping(ctx))
		return c.JSON(code, body)
	}
}
