package lab

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/db"
)

type Service struct {
	orders     OrderRepository
	orderTests OrderTestRepository
	catalog    TestCatalogRepository
	classifier *Classifier
	logger     zerolog.Logger
}

func NewService(orders OrderRepository, orderTests OrderTestRepository, catalog TestCatalogRepository, logger zerolog.Logger) *Service {
	return &Service{
		orders:     orders,
		orderTests: orderTests,
		catalog:    catalog,
		classifier: NewClassifier(),
		logger:     logger,
	}
}

// SetClassifier overrides the default result classifier, e.g. for a
// hospital with a tuned critical multiplier.
func (s *Service) SetClassifier(c *Classifier) {
	s.classifier = c
}

// -- Test catalog --

func (s *Service) CreateTest(ctx context.Context, t *LabTest) error {
	if t.Code == "" {
		return fmt.Errorf("code is required")
	}
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if t.RangeHigh-t.RangeLow <= 0 {
		return fmt.Errorf("reference range %g-%g is invalid: width must be positive", t.RangeLow, t.RangeHigh)
	}
	t.IsActive = true
	return s.catalog.Create(ctx, t)
}

func (s *Service) GetTestByCode(ctx context.Context, code string) (*LabTest, error) {
	return s.catalog.GetByCode(ctx, code)
}

func (s *Service) ListTests(ctx context.Context, limit, offset int) ([]*LabTest, int, error) {
	return s.catalog.List(ctx, limit, offset)
}

// -- Orders --

var validPriorities = map[string]bool{
	"ROUTINE": true, "URGENT": true, "STAT": true,
}

// CreateOrder creates an order for the given catalog test codes. Each
// order test snapshots the catalog definition (name, unit, reference
// range) so later catalog edits do not rewrite history.
func (s *Service) CreateOrder(ctx context.Context, o *LabOrder, testCodes []string) error {
	if o.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if o.ClinicianID == uuid.Nil {
		return fmt.Errorf("clinician_id is required")
	}
	if len(testCodes) == 0 {
		return fmt.Errorf("at least one test code is required")
	}
	if o.Status == "" {
		o.Status = OrderPending
	}
	if !o.Status.Valid() {
		return fmt.Errorf("invalid status: %s", o.Status)
	}
	if o.Priority != nil && !validPriorities[*o.Priority] {
		return fmt.Errorf("invalid priority: %s", *o.Priority)
	}
	if o.OrderNumber == "" {
		o.OrderNumber = newOrderNumber()
	}

	for _, code := range testCodes {
		def, err := s.catalog.GetByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("unknown test code %q: %w", code, err)
		}
		o.Tests = append(o.Tests, &LabOrderTest{
			TestID:      def.ID,
			TestCode:    def.Code,
			TestName:    def.Name,
			Status:      TestOrdered,
			Unit:        def.Unit,
			NormalRange: def.Range().String(),
		})
	}

	return inTx(ctx, func(ctx context.Context) error {
		return s.orders.Create(ctx, o)
	})
}

// inTx runs fn inside a transaction on the tenant-scoped connection, so
// the order row and its test rows commit or roll back together. Callers
// without a scoped connection (in-memory repositories) run fn directly.
func inTx(ctx context.Context, fn func(context.Context) error) error {
	if db.ConnFromContext(ctx) == nil {
		return fn(ctx)
	}
	txCtx, tx, err := db.WithTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func newOrderNumber() string {
	return "LAB-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*LabOrder, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *Service) GetOrderByNumber(ctx context.Context, orderNumber string) (*LabOrder, error) {
	return s.orders.GetByOrderNumber(ctx, orderNumber)
}

func (s *Service) ListOrdersByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabOrder, int, error) {
	return s.orders.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) SearchOrders(ctx context.Context, params map[string]string, limit, offset int) ([]*LabOrder, int, error) {
	return s.orders.Search(ctx, params, limit, offset)
}

func (s *Service) CancelOrder(ctx context.Context, id uuid.UUID) error {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if o.Status.Terminal() {
		return fmt.Errorf("order %s is %s and cannot be cancelled", o.OrderNumber, o.Status)
	}
	return s.orders.MarkCancelled(ctx, id)
}

// -- Result entry --

// EnterResult records a result for one order test. Numeric values are
// classified against the test's reference range, and the derived
// abnormal/critical flags are persisted together with the result in a
// single explicit write. Results on completed or cancelled orders are
// immutable.
func (s *Service) EnterResult(ctx context.Context, orderTestID uuid.UUID, result string, resultValue *float64) (*LabOrderTest, error) {
	if result == "" && resultValue == nil {
		return nil, fmt.Errorf("a result or result_value is required")
	}

	t, err := s.orderTests.GetByID(ctx, orderTestID)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, t.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, fmt.Errorf("order %s is %s; results are immutable", o.OrderNumber, o.Status)
	}
	if t.Status == TestCancelled {
		return nil, fmt.Errorf("test %s on order %s is cancelled", t.TestCode, o.OrderNumber)
	}

	t.IsAbnormal = false
	t.IsCritical = false
	if resultValue != nil {
		rng, err := ParseRange(t.NormalRange)
		if err != nil {
			return nil, fmt.Errorf("test %s: %w", t.TestCode, err)
		}
		cl, err := s.classifier.Classify(*resultValue, rng)
		if err != nil {
			return nil, fmt.Errorf("test %s: %w", t.TestCode, err)
		}
		t.IsAbnormal = cl.Abnormal
		t.IsCritical = cl.Critical
	}

	if result != "" {
		t.Result = &result
	}
	t.ResultValue = resultValue
	t.Status = TestCompleted
	now := time.Now()
	t.PerformedAt = &now

	if err := s.orderTests.UpdateResult(ctx, t); err != nil {
		return nil, err
	}

	if t.IsCritical {
		s.logger.Warn().
			Str("order_number", o.OrderNumber).
			Str("test_code", t.TestCode).
			Str("patient_id", o.PatientID.String()).
			Msg("critical result recorded")
	}
	return t, nil
}

// -- Reconciliation --

// ReconcileOrders fetches a snapshot of all non-terminal orders and
// promotes every order whose tests are all complete. Failures updating
// one order are reported but do not stop the run.
func (s *Service) ReconcileOrders(ctx context.Context) (ReconcileReport, error) {
	orders, err := s.orders.ListActiveWithTests(ctx)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("list active orders: %w", err)
	}
	r := NewReconciler(s.orders, s.logger)
	return r.Run(ctx, orders), nil
}
