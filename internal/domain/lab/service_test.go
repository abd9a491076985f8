package lab

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// -- Mock Repositories --

type mockCatalogRepo struct {
	tests map[string]*LabTest
}

func newMockCatalogRepo() *mockCatalogRepo {
	return &mockCatalogRepo{tests: make(map[string]*LabTest)}
}

func (m *mockCatalogRepo) Create(_ context.Context, t *LabTest) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = time.Now()
	m.tests[t.Code] = t
	return nil
}

func (m *mockCatalogRepo) GetByID(_ context.Context, id uuid.UUID) (*LabTest, error) {
	for _, t := range m.tests {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockCatalogRepo) GetByCode(_ context.Context, code string) (*LabTest, error) {
	t, ok := m.tests[code]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return t, nil
}

func (m *mockCatalogRepo) List(_ context.Context, limit, offset int) ([]*LabTest, int, error) {
	var result []*LabTest
	for _, t := range m.tests {
		result = append(result, t)
	}
	return result, len(result), nil
}

type mockOrderRepo struct {
	orders    map[uuid.UUID]*LabOrder
	createErr error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[uuid.UUID]*LabOrder)}
}

func (m *mockOrderRepo) Create(_ context.Context, o *LabOrder) error {
	if m.createErr != nil {
		return m.createErr
	}
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	o.UpdatedAt = time.Now()
	for _, t := range o.Tests {
		t.ID = uuid.New()
		t.OrderID = o.ID
	}
	m.orders[o.ID] = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*LabOrder, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return o, nil
}

func (m *mockOrderRepo) GetByOrderNumber(_ context.Context, orderNumber string) (*LabOrder, error) {
	for _, o := range m.orders {
		if o.OrderNumber == orderNumber {
			return o, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockOrderRepo) MarkCompleted(_ context.Context, orderID uuid.UUID, completedAt time.Time) error {
	o, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("not found")
	}
	if o.Status.Terminal() {
		return fmt.Errorf("order already terminal")
	}
	o.Status = OrderCompleted
	o.CompletedAt = &completedAt
	return nil
}

func (m *mockOrderRepo) MarkCancelled(_ context.Context, orderID uuid.UUID) error {
	o, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("not found")
	}
	if o.Status.Terminal() {
		return fmt.Errorf("order already terminal")
	}
	o.Status = OrderCancelled
	return nil
}

func (m *mockOrderRepo) ListActiveWithTests(_ context.Context) ([]*LabOrder, error) {
	var result []*LabOrder
	for _, o := range m.orders {
		if !o.Status.Terminal() {
			result = append(result, o)
		}
	}
	return result, nil
}

func (m *mockOrderRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*LabOrder, int, error) {
	var result []*LabOrder
	for _, o := range m.orders {
		if o.PatientID == patientID {
			result = append(result, o)
		}
	}
	return result, len(result), nil
}

func (m *mockOrderRepo) Search(_ context.Context, _ map[string]string, limit, offset int) ([]*LabOrder, int, error) {
	var result []*LabOrder
	for _, o := range m.orders {
		result = append(result, o)
	}
	return result, len(result), nil
}

type mockOrderTestRepo struct {
	orders *mockOrderRepo
}

func (m *mockOrderTestRepo) GetByID(_ context.Context, id uuid.UUID) (*LabOrderTest, error) {
	for _, o := range m.orders.orders {
		for _, t := range o.Tests {
			if t.ID == id {
				return t, nil
			}
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockOrderTestRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]*LabOrderTest, error) {
	o, ok := m.orders.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return o.Tests, nil
}

func (m *mockOrderTestRepo) UpdateResult(_ context.Context, t *LabOrderTest) error {
	for _, o := range m.orders.orders {
		for i, existing := range o.Tests {
			if existing.ID == t.ID {
				o.Tests[i] = t
				return nil
			}
		}
	}
	return fmt.Errorf("not found")
}

// -- Tests --

func newTestService() (*Service, *mockOrderRepo, *mockCatalogRepo) {
	orders := newMockOrderRepo()
	catalog := newMockCatalogRepo()
	svc := NewService(orders, &mockOrderTestRepo{orders: orders}, catalog, zerolog.Nop())
	return svc, orders, catalog
}

func seedCatalog(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	for _, def := range []*LabTest{
		{Code: "K", Name: "Potassium", Unit: "mmol/L", RangeLow: 3.5, RangeHigh: 5.0},
		{Code: "HGB", Name: "Hemoglobin", Unit: "g/dL", RangeLow: 12.0, RangeHigh: 16.0},
	} {
		if err := svc.CreateTest(ctx, def); err != nil {
			t.Fatalf("seed catalog: %v", err)
		}
	}
}

func TestCreateTest_RejectsInvalidRange(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.CreateTest(context.Background(), &LabTest{Code: "X", Name: "Broken", RangeLow: 5.0, RangeHigh: 5.0})
	if err == nil {
		t.Error("expected error for non-positive range width")
	}
}

func TestCreateOrder_Defaults(t *testing.T) {
	svc, _, _ := newTestService()
	seedCatalog(t, svc)

	o := &LabOrder{PatientID: uuid.New(), ClinicianID: uuid.New()}
	if err := svc.CreateOrder(context.Background(), o, []string{"K", "HGB"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != OrderPending {
		t.Errorf("expected default status PENDING, got %s", o.Status)
	}
	if o.OrderNumber == "" {
		t.Error("expected an order number to be generated")
	}
	if len(o.Tests) != 2 {
		t.Fatalf("expected 2 order tests, got %d", len(o.Tests))
	}
	if o.Tests[0].NormalRange != "3.5-5" {
		t.Errorf("expected range snapshot 3.5-5, got %s", o.Tests[0].NormalRange)
	}
	if o.Tests[0].Status != TestOrdered {
		t.Errorf("expected test status ORDERED, got %s", o.Tests[0].Status)
	}
}

func TestCreateOrder_PersistFailurePropagates(t *testing.T) {
	svc, orders, _ := newTestService()
	seedCatalog(t, svc)
	orders.createErr = fmt.Errorf("insert order test K: connection reset")

	o := &LabOrder{PatientID: uuid.New(), ClinicianID: uuid.New()}
	if err := svc.CreateOrder(context.Background(), o, []string{"K"}); err == nil {
		t.Fatal("expected error from failed persistence")
	}
	if len(orders.orders) != 0 {
		t.Errorf("expected no order left behind after failed create, got %d", len(orders.orders))
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	seedCatalog(t, svc)
	ctx := context.Background()

	if err := svc.CreateOrder(ctx, &LabOrder{ClinicianID: uuid.New()}, []string{"K"}); err == nil {
		t.Error("expected error for missing patient_id")
	}
	if err := svc.CreateOrder(ctx, &LabOrder{PatientID: uuid.New()}, []string{"K"}); err == nil {
		t.Error("expected error for missing clinician_id")
	}
	if err := svc.CreateOrder(ctx, &LabOrder{PatientID: uuid.New(), ClinicianID: uuid.New()}, nil); err == nil {
		t.Error("expected error for empty test list")
	}
	if err := svc.CreateOrder(ctx, &LabOrder{PatientID: uuid.New(), ClinicianID: uuid.New()}, []string{"NOPE"}); err == nil {
		t.Error("expected error for unknown test code")
	}
}

func TestEnterResult_ClassifiesAndPersists(t *testing.T) {
	svc, _, _ := newTestService()
	seedCatalog(t, svc)
	ctx := context.Background()

	o := &LabOrder{PatientID: uuid.New(), ClinicianID: uuid.New()}
	if err := svc.CreateOrder(ctx, o, []string{"K"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, err := svc.EnterResult(ctx, o.Tests[0].ID, "2.1", floatPtr(2.1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Status != TestCompleted {
		t.Errorf("expected status COMPLETED, got %s", entry.Status)
	}
	if !entry.IsAbnormal || !entry.IsCritical {
		t.Errorf("2.1 against 3.5-5.0 must be abnormal and critical, got abnormal=%v critical=%v",
			entry.IsAbnormal, entry.IsCritical)
	}
	if entry.PerformedAt == nil {
		t.Error("expected performed_at to be stamped")
	}
}

func TestEnterResult_NormalValue(t *testing.T) {
	svc, _, _ := newTestService()
	seedCatalog(t, svc)
	ctx := context.Background()

	o := &LabOrder{PatientID: uuid.New(), ClinicianID: uuid.New()}
	if err := svc.CreateOrder(ctx, o, []string{"HGB"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, err := svc.EnterResult(ctx, o.Tests[0].ID, "14.0", floatPtr(14.0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.IsAbnormal || entry.IsCritical {
		t.Errorf("14.0 against 12.0-16.0 must be normal, got abnormal=%v critical=%v",
			entry.IsAbnormal, entry.IsCritical)
	}
}

func TestEnterResult_ImmutableOnTerminalOrder(t *testing.T) {
	svc, orders, _ := newTestService()
	seedCatalog(t, svc)
	ctx := context.Background()

	o := &LabOrder{PatientID: uuid.New(), ClinicianID: uuid.New()}
	if err := svc.CreateOrder(ctx, o, []string{"K"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := orders.MarkCompleted(ctx, o.ID, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.EnterResult(ctx, o.Tests[0].ID, "4.2", floatPtr(4.2)); err == nil {
		t.Error("expected error entering a result on a completed order")
	}
}

func TestEnterResult_RequiresSomeResult(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.EnterResult(context.Background(), uuid.New(), "", nil); err == nil {
		t.Error("expected error for empty result")
	}
}

func TestReconcileOrders_EndToEnd(t *testing.T) {
	svc, _, _ := newTestService()
	seedCatalog(t, svc)
	ctx := context.Background()

	ready := &LabOrder{PatientID: uuid.New(), ClinicianID: uuid.New()}
	if err := svc.CreateOrder(ctx, ready, []string{"K"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.EnterResult(ctx, ready.Tests[0].ID, "4.2", floatPtr(4.2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	partial := &LabOrder{PatientID: uuid.New(), ClinicianID: uuid.New()}
	if err := svc.CreateOrder(ctx, partial, []string{"K", "HGB"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.EnterResult(ctx, partial.Tests[0].ID, "4.0", floatPtr(4.0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report, err := svc.ReconcileOrders(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Promoted) != 1 || report.Promoted[0] != ready.ID {
		t.Fatalf("expected only the fully-resulted order promoted, got %v", report.Promoted)
	}
	if ready.Status != OrderCompleted || ready.CompletedAt == nil {
		t.Error("promoted order must be COMPLETED with a completion time")
	}
	if partial.Status != OrderPending {
		t.Errorf("partially resulted order must stay PENDING, got %s", partial.Status)
	}

	// Second run finds nothing left to fix.
	report, err = svc.ReconcileOrders(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Promoted) != 0 {
		t.Errorf("expected idempotent second run, got %v", report.Promoted)
	}
}

func TestCancelOrder(t *testing.T) {
	svc, _, _ := newTestService()
	seedCatalog(t, svc)
	ctx := context.Background()

	o := &LabOrder{PatientID: uuid.New(), ClinicianID: uuid.New()}
	if err := svc.CreateOrder(ctx, o, []string{"K"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.CancelOrder(ctx, o.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != OrderCancelled {
		t.Errorf("expected status CANCELLED, got %s", o.Status)
	}
	if err := svc.CancelOrder(ctx, o.ID); err == nil {
		t.Error("expected error cancelling a terminal order")
	}
}
