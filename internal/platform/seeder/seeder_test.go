package seeder

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/domain/lab"
)

type memPatientRepo struct {
	patients map[uuid.UUID]*identity.Patient
}

func (r *memPatientRepo) Create(_ context.Context, p *identity.Patient) error {
	p.ID = uuid.New()
	r.patients[p.ID] = p
	return nil
}

func (r *memPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*identity.Patient, error) {
	p, ok := r.patients[id]
	if !ok {
		return nil, fmt.Errorf("patient %s not found", id)
	}
	return p, nil
}

func (r *memPatientRepo) GetByMRN(_ context.Context, mrn string) (*identity.Patient, error) {
	for _, p := range r.patients {
		if p.MRN == mrn {
			return p, nil
		}
	}
	return nil, fmt.Errorf("patient with mrn %s not found", mrn)
}

func (r *memPatientRepo) List(_ context.Context, _, _ int) ([]*identity.Patient, int, error) {
	var out []*identity.Patient
	for _, p := range r.patients {
		out = append(out, p)
	}
	return out, len(out), nil
}

type memClinicianRepo struct {
	clinicians map[uuid.UUID]*identity.Clinician
}

func (r *memClinicianRepo) Create(_ context.Context, c *identity.Clinician) error {
	c.ID = uuid.New()
	r.clinicians[c.ID] = c
	return nil
}

func (r *memClinicianRepo) GetByID(_ context.Context, id uuid.UUID) (*identity.Clinician, error) {
	c, ok := r.clinicians[id]
	if !ok {
		return nil, fmt.Errorf("clinician %s not found", id)
	}
	return c, nil
}

func (r *memClinicianRepo) List(_ context.Context, _, _ int) ([]*identity.Clinician, int, error) {
	var out []*identity.Clinician
	for _, c := range r.clinicians {
		out = append(out, c)
	}
	return out, len(out), nil
}

type memCatalogRepo struct {
	tests map[string]*lab.LabTest
}

func (r *memCatalogRepo) Create(_ context.Context, t *lab.LabTest) error {
	t.ID = uuid.New()
	r.tests[t.Code] = t
	return nil
}

func (r *memCatalogRepo) GetByID(_ context.Context, id uuid.UUID) (*lab.LabTest, error) {
	for _, t := range r.tests {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("test %s not found", id)
}

func (r *memCatalogRepo) GetByCode(_ context.Context, code string) (*lab.LabTest, error) {
	t, ok := r.tests[code]
	if !ok {
		return nil, fmt.Errorf("test %s not found", code)
	}
	return t, nil
}

func (r *memCatalogRepo) List(_ context.Context, _, _ int) ([]*lab.LabTest, int, error) {
	var out []*lab.LabTest
	for _, t := range r.tests {
		out = append(out, t)
	}
	return out, len(out), nil
}

type memOrderRepo struct {
	orders map[uuid.UUID]*lab.LabOrder
}

func (r *memOrderRepo) Create(_ context.Context, o *lab.LabOrder) error {
	o.ID = uuid.New()
	for _, t := range o.Tests {
		t.ID = uuid.New()
		t.OrderID = o.ID
	}
	r.orders[o.ID] = o
	return nil
}

func (r *memOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*lab.LabOrder, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s not found", id)
	}
	return o, nil
}

func (r *memOrderRepo) GetByOrderNumber(_ context.Context, orderNumber string) (*lab.LabOrder, error) {
	for _, o := range r.orders {
		if o.OrderNumber == orderNumber {
			return o, nil
		}
	}
	return nil, fmt.Errorf("order %s not found", orderNumber)
}

func (r *memOrderRepo) MarkCompleted(_ context.Context, orderID uuid.UUID, completedAt time.Time) error {
	o, ok := r.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	o.Status = lab.OrderCompleted
	o.CompletedAt = &completedAt
	return nil
}

func (r *memOrderRepo) MarkCancelled(_ context.Context, orderID uuid.UUID) error {
	o, ok := r.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	o.Status = lab.OrderCancelled
	return nil
}

func (r *memOrderRepo) ListActiveWithTests(_ context.Context) ([]*lab.LabOrder, error) {
	var out []*lab.LabOrder
	for _, o := range r.orders {
		if !o.Status.Terminal() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memOrderRepo) ListByPatient(_ context.Context, patientID uuid.UUID, _, _ int) ([]*lab.LabOrder, int, error) {
	var out []*lab.LabOrder
	for _, o := range r.orders {
		if o.PatientID == patientID {
			out = append(out, o)
		}
	}
	return out, len(out), nil
}

func (r *memOrderRepo) Search(_ context.Context, _ map[string]string, _, _ int) ([]*lab.LabOrder, int, error) {
	return nil, 0, nil
}

type memOrderTestRepo struct {
	orders *memOrderRepo
}

func (r *memOrderTestRepo) GetByID(_ context.Context, id uuid.UUID) (*lab.LabOrderTest, error) {
	for _, o := range r.orders.orders {
		for _, t := range o.Tests {
			if t.ID == id {
				return t, nil
			}
		}
	}
	return nil, fmt.Errorf("order test %s not found", id)
}

func (r *memOrderTestRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]*lab.LabOrderTest, error) {
	o, ok := r.orders.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	return o.Tests, nil
}

func (r *memOrderTestRepo) UpdateResult(_ context.Context, t *lab.LabOrderTest) error {
	existing, err := r.GetByID(context.Background(), t.ID)
	if err != nil {
		return err
	}
	*existing = *t
	return nil
}

func newTestSeeder() (*Seeder, *memOrderRepo) {
	patients := &memPatientRepo{patients: make(map[uuid.UUID]*identity.Patient)}
	clinicians := &memClinicianRepo{clinicians: make(map[uuid.UUID]*identity.Clinician)}
	identitySvc := identity.NewService(patients, clinicians)

	orders := &memOrderRepo{orders: make(map[uuid.UUID]*lab.LabOrder)}
	orderTests := &memOrderTestRepo{orders: orders}
	catalog := &memCatalogRepo{tests: make(map[string]*lab.LabTest)}
	labSvc := lab.NewService(orders, orderTests, catalog, zerolog.Nop())

	return New(identitySvc, labSvc, zerolog.Nop()), orders
}

func TestSeedCriticalScenario(t *testing.T) {
	s, orders := newTestSeeder()
	ctx := context.Background()

	res, err := s.SeedCriticalScenario(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if res.Patients != 1 || res.Clinicians != 1 {
		t.Errorf("expected 1 patient and 1 clinician, got %d/%d", res.Patients, res.Clinicians)
	}
	if res.CatalogRows != len(demoCatalog) {
		t.Errorf("expected %d catalog rows, got %d", len(demoCatalog), res.CatalogRows)
	}
	if res.Orders != 1 || res.Results != 1 {
		t.Errorf("expected 1 order and 1 result, got %d/%d", res.Orders, res.Results)
	}
	if res.OrderNumber == "" {
		t.Error("expected order number in result")
	}

	order, err := orders.GetByOrderNumber(ctx, res.OrderNumber)
	if err != nil {
		t.Fatalf("seeded order not found: %v", err)
	}
	if order.Status != lab.OrderPending {
		t.Errorf("expected order to stay PENDING, got %s", order.Status)
	}

	var potassium *lab.LabOrderTest
	for _, tt := range order.Tests {
		if tt.TestCode == "K" {
			potassium = tt
		}
	}
	if potassium == nil {
		t.Fatal("expected potassium test on seeded order")
	}
	if !potassium.IsCritical || !potassium.IsAbnormal {
		t.Errorf("expected potassium result flagged critical and abnormal, got critical=%v abnormal=%v",
			potassium.IsCritical, potassium.IsAbnormal)
	}
	if potassium.Status != lab.TestCompleted {
		t.Errorf("expected potassium test COMPLETED, got %s", potassium.Status)
	}
}

func TestSeedCriticalScenario_Rerun(t *testing.T) {
	s, orders := newTestSeeder()
	ctx := context.Background()

	if _, err := s.SeedCriticalScenario(ctx); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	res, err := s.SeedCriticalScenario(ctx)
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}

	// Catalog, patient, and clinician are reused; only the order is new.
	if res.CatalogRows != 0 || res.Patients != 0 || res.Clinicians != 0 {
		t.Errorf("expected reuse on rerun, got catalog=%d patients=%d clinicians=%d",
			res.CatalogRows, res.Patients, res.Clinicians)
	}
	if res.Orders != 1 {
		t.Errorf("expected a fresh order on rerun, got %d", res.Orders)
	}
	if len(orders.orders) != 2 {
		t.Errorf("expected 2 orders after rerun, got %d", len(orders.orders))
	}
}
