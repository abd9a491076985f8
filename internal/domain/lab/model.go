package lab

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the aggregate status of a lab order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal status that reconciliation
// must never touch.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// TestStatus is the status of a single test within an order. It is
// independent of the parent order's status.
type TestStatus string

const (
	TestOrdered    TestStatus = "ORDERED"
	TestInProgress TestStatus = "IN_PROGRESS"
	TestCompleted  TestStatus = "COMPLETED"
	TestCancelled  TestStatus = "CANCELLED"
)

// Valid reports whether s is a known test status.
func (s TestStatus) Valid() bool {
	switch s {
	case TestOrdered, TestInProgress, TestCompleted, TestCancelled:
		return true
	}
	return false
}

// LabTest maps to the lab_test table: the catalog definition of a test,
// including its clinically normal reference range.
type LabTest struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Category  *string   `db:"category" json:"category,omitempty"`
	Unit      string    `db:"unit" json:"unit"`
	RangeLow  float64   `db:"range_low" json:"range_low"`
	RangeHigh float64   `db:"range_high" json:"range_high"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Range returns the test's reference range.
func (t *LabTest) Range() ReferenceRange {
	return ReferenceRange{Low: t.RangeLow, High: t.RangeHigh}
}

// LabOrder maps to the lab_order table. An order belongs to one patient
// and one ordering clinician; the hospital is the tenant schema the row
// lives in.
type LabOrder struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	OrderNumber   string          `db:"order_number" json:"order_number"`
	PatientID     uuid.UUID       `db:"patient_id" json:"patient_id"`
	ClinicianID   uuid.UUID       `db:"clinician_id" json:"clinician_id"`
	Status        OrderStatus     `db:"status" json:"status"`
	Priority      *string         `db:"priority" json:"priority,omitempty"`
	ClinicalNotes *string         `db:"clinical_notes" json:"clinical_notes,omitempty"`
	CompletedAt   *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	Tests         []*LabOrderTest `db:"-" json:"tests,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// LabOrderTest maps to the lab_order_test table: one requested test
// within an order, plus its recorded result and derived flags.
type LabOrderTest struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	OrderID     uuid.UUID  `db:"order_id" json:"order_id"`
	TestID      uuid.UUID  `db:"test_id" json:"test_id"`
	TestCode    string     `db:"test_code" json:"test_code"`
	TestName    string     `db:"test_name" json:"test_name"`
	Status      TestStatus `db:"status" json:"status"`
	Result      *string    `db:"result" json:"result,omitempty"`
	ResultValue *float64   `db:"result_value" json:"result_value,omitempty"`
	Unit        string     `db:"unit" json:"unit"`
	NormalRange string     `db:"normal_range" json:"normal_range"`
	IsAbnormal  bool       `db:"is_abnormal" json:"is_abnormal"`
	IsCritical  bool       `db:"is_critical" json:"is_critical"`
	PerformedAt *time.Time `db:"performed_at" json:"performed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// HasResult reports whether a result has been recorded for the test,
// either as free text or as a numeric value.
func (t *LabOrderTest) HasResult() bool {
	if t.ResultValue != nil {
		return true
	}
	return t.Result != nil && *t.Result != ""
}
