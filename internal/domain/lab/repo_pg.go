package lab

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Test Catalog Repository ===========

type testCatalogRepoPG struct{ pool *pgxpool.Pool }

func NewTestCatalogRepoPG(pool *pgxpool.Pool) TestCatalogRepository {
	return &testCatalogRepoPG{pool: pool}
}

func (r *testCatalogRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const testCols = `id, code, name, category, unit, range_low, range_high, is_active, created_at, updated_at`

func (r *testCatalogRepoPG) scanTest(row pgx.Row) (*LabTest, error) {
	var t LabTest
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.Category, &t.Unit,
		&t.RangeLow, &t.RangeHigh, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *testCatalogRepoPG) Create(ctx context.Context, t *LabTest) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_test (id, code, name, category, unit, range_low, range_high, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.Code, t.Name, t.Category, t.Unit, t.RangeLow, t.RangeHigh, t.IsActive)
	return err
}

func (r *testCatalogRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	return r.scanTest(r.conn(ctx).QueryRow(ctx, `SELECT `+testCols+` FROM lab_test WHERE id = $1`, id))
}

func (r *testCatalogRepoPG) GetByCode(ctx context.Context, code string) (*LabTest, error) {
	return r.scanTest(r.conn(ctx).QueryRow(ctx, `SELECT `+testCols+` FROM lab_test WHERE code = $1`, code))
}

func (r *testCatalogRepoPG) List(ctx context.Context, limit, offset int) ([]*LabTest, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM lab_test WHERE is_active`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+testCols+` FROM lab_test WHERE is_active ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*LabTest
	for rows.Next() {
		t, err := r.scanTest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, nil
}

// =========== Order Repository ===========

type orderRepoPG struct{ pool *pgxpool.Pool }

func NewOrderRepoPG(pool *pgxpool.Pool) OrderRepository {
	return &orderRepoPG{pool: pool}
}

func (r *orderRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const orderCols = `id, order_number, patient_id, clinician_id, status, priority,
	clinical_notes, completed_at, created_at, updated_at`

const orderTestCols = `id, order_id, test_id, test_code, test_name, status,
	result, result_value, unit, normal_range, is_abnormal, is_critical,
	performed_at, created_at, updated_at`

func (r *orderRepoPG) scanOrder(row pgx.Row) (*LabOrder, error) {
	var o LabOrder
	err := row.Scan(&o.ID, &o.OrderNumber, &o.PatientID, &o.ClinicianID, &o.Status,
		&o.Priority, &o.ClinicalNotes, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt)
	return &o, err
}

func scanOrderTest(row pgx.Row) (*LabOrderTest, error) {
	var t LabOrderTest
	err := row.Scan(&t.ID, &t.OrderID, &t.TestID, &t.TestCode, &t.TestName, &t.Status,
		&t.Result, &t.ResultValue, &t.Unit, &t.NormalRange, &t.IsAbnormal, &t.IsCritical,
		&t.PerformedAt, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *orderRepoPG) Create(ctx context.Context, o *LabOrder) error {
	o.ID = uuid.New()
	conn := r.conn(ctx)
	_, err := conn.Exec(ctx, `
		INSERT INTO lab_order (id, order_number, patient_id, clinician_id, status, priority, clinical_notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		o.ID, o.OrderNumber, o.PatientID, o.ClinicianID, o.Status, o.Priority, o.ClinicalNotes)
	if err != nil {
		return err
	}
	for _, t := range o.Tests {
		t.ID = uuid.New()
		t.OrderID = o.ID
		_, err := conn.Exec(ctx, `
			INSERT INTO lab_order_test (id, order_id, test_id, test_code, test_name, status, unit, normal_range)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			t.ID, t.OrderID, t.TestID, t.TestCode, t.TestName, t.Status, t.Unit, t.NormalRange)
		if err != nil {
			return fmt.Errorf("insert order test %s: %w", t.TestCode, err)
		}
	}
	return nil
}

func (r *orderRepoPG) getOrder(ctx context.Context, where string, arg interface{}) (*LabOrder, error) {
	o, err := r.scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM lab_order WHERE `+where, arg))
	if err != nil {
		return nil, err
	}
	o.Tests, err = r.listTests(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderRepoPG) listTests(ctx context.Context, orderID uuid.UUID) ([]*LabOrderTest, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+orderTestCols+` FROM lab_order_test WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tests []*LabOrderTest
	for rows.Next() {
		t, err := scanOrderTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

func (r *orderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabOrder, error) {
	return r.getOrder(ctx, `id = $1`, id)
}

func (r *orderRepoPG) GetByOrderNumber(ctx context.Context, orderNumber string) (*LabOrder, error) {
	return r.getOrder(ctx, `order_number = $1`, orderNumber)
}

func (r *orderRepoPG) MarkCompleted(ctx context.Context, orderID uuid.UUID, completedAt time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_order SET status = $2, completed_at = $3, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ($4, $5)`,
		orderID, OrderCompleted, completedAt, OrderCompleted, OrderCancelled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s not found or already terminal", orderID)
	}
	return nil
}

func (r *orderRepoPG) MarkCancelled(ctx context.Context, orderID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_order SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ($2, $3)`,
		orderID, OrderCancelled, OrderCompleted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s not found or already terminal", orderID)
	}
	return nil
}

// ListActiveWithTests loads all non-terminal orders and attaches their
// tests with a single grouped query, so a reconciliation run works from
// one consistent snapshot.
func (r *orderRepoPG) ListActiveWithTests(ctx context.Context) ([]*LabOrder, error) {
	conn := r.conn(ctx)
	rows, err := conn.Query(ctx, `SELECT `+orderCols+` FROM lab_order WHERE status NOT IN ($1, $2) ORDER BY created_at`,
		OrderCompleted, OrderCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*LabOrder
	byID := make(map[uuid.UUID]*LabOrder)
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
		byID[o.ID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	testRows, err := conn.Query(ctx, `
		SELECT `+orderTestCols+` FROM lab_order_test
		WHERE order_id IN (SELECT id FROM lab_order WHERE status NOT IN ($1, $2))
		ORDER BY created_at`, OrderCompleted, OrderCancelled)
	if err != nil {
		return nil, err
	}
	defer testRows.Close()
	for testRows.Next() {
		t, err := scanOrderTest(testRows)
		if err != nil {
			return nil, err
		}
		if o, ok := byID[t.OrderID]; ok {
			o.Tests = append(o.Tests, t)
		}
	}
	return orders, testRows.Err()
}

func (r *orderRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabOrder, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM lab_order WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+orderCols+` FROM lab_order WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*LabOrder
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, nil
}

func (r *orderRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*LabOrder, int, error) {
	query := `SELECT ` + orderCols + ` FROM lab_order WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM lab_order WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["patient"]; ok {
		query += fmt.Sprintf(` AND patient_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["status"]; ok {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["priority"]; ok {
		query += fmt.Sprintf(` AND priority = $%d`, idx)
		countQuery += fmt.Sprintf(` AND priority = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*LabOrder
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, nil
}

// =========== Order Test Repository ===========

type orderTestRepoPG struct{ pool *pgxpool.Pool }

func NewOrderTestRepoPG(pool *pgxpool.Pool) OrderTestRepository {
	return &orderTestRepoPG{pool: pool}
}

func (r *orderTestRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *orderTestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabOrderTest, error) {
	return scanOrderTest(r.conn(ctx).QueryRow(ctx, `SELECT `+orderTestCols+` FROM lab_order_test WHERE id = $1`, id))
}

func (r *orderTestRepoPG) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*LabOrderTest, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+orderTestCols+` FROM lab_order_test WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tests []*LabOrderTest
	for rows.Next() {
		t, err := scanOrderTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

func (r *orderTestRepoPG) UpdateResult(ctx context.Context, t *LabOrderTest) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_order_test SET status=$2, result=$3, result_value=$4,
			is_abnormal=$5, is_critical=$6, performed_at=$7, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.Status, t.Result, t.ResultValue,
		t.IsAbnormal, t.IsCritical, t.PerformedAt)
	return err
}
