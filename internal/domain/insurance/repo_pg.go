package insurance

import (
	"context"
	"fmt"

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

// =========== Coverage Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const coverageCols = `id, patient_id, payer_name, member_number, group_number,
	network_tier, annual_deductible, annual_copay_max, copay_percentage,
	is_active, created_at, updated_at`

func scanCoverage(row pgx.Row) (*PatientInsurance, error) {
	var pi PatientInsurance
	err := row.Scan(&pi.ID, &pi.PatientID, &pi.PayerName, &pi.MemberNumber, &pi.GroupNumber,
		&pi.NetworkTier, &pi.AnnualDeductible, &pi.AnnualCopayMax, &pi.CopayPercentage,
		&pi.IsActive, &pi.CreatedAt, &pi.UpdatedAt)
	return &pi, err
}

func (r *repoPG) Create(ctx context.Context, pi *PatientInsurance) error {
	pi.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_insurance (id, patient_id, payer_name, member_number, group_number,
			network_tier, annual_deductible, annual_copay_max, copay_percentage, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		pi.ID, pi.PatientID, pi.PayerName, pi.MemberNumber, pi.GroupNumber,
		pi.NetworkTier, pi.AnnualDeductible, pi.AnnualCopayMax, pi.CopayPercentage, pi.IsActive)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*PatientInsurance, error) {
	return scanCoverage(r.conn(ctx).QueryRow(ctx, `SELECT `+coverageCols+` FROM patient_insurance WHERE id = $1`, id))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientInsurance, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+coverageCols+` FROM patient_insurance WHERE patient_id = $1 ORDER BY created_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*PatientInsurance
	for rows.Next() {
		pi, err := scanCoverage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, pi)
	}
	return items, rows.Err()
}

// Patch builds one UPDATE from the criteria and field map. Field names
// are assumed pre-validated against the service whitelist; values are
// always bound as parameters.
func (r *repoPG) Patch(ctx context.Context, criteria PatchCriteria, fields map[string]interface{}) ([]uuid.UUID, error) {
	set := ``
	var args []interface{}
	idx := 1
	for name, value := range fields {
		if set != "" {
			set += ", "
		}
		set += fmt.Sprintf("%s = $%d", name, idx)
		args = append(args, value)
		idx++
	}

	where := `1=1`
	if criteria.PatientID != nil {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *criteria.PatientID)
		idx++
	}
	if criteria.MemberNumber != nil {
		where += fmt.Sprintf(` AND member_number = $%d`, idx)
		args = append(args, *criteria.MemberNumber)
		idx++
	}
	if criteria.PayerName != nil {
		where += fmt.Sprintf(` AND payer_name = $%d`, idx)
		args = append(args, *criteria.PayerName)
		idx++
	}

	query := `UPDATE patient_insurance SET ` + set + `, updated_at = NOW() WHERE ` + where + ` RETURNING id`
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =========== Payer Rule Repository ===========

type ruleRepoPG struct{ pool *pgxpool.Pool }

func NewRuleRepoPG(pool *pgxpool.Pool) RuleRepository {
	return &ruleRepoPG{pool: pool}
}

func (r *ruleRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const ruleCols = `id, payer_name, icd10_code, is_covered, copay_override, is_active, created_at, updated_at`

func scanRule(row pgx.Row) (*ICD10PayerRule, error) {
	var rule ICD10PayerRule
	err := row.Scan(&rule.ID, &rule.PayerName, &rule.ICD10Code, &rule.IsCovered,
		&rule.CopayOverride, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt)
	return &rule, err
}

func (r *ruleRepoPG) Create(ctx context.Context, rule *ICD10PayerRule) error {
	rule.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO icd10_payer_rule (id, payer_name, icd10_code, is_covered, copay_override, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rule.ID, rule.PayerName, rule.ICD10Code, rule.IsCovered, rule.CopayOverride, rule.IsActive)
	return err
}

func (r *ruleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ICD10PayerRule, error) {
	return scanRule(r.conn(ctx).QueryRow(ctx, `SELECT `+ruleCols+` FROM icd10_payer_rule WHERE id = $1`, id))
}

func (r *ruleRepoPG) ListByPayer(ctx context.Context, payerName string) ([]*ICD10PayerRule, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+ruleCols+` FROM icd10_payer_rule WHERE payer_name = $1 ORDER BY icd10_code`, payerName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ICD10PayerRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rule)
	}
	return items, rows.Err()
}

func (r *ruleRepoPG) Find(ctx context.Context, payerName, icd10Code string) (*ICD10PayerRule, error) {
	return scanRule(r.conn(ctx).QueryRow(ctx, `
		SELECT `+ruleCols+` FROM icd10_payer_rule
		WHERE payer_name = $1 AND icd10_code = $2 AND is_active`, payerName, icd10Code))
}
