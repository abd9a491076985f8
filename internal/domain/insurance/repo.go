package insurance

import (
	"context"

	"github.com/google/uuid"
)

// PatchCriteria selects the coverage records a field patch applies to.
// All set fields are ANDed together; at least one must be set.
type PatchCriteria struct {
	PatientID    *uuid.UUID
	MemberNumber *string
	PayerName    *string
}

func (c PatchCriteria) Empty() bool {
	return c.PatientID == nil && c.MemberNumber == nil && c.PayerName == nil
}

type Repository interface {
	Create(ctx context.Context, pi *PatientInsurance) error
	GetByID(ctx context.Context, id uuid.UUID) (*PatientInsurance, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientInsurance, error)
	// Patch applies the given column values to every record matching the
	// criteria and returns the IDs of the records it touched.
	Patch(ctx context.Context, criteria PatchCriteria, fields map[string]interface{}) ([]uuid.UUID, error)
}

type RuleRepository interface {
	Create(ctx context.Context, rule *ICD10PayerRule) error
	GetByID(ctx context.Context, id uuid.UUID) (*ICD10PayerRule, error)
	ListByPayer(ctx context.Context, payerName string) ([]*ICD10PayerRule, error)
	// Find returns the active rule for a payer and diagnosis code, or an
	// error if none exists.
	Find(ctx context.Context, payerName, icd10Code string) (*ICD10PayerRule, error)
}
