package insurance

import (
	"time"

	"github.com/google/uuid"
)

// PatientInsurance is one coverage record for a patient. A patient may
// carry several records (primary/secondary payers); IsActive marks the
// ones currently billable.
type PatientInsurance struct {
	ID               uuid.UUID `json:"id" db:"id"`
	PatientID        uuid.UUID `json:"patient_id" db:"patient_id"`
	PayerName        string    `json:"payer_name" db:"payer_name"`
	MemberNumber     string    `json:"member_number" db:"member_number"`
	GroupNumber      *string   `json:"group_number,omitempty" db:"group_number"`
	NetworkTier      string    `json:"network_tier" db:"network_tier"`
	AnnualDeductible float64   `json:"annual_deductible" db:"annual_deductible"`
	AnnualCopayMax   float64   `json:"annual_copay_max" db:"annual_copay_max"`
	CopayPercentage  float64   `json:"copay_percentage" db:"copay_percentage"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// ICD10PayerRule maps a payer plus ICD-10 diagnosis code to coverage
// terms. When CopayOverride is set it replaces the plan-level copay
// percentage for claims carrying that diagnosis.
type ICD10PayerRule struct {
	ID            uuid.UUID `json:"id" db:"id"`
	PayerName     string    `json:"payer_name" db:"payer_name"`
	ICD10Code     string    `json:"icd10_code" db:"icd10_code"`
	IsCovered     bool      `json:"is_covered" db:"is_covered"`
	CopayOverride *float64  `json:"copay_override,omitempty" db:"copay_override"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
