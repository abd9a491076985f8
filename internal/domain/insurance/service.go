package insurance

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// patchableFields whitelists the columns a field patch may touch.
// Identity and audit columns are never patchable.
var patchableFields = map[string]bool{
	"network_tier":      true,
	"annual_deductible": true,
	"annual_copay_max":  true,
	"copay_percentage":  true,
	"is_active":         true,
}

var validNetworkTiers = map[string]bool{
	"IN_NETWORK": true, "OUT_OF_NETWORK": true, "PREFERRED": true,
}

type Service struct {
	coverage Repository
	rules    RuleRepository
	logger   zerolog.Logger
}

func NewService(coverage Repository, rules RuleRepository, logger zerolog.Logger) *Service {
	return &Service{coverage: coverage, rules: rules, logger: logger}
}

// -- Coverage --

func (s *Service) CreateCoverage(ctx context.Context, pi *PatientInsurance) error {
	if pi.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if pi.PayerName == "" {
		return fmt.Errorf("payer_name is required")
	}
	if pi.MemberNumber == "" {
		return fmt.Errorf("member_number is required")
	}
	if pi.NetworkTier == "" {
		pi.NetworkTier = "IN_NETWORK"
	}
	if !validNetworkTiers[pi.NetworkTier] {
		return fmt.Errorf("invalid network_tier: %s", pi.NetworkTier)
	}
	if pi.CopayPercentage < 0 || pi.CopayPercentage > 100 {
		return fmt.Errorf("copay_percentage must be between 0 and 100")
	}
	if pi.AnnualDeductible < 0 || pi.AnnualCopayMax < 0 {
		return fmt.Errorf("deductible and copay max must be non-negative")
	}
	pi.IsActive = true
	return s.coverage.Create(ctx, pi)
}

func (s *Service) GetCoverage(ctx context.Context, id uuid.UUID) (*PatientInsurance, error) {
	return s.coverage.GetByID(ctx, id)
}

func (s *Service) ListCoverageByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientInsurance, error) {
	return s.coverage.ListByPatient(ctx, patientID)
}

// -- Field patch --

// PatchReport records what a patch run did, for audit logs and
// re-runnability checks.
type PatchReport struct {
	MatchedIDs []uuid.UUID `json:"matched_ids"`
	Updated    int         `json:"updated"`
}

// PatchCoverage applies explicit field values to every coverage record
// matching the criteria. The criteria and fields arrive as parameters
// rather than being baked into a one-off script, so the same operation
// serves any payer-wide correction. Every touched record ID is logged.
func (s *Service) PatchCoverage(ctx context.Context, criteria PatchCriteria, fields map[string]interface{}) (PatchReport, error) {
	if criteria.Empty() {
		return PatchReport{}, fmt.Errorf("at least one criterion is required")
	}
	if len(fields) == 0 {
		return PatchReport{}, fmt.Errorf("at least one field is required")
	}
	for name := range fields {
		if !patchableFields[name] {
			return PatchReport{}, fmt.Errorf("field %q is not patchable", name)
		}
	}
	if tier, ok := fields["network_tier"]; ok {
		str, isStr := tier.(string)
		if !isStr || !validNetworkTiers[str] {
			return PatchReport{}, fmt.Errorf("invalid network_tier: %v", tier)
		}
	}

	ids, err := s.coverage.Patch(ctx, criteria, fields)
	if err != nil {
		return PatchReport{}, fmt.Errorf("patch coverage: %w", err)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, id := range ids {
		s.logger.Info().
			Str("record_id", id.String()).
			Strs("fields", names).
			Msg("coverage record patched")
	}
	return PatchReport{MatchedIDs: ids, Updated: len(ids)}, nil
}

// -- Payer rules --

func (s *Service) CreateRule(ctx context.Context, rule *ICD10PayerRule) error {
	if rule.PayerName == "" {
		return fmt.Errorf("payer_name is required")
	}
	if rule.ICD10Code == "" {
		return fmt.Errorf("icd10_code is required")
	}
	if rule.CopayOverride != nil && (*rule.CopayOverride < 0 || *rule.CopayOverride > 100) {
		return fmt.Errorf("copay_override must be between 0 and 100")
	}
	rule.IsActive = true
	return s.rules.Create(ctx, rule)
}

func (s *Service) ListRulesByPayer(ctx context.Context, payerName string) ([]*ICD10PayerRule, error) {
	return s.rules.ListByPayer(ctx, payerName)
}

// ResolveCopay returns the effective copay percentage for a coverage
// record and a diagnosis code. A matching active payer rule overrides
// the plan-level percentage; a rule marking the diagnosis as not
// covered is an error.
func (s *Service) ResolveCopay(ctx context.Context, pi *PatientInsurance, icd10Code string) (float64, error) {
	rule, err := s.rules.Find(ctx, pi.PayerName, icd10Code)
	if err != nil {
		return pi.CopayPercentage, nil
	}
	if !rule.IsCovered {
		return 0, fmt.Errorf("diagnosis %s is not covered by %s", icd10Code, pi.PayerName)
	}
	if rule.CopayOverride != nil {
		return *rule.CopayOverride, nil
	}
	return pi.CopayPercentage, nil
}
