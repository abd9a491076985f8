// Package seeder loads a small demo dataset into a hospital schema. It is
// intended for development environments and on-boarding: it creates a
// patient, an ordering physician, a minimal test catalog, and a lab order
// carrying a critically low potassium result so the classifier and
// reconciliation paths can be exercised end to end.
package seeder

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/domain/lab"
)

// Result summarizes what a seed run created.
type Result struct {
	Patients    int    `json:"patients"`
	Clinicians  int    `json:"clinicians"`
	CatalogRows int    `json:"catalog_rows"`
	Orders      int    `json:"orders"`
	Results     int    `json:"results"`
	OrderNumber string `json:"order_number"`
}

// Seeder writes demo data through the domain services so all validation
// and classification rules apply to seeded rows exactly as they would to
// real ones.
type Seeder struct {
	identity *identity.Service
	lab      *lab.Service
	logger   zerolog.Logger
}

func New(identitySvc *identity.Service, labSvc *lab.Service, logger zerolog.Logger) *Seeder {
	return &Seeder{identity: identitySvc, lab: labSvc, logger: logger}
}

const (
	demoMRN     = "DEMO-0001"
	demoLicense = "DEMO-MD-0001"
)

type catalogEntry struct {
	code, name, unit string
	low, high        float64
}

var demoCatalog = []catalogEntry{
	{"K", "Potassium", "mmol/L", 3.5, 5.0},
	{"NA", "Sodium", "mmol/L", 135, 145},
	{"HGB", "Hemoglobin", "g/dL", 12, 16},
}

// SeedCriticalScenario creates the demo scenario. It is safe to run more
// than once: existing catalog entries and the demo patient are reused,
// but each run places a fresh order.
//
// The potassium result of 2.1 mmol/L sits below the critical threshold
// for the 3.5-5.0 range, so the seeded order demonstrates both abnormal
// and critical flagging. The sodium test is left without a result, which
// keeps the order out of reconciliation until a second result arrives.
func (s *Seeder) SeedCriticalScenario(ctx context.Context) (*Result, error) {
	res := &Result{}

	for _, e := range demoCatalog {
		if _, err := s.lab.GetTestByCode(ctx, e.code); err == nil {
			continue
		}
		t := &lab.LabTest{Code: e.code, Name: e.name, Unit: e.unit, RangeLow: e.low, RangeHigh: e.high}
		if err := s.lab.CreateTest(ctx, t); err != nil {
			return nil, fmt.Errorf("seed catalog entry %s: %w", e.code, err)
		}
		res.CatalogRows++
	}

	patient, err := s.identity.GetPatientByMRN(ctx, demoMRN)
	if err != nil {
		patient = &identity.Patient{MRN: demoMRN, FirstName: "Jane", LastName: "Rivera"}
		if err := s.identity.CreatePatient(ctx, patient); err != nil {
			return nil, fmt.Errorf("seed patient: %w", err)
		}
		res.Patients++
	}

	clinician, err := s.findClinician(ctx, demoLicense)
	if err != nil {
		specialty := "internal_medicine"
		clinician = &identity.Clinician{
			FirstName:     "Arjun",
			LastName:      "Mehta",
			Specialty:     &specialty,
			LicenseNumber: demoLicense,
			Role:          "physician",
		}
		if err := s.identity.CreateClinician(ctx, clinician); err != nil {
			return nil, fmt.Errorf("seed clinician: %w", err)
		}
		res.Clinicians++
	}

	priority := "STAT"
	order := &lab.LabOrder{
		PatientID:   patient.ID,
		ClinicianID: clinician.ID,
		Priority:    &priority,
	}
	if err := s.lab.CreateOrder(ctx, order, []string{"K", "NA"}); err != nil {
		return nil, fmt.Errorf("seed order: %w", err)
	}
	res.Orders++
	res.OrderNumber = order.OrderNumber

	for _, t := range order.Tests {
		if t.TestCode != "K" {
			continue
		}
		value := 2.1
		entered, err := s.lab.EnterResult(ctx, t.ID, "2.1", &value)
		if err != nil {
			return nil, fmt.Errorf("seed potassium result: %w", err)
		}
		if !entered.IsCritical {
			return nil, fmt.Errorf("seeded potassium result was not flagged critical")
		}
		res.Results++
	}

	s.logger.Info().
		Str("order_number", res.OrderNumber).
		Str("patient_mrn", demoMRN).
		Int("catalog_rows", res.CatalogRows).
		Msg("critical value scenario seeded")
	return res, nil
}

func (s *Seeder) findClinician(ctx context.Context, license string) (*identity.Clinician, error) {
	clinicians, _, err := s.identity.ListClinicians(ctx, 100, 0)
	if err != nil {
		return nil, err
	}
	for _, c := range clinicians {
		if c.LicenseNumber == license {
			return c, nil
		}
	}
	return nil, fmt.Errorf("clinician with license %s not found", license)
}
