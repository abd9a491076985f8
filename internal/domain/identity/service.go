package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

var validClinicianRoles = map[string]bool{
	"physician": true, "nurse": true, "lab_tech": true,
}

type Service struct {
	patients   PatientRepository
	clinicians ClinicianRepository
}

func NewService(patients PatientRepository, clinicians ClinicianRepository) *Service {
	return &Service{patients: patients, clinicians: clinicians}
}

// -- Patient --

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if p.MRN == "" {
		return fmt.Errorf("mrn is required")
	}
	p.Active = true
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetPatientByMRN(ctx context.Context, mrn string) (*Patient, error) {
	return s.patients.GetByMRN(ctx, mrn)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

// -- Clinician --

func (s *Service) CreateClinician(ctx context.Context, c *Clinician) error {
	if c.FirstName == "" || c.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if c.LicenseNumber == "" {
		return fmt.Errorf("license_number is required")
	}
	if !validClinicianRoles[c.Role] {
		return fmt.Errorf("invalid role: %s", c.Role)
	}
	c.Active = true
	return s.clinicians.Create(ctx, c)
}

func (s *Service) GetClinician(ctx context.Context, id uuid.UUID) (*Clinician, error) {
	return s.clinicians.GetByID(ctx, id)
}

func (s *Service) ListClinicians(ctx context.Context, limit, offset int) ([]*Clinician, int, error) {
	return s.clinicians.List(ctx, limit, offset)
}
