package lab

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type OrderRepository interface {
	Create(ctx context.Context, o *LabOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabOrder, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*LabOrder, error)
	MarkCompleted(ctx context.Context, orderID uuid.UUID, completedAt time.Time) error
	MarkCancelled(ctx context.Context, orderID uuid.UUID) error
	// ListActiveWithTests returns all non-terminal orders with their
	// test entries loaded, as a snapshot for a reconciliation run.
	ListActiveWithTests(ctx context.Context) ([]*LabOrder, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabOrder, int, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*LabOrder, int, error)
}

type OrderTestRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*LabOrderTest, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*LabOrderTest, error)
	UpdateResult(ctx context.Context, t *LabOrderTest) error
}

type TestCatalogRepository interface {
	Create(ctx context.Context, t *LabTest) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabTest, error)
	GetByCode(ctx context.Context, code string) (*LabTest, error)
	List(ctx context.Context, limit, offset int) ([]*LabTest, int, error)
}
