package cohort

import (
	"context"

	"github.com/google/uuid"
)

type CohortRepository interface {
	Create(ctx context.Context, c *Cohort) error
	GetByID(ctx context.Context, id uuid.UUID) (*Cohort, error)
	ListByPopulation(ctx context.Context, populationID uuid.UUID, limit, offset int) ([]*Cohort, int, error)
}

type MemberRepository interface {
	Add(ctx context.Context, m *Member) error
	// ListActive returns all active members of the cohort with their
	// snapshot risk scores.
	ListActive(ctx context.Context, cohortID uuid.UUID) ([]*Member, error)
}

type CareGapRepository interface {
	Create(ctx context.Context, g *CareGap) error
	GetByID(ctx context.Context, id uuid.UUID) (*CareGap, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CareGap, int, error)
	Update(ctx context.Context, g *CareGap) error
}
