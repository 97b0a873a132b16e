package population

import (
	"context"

	"github.com/google/uuid"

	"github.com/pophealth/pophealth/internal/domain/risk"
)

type PopulationRepository interface {
	Create(ctx context.Context, p *Population) error
	GetByID(ctx context.Context, id uuid.UUID) (*Population, error)
	List(ctx context.Context, limit, offset int) ([]*Population, int, error)
}

type MemberRepository interface {
	Add(ctx context.Context, m *Member) error
	ListByPopulation(ctx context.Context, populationID uuid.UUID, limit, offset int) ([]*Member, int, error)
	// UpdateRiskForPatient overwrites the denormalized score mirror on every
	// membership row for the patient, across all populations. Implements
	// risk.MemberScoreWriter.
	UpdateRiskForPatient(ctx context.Context, patientID uuid.UUID, normalizedScore float64, riskTier string) error
	// DistributionByTier groups active members of the population by risk
	// tier with per-tier counts and mean scores.
	DistributionByTier(ctx context.Context, populationID uuid.UUID) (Distribution, error)
	// HighRisk lists active members matching the options, highest current
	// score first.
	HighRisk(ctx context.Context, opts HighRiskOptions) ([]*Member, error)
}

var _ risk.MemberScoreWriter = (MemberRepository)(nil)
