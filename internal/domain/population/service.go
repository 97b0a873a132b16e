package population

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	populations PopulationRepository
	members     MemberRepository
}

func NewService(populations PopulationRepository, members MemberRepository) *Service {
	return &Service{populations: populations, members: members}
}

func (s *Service) CreatePopulation(ctx context.Context, p *Population) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.populations.Create(ctx, p)
}

func (s *Service) GetPopulation(ctx context.Context, id uuid.UUID) (*Population, error) {
	return s.populations.GetByID(ctx, id)
}

func (s *Service) ListPopulations(ctx context.Context, limit, offset int) ([]*Population, int, error) {
	return s.populations.List(ctx, limit, offset)
}

func (s *Service) AddMember(ctx context.Context, m *Member) error {
	if m.PopulationID == uuid.Nil || m.PatientID == uuid.Nil {
		return fmt.Errorf("population_id and patient_id are required")
	}
	if _, err := s.populations.GetByID(ctx, m.PopulationID); err != nil {
		return fmt.Errorf("population not found: %w", err)
	}
	return s.members.Add(ctx, m)
}

func (s *Service) ListMembers(ctx context.Context, populationID uuid.UUID, limit, offset int) ([]*Member, int, error) {
	return s.members.ListByPopulation(ctx, populationID, limit, offset)
}

// RiskDistribution rolls up a population's active members by risk tier.
// Tiers without members are omitted, not zero-filled.
func (s *Service) RiskDistribution(ctx context.Context, populationID uuid.UUID) (Distribution, error) {
	if _, err := s.populations.GetByID(ctx, populationID); err != nil {
		return nil, fmt.Errorf("population not found: %w", err)
	}
	return s.members.DistributionByTier(ctx, populationID)
}

// HighRiskPatients lists active members ordered by current risk score,
// optionally filtered by population, score floor, and tier set.
func (s *Service) HighRiskPatients(ctx context.Context, opts HighRiskOptions) ([]*Member, error) {
	return s.members.HighRisk(ctx, opts)
}
