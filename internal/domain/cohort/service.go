package cohort

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pophealth/pophealth/internal/domain/risk"
)

var (
	ErrNotFound     = errors.New("cohort: not found")
	ErrInvalidInput = errors.New("cohort: invalid input")
	ErrGapResolved  = errors.New("cohort: care gap already resolved")
)

type Service struct {
	cohorts CohortRepository
	members MemberRepository
	gaps    CareGapRepository
}

func NewService(cohorts CohortRepository, members MemberRepository, gaps CareGapRepository) *Service {
	return &Service{cohorts: cohorts, members: members, gaps: gaps}
}

func (s *Service) CreateCohort(ctx context.Context, c *Cohort) error {
	if c.Name == "" || c.PopulationID == uuid.Nil {
		return ErrInvalidInput
	}
	if c.CohortType == "" {
		c.CohortType = "risk_based"
	}
	return s.cohorts.Create(ctx, c)
}

func (s *Service) GetCohort(ctx context.Context, id uuid.UUID) (*Cohort, error) {
	return s.cohorts.GetByID(ctx, id)
}

func (s *Service) ListCohorts(ctx context.Context, populationID uuid.UUID, limit, offset int) ([]*Cohort, int, error) {
	return s.cohorts.ListByPopulation(ctx, populationID, limit, offset)
}

func (s *Service) AddMember(ctx context.Context, m *Member) error {
	if m.CohortID == uuid.Nil || m.PatientID == uuid.Nil {
		return ErrInvalidInput
	}
	if _, err := s.cohorts.GetByID(ctx, m.CohortID); err != nil {
		return err
	}
	return s.members.Add(ctx, m)
}

func (s *Service) ListMembers(ctx context.Context, cohortID uuid.UUID) ([]*Member, error) {
	return s.members.ListActive(ctx, cohortID)
}

// Stratify buckets the cohort's active members into risk tiers using their
// snapshot scores. All five tiers appear in the result even when empty, and a
// member with no recorded score counts as score 0.
func (s *Service) Stratify(ctx context.Context, cohortID uuid.UUID) (Stratification, error) {
	if _, err := s.cohorts.GetByID(ctx, cohortID); err != nil {
		return nil, err
	}
	members, err := s.members.ListActive(ctx, cohortID)
	if err != nil {
		return nil, err
	}

	strat := Stratification{
		risk.TierLow:      0,
		risk.TierModerate: 0,
		risk.TierHigh:     0,
		risk.TierVeryHigh: 0,
		risk.TierCritical: 0,
	}
	for _, m := range members {
		score := 0.0
		if m.RiskScore != nil {
			score = *m.RiskScore
		}
		strat[risk.ClassifyTier(score)]++
	}
	log.Debug().Str("cohort_id", cohortID.String()).Int("members", len(members)).Msg("cohort stratified")
	return strat, nil
}

func (s *Service) OpenCareGap(ctx context.Context, g *CareGap) error {
	if g.PatientID == uuid.Nil || g.GapType == "" || g.Title == "" {
		return ErrInvalidInput
	}
	if g.Priority == "" {
		g.Priority = "medium"
	}
	g.Status = "open"
	return s.gaps.Create(ctx, g)
}

func (s *Service) GetCareGap(ctx context.Context, id uuid.UUID) (*CareGap, error) {
	return s.gaps.GetByID(ctx, id)
}

func (s *Service) ListCareGaps(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CareGap, int, error) {
	return s.gaps.ListByPatient(ctx, patientID, limit, offset)
}

// ResolveCareGap marks an open gap resolved and stamps resolved_at.
func (s *Service) ResolveCareGap(ctx context.Context, id uuid.UUID) (*CareGap, error) {
	g, err := s.gaps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.Status == "resolved" {
		return nil, ErrGapResolved
	}
	now := time.Now().UTC()
	g.Status = "resolved"
	g.ResolvedAt = &now
	if err := s.gaps.Update(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}
