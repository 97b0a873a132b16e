package risk

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/pophealth/pophealth/internal/platform/db"
)

// Service is the risk score ledger. It computes normalization, tier, and
// percentile for every submission, and commits each new score atomically with
// the retirement of the previous active score for the same patient and model.
type Service struct {
	repo    ScoreRepository
	members MemberScoreWriter
	tx      db.TxRunner
}

func NewService(repo ScoreRepository, members MemberScoreWriter, tx db.TxRunner) *Service {
	return &Service{repo: repo, members: members, tx: tx}
}

func (s *Service) validate(input ScoreInput) error {
	if input.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if input.ModelName == "" {
		return fmt.Errorf("model_name is required")
	}
	if input.ScoreType == "" {
		return fmt.Errorf("score_type is required")
	}
	return nil
}

// RecordScore normalizes, classifies, and ranks the submitted score, then
// commits it as the patient's single active score for the model. The previous
// active row is deactivated in the same transaction, and the patient's
// population membership rows are updated with the new score and tier.
//
// The percentile is computed against the reference population as it stands
// before the commit; a slightly stale reference is accepted.
func (s *Service) RecordScore(ctx context.Context, input ScoreInput) (*Score, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	normalized := NormalizeScore(input.RawScore, input.ScoreType)
	tier := ClassifyTier(normalized)

	percentile, err := s.percentile(ctx, input.PatientID, normalized, input.ModelName)
	if err != nil {
		return nil, fmt.Errorf("compute percentile: %w", err)
	}

	score := &Score{
		PatientID:       input.PatientID,
		FHIRPatientRef:  input.FHIRPatientRef,
		ModelName:       input.ModelName,
		ModelVersion:    input.ModelVersion,
		ScoreType:       input.ScoreType,
		RawScore:        input.RawScore,
		NormalizedScore: normalized,
		Percentile:      percentile,
		RiskTier:        tier,
		RiskFactors:     input.RiskFactors,
		ClinicalFactors: input.ClinicalFactors,
		SocialFactors:   input.SocialFactors,
		PredictedCost:   input.PredictedCost,
		PredictedEvents: input.PredictedEvents,
		IsActive:        true,
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.DeactivateActive(ctx, input.PatientID, input.ModelName); err != nil {
			return fmt.Errorf("deactivate previous scores: %w", err)
		}
		if err := s.repo.Create(ctx, score); err != nil {
			return fmt.Errorf("insert score: %w", err)
		}
		// Write-through denormalization: every population the patient belongs
		// to mirrors the latest score and tier.
		if err := s.members.UpdateRiskForPatient(ctx, input.PatientID, normalized, string(tier)); err != nil {
			return fmt.Errorf("update population members: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return score, nil
}

func (s *Service) percentile(ctx context.Context, patientID uuid.UUID, normalized float64, modelName string) (int, error) {
	lower, err := s.repo.CountActiveBelow(ctx, modelName, normalized, patientID)
	if err != nil {
		return 0, err
	}
	total, err := s.repo.CountActiveForModel(ctx, modelName)
	if err != nil {
		return 0, err
	}
	return percentileRank(lower, total), nil
}

// ScoreHCC runs the CMS-HCC formula for the patient and records the result.
func (s *Service) ScoreHCC(ctx context.Context, patientID uuid.UUID, conditions []string) (*Score, error) {
	return s.RecordScore(ctx, CalculateHCCScore(patientID, conditions))
}

// ScoreHospitalizationRisk runs the hospitalization risk formula for the
// patient and records the result.
func (s *Service) ScoreHospitalizationRisk(ctx context.Context, patientID uuid.UUID, data HospitalizationRiskInput) (*Score, error) {
	return s.RecordScore(ctx, CalculateHospitalizationRisk(patientID, data))
}

// GetScore fetches a single score by ID.
func (s *Service) GetScore(ctx context.Context, id uuid.UUID) (*Score, error) {
	return s.repo.GetByID(ctx, id)
}

// ListScores returns scores matching the filters, newest first.
func (s *Service) ListScores(ctx context.Context, f Filters, limit, offset int) ([]*Score, int, error) {
	return s.repo.Search(ctx, f, limit, offset)
}

// PatientProfile combines all of a patient's active model scores into one
// overall view. A patient with no active scores has no profile: the method
// returns nil, nil, which callers must treat as a valid empty state.
func (s *Service) PatientProfile(ctx context.Context, patientID uuid.UUID) (*Profile, error) {
	scores, err := s.repo.ListActiveByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, nil
	}

	profile := &Profile{
		PatientID:       patientID,
		OverallRiskTier: aggregateTier(scores),
		TopRiskFactors:  aggregateFactors(scores),
	}

	for _, sc := range scores {
		profile.Scores = append(profile.Scores, ProfileScore{
			ModelName:       sc.ModelName,
			ScoreType:       sc.ScoreType,
			RawScore:        sc.RawScore,
			NormalizedScore: sc.NormalizedScore,
			RiskTier:        sc.RiskTier,
			Percentile:      sc.Percentile,
			EffectiveDate:   sc.EffectiveDate,
		})
		if sc.NormalizedScore > profile.HighestRiskScore {
			profile.HighestRiskScore = sc.NormalizedScore
		}
		if sc.PredictedCost != nil {
			profile.PredictedAnnualCost += *sc.PredictedCost
		}
	}

	return profile, nil
}

// aggregateTier picks the dominant tier across scores: the one with the
// highest priority wins, so a single critical model dominates.
func aggregateTier(scores []*Score) Tier {
	maxTier := TierLow
	maxPriority := 0
	for _, sc := range scores {
		if p := TierPriority(sc.RiskTier); p > maxPriority {
			maxPriority = p
			maxTier = sc.RiskTier
		}
	}
	return maxTier
}

// aggregateFactors merges risk factors across scores by name, summing
// weights (a missing weight counts as 0.1), and returns the ten heaviest
// factor names.
func aggregateFactors(scores []*Score) []string {
	weights := make(map[string]float64)
	for _, sc := range scores {
		for _, rf := range sc.RiskFactors {
			w := rf.Weight
			if w == 0 {
				w = 0.1
			}
			weights[rf.Factor] += w
		}
	}

	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if weights[names[i]] != weights[names[j]] {
			return weights[names[i]] > weights[names[j]]
		}
		return names[i] < names[j]
	})

	if len(names) > 10 {
		names = names[:10]
	}
	return names
}
