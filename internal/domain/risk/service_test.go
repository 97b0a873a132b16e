package risk

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pophealth/pophealth/internal/platform/db"
)

// -- Mock Score Repository --

type mockScoreRepo struct {
	scores map[uuid.UUID]*Score
}

func newMockScoreRepo() *mockScoreRepo {
	return &mockScoreRepo{scores: make(map[uuid.UUID]*Score)}
}

func (m *mockScoreRepo) Create(_ context.Context, s *Score) error {
	s.ID = uuid.New()
	s.EffectiveDate = time.Now()
	s.CreatedAt = time.Now()
	s.UpdatedAt = time.Now()
	m.scores[s.ID] = s
	return nil
}

func (m *mockScoreRepo) GetByID(_ context.Context, id uuid.UUID) (*Score, error) {
	s, ok := m.scores[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return s, nil
}

func (m *mockScoreRepo) DeactivateActive(_ context.Context, patientID uuid.UUID, modelName string) error {
	for _, s := range m.scores {
		if s.PatientID == patientID && s.ModelName == modelName && s.IsActive {
			s.IsActive = false
		}
	}
	return nil
}

func (m *mockScoreRepo) ListActiveByPatient(_ context.Context, patientID uuid.UUID) ([]*Score, error) {
	var out []*Score
	for _, s := range m.scores {
		if s.PatientID == patientID && s.IsActive {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EffectiveDate.After(out[j].EffectiveDate) })
	return out, nil
}

func (m *mockScoreRepo) CountActiveForModel(_ context.Context, modelName string) (int, error) {
	count := 0
	for _, s := range m.scores {
		if s.ModelName == modelName && s.IsActive {
			count++
		}
	}
	return count, nil
}

func (m *mockScoreRepo) CountActiveBelow(_ context.Context, modelName string, normalizedScore float64, excludePatient uuid.UUID) (int, error) {
	count := 0
	for _, s := range m.scores {
		if s.ModelName == modelName && s.IsActive && s.NormalizedScore < normalizedScore && s.PatientID != excludePatient {
			count++
		}
	}
	return count, nil
}

func (m *mockScoreRepo) Search(_ context.Context, f Filters, limit, offset int) ([]*Score, int, error) {
	var out []*Score
	for _, s := range m.scores {
		if f.PatientID != nil && s.PatientID != *f.PatientID {
			continue
		}
		if f.ModelName != "" && s.ModelName != f.ModelName {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

// seed inserts an active score directly, bypassing the service.
func (m *mockScoreRepo) seed(patientID uuid.UUID, modelName string, normalized float64) {
	id := uuid.New()
	m.scores[id] = &Score{
		ID:              id,
		PatientID:       patientID,
		ModelName:       modelName,
		ScoreType:       ScoreTypeCustom,
		NormalizedScore: normalized,
		RiskTier:        ClassifyTier(normalized),
		IsActive:        true,
		EffectiveDate:   time.Now(),
	}
}

// -- Mock Member Writer --

type mockMemberWriter struct {
	scores map[uuid.UUID]float64
	tiers  map[uuid.UUID]string
}

func newMockMemberWriter() *mockMemberWriter {
	return &mockMemberWriter{
		scores: make(map[uuid.UUID]float64),
		tiers:  make(map[uuid.UUID]string),
	}
}

func (m *mockMemberWriter) UpdateRiskForPatient(_ context.Context, patientID uuid.UUID, normalizedScore float64, riskTier string) error {
	m.scores[patientID] = normalizedScore
	m.tiers[patientID] = riskTier
	return nil
}

func newTestService() (*Service, *mockScoreRepo, *mockMemberWriter) {
	repo := newMockScoreRepo()
	members := newMockMemberWriter()
	return NewService(repo, members, db.NopTxRunner{}), repo, members
}

func TestRecordScoreValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.RecordScore(ctx, ScoreInput{ModelName: "M", ScoreType: ScoreTypeCustom}); err == nil {
		t.Error("expected error for missing patient_id")
	}
	if _, err := svc.RecordScore(ctx, ScoreInput{PatientID: uuid.New(), ScoreType: ScoreTypeCustom}); err == nil {
		t.Error("expected error for missing model_name")
	}
	if _, err := svc.RecordScore(ctx, ScoreInput{PatientID: uuid.New(), ModelName: "M"}); err == nil {
		t.Error("expected error for missing score_type")
	}
}

func TestRecordScoreSingleActivePerModel(t *testing.T) {
	svc, repo, members := newTestService()
	ctx := context.Background()
	patientID := uuid.New()

	first, err := svc.RecordScore(ctx, ScoreInput{
		PatientID: patientID,
		ModelName: "CMS-HCC",
		ScoreType: ScoreTypeHCCRAF,
		RawScore:  1.5,
	})
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	if first.NormalizedScore != 50 || first.RiskTier != TierHigh {
		t.Errorf("first score = %v/%s, want 50/high", first.NormalizedScore, first.RiskTier)
	}

	second, err := svc.RecordScore(ctx, ScoreInput{
		PatientID: patientID,
		ModelName: "CMS-HCC",
		ScoreType: ScoreTypeHCCRAF,
		RawScore:  3.0,
	})
	if err != nil {
		t.Fatalf("second record: %v", err)
	}

	active, _ := repo.ListActiveByPatient(ctx, patientID)
	if len(active) != 1 {
		t.Fatalf("active scores = %d, want 1", len(active))
	}
	if active[0].ID != second.ID {
		t.Error("surviving active score is not the latest submission")
	}
	if len(repo.scores) != 2 {
		t.Errorf("ledger rows = %d, want 2 (history preserved)", len(repo.scores))
	}

	// Population membership mirrors the latest commit.
	if members.scores[patientID] != 100 || members.tiers[patientID] != "critical" {
		t.Errorf("member mirror = %v/%s, want 100/critical", members.scores[patientID], members.tiers[patientID])
	}
}

func TestRecordScorePercentileEmptyReference(t *testing.T) {
	svc, _, _ := newTestService()

	score, err := svc.RecordScore(context.Background(), ScoreInput{
		PatientID: uuid.New(),
		ModelName: "M",
		ScoreType: ScoreTypeCustom,
		RawScore:  40,
	})
	if err != nil {
		t.Fatal(err)
	}
	if score.Percentile != 50 {
		t.Errorf("percentile = %d, want neutral 50 for empty reference", score.Percentile)
	}
}

func TestRecordScorePercentile(t *testing.T) {
	svc, repo, _ := newTestService()

	repo.seed(uuid.New(), "M", 10)
	repo.seed(uuid.New(), "M", 20)
	repo.seed(uuid.New(), "M", 30)

	score, err := svc.RecordScore(context.Background(), ScoreInput{
		PatientID: uuid.New(),
		ModelName: "M",
		ScoreType: ScoreTypeCustom,
		RawScore:  25,
	})
	if err != nil {
		t.Fatal(err)
	}
	// Two of three reference scores fall below 25.
	if score.Percentile != 67 {
		t.Errorf("percentile = %d, want 67", score.Percentile)
	}
}

func TestScoreHCC(t *testing.T) {
	svc, _, _ := newTestService()

	score, err := svc.ScoreHCC(context.Background(), uuid.New(), []string{"chf", "copd"})
	if err != nil {
		t.Fatal(err)
	}
	if score.ModelName != "CMS-HCC" {
		t.Errorf("model = %s, want CMS-HCC", score.ModelName)
	}
	// RAF 0.5 + 0.323 + 0.328 = 1.151 normalizes to 38.37 (moderate).
	if score.RiskTier != TierModerate {
		t.Errorf("tier = %s, want moderate", score.RiskTier)
	}
}

func TestPatientProfileEmpty(t *testing.T) {
	svc, _, _ := newTestService()

	profile, err := svc.PatientProfile(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if profile != nil {
		t.Errorf("profile = %+v, want nil for patient with no scores", profile)
	}
}

func TestPatientProfileAggregation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	patientID := uuid.New()

	cost := 15000.0
	if _, err := svc.RecordScore(ctx, ScoreInput{
		PatientID:     patientID,
		ModelName:     "CMS-HCC",
		ScoreType:     ScoreTypeCustom,
		RawScore:      20,
		PredictedCost: &cost,
		RiskFactors:   []Factor{{Factor: "chf", Weight: 0.323}},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordScore(ctx, ScoreInput{
		PatientID:   patientID,
		ModelName:   "Hospitalization-Risk",
		ScoreType:   ScoreTypeHospitalizationRisk,
		RawScore:    0.95,
		RiskFactors: []Factor{{Factor: "chf", Weight: 0.1}, {Factor: "No caregiver support", Weight: 0.05}},
	}); err != nil {
		t.Fatal(err)
	}

	profile, err := svc.PatientProfile(ctx, patientID)
	if err != nil {
		t.Fatal(err)
	}
	if profile == nil {
		t.Fatal("profile is nil")
	}

	// One critical model dominates the overall tier.
	if profile.OverallRiskTier != TierCritical {
		t.Errorf("overall tier = %s, want critical", profile.OverallRiskTier)
	}
	if profile.HighestRiskScore != 95 {
		t.Errorf("highest score = %v, want 95", profile.HighestRiskScore)
	}
	if profile.PredictedAnnualCost != 15000 {
		t.Errorf("predicted cost = %v, want 15000", profile.PredictedAnnualCost)
	}
	if len(profile.Scores) != 2 {
		t.Errorf("profile scores = %d, want 2", len(profile.Scores))
	}

	// chf appears in both models and its weights sum, ranking it first.
	if len(profile.TopRiskFactors) != 2 || profile.TopRiskFactors[0] != "chf" {
		t.Errorf("top factors = %v, want chf first", profile.TopRiskFactors)
	}
}

func TestAggregateFactorsDefaultWeight(t *testing.T) {
	scores := []*Score{
		{RiskFactors: []Factor{{Factor: "a", Weight: 0}, {Factor: "b", Weight: 0.05}}},
	}
	// A zero weight counts as 0.1, so "a" outranks "b".
	got := aggregateFactors(scores)
	if len(got) != 2 || got[0] != "a" {
		t.Errorf("aggregateFactors = %v, want a first", got)
	}
}

func TestScoreToFHIR(t *testing.T) {
	score := &Score{
		ID:              uuid.New(),
		PatientID:       uuid.New(),
		ModelName:       "Hospitalization-Risk",
		ScoreType:       ScoreTypeHospitalizationRisk,
		NormalizedScore: 82,
		RiskTier:        TierVeryHigh,
		RiskFactors:     []Factor{{Factor: "CHF", Weight: 0.1}},
		EffectiveDate:   time.Now(),
	}

	res := score.ToFHIR()
	if res["resourceType"] != "RiskAssessment" {
		t.Errorf("resourceType = %v", res["resourceType"])
	}
	predictions, ok := res["prediction"].([]map[string]interface{})
	if !ok || len(predictions) != 1 {
		t.Fatalf("prediction = %v", res["prediction"])
	}
	if predictions[0]["probabilityDecimal"] != 0.82 {
		t.Errorf("probabilityDecimal = %v, want 0.82", predictions[0]["probabilityDecimal"])
	}
}
