package quality

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Measure Repository --

type mockMeasureRepo struct {
	measures map[uuid.UUID]*QualityMeasure
}

func newMockMeasureRepo() *mockMeasureRepo {
	return &mockMeasureRepo{measures: make(map[uuid.UUID]*QualityMeasure)}
}

func (m *mockMeasureRepo) Create(_ context.Context, qm *QualityMeasure) error {
	qm.ID = uuid.New()
	qm.IsActive = true
	qm.CreatedAt = time.Now()
	qm.UpdatedAt = time.Now()
	m.measures[qm.ID] = qm
	return nil
}

func (m *mockMeasureRepo) GetByID(_ context.Context, id uuid.UUID) (*QualityMeasure, error) {
	qm, ok := m.measures[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return qm, nil
}

func (m *mockMeasureRepo) GetByMeasureID(_ context.Context, measureID string) (*QualityMeasure, error) {
	for _, qm := range m.measures {
		if qm.MeasureID == measureID {
			return qm, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockMeasureRepo) List(_ context.Context, f MeasureFilters) ([]*QualityMeasure, error) {
	var out []*QualityMeasure
	for _, qm := range m.measures {
		if f.Category != "" && qm.Category != f.Category {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(qm.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, qm)
	}
	return out, nil
}

func (m *mockMeasureRepo) UpsertByMeasureID(_ context.Context, qm *QualityMeasure) error {
	for _, existing := range m.measures {
		if existing.MeasureID == qm.MeasureID {
			qm.ID = existing.ID
			m.measures[existing.ID] = qm
			return nil
		}
	}
	return m.Create(context.Background(), qm)
}

// -- Mock Patient Measure Repository --

type mockPatientMeasureRepo struct {
	rows map[uuid.UUID]*PatientQualityMeasure
}

func newMockPatientMeasureRepo() *mockPatientMeasureRepo {
	return &mockPatientMeasureRepo{rows: make(map[uuid.UUID]*PatientQualityMeasure)}
}

func (m *mockPatientMeasureRepo) Upsert(_ context.Context, pm *PatientQualityMeasure) error {
	for _, existing := range m.rows {
		if existing.PatientID == pm.PatientID &&
			existing.QualityMeasureID == pm.QualityMeasureID &&
			existing.MeasurePeriod == pm.MeasurePeriod {
			pm.ID = existing.ID
			m.rows[existing.ID] = pm
			return nil
		}
	}
	pm.ID = uuid.New()
	m.rows[pm.ID] = pm
	return nil
}

func (m *mockPatientMeasureRepo) ListByPatient(_ context.Context, patientID uuid.UUID, measurePeriod string) ([]*PatientQualityMeasure, error) {
	var out []*PatientQualityMeasure
	for _, pm := range m.rows {
		if pm.PatientID != patientID {
			continue
		}
		if measurePeriod != "" && pm.MeasurePeriod != measurePeriod {
			continue
		}
		out = append(out, pm)
	}
	return out, nil
}

func (m *mockPatientMeasureRepo) ListForMeasure(_ context.Context, qualityMeasureID uuid.UUID, measurePeriod string) ([]*PatientQualityMeasure, error) {
	var out []*PatientQualityMeasure
	for _, pm := range m.rows {
		if pm.QualityMeasureID == qualityMeasureID && pm.MeasurePeriod == measurePeriod {
			out = append(out, pm)
		}
	}
	return out, nil
}

func (m *mockPatientMeasureRepo) ListGaps(_ context.Context, qualityMeasureID uuid.UUID, measurePeriod string) ([]GapPatient, error) {
	var out []GapPatient
	for _, pm := range m.rows {
		if pm.QualityMeasureID == qualityMeasureID && pm.MeasurePeriod == measurePeriod &&
			pm.InDenominator && !pm.InNumerator && !pm.IsExcluded {
			out = append(out, GapPatient{PatientID: pm.PatientID, DueDate: pm.DueDate})
		}
	}
	return out, nil
}

// -- Mock Population Measure Repository --

type mockPopulationMeasureRepo struct {
	rows     map[uuid.UUID]*PopulationQualityMeasure
	measures *mockMeasureRepo
}

func newMockPopulationMeasureRepo(measures *mockMeasureRepo) *mockPopulationMeasureRepo {
	return &mockPopulationMeasureRepo{
		rows:     make(map[uuid.UUID]*PopulationQualityMeasure),
		measures: measures,
	}
}

func (m *mockPopulationMeasureRepo) Upsert(_ context.Context, pm *PopulationQualityMeasure) error {
	for _, existing := range m.rows {
		if existing.PopulationID == pm.PopulationID &&
			existing.QualityMeasureID == pm.QualityMeasureID &&
			existing.MeasurePeriod == pm.MeasurePeriod {
			pm.ID = existing.ID
			pm.CalculatedAt = time.Now()
			m.rows[existing.ID] = pm
			return nil
		}
	}
	pm.ID = uuid.New()
	pm.CalculatedAt = time.Now()
	m.rows[pm.ID] = pm
	return nil
}

func (m *mockPopulationMeasureRepo) detail(pm *PopulationQualityMeasure) (*PopulationMeasureDetail, error) {
	measure, ok := m.measures.measures[pm.QualityMeasureID]
	if !ok {
		return nil, fmt.Errorf("measure not found")
	}
	return &PopulationMeasureDetail{PopulationQualityMeasure: *pm, Measure: *measure}, nil
}

func (m *mockPopulationMeasureRepo) GetByID(_ context.Context, id uuid.UUID) (*PopulationMeasureDetail, error) {
	pm, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return m.detail(pm)
}

func (m *mockPopulationMeasureRepo) ListByPopulation(_ context.Context, populationID uuid.UUID, measurePeriod string) ([]*PopulationMeasureDetail, error) {
	var out []*PopulationMeasureDetail
	for _, pm := range m.rows {
		if pm.PopulationID != populationID || pm.MeasurePeriod != measurePeriod {
			continue
		}
		d, err := m.detail(pm)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func newTestService() (*Service, *mockMeasureRepo, *mockPatientMeasureRepo, *mockPopulationMeasureRepo) {
	measures := newMockMeasureRepo()
	patient := newMockPatientMeasureRepo()
	populations := newMockPopulationMeasureRepo(measures)
	return NewService(measures, patient, populations), measures, patient, populations
}

func mustCreateMeasure(t *testing.T, svc *Service, measureID string) *QualityMeasure {
	t.Helper()
	target := 80.0
	m := &QualityMeasure{
		MeasureID:   measureID,
		Name:        measureID + " test measure",
		MeasureType: MeasureTypeProcess,
		Category:    CategoryHEDIS,
		TargetRate:  &target,
	}
	if err := svc.CreateMeasure(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	return m
}

// trackPatient upserts a patient measure row with the given flags.
func trackPatient(t *testing.T, svc *Service, measureID uuid.UUID, period string, inDen, inNum, excluded bool) uuid.UUID {
	t.Helper()
	patientID := uuid.New()
	err := svc.UpsertPatientMeasure(context.Background(), &PatientQualityMeasure{
		PatientID:        patientID,
		QualityMeasureID: measureID,
		MeasurePeriod:    period,
		InDenominator:    inDen,
		InNumerator:      inNum,
		IsExcluded:       excluded,
	})
	if err != nil {
		t.Fatal(err)
	}
	return patientID
}

func TestStarRating(t *testing.T) {
	tests := []struct {
		rate float64
		want int
	}{
		{100, 5}, {90, 5}, {89.9, 4}, {80, 4}, {79.9, 3}, {70, 3}, {69.9, 2}, {60, 2}, {59.9, 1}, {0, 1},
	}
	for _, tt := range tests {
		if got := starRating(tt.rate); got != tt.want {
			t.Errorf("starRating(%v) = %d, want %d", tt.rate, got, tt.want)
		}
	}
}

func TestCalculatePerformance(t *testing.T) {
	svc, _, _, populations := newTestService()
	m := mustCreateMeasure(t, svc, "HEDIS-BCS")
	populationID := uuid.New()

	// 10 in denominator, 7 in numerator, 2 excluded.
	for i := 0; i < 7; i++ {
		trackPatient(t, svc, m.ID, "2025", true, true, false)
	}
	trackPatient(t, svc, m.ID, "2025", true, false, false)
	trackPatient(t, svc, m.ID, "2025", true, false, true)
	trackPatient(t, svc, m.ID, "2025", true, false, true)

	perf, err := svc.CalculatePerformance(context.Background(), populationID, m.ID, "2025")
	if err != nil {
		t.Fatal(err)
	}

	if perf.Numerator != 7 || perf.Denominator != 10 || perf.Exclusions != 2 {
		t.Errorf("counts = %d/%d/%d, want 7/10/2", perf.Numerator, perf.Denominator, perf.Exclusions)
	}
	// 7 of an effective denominator of 8.
	if perf.PerformanceRate != 87.5 {
		t.Errorf("rate = %v, want 87.5", perf.PerformanceRate)
	}
	if perf.StarRating != 4 {
		t.Errorf("stars = %d, want 4", perf.StarRating)
	}
	if perf.Gap == nil || *perf.Gap != -7.5 {
		t.Errorf("gap = %v, want -7.5", perf.Gap)
	}

	// The population row was upserted.
	if len(populations.rows) != 1 {
		t.Fatalf("population rows = %d, want 1", len(populations.rows))
	}

	// Recalculation overwrites, never duplicates.
	if _, err := svc.CalculatePerformance(context.Background(), populationID, m.ID, "2025"); err != nil {
		t.Fatal(err)
	}
	if len(populations.rows) != 1 {
		t.Errorf("population rows after recalc = %d, want 1", len(populations.rows))
	}
}

func TestCalculatePerformanceZeroEffectiveDenominator(t *testing.T) {
	svc, _, _, _ := newTestService()
	m := mustCreateMeasure(t, svc, "HEDIS-OMW")

	// Everyone in the denominator is excluded.
	trackPatient(t, svc, m.ID, "2025", true, false, true)
	trackPatient(t, svc, m.ID, "2025", true, false, true)

	perf, err := svc.CalculatePerformance(context.Background(), uuid.New(), m.ID, "2025")
	if err != nil {
		t.Fatal(err)
	}
	if perf.PerformanceRate != 0 {
		t.Errorf("rate = %v, want 0 for zero effective denominator", perf.PerformanceRate)
	}
	if perf.StarRating != 1 {
		t.Errorf("stars = %d, want 1", perf.StarRating)
	}
}

func TestCalculatePerformanceUnknownMeasure(t *testing.T) {
	svc, _, _, _ := newTestService()
	if _, err := svc.CalculatePerformance(context.Background(), uuid.New(), uuid.New(), "2025"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestIdentifyCareGaps(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	populationID := uuid.New()

	// Measure A: 2 open gaps out of a denominator of 5.
	a := mustCreateMeasure(t, svc, "HEDIS-BCS")
	for i := 0; i < 3; i++ {
		trackPatient(t, svc, a.ID, "2025", true, true, false)
	}
	trackPatient(t, svc, a.ID, "2025", true, false, false)
	trackPatient(t, svc, a.ID, "2025", true, false, false)

	// Measure B: denominator of 10, 1 gap.
	b := mustCreateMeasure(t, svc, "HEDIS-COL")
	for i := 0; i < 9; i++ {
		trackPatient(t, svc, b.ID, "2025", true, true, false)
	}
	trackPatient(t, svc, b.ID, "2025", true, false, false)

	// Measure C: fully compliant, should be omitted.
	c := mustCreateMeasure(t, svc, "HEDIS-CBP")
	trackPatient(t, svc, c.ID, "2025", true, true, false)

	for _, m := range []*QualityMeasure{a, b, c} {
		if _, err := svc.CalculatePerformance(ctx, populationID, m.ID, "2025"); err != nil {
			t.Fatal(err)
		}
	}

	gaps, err := svc.IdentifyCareGaps(ctx, populationID, "2025")
	if err != nil {
		t.Fatal(err)
	}

	if len(gaps) != 2 {
		t.Fatalf("gap reports = %d, want 2 (compliant measure omitted)", len(gaps))
	}
	// Sorted by gap count descending: A (2) before B (1).
	if gaps[0].MeasureID != "HEDIS-BCS" || gaps[0].GapCount != 2 {
		t.Errorf("first report = %s/%d, want HEDIS-BCS/2", gaps[0].MeasureID, gaps[0].GapCount)
	}
	// 2 of 5 denominator, formatted with one decimal.
	if gaps[0].PotentialImpact != "40.0" {
		t.Errorf("impact = %q, want \"40.0\"", gaps[0].PotentialImpact)
	}
	if gaps[1].PotentialImpact != "10.0" {
		t.Errorf("impact = %q, want \"10.0\"", gaps[1].PotentialImpact)
	}
}

func TestIdentifyCareGapsPatientCap(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	populationID := uuid.New()

	m := mustCreateMeasure(t, svc, "HEDIS-SPR")
	for i := 0; i < 120; i++ {
		trackPatient(t, svc, m.ID, "2025", true, false, false)
	}
	if _, err := svc.CalculatePerformance(ctx, populationID, m.ID, "2025"); err != nil {
		t.Fatal(err)
	}

	gaps, err := svc.IdentifyCareGaps(ctx, populationID, "2025")
	if err != nil {
		t.Fatal(err)
	}
	if len(gaps) != 1 {
		t.Fatalf("gap reports = %d, want 1", len(gaps))
	}
	if gaps[0].GapCount != 120 {
		t.Errorf("gapCount = %d, want uncapped 120", gaps[0].GapCount)
	}
	if len(gaps[0].Patients) != 100 {
		t.Errorf("patients = %d, want capped at 100", len(gaps[0].Patients))
	}
}

func TestPopulationScorecard(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	populationID := uuid.New()

	prevention := mustCreateMeasure(t, svc, "HEDIS-BCS")
	domainA := "Prevention"
	prevention.Domain = &domainA

	chronic := mustCreateMeasure(t, svc, "HEDIS-CBP")
	domainB := "Chronic Disease Management"
	chronic.Domain = &domainB

	// BCS: 9/10 = 90% (5 stars). CBP: 1/2 = 50% (1 star).
	for i := 0; i < 9; i++ {
		trackPatient(t, svc, prevention.ID, "2025", true, true, false)
	}
	trackPatient(t, svc, prevention.ID, "2025", true, false, false)
	trackPatient(t, svc, chronic.ID, "2025", true, true, false)
	trackPatient(t, svc, chronic.ID, "2025", true, false, false)

	for _, m := range []*QualityMeasure{prevention, chronic} {
		if _, err := svc.CalculatePerformance(ctx, populationID, m.ID, "2025"); err != nil {
			t.Fatal(err)
		}
	}

	card, err := svc.PopulationScorecard(ctx, populationID, "2025")
	if err != nil {
		t.Fatal(err)
	}

	if card.Summary.TotalMeasures != 2 {
		t.Errorf("total measures = %d, want 2", card.Summary.TotalMeasures)
	}
	if card.Summary.AveragePerformance != 70 {
		t.Errorf("avg performance = %v, want 70", card.Summary.AveragePerformance)
	}
	if card.Summary.AverageStarRating != 3 {
		t.Errorf("avg stars = %v, want 3", card.Summary.AverageStarRating)
	}
	if card.Summary.MeasuresAt5Stars != 1 || card.Summary.MeasuresBelow3Stars != 1 {
		t.Errorf("5-star/below-3 = %d/%d, want 1/1",
			card.Summary.MeasuresAt5Stars, card.Summary.MeasuresBelow3Stars)
	}
	if len(card.ByDomain["Prevention"]) != 1 || len(card.ByDomain["Chronic Disease Management"]) != 1 {
		t.Errorf("byDomain = %v", card.ByDomain)
	}
}

func TestPopulationScorecardEmpty(t *testing.T) {
	svc, _, _, _ := newTestService()

	card, err := svc.PopulationScorecard(context.Background(), uuid.New(), "2025")
	if err != nil {
		t.Fatal(err)
	}
	if card.Summary.TotalMeasures != 0 || card.Summary.AveragePerformance != 0 {
		t.Errorf("empty scorecard summary = %+v", card.Summary)
	}
}

func TestSeedHEDISMeasures(t *testing.T) {
	svc, measures, _, _ := newTestService()
	ctx := context.Background()

	count, err := svc.SeedHEDISMeasures(ctx, 2025)
	if err != nil {
		t.Fatal(err)
	}
	if count != 6 {
		t.Errorf("seeded = %d, want 6", count)
	}

	bcs, err := svc.GetMeasureByMeasureID(ctx, "HEDIS-BCS")
	if err != nil {
		t.Fatal(err)
	}
	if bcs.Category != CategoryHEDIS || *bcs.Steward != "NCQA" || *bcs.TargetRate != 80 {
		t.Errorf("seeded measure = %+v", bcs)
	}
	if *bcs.ReportingYear != 2025 {
		t.Errorf("reporting year = %d, want 2025", *bcs.ReportingYear)
	}

	// Reseeding upserts in place.
	if _, err := svc.SeedHEDISMeasures(ctx, 2026); err != nil {
		t.Fatal(err)
	}
	if len(measures.measures) != 6 {
		t.Errorf("measures after reseed = %d, want 6", len(measures.measures))
	}
}

func TestUpsertPatientMeasureValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	err := svc.UpsertPatientMeasure(context.Background(), &PatientQualityMeasure{
		PatientID:     uuid.New(),
		MeasurePeriod: "2025",
	})
	if err != ErrInvalidInput {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}

	err = svc.UpsertPatientMeasure(context.Background(), &PatientQualityMeasure{
		PatientID:        uuid.New(),
		QualityMeasureID: uuid.New(),
		MeasurePeriod:    "2025",
	})
	if err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound for unknown measure", err)
	}
}
