package quality

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound     = errors.New("quality: measure not found")
	ErrInvalidInput = errors.New("quality: invalid input")
)

type Service struct {
	measures    MeasureRepository
	patient     PatientMeasureRepository
	populations PopulationMeasureRepository
}

func NewService(measures MeasureRepository, patient PatientMeasureRepository, populations PopulationMeasureRepository) *Service {
	return &Service{measures: measures, patient: patient, populations: populations}
}

func (s *Service) CreateMeasure(ctx context.Context, m *QualityMeasure) error {
	if m.MeasureID == "" || m.Name == "" || m.MeasureType == "" || m.Category == "" {
		return ErrInvalidInput
	}
	return s.measures.Create(ctx, m)
}

func (s *Service) GetMeasure(ctx context.Context, id uuid.UUID) (*QualityMeasure, error) {
	return s.measures.GetByID(ctx, id)
}

func (s *Service) GetMeasureByMeasureID(ctx context.Context, measureID string) (*QualityMeasure, error) {
	return s.measures.GetByMeasureID(ctx, measureID)
}

func (s *Service) ListMeasures(ctx context.Context, f MeasureFilters) ([]*QualityMeasure, error) {
	return s.measures.List(ctx, f)
}

// CalculatePerformance recomputes a population's performance on one measure
// for one period and persists the result. The exclusion count is subtracted
// from the denominator before the rate is taken; a zero effective denominator
// yields a rate of 0, which earns a one-star rating.
func (s *Service) CalculatePerformance(ctx context.Context, populationID, qualityMeasureID uuid.UUID, measurePeriod string) (*MeasurePerformance, error) {
	measure, err := s.measures.GetByID(ctx, qualityMeasureID)
	if err != nil {
		return nil, ErrNotFound
	}

	patientMeasures, err := s.patient.ListForMeasure(ctx, qualityMeasureID, measurePeriod)
	if err != nil {
		return nil, err
	}

	var numerator, denominator, exclusions int
	for _, pm := range patientMeasures {
		if pm.InNumerator {
			numerator++
		}
		if pm.InDenominator {
			denominator++
		}
		if pm.IsExcluded {
			exclusions++
		}
	}

	effectiveDenominator := denominator - exclusions
	rate := 0.0
	if effectiveDenominator > 0 {
		rate = float64(numerator) / float64(effectiveDenominator) * 100
	}
	stars := starRating(rate)

	if err := s.populations.Upsert(ctx, &PopulationQualityMeasure{
		PopulationID:     populationID,
		QualityMeasureID: qualityMeasureID,
		MeasurePeriod:    measurePeriod,
		Numerator:        numerator,
		Denominator:      denominator,
		Exclusions:       exclusions,
		PerformanceRate:  rate,
		StarRating:       &stars,
	}); err != nil {
		return nil, err
	}

	perf := &MeasurePerformance{
		MeasureID:       measure.MeasureID,
		MeasureName:     measure.Name,
		Numerator:       numerator,
		Denominator:     denominator,
		Exclusions:      exclusions,
		PerformanceRate: rate,
		TargetRate:      measure.TargetRate,
		StarRating:      stars,
	}
	if measure.TargetRate != nil {
		gap := *measure.TargetRate - rate
		perf.Gap = &gap
	}

	log.Info().
		Str("population_id", populationID.String()).
		Str("measure", measure.MeasureID).
		Str("period", measurePeriod).
		Float64("rate", rate).
		Int("stars", stars).
		Msg("measure performance calculated")
	return perf, nil
}

// UpsertPatientMeasure records or replaces a patient's status on a measure
// for a period.
func (s *Service) UpsertPatientMeasure(ctx context.Context, pm *PatientQualityMeasure) error {
	if pm.PatientID == uuid.Nil || pm.QualityMeasureID == uuid.Nil || pm.MeasurePeriod == "" {
		return ErrInvalidInput
	}
	if _, err := s.measures.GetByID(ctx, pm.QualityMeasureID); err != nil {
		return ErrNotFound
	}
	if pm.Status == "" {
		pm.Status = StatusPending
	}
	return s.patient.Upsert(ctx, pm)
}

func (s *Service) PatientMeasures(ctx context.Context, patientID uuid.UUID, measurePeriod string) ([]*PatientQualityMeasure, error) {
	return s.patient.ListByPatient(ctx, patientID, measurePeriod)
}

// PopulationScorecard groups a population's calculated measures by clinical
// domain and summarizes them. Average performance is rounded to two decimal
// places and average star rating to one.
func (s *Service) PopulationScorecard(ctx context.Context, populationID uuid.UUID, measurePeriod string) (*Scorecard, error) {
	details, err := s.populations.ListByPopulation(ctx, populationID, measurePeriod)
	if err != nil {
		return nil, err
	}

	byDomain := make(map[string][]ScorecardEntry)
	var sumRate float64
	var sumStars, at5, below3 int
	for _, d := range details {
		domain := "Other"
		if d.Measure.Domain != nil {
			domain = *d.Measure.Domain
		}
		byDomain[domain] = append(byDomain[domain], ScorecardEntry{
			MeasureID:           d.Measure.MeasureID,
			MeasureName:         d.Measure.Name,
			Category:            d.Measure.Category,
			Numerator:           d.Numerator,
			Denominator:         d.Denominator,
			Exclusions:          d.Exclusions,
			PerformanceRate:     d.PerformanceRate,
			TargetRate:          d.Measure.TargetRate,
			StarRating:          d.StarRating,
			BenchmarkPercentile: d.BenchmarkPercentile,
		})
		sumRate += d.PerformanceRate
		stars := 0
		if d.StarRating != nil {
			stars = *d.StarRating
		}
		sumStars += stars
		if stars == 5 {
			at5++
		}
		if stars < 3 {
			below3++
		}
	}

	card := &Scorecard{
		PopulationID:  populationID,
		MeasurePeriod: measurePeriod,
		ByDomain:      byDomain,
	}
	card.Summary.TotalMeasures = len(details)
	if n := len(details); n > 0 {
		card.Summary.AveragePerformance = math.Round(sumRate/float64(n)*100) / 100
		card.Summary.AverageStarRating = math.Round(float64(sumStars)/float64(n)*10) / 10
	}
	card.Summary.MeasuresAt5Stars = at5
	card.Summary.MeasuresBelow3Stars = below3
	return card, nil
}

// IdentifyCareGaps reports, per calculated measure, the patients who are in
// the denominator but neither in the numerator nor excluded. Measures with no
// open patients are omitted. The patient list is capped at 100 per measure
// while gapCount stays uncapped, and results sort by gapCount descending.
func (s *Service) IdentifyCareGaps(ctx context.Context, populationID uuid.UUID, measurePeriod string) ([]CareGapReport, error) {
	details, err := s.populations.ListByPopulation(ctx, populationID, measurePeriod)
	if err != nil {
		return nil, err
	}

	reports := make([]CareGapReport, 0, len(details))
	for _, d := range details {
		gaps, err := s.patient.ListGaps(ctx, d.QualityMeasureID, measurePeriod)
		if err != nil {
			return nil, err
		}
		if len(gaps) == 0 {
			continue
		}

		patients := gaps
		if len(patients) > 100 {
			patients = patients[:100]
		}
		impact := "0"
		if d.Denominator > 0 {
			impact = fmt.Sprintf("%.1f", float64(len(gaps))/float64(d.Denominator)*100)
		}
		reports = append(reports, CareGapReport{
			MeasureID:       d.Measure.MeasureID,
			MeasureName:     d.Measure.Name,
			Domain:          d.Measure.Domain,
			GapCount:        len(gaps),
			Patients:        patients,
			PotentialImpact: impact,
		})
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].GapCount > reports[j].GapCount
	})
	return reports, nil
}

// SeedHEDISMeasures loads the built-in HEDIS catalog, upserting by measure
// id. Returns the number of measures seeded.
func (s *Service) SeedHEDISMeasures(ctx context.Context, reportingYear int) (int, error) {
	ids := make([]string, 0, len(hedisMeasures))
	for id := range hedisMeasures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	target := 80.0
	steward := "NCQA"
	for _, id := range ids {
		def := hedisMeasures[id]
		m := &QualityMeasure{
			MeasureID:           id,
			Name:                def.Name,
			MeasureType:         MeasureTypeProcess,
			Category:            CategoryHEDIS,
			Steward:             &steward,
			NumeratorCriteria:   def.NumeratorCriteria,
			DenominatorCriteria: def.DenominatorCriteria,
			TargetRate:          &target,
			ReportingYear:       &reportingYear,
		}
		if def.Description != "" {
			desc := def.Description
			m.Description = &desc
		}
		if def.Domain != "" {
			domain := def.Domain
			m.Domain = &domain
		}
		if err := s.measures.UpsertByMeasureID(ctx, m); err != nil {
			return 0, err
		}
	}
	log.Info().Int("count", len(ids)).Int("year", reportingYear).Msg("HEDIS measures seeded")
	return len(ids), nil
}

func (s *Service) PopulationMeasure(ctx context.Context, id uuid.UUID) (*PopulationMeasureDetail, error) {
	return s.populations.GetByID(ctx, id)
}
