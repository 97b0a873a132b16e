package quality

import (
	"context"

	"github.com/google/uuid"
)

type MeasureRepository interface {
	Create(ctx context.Context, m *QualityMeasure) error
	GetByID(ctx context.Context, id uuid.UUID) (*QualityMeasure, error)
	GetByMeasureID(ctx context.Context, measureID string) (*QualityMeasure, error)
	List(ctx context.Context, f MeasureFilters) ([]*QualityMeasure, error)
	// UpsertByMeasureID inserts the measure or replaces the definition
	// fields of an existing row with the same measure_id.
	UpsertByMeasureID(ctx context.Context, m *QualityMeasure) error
}

type PatientMeasureRepository interface {
	// Upsert keys on (patient_id, quality_measure_id, measure_period).
	Upsert(ctx context.Context, pm *PatientQualityMeasure) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, measurePeriod string) ([]*PatientQualityMeasure, error)
	ListForMeasure(ctx context.Context, qualityMeasureID uuid.UUID, measurePeriod string) ([]*PatientQualityMeasure, error)
	// ListGaps returns patients in the denominator, not in the numerator,
	// and not excluded.
	ListGaps(ctx context.Context, qualityMeasureID uuid.UUID, measurePeriod string) ([]GapPatient, error)
}

type PopulationMeasureRepository interface {
	// Upsert keys on (population_id, quality_measure_id, measure_period).
	Upsert(ctx context.Context, pm *PopulationQualityMeasure) error
	GetByID(ctx context.Context, id uuid.UUID) (*PopulationMeasureDetail, error)
	// ListByPopulation returns measures joined with their definitions,
	// ordered by measure domain.
	ListByPopulation(ctx context.Context, populationID uuid.UUID, measurePeriod string) ([]*PopulationMeasureDetail, error)
}
