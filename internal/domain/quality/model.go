package quality

import (
	"time"

	"github.com/google/uuid"
)

// MeasureType follows the FHIR measure-type value set.
type MeasureType string

const (
	MeasureTypeProcess    MeasureType = "process"
	MeasureTypeOutcome    MeasureType = "outcome"
	MeasureTypeStructure  MeasureType = "structure"
	MeasureTypeComposite  MeasureType = "composite"
	MeasureTypePatientRep MeasureType = "patient_reported"
)

type MeasureCategory string

const (
	CategoryHEDIS   MeasureCategory = "hedis"
	CategoryCMSStar MeasureCategory = "cms_star"
	CategoryMIPS    MeasureCategory = "mips"
	CategoryCustom  MeasureCategory = "custom"
)

// ComplianceStatus tracks a patient's standing against a single measure.
type ComplianceStatus string

const (
	StatusPending      ComplianceStatus = "pending"
	StatusCompliant    ComplianceStatus = "compliant"
	StatusNonCompliant ComplianceStatus = "non_compliant"
	StatusExcluded     ComplianceStatus = "excluded"
)

// QualityMeasure is a measure definition, e.g. HEDIS-BCS. MeasureID is the
// external business identifier and is unique; ID is the row key.
type QualityMeasure struct {
	ID                  uuid.UUID              `db:"id" json:"id"`
	MeasureID           string                 `db:"measure_id" json:"measure_id"`
	Name                string                 `db:"name" json:"name"`
	Description         *string                `db:"description" json:"description,omitempty"`
	MeasureType         MeasureType            `db:"measure_type" json:"measure_type"`
	Category            MeasureCategory        `db:"category" json:"category"`
	Steward             *string                `db:"steward" json:"steward,omitempty"`
	Domain              *string                `db:"domain" json:"domain,omitempty"`
	FHIRMeasureID       *string                `db:"fhir_measure_id" json:"fhir_measure_id,omitempty"`
	FHIRVersion         *string                `db:"fhir_version" json:"fhir_version,omitempty"`
	NumeratorCriteria   map[string]interface{} `db:"numerator_criteria" json:"numerator_criteria,omitempty"`
	DenominatorCriteria map[string]interface{} `db:"denominator_criteria" json:"denominator_criteria,omitempty"`
	ExclusionCriteria   map[string]interface{} `db:"exclusion_criteria" json:"exclusion_criteria,omitempty"`
	TargetRate          *float64               `db:"target_rate" json:"target_rate,omitempty"`
	ReportingYear       *int                   `db:"reporting_year" json:"reporting_year,omitempty"`
	IsActive            bool                   `db:"is_active" json:"is_active"`
	CreatedAt           time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time              `db:"updated_at" json:"updated_at"`
}

// MeasureFilters narrows measure listings.
type MeasureFilters struct {
	Category      MeasureCategory
	MeasureType   MeasureType
	ReportingYear *int
	IsActive      *bool
	Search        string
}

// PatientQualityMeasure records one patient's status for one measure in one
// period. Unique on (patient_id, quality_measure_id, measure_period).
type PatientQualityMeasure struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	PatientID        uuid.UUID        `db:"patient_id" json:"patient_id"`
	QualityMeasureID uuid.UUID        `db:"quality_measure_id" json:"quality_measure_id"`
	MeasurePeriod    string           `db:"measure_period" json:"measure_period"`
	FHIRPatientRef   *string          `db:"fhir_patient_ref" json:"fhir_patient_ref,omitempty"`
	InDenominator    bool             `db:"in_denominator" json:"in_denominator"`
	InNumerator      bool             `db:"in_numerator" json:"in_numerator"`
	IsExcluded       bool             `db:"is_excluded" json:"is_excluded"`
	ExclusionReason  *string          `db:"exclusion_reason" json:"exclusion_reason,omitempty"`
	Status           ComplianceStatus `db:"status" json:"status"`
	DueDate          *time.Time       `db:"due_date" json:"due_date,omitempty"`
	CompletedDate    *time.Time       `db:"completed_date" json:"completed_date,omitempty"`
	EvidenceRef      *string          `db:"evidence_ref" json:"evidence_ref,omitempty"`
	Notes            *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// PopulationQualityMeasure is the aggregated result for one population,
// measure, and period. Unique on that triple; recalculation overwrites.
type PopulationQualityMeasure struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	PopulationID        uuid.UUID `db:"population_id" json:"population_id"`
	QualityMeasureID    uuid.UUID `db:"quality_measure_id" json:"quality_measure_id"`
	MeasurePeriod       string    `db:"measure_period" json:"measure_period"`
	Numerator           int       `db:"numerator" json:"numerator"`
	Denominator         int       `db:"denominator" json:"denominator"`
	Exclusions          int       `db:"exclusions" json:"exclusions"`
	PerformanceRate     float64   `db:"performance_rate" json:"performance_rate"`
	StarRating          *int      `db:"star_rating" json:"star_rating,omitempty"`
	BenchmarkPercentile *int      `db:"benchmark_percentile" json:"benchmark_percentile,omitempty"`
	CalculatedAt        time.Time `db:"calculated_at" json:"calculated_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// PopulationMeasureDetail joins a population measure with its definition.
type PopulationMeasureDetail struct {
	PopulationQualityMeasure
	Measure QualityMeasure `json:"measure"`
}

// MeasurePerformance is the API shape returned by a calculation run.
type MeasurePerformance struct {
	MeasureID       string   `json:"measureId"`
	MeasureName     string   `json:"measureName"`
	Numerator       int      `json:"numerator"`
	Denominator     int      `json:"denominator"`
	Exclusions      int      `json:"exclusions"`
	PerformanceRate float64  `json:"performanceRate"`
	TargetRate      *float64 `json:"targetRate"`
	Gap             *float64 `json:"gap"`
	StarRating      int      `json:"starRating"`
}

// GapPatient identifies one patient open on a measure.
type GapPatient struct {
	PatientID uuid.UUID  `json:"patientId"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
}

// CareGapReport summarizes the open patients for one measure.
// PotentialImpact is the gap share of the full denominator, formatted with
// one decimal place, or "0" when the denominator is zero.
type CareGapReport struct {
	MeasureID       string       `json:"measureId"`
	MeasureName     string       `json:"measureName"`
	Domain          *string      `json:"domain"`
	GapCount        int          `json:"gapCount"`
	Patients        []GapPatient `json:"patients"`
	PotentialImpact string       `json:"potentialImpact"`
}

type ScorecardEntry struct {
	MeasureID           string          `json:"measureId"`
	MeasureName         string          `json:"measureName"`
	Category            MeasureCategory `json:"category"`
	Numerator           int             `json:"numerator"`
	Denominator         int             `json:"denominator"`
	Exclusions          int             `json:"exclusions"`
	PerformanceRate     float64         `json:"performanceRate"`
	TargetRate          *float64        `json:"targetRate"`
	StarRating          *int            `json:"starRating"`
	BenchmarkPercentile *int            `json:"benchmarkPercentile"`
}

type ScorecardSummary struct {
	TotalMeasures       int     `json:"totalMeasures"`
	AveragePerformance  float64 `json:"averagePerformance"`
	AverageStarRating   float64 `json:"averageStarRating"`
	MeasuresAt5Stars    int     `json:"measuresAt5Stars"`
	MeasuresBelow3Stars int     `json:"measuresBelow3Stars"`
}

type Scorecard struct {
	PopulationID  uuid.UUID                   `json:"populationId"`
	MeasurePeriod string                      `json:"measurePeriod"`
	Summary       ScorecardSummary            `json:"summary"`
	ByDomain      map[string][]ScorecardEntry `json:"byDomain"`
}
