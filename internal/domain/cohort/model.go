package cohort

import (
	"time"

	"github.com/google/uuid"

	"github.com/pophealth/pophealth/internal/domain/risk"
)

// Cohort maps to the cohort table: a coarser, point-in-time grouping used for
// stratification reporting and care management.
type Cohort struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PopulationID uuid.UUID `db:"population_id" json:"population_id"`
	Name         string    `db:"name" json:"name"`
	Description  *string   `db:"description" json:"description,omitempty"`
	CohortType   string    `db:"cohort_type" json:"cohort_type"`
	RiskLevel    *string   `db:"risk_level" json:"risk_level,omitempty"`
	FHIRGroupID  *string   `db:"fhir_group_id" json:"fhir_group_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Member maps to the cohort_member table. RiskScore is a snapshot taken at
// enrollment time; it is not synced with the risk ledger and may diverge from
// the patient's latest state.
type Member struct {
	ID             uuid.UUID `db:"id" json:"id"`
	CohortID       uuid.UUID `db:"cohort_id" json:"cohort_id"`
	PatientID      uuid.UUID `db:"patient_id" json:"patient_id"`
	FHIRPatientRef *string   `db:"fhir_patient_ref" json:"fhir_patient_ref,omitempty"`
	RiskScore      *float64  `db:"risk_score" json:"risk_score,omitempty"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// CareGap maps to the care_gap table: a tracked finding that a patient is
// missing a recommended intervention.
type CareGap struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	CohortID          *uuid.UUID `db:"cohort_id" json:"cohort_id,omitempty"`
	GapType           string     `db:"gap_type" json:"gap_type"`
	Title             string     `db:"title" json:"title"`
	Description       *string    `db:"description" json:"description,omitempty"`
	Priority          string     `db:"priority" json:"priority"`
	Status            string     `db:"status" json:"status"`
	QualityMeasureID  *string    `db:"quality_measure_id" json:"quality_measure_id,omitempty"`
	RecommendedAction *string    `db:"recommended_action" json:"recommended_action,omitempty"`
	IdentifiedAt      time.Time  `db:"identified_at" json:"identified_at"`
	ResolvedAt        *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Stratification holds per-tier member counts for a cohort. Unlike a
// population distribution, every tier is present, zero-filled.
type Stratification map[risk.Tier]int
