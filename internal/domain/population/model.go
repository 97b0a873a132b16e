package population

import (
	"time"

	"github.com/google/uuid"

	"github.com/pophealth/pophealth/internal/domain/risk"
)

// Population maps to the population table: a managed panel of patients whose
// risk and quality performance are tracked together.
type Population struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	FHIRGroupID *string   `db:"fhir_group_id" json:"fhir_group_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Member maps to the population_member table. CurrentRiskScore and RiskTier
// are denormalized mirrors of the patient's most recent score across any
// model; they are overwritten by the risk ledger on every commit and never
// computed independently.
type Member struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PopulationID     uuid.UUID  `db:"population_id" json:"population_id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	FHIRPatientRef   *string    `db:"fhir_patient_ref" json:"fhir_patient_ref,omitempty"`
	Status           string     `db:"status" json:"status"`
	CurrentRiskScore *float64   `db:"current_risk_score" json:"current_risk_score,omitempty"`
	RiskTier         *risk.Tier `db:"risk_tier" json:"risk_tier,omitempty"`
	EnrolledAt       time.Time  `db:"enrolled_at" json:"enrolled_at"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// TierStats summarizes one tier bucket of a population's risk distribution.
type TierStats struct {
	Count        int     `json:"count"`
	AverageScore float64 `json:"average_score"`
}

// Distribution groups a population's active members by risk tier. Tiers with
// no members are absent from the map; callers must not assume all five keys.
type Distribution map[risk.Tier]TierStats

// HighRiskOptions narrows the high-risk patient listing.
type HighRiskOptions struct {
	PopulationID *uuid.UUID
	MinRiskScore *float64
	RiskTiers    []risk.Tier
	Limit        int
}
