package risk

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pophealth/pophealth/internal/platform/fhir"
)

// ScoreType identifies the kind of model that produced a raw score. The type
// selects the normalization rule applied before tier classification.
type ScoreType string

const (
	ScoreTypeHCCRAF              ScoreType = "hcc_raf"
	ScoreTypeCDPS                ScoreType = "cdps"
	ScoreTypeHospitalizationRisk ScoreType = "hospitalization_risk"
	ScoreTypeEDUtilization       ScoreType = "ed_utilization"
	ScoreTypeReadmissionRisk     ScoreType = "readmission_risk"
	ScoreTypeMortalityRisk       ScoreType = "mortality_risk"
	ScoreTypeCostPrediction      ScoreType = "cost_prediction"
	ScoreTypeComposite           ScoreType = "composite"
	ScoreTypeCustom              ScoreType = "custom"
)

// Tier is one of five ordered risk-severity buckets.
type Tier string

const (
	TierLow      Tier = "low"
	TierModerate Tier = "moderate"
	TierHigh     Tier = "high"
	TierVeryHigh Tier = "very_high"
	TierCritical Tier = "critical"
)

// Factor is a single itemized contribution to a risk score.
type Factor struct {
	Factor   string  `json:"factor"`
	Weight   float64 `json:"weight"`
	Category string  `json:"category"`
}

// Score maps to the risk_score table. For a given (patient_id, model_name)
// at most one row is active at any time; prior rows are deactivated, never
// deleted.
type Score struct {
	ID              uuid.UUID              `db:"id" json:"id"`
	PatientID       uuid.UUID              `db:"patient_id" json:"patient_id"`
	FHIRPatientRef  *string                `db:"fhir_patient_ref" json:"fhir_patient_ref,omitempty"`
	ModelName       string                 `db:"model_name" json:"model_name"`
	ModelVersion    *string                `db:"model_version" json:"model_version,omitempty"`
	ScoreType       ScoreType              `db:"score_type" json:"score_type"`
	RawScore        float64                `db:"raw_score" json:"raw_score"`
	NormalizedScore float64                `db:"normalized_score" json:"normalized_score"`
	Percentile      int                    `db:"percentile" json:"percentile"`
	RiskTier        Tier                   `db:"risk_tier" json:"risk_tier"`
	RiskFactors     []Factor               `db:"risk_factors" json:"risk_factors"`
	ClinicalFactors map[string]interface{} `db:"clinical_factors" json:"clinical_factors,omitempty"`
	SocialFactors   map[string]interface{} `db:"social_factors" json:"social_factors,omitempty"`
	PredictedCost   *float64               `db:"predicted_cost" json:"predicted_cost,omitempty"`
	PredictedEvents map[string]interface{} `db:"predicted_events" json:"predicted_events,omitempty"`
	EffectiveDate   time.Time              `db:"effective_date" json:"effective_date"`
	IsActive        bool                   `db:"is_active" json:"is_active"`
	CreatedAt       time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time              `db:"updated_at" json:"updated_at"`
}

// ScoreInput is a scoring request: either submitted directly by a caller with
// a precomputed raw score, or produced by one of the built-in formulas.
type ScoreInput struct {
	PatientID       uuid.UUID              `json:"patient_id"`
	FHIRPatientRef  *string                `json:"fhir_patient_ref,omitempty"`
	ModelName       string                 `json:"model_name"`
	ModelVersion    *string                `json:"model_version,omitempty"`
	ScoreType       ScoreType              `json:"score_type"`
	RawScore        float64                `json:"raw_score"`
	RiskFactors     []Factor               `json:"risk_factors,omitempty"`
	ClinicalFactors map[string]interface{} `json:"clinical_factors,omitempty"`
	SocialFactors   map[string]interface{} `json:"social_factors,omitempty"`
	PredictedCost   *float64               `json:"predicted_cost,omitempty"`
	PredictedEvents map[string]interface{} `json:"predicted_events,omitempty"`
}

// Filters narrows score listings.
type Filters struct {
	PatientID *uuid.UUID
	ModelName string
	ScoreType ScoreType
	RiskTier  Tier
	IsActive  *bool
}

// Profile is a patient's combined view across all active model scores.
type Profile struct {
	PatientID           uuid.UUID      `json:"patient_id"`
	Scores              []ProfileScore `json:"scores"`
	OverallRiskTier     Tier           `json:"overall_risk_tier"`
	HighestRiskScore    float64        `json:"highest_risk_score"`
	PredictedAnnualCost float64        `json:"predicted_annual_cost"`
	TopRiskFactors      []string       `json:"top_risk_factors"`
}

// ProfileScore is the per-model summary embedded in a Profile.
type ProfileScore struct {
	ModelName       string    `json:"model_name"`
	ScoreType       ScoreType `json:"score_type"`
	RawScore        float64   `json:"raw_score"`
	NormalizedScore float64   `json:"normalized_score"`
	RiskTier        Tier      `json:"risk_tier"`
	Percentile      int       `json:"percentile"`
	EffectiveDate   time.Time `json:"effective_date"`
}

// snomedOutcomeCodes maps score types to the SNOMED CT code used for the
// RiskAssessment prediction outcome.
var snomedOutcomeCodes = map[ScoreType]string{
	ScoreTypeHCCRAF:              "182992009",
	ScoreTypeCDPS:                "182992009",
	ScoreTypeHospitalizationRisk: "32485007",
	ScoreTypeEDUtilization:       "50849002",
	ScoreTypeReadmissionRisk:     "32485007",
	ScoreTypeMortalityRisk:       "419620001",
	ScoreTypeCostPrediction:      "224187001",
	ScoreTypeComposite:           "182992009",
	ScoreTypeCustom:              "182992009",
}

func outcomeCode(st ScoreType) string {
	if code, ok := snomedOutcomeCodes[st]; ok {
		return code
	}
	return "182992009"
}

// ToFHIR renders the score as a FHIR R4 RiskAssessment resource.
func (s *Score) ToFHIR() map[string]interface{} {
	subject := "Patient/" + s.PatientID.String()
	if s.FHIRPatientRef != nil && *s.FHIRPatientRef != "" {
		subject = *s.FHIRPatientRef
	}

	result := map[string]interface{}{
		"resourceType":       "RiskAssessment",
		"id":                 s.ID.String(),
		"meta":               fhir.Meta{LastUpdated: s.UpdatedAt},
		"status":             "final",
		"subject":            fhir.Reference{Reference: subject},
		"occurrenceDateTime": s.EffectiveDate.Format(time.RFC3339),
		"method": fhir.CodeableConcept{Coding: []fhir.Coding{{
			System:  "http://terminology.hl7.org/CodeSystem/risk-assessment-method",
			Code:    s.ModelName,
			Display: s.ModelName,
		}}},
		"prediction": []map[string]interface{}{{
			"outcome": fhir.CodeableConcept{Coding: []fhir.Coding{{
				System:  "http://snomed.info/sct",
				Code:    outcomeCode(s.ScoreType),
				Display: string(s.ScoreType),
			}}},
			"probabilityDecimal": s.NormalizedScore / 100,
			"qualitativeRisk": fhir.CodeableConcept{Coding: []fhir.Coding{{
				System:  "http://terminology.hl7.org/CodeSystem/risk-probability",
				Code:    string(s.RiskTier),
				Display: string(s.RiskTier),
			}}},
		}},
	}

	if len(s.RiskFactors) > 0 {
		notes := make([]fhir.Annotation, 0, len(s.RiskFactors))
		for _, rf := range s.RiskFactors {
			notes = append(notes, fhir.Annotation{Text: fmt.Sprintf("%s: %g", rf.Factor, rf.Weight)})
		}
		result["note"] = notes
	}
	return result
}
