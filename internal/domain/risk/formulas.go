package risk

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// hccWeights is the simplified HCC condition weight table. Keys are
// normalized condition codes (lowercase, whitespace collapsed to
// underscores). Conditions not present contribute nothing.
var hccWeights = map[string]float64{
	"diabetes_complicated":   0.318,
	"diabetes_uncomplicated": 0.105,
	"chf":                    0.323,
	"copd":                   0.328,
	"ckd_stage4":             0.289,
	"ckd_stage5":             0.533,
	"cancer_active":          0.963,
	"depression":             0.309,
	"dementia":               0.508,
	"stroke_recent":          0.550,
	"ami_recent":             0.262,
}

const (
	// hccBaseScore is the simplified base demographic RAF contribution.
	hccBaseScore = 0.5
	// avgMedicareCost is the average annual cost a RAF of 1.0 predicts.
	avgMedicareCost = 12000
)

// highRiskConditions are the chronic conditions that each add a fixed
// contribution to the hospitalization risk score.
var highRiskConditions = map[string]bool{
	"chf":                  true,
	"copd":                 true,
	"ckd":                  true,
	"diabetes_complicated": true,
}

func normalizeConditionKey(condition string) string {
	return strings.Join(strings.Fields(strings.ToLower(condition)), "_")
}

// CalculateHCCScore derives a CMS-HCC style Risk Adjustment Factor from a
// patient's condition list. Unrecognized conditions are silently dropped.
// The emitted risk factors preserve input order and the original condition
// strings.
func CalculateHCCScore(patientID uuid.UUID, conditions []string) ScoreInput {
	rafScore := hccBaseScore
	var riskFactors []Factor

	for _, condition := range conditions {
		weight, ok := hccWeights[normalizeConditionKey(condition)]
		if !ok || weight <= 0 {
			continue
		}
		rafScore += weight
		riskFactors = append(riskFactors, Factor{
			Factor:   condition,
			Weight:   weight,
			Category: "clinical",
		})
	}

	predictedCost := avgMedicareCost * rafScore
	version := "V24"

	return ScoreInput{
		PatientID:       patientID,
		ModelName:       "CMS-HCC",
		ModelVersion:    &version,
		ScoreType:       ScoreTypeHCCRAF,
		RawScore:        rafScore,
		RiskFactors:     riskFactors,
		ClinicalFactors: map[string]interface{}{"conditions": conditions},
		PredictedCost:   &predictedCost,
	}
}

// HospitalizationRiskInput carries the demographic, utilization, and social
// facts the hospitalization risk formula consumes.
type HospitalizationRiskInput struct {
	Age                   int      `json:"age"`
	Conditions            []string `json:"conditions"`
	PriorHospitalizations int      `json:"prior_hospitalizations"`
	PriorEDVisits         int      `json:"prior_ed_visits"`
	MedicationCount       int      `json:"medication_count"`
	HasCaregiver          bool     `json:"has_caregiver"`
}

// CalculateHospitalizationRisk builds a 0-1 hospitalization probability from
// independently-capped additive contributions. Each contribution that fires
// is itemized as a risk factor; the final score is capped at 1.0.
func CalculateHospitalizationRisk(patientID uuid.UUID, data HospitalizationRiskInput) ScoreInput {
	riskScore := 0.0
	var riskFactors []Factor

	// Age factor
	if data.Age >= 80 {
		riskScore += 0.15
		riskFactors = append(riskFactors, Factor{Factor: "Age 80+", Weight: 0.15, Category: "demographic"})
	} else if data.Age >= 65 {
		riskScore += 0.08
		riskFactors = append(riskFactors, Factor{Factor: "Age 65-79", Weight: 0.08, Category: "demographic"})
	}

	// Prior utilization
	if data.PriorHospitalizations > 0 {
		hospWeight := math.Min(0.25, float64(data.PriorHospitalizations)*0.1)
		riskScore += hospWeight
		riskFactors = append(riskFactors, Factor{Factor: "Prior hospitalizations", Weight: hospWeight, Category: "utilization"})
	}

	if data.PriorEDVisits > 2 {
		edWeight := math.Min(0.15, float64(data.PriorEDVisits-2)*0.05)
		riskScore += edWeight
		riskFactors = append(riskFactors, Factor{Factor: "Frequent ED visits", Weight: edWeight, Category: "utilization"})
	}

	// Polypharmacy
	if data.MedicationCount > 10 {
		riskScore += 0.12
		riskFactors = append(riskFactors, Factor{Factor: "Polypharmacy (10+ meds)", Weight: 0.12, Category: "clinical"})
	} else if data.MedicationCount > 5 {
		riskScore += 0.05
		riskFactors = append(riskFactors, Factor{Factor: "Multiple medications", Weight: 0.05, Category: "clinical"})
	}

	// Chronic conditions: every match adds, duplicates included
	for _, condition := range data.Conditions {
		if highRiskConditions[strings.ToLower(condition)] {
			riskScore += 0.1
			riskFactors = append(riskFactors, Factor{Factor: condition, Weight: 0.1, Category: "clinical"})
		}
	}

	// Social factors
	if !data.HasCaregiver {
		riskScore += 0.05
		riskFactors = append(riskFactors, Factor{Factor: "No caregiver support", Weight: 0.05, Category: "social"})
	}

	riskScore = math.Min(1.0, riskScore)
	version := "1.0"

	return ScoreInput{
		PatientID:    patientID,
		ModelName:    "Hospitalization-Risk",
		ModelVersion: &version,
		ScoreType:    ScoreTypeHospitalizationRisk,
		RawScore:     riskScore,
		RiskFactors:  riskFactors,
		ClinicalFactors: map[string]interface{}{
			"conditions":      data.Conditions,
			"medicationCount": data.MedicationCount,
		},
		SocialFactors:   map[string]interface{}{"hasCaregiver": data.HasCaregiver},
		PredictedEvents: map[string]interface{}{"hospitalizationProbability": riskScore},
	}
}
