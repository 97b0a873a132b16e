package quality

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// PopulationRef carries the population identity a MeasureReport is about.
type PopulationRef struct {
	ID          uuid.UUID
	Name        string
	FHIRGroupID *string
}

// ToFHIR renders the measure definition as a FHIR R4 Measure resource with
// proportion scoring. Criteria maps are serialized into the population
// criteria expressions.
func (m *QualityMeasure) ToFHIR() map[string]interface{} {
	id := m.ID.String()
	if m.FHIRMeasureID != nil {
		id = *m.FHIRMeasureID
	}
	version := "1.0"
	if m.FHIRVersion != nil {
		version = *m.FHIRVersion
	}
	status := "retired"
	if m.IsActive {
		status = "active"
	}

	return map[string]interface{}{
		"resourceType": "Measure",
		"id":           id,
		"meta": map[string]interface{}{
			"lastUpdated": m.UpdatedAt.Format(time.RFC3339),
		},
		"url": fmt.Sprintf("urn:measure:%s", m.MeasureID),
		"identifier": []map[string]interface{}{
			{"system": "urn:measure-id", "value": m.MeasureID},
		},
		"version":     version,
		"name":        nonAlphanumeric.ReplaceAllString(m.MeasureID, ""),
		"title":       m.Name,
		"status":      status,
		"description": m.Description,
		"scoring": map[string]interface{}{
			"coding": []map[string]interface{}{
				{
					"system":  "http://terminology.hl7.org/CodeSystem/measure-scoring",
					"code":    "proportion",
					"display": "Proportion",
				},
			},
		},
		"type": []map[string]interface{}{
			{
				"coding": []map[string]interface{}{
					{
						"system":  "http://terminology.hl7.org/CodeSystem/measure-type",
						"code":    string(m.MeasureType),
						"display": string(m.MeasureType),
					},
				},
			},
		},
		"group": []map[string]interface{}{
			{
				"population": []map[string]interface{}{
					criteriaPopulation("numerator", m.NumeratorCriteria),
					criteriaPopulation("denominator", m.DenominatorCriteria),
					criteriaPopulation("denominator-exclusion", m.ExclusionCriteria),
				},
			},
		},
	}
}

func criteriaPopulation(code string, criteria map[string]interface{}) map[string]interface{} {
	expr, _ := json.Marshal(criteria)
	return map[string]interface{}{
		"code": map[string]interface{}{
			"coding": []map[string]interface{}{
				{
					"system": "http://terminology.hl7.org/CodeSystem/measure-population",
					"code":   code,
				},
			},
		},
		"criteria": map[string]interface{}{
			"language":   "text/cql",
			"expression": string(expr),
		},
	}
}

// MeasureReportFHIR renders a calculated population measure as a FHIR R4
// summary MeasureReport. The period spans the full reporting year.
func MeasureReportFHIR(d *PopulationMeasureDetail, pop PopulationRef) map[string]interface{} {
	measureID := d.Measure.ID.String()
	if d.Measure.FHIRMeasureID != nil {
		measureID = *d.Measure.FHIRMeasureID
	}
	groupID := pop.ID.String()
	if pop.FHIRGroupID != nil {
		groupID = *pop.FHIRGroupID
	}

	report := map[string]interface{}{
		"resourceType": "MeasureReport",
		"id":           d.ID.String(),
		"meta": map[string]interface{}{
			"lastUpdated": d.UpdatedAt.Format(time.RFC3339),
		},
		"status":  "complete",
		"type":    "summary",
		"measure": fmt.Sprintf("Measure/%s", measureID),
		"subject": map[string]interface{}{
			"reference": fmt.Sprintf("Group/%s", groupID),
			"display":   pop.Name,
		},
		"date": d.CalculatedAt.Format(time.RFC3339),
		"period": map[string]interface{}{
			"start": fmt.Sprintf("%s-01-01", d.MeasurePeriod),
			"end":   fmt.Sprintf("%s-12-31", d.MeasurePeriod),
		},
		"group": []map[string]interface{}{
			{
				"population": []map[string]interface{}{
					countPopulation("numerator", d.Numerator),
					countPopulation("denominator", d.Denominator),
					countPopulation("denominator-exclusion", d.Exclusions),
				},
				"measureScore": map[string]interface{}{
					"value":  d.PerformanceRate,
					"unit":   "%",
					"system": "http://unitsofmeasure.org",
					"code":   "%",
				},
			},
		},
	}
	if d.StarRating != nil {
		report["extension"] = []map[string]interface{}{
			{
				"url":          "http://hl7.org/fhir/StructureDefinition/measurereport-star-rating",
				"valueInteger": *d.StarRating,
			},
		}
	}
	return report
}

func countPopulation(code string, count int) map[string]interface{} {
	return map[string]interface{}{
		"code": map[string]interface{}{
			"coding": []map[string]interface{}{
				{
					"system": "http://terminology.hl7.org/CodeSystem/measure-population",
					"code":   code,
				},
			},
		},
		"count": count,
	}
}
