package quality

// Simplified HEDIS measure definitions used to seed the catalog. Criteria are
// descriptive only; evaluation against clinical data happens upstream.
type hedisDef struct {
	Name                string
	Domain              string
	Description         string
	NumeratorCriteria   map[string]interface{}
	DenominatorCriteria map[string]interface{}
}

var hedisMeasures = map[string]hedisDef{
	"HEDIS-BCS": {
		Name:        "Breast Cancer Screening",
		Domain:      "Prevention",
		Description: "Percentage of women 50-74 years who had a mammogram",
		NumeratorCriteria: map[string]interface{}{
			"procedure": "mammography",
			"ageRange":  map[string]interface{}{"min": 50, "max": 74},
			"gender":    "female",
		},
		DenominatorCriteria: map[string]interface{}{
			"ageRange": map[string]interface{}{"min": 50, "max": 74},
			"gender":   "female",
		},
	},
	"HEDIS-CDC-A1C": {
		Name:        "Comprehensive Diabetes Care - HbA1c Testing",
		Domain:      "Chronic Disease Management",
		Description: "Percentage of diabetic patients with HbA1c test",
		NumeratorCriteria: map[string]interface{}{
			"labTest":   "HbA1c",
			"condition": "diabetes",
		},
		DenominatorCriteria: map[string]interface{}{
			"condition": "diabetes",
			"ageRange":  map[string]interface{}{"min": 18, "max": 75},
		},
	},
	"HEDIS-CBP": {
		Name:        "Controlling High Blood Pressure",
		Domain:      "Chronic Disease Management",
		Description: "Percentage of hypertensive patients with BP < 140/90",
		NumeratorCriteria: map[string]interface{}{
			"condition": "hypertension",
			"bpControl": map[string]interface{}{"systolic": 140, "diastolic": 90},
		},
		DenominatorCriteria: map[string]interface{}{
			"condition": "hypertension",
			"ageRange":  map[string]interface{}{"min": 18, "max": 85},
		},
	},
	"HEDIS-COL": {
		Name:        "Colorectal Cancer Screening",
		Domain:      "Prevention",
		Description: "Percentage of adults 45-75 with colorectal screening",
		NumeratorCriteria: map[string]interface{}{
			"procedure": []string{"colonoscopy", "FIT", "sigmoidoscopy"},
			"ageRange":  map[string]interface{}{"min": 45, "max": 75},
		},
		DenominatorCriteria: map[string]interface{}{
			"ageRange": map[string]interface{}{"min": 45, "max": 75},
		},
	},
	"HEDIS-OMW": {
		Name:        "Osteoporosis Management in Women Who Had a Fracture",
		Domain:      "Chronic Disease Management",
		Description: "Women 67+ with fracture who had bone mineral density test or osteoporosis medication",
	},
	"HEDIS-SPR": {
		Name:        "Statin Therapy for Patients with Cardiovascular Disease",
		Domain:      "Chronic Disease Management",
		Description: "Percentage of patients with ASCVD on high-intensity statin",
	},
}

// CMS star rating cutoffs. A rate at or above a cutoff earns that rating;
// anything under 60 is one star.
var starThresholds = []struct {
	Rate  float64
	Stars int
}{
	{90, 5},
	{80, 4},
	{70, 3},
	{60, 2},
}

func starRating(performanceRate float64) int {
	for _, t := range starThresholds {
		if performanceRate >= t.Rate {
			return t.Stars
		}
	}
	return 1
}
