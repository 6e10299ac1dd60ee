package domain

import "time"

// DrugRef identifies one side of an analyzed pair in the response.
type DrugRef struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Class string `json:"class"`
}

// PairRef carries both drug identities of an analyzed pair.
type PairRef struct {
	DrugA DrugRef `json:"drug_a"`
	DrugB DrugRef `json:"drug_b"`
}

// Prediction is the classifier verdict for one pair.
type Prediction struct {
	Severity   Severity  `json:"severity"`
	Confidence float64   `json:"confidence"`
	RiskLevel  RiskLevel `json:"risk_level"`
}

// PairPrediction is the complete per-pair result: identities, verdict, the
// full probability distribution over severity classes and the static
// clinical-text annotations keyed by severity. Produced per request and
// discarded with the response.
type PairPrediction struct {
	DrugPair                PairRef              `json:"drug_pair"`
	Prediction              Prediction           `json:"prediction"`
	ProbabilityDistribution map[Severity]float64 `json:"probability_distribution"`
	ClinicalSignificance    string               `json:"clinical_significance"`
	Recommendation          string               `json:"recommendation"`
}

// HighestRisk describes the top-ranked interaction of a batch.
type HighestRisk struct {
	Drugs      string   `json:"drugs"`
	Severity   Severity `json:"severity"`
	Confidence float64  `json:"confidence"`
}

// Summary aggregates batch-level counts per severity bucket.
type Summary struct {
	HighRiskPairs             int          `json:"high_risk_pairs"`
	ModerateRiskPairs         int          `json:"moderate_risk_pairs"`
	LowRiskPairs              int          `json:"low_risk_pairs"`
	HighConfidencePredictions int          `json:"high_confidence_predictions"`
	HighestRiskInteraction    *HighestRisk `json:"highest_risk_interaction,omitempty"`
	OverallRiskAssessment     string       `json:"overall_risk_assessment"`
	Recommendations           []string     `json:"recommendations"`
}

// AnalysisResult is the complete outcome of a batch analysis: all pair
// predictions sorted by descending severity then descending confidence,
// plus the batch summary.
type AnalysisResult struct {
	InputDrugsCount   int              `json:"input_drugs_count"`
	DrugPairsAnalyzed int              `json:"drug_pairs_analyzed"`
	Predictions       []PairPrediction `json:"predictions"`
	Summary           Summary          `json:"summary"`
	AnalyzedAt        time.Time        `json:"analyzed_at"`
}

// BatchValidation is the structured outcome of validating a raw input batch.
// A batch is valid iff it produced zero errors; warnings never block
// processing and are attached to the response for transparency.
type BatchValidation struct {
	Valid          bool     `json:"valid"`
	Errors         []string `json:"errors"`
	Warnings       []string `json:"warnings"`
	DrugsCount     int      `json:"drugs_count"`
	PairsToAnalyze int      `json:"pairs_to_analyze"`
}
