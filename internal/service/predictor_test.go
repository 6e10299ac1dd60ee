package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddi-prediction-server/internal/domain"
)

// scriptedClassifier returns pre-scripted classifications in call order.
type scriptedClassifier struct {
	results []domain.Classification
	err     error
	calls   int
}

func (s *scriptedClassifier) Classify(ctx context.Context, features []float64) (*domain.Classification, error) {
	if s.err != nil {
		return nil, s.err
	}
	result := s.results[s.calls%len(s.results)]
	s.calls++
	return &result, nil
}

func (s *scriptedClassifier) NumFeatures() int {
	return domain.DefaultFeatureSchema().NumFeatures()
}

func classification(severity domain.Severity, confidence float64) domain.Classification {
	probs := map[domain.Severity]float64{
		domain.MAJOR:    (1 - confidence) / 2,
		domain.MODERATE: (1 - confidence) / 2,
		domain.MINOR:    (1 - confidence) / 2,
	}
	probs[severity] = confidence
	return domain.Classification{
		Severity:      severity,
		Confidence:    confidence,
		Probabilities: probs,
	}
}

func testRecords(names ...string) []domain.DrugRecord {
	records := make([]domain.DrugRecord, len(names))
	for i, name := range names {
		r := testDrugA()
		r.Name = name
		records[i] = *r
	}
	return records
}

func newTestPredictor(classifier domain.Classifier) *Predictor {
	schema := domain.DefaultFeatureSchema()
	return NewPredictor(testLogger(), NewFeatureBuilder(schema, testLogger()), classifier)
}

func TestPredictor_AnalyzePairCount(t *testing.T) {
	classifier := &scriptedClassifier{results: []domain.Classification{
		classification(domain.MINOR, 0.9),
	}}
	p := newTestPredictor(classifier)

	result, err := p.Analyze(context.Background(), testRecords("A1", "B2", "C3", "D4"))

	require.NoError(t, err)
	assert.Equal(t, 4, result.InputDrugsCount)
	assert.Equal(t, 6, result.DrugPairsAnalyzed)
	assert.Len(t, result.Predictions, 6)
	assert.Equal(t, 6, classifier.calls)
	assert.False(t, result.AnalyzedAt.IsZero())
}

func TestPredictor_SortsBySeverityThenConfidence(t *testing.T) {
	classifier := &scriptedClassifier{results: []domain.Classification{
		classification(domain.MINOR, 0.9),
		classification(domain.MAJOR, 0.7),
		classification(domain.MODERATE, 0.95),
	}}
	p := newTestPredictor(classifier)

	result, err := p.Analyze(context.Background(), testRecords("A1", "B2", "C3"))
	require.NoError(t, err)
	require.Len(t, result.Predictions, 3)

	// Severity dominates confidence: a 0.7 Major outranks a 0.95 Moderate.
	assert.Equal(t, domain.MAJOR, result.Predictions[0].Prediction.Severity)
	assert.Equal(t, 0.7, result.Predictions[0].Prediction.Confidence)
	assert.Equal(t, domain.MODERATE, result.Predictions[1].Prediction.Severity)
	assert.Equal(t, domain.MINOR, result.Predictions[2].Prediction.Severity)
}

func TestPredictor_ConfidenceTieBreak(t *testing.T) {
	classifier := &scriptedClassifier{results: []domain.Classification{
		classification(domain.MODERATE, 0.6),
		classification(domain.MODERATE, 0.9),
		classification(domain.MODERATE, 0.75),
	}}
	p := newTestPredictor(classifier)

	result, err := p.Analyze(context.Background(), testRecords("A1", "B2", "C3"))
	require.NoError(t, err)

	confidences := []float64{
		result.Predictions[0].Prediction.Confidence,
		result.Predictions[1].Prediction.Confidence,
		result.Predictions[2].Prediction.Confidence,
	}
	assert.Equal(t, []float64{0.9, 0.75, 0.6}, confidences)
}

func TestPredictor_Summary(t *testing.T) {
	classifier := &scriptedClassifier{results: []domain.Classification{
		classification(domain.MAJOR, 0.9),
		classification(domain.MAJOR, 0.65),
		classification(domain.MINOR, 0.8),
	}}
	p := newTestPredictor(classifier)

	result, err := p.Analyze(context.Background(), testRecords("A1", "B2", "C3"))
	require.NoError(t, err)

	summary := result.Summary
	assert.Equal(t, 2, summary.HighRiskPairs)
	assert.Equal(t, 0, summary.ModerateRiskPairs)
	assert.Equal(t, 1, summary.LowRiskPairs)
	assert.Equal(t, 2, summary.HighConfidencePredictions)

	require.NotNil(t, summary.HighestRiskInteraction)
	assert.Equal(t, domain.MAJOR, summary.HighestRiskInteraction.Severity)
	assert.Equal(t, 0.9, summary.HighestRiskInteraction.Confidence)
	assert.Contains(t, summary.HighestRiskInteraction.Drugs, " + ")

	assert.Contains(t, summary.OverallRiskAssessment, "High overall risk")
	assert.Contains(t, summary.Recommendations, "Immediate consultation with healthcare provider recommended")
	assert.Contains(t, summary.Recommendations, "Always inform healthcare providers of all medications being taken")
}

func TestPredictor_SummaryLowRisk(t *testing.T) {
	classifier := &scriptedClassifier{results: []domain.Classification{
		classification(domain.MINOR, 0.85),
	}}
	p := newTestPredictor(classifier)

	result, err := p.Analyze(context.Background(), testRecords("A1", "B2"))
	require.NoError(t, err)

	assert.Equal(t, "Low overall risk - mostly minor interactions", result.Summary.OverallRiskAssessment)
	assert.Contains(t, result.Summary.Recommendations,
		"Routine monitoring sufficient for current drug combination")
}

func TestPredictor_SummaryModerateMajority(t *testing.T) {
	classifier := &scriptedClassifier{results: []domain.Classification{
		classification(domain.MODERATE, 0.8),
		classification(domain.MODERATE, 0.7),
		classification(domain.MINOR, 0.9),
	}}
	p := newTestPredictor(classifier)

	result, err := p.Analyze(context.Background(), testRecords("A1", "B2", "C3"))
	require.NoError(t, err)

	assert.Contains(t, result.Summary.OverallRiskAssessment, "Moderate overall risk")
	assert.Contains(t, result.Summary.Recommendations, "Enhanced monitoring for moderate interactions")
}

func TestPredictor_RiskLevelMapping(t *testing.T) {
	classifier := &scriptedClassifier{results: []domain.Classification{
		classification(domain.MAJOR, 0.9),
	}}
	p := newTestPredictor(classifier)

	result, err := p.Analyze(context.Background(), testRecords("A1", "B2"))
	require.NoError(t, err)

	pred := result.Predictions[0]
	assert.Equal(t, domain.RISK_HIGH, pred.Prediction.RiskLevel)
	assert.Equal(t, "High clinical significance - Strong evidence of major interaction", pred.ClinicalSignificance)
	assert.Equal(t, domain.MAJOR.Recommendation(), pred.Recommendation)
	assert.Len(t, pred.ProbabilityDistribution, 3)
}

func TestPredictor_PairRefsPreserveInputIndices(t *testing.T) {
	classifier := &scriptedClassifier{results: []domain.Classification{
		classification(domain.MINOR, 0.9),
	}}
	p := newTestPredictor(classifier)

	result, err := p.Analyze(context.Background(), testRecords("First", "Second"))
	require.NoError(t, err)

	pair := result.Predictions[0].DrugPair
	assert.Equal(t, 0, pair.DrugA.Index)
	assert.Equal(t, "First", pair.DrugA.Name)
	assert.Equal(t, 1, pair.DrugB.Index)
	assert.Equal(t, "Second", pair.DrugB.Name)
}

func TestPredictor_ClassifierFailureAbortsBatch(t *testing.T) {
	classifier := &scriptedClassifier{err: errors.New("model unavailable")}
	p := newTestPredictor(classifier)

	result, err := p.Analyze(context.Background(), testRecords("A1", "B2"))

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "failed to predict pair")
}
