package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ddi-prediction-server/internal/domain"
)

// highConfidenceThreshold marks predictions counted as high-confidence in
// the batch summary.
const highConfidenceThreshold = 0.7

// Predictor orchestrates pairwise interaction analysis: it enumerates all
// unordered drug pairs, runs each through the feature builder and the
// opaque classifier, and assembles a ranked, summarized result.
//
// The predictor is stateless per request; the feature builder and
// classifier it holds are read-only after construction, so a single
// instance serves concurrent requests safely.
type Predictor struct {
	logger     *logrus.Logger
	features   *FeatureBuilder
	classifier domain.Classifier
}

// NewPredictor creates a pair orchestrator.
func NewPredictor(logger *logrus.Logger, features *FeatureBuilder, classifier domain.Classifier) *Predictor {
	return &Predictor{
		logger:     logger,
		features:   features,
		classifier: classifier,
	}
}

// Analyze scores every unordered pair of the validated records and returns
// the ranked predictions with a batch summary. Records must have passed
// batch validation; the orchestrator does not re-validate.
//
// An unanticipated classifier failure aborts the whole request with no
// retry: inference is deterministic, so a retry would reproduce the same
// failure.
func (p *Predictor) Analyze(ctx context.Context, records []domain.DrugRecord) (*domain.AnalysisResult, error) {
	pairs := domain.EnumeratePairs(records)

	p.logger.WithFields(logrus.Fields{
		"drugs_count": len(records),
		"pairs_count": len(pairs),
	}).Info("Analyzing drug pairs")

	predictions := make([]domain.PairPrediction, 0, len(pairs))
	for _, pair := range pairs {
		prediction, err := p.predictPair(ctx, &pair)
		if err != nil {
			return nil, fmt.Errorf("failed to predict pair %s: %w", pair.Key(), err)
		}
		predictions = append(predictions, *prediction)
	}

	sortPredictions(predictions)

	result := &domain.AnalysisResult{
		InputDrugsCount:   len(records),
		DrugPairsAnalyzed: len(predictions),
		Predictions:       predictions,
		Summary:           summarize(predictions),
		AnalyzedAt:        time.Now().UTC(),
	}

	p.logger.WithFields(logrus.Fields{
		"pairs_analyzed":  result.DrugPairsAnalyzed,
		"high_risk_pairs": result.Summary.HighRiskPairs,
	}).Info("Completed drug pair analysis")

	return result, nil
}

// predictPair scores one pair: features, classification, risk tier and
// clinical-text annotations.
func (p *Predictor) predictPair(ctx context.Context, pair *domain.DrugPair) (*domain.PairPrediction, error) {
	vector := p.features.Build(pair.DrugA, pair.DrugB)

	classification, err := p.classifier.Classify(ctx, vector)
	if err != nil {
		return nil, err
	}

	severity := classification.Severity
	confidence := classification.Confidence

	p.logger.WithFields(logrus.Fields{
		"pair":       pair.Key(),
		"drug_a":     pair.DrugA.Name,
		"drug_b":     pair.DrugB.Name,
		"severity":   severity.String(),
		"confidence": confidence,
	}).Debug("Scored drug pair")

	return &domain.PairPrediction{
		DrugPair: domain.PairRef{
			DrugA: domain.DrugRef{
				Index: pair.IndexA,
				Name:  pair.DrugA.Name,
				Class: pair.DrugA.PharmacodynamicClass,
			},
			DrugB: domain.DrugRef{
				Index: pair.IndexB,
				Name:  pair.DrugB.Name,
				Class: pair.DrugB.PharmacodynamicClass,
			},
		},
		Prediction: domain.Prediction{
			Severity:   severity,
			Confidence: confidence,
			RiskLevel:  severity.RiskLevel(),
		},
		ProbabilityDistribution: classification.Probabilities,
		ClinicalSignificance:    severity.ClinicalSignificance(confidence),
		Recommendation:          severity.Recommendation(),
	}, nil
}

// sortPredictions orders by descending severity, tie-broken by descending
// confidence. Callers depend on this ordering.
func sortPredictions(predictions []domain.PairPrediction) {
	sort.SliceStable(predictions, func(i, j int) bool {
		ri, rj := predictions[i].Prediction.Severity.Rank(), predictions[j].Prediction.Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return predictions[i].Prediction.Confidence > predictions[j].Prediction.Confidence
	})
}

// summarize aggregates per-severity counts and overall guidance over the
// already-sorted predictions.
func summarize(predictions []domain.PairPrediction) domain.Summary {
	summary := domain.Summary{
		Recommendations: []string{},
	}

	for _, pred := range predictions {
		switch pred.Prediction.Severity {
		case domain.MAJOR:
			summary.HighRiskPairs++
		case domain.MODERATE:
			summary.ModerateRiskPairs++
		case domain.MINOR:
			summary.LowRiskPairs++
		}
		if pred.Prediction.Confidence > highConfidenceThreshold {
			summary.HighConfidencePredictions++
		}
	}

	if len(predictions) > 0 {
		top := predictions[0]
		summary.HighestRiskInteraction = &domain.HighestRisk{
			Drugs:      fmt.Sprintf("%s + %s", top.DrugPair.DrugA.Name, top.DrugPair.DrugB.Name),
			Severity:   top.Prediction.Severity,
			Confidence: top.Prediction.Confidence,
		}
	}

	summary.OverallRiskAssessment = overallRiskAssessment(&summary, len(predictions))
	summary.Recommendations = overallRecommendations(&summary)

	return summary
}

func overallRiskAssessment(summary *domain.Summary, total int) string {
	switch {
	case summary.HighRiskPairs > 0:
		return fmt.Sprintf("High overall risk - %d major interaction(s) detected", summary.HighRiskPairs)
	case float64(summary.ModerateRiskPairs) > float64(total)*0.5:
		return fmt.Sprintf("Moderate overall risk - %d moderate interaction(s) detected", summary.ModerateRiskPairs)
	default:
		return "Low overall risk - mostly minor interactions"
	}
}

func overallRecommendations(summary *domain.Summary) []string {
	recommendations := make([]string, 0, 5)

	if summary.HighRiskPairs > 0 {
		recommendations = append(recommendations,
			"Immediate consultation with healthcare provider recommended",
			"Consider alternative medications for major interactions")
	}
	if summary.ModerateRiskPairs > 0 {
		recommendations = append(recommendations,
			"Enhanced monitoring for moderate interactions",
			"Regular follow-up appointments recommended")
	}
	if summary.HighRiskPairs == 0 && summary.ModerateRiskPairs == 0 {
		recommendations = append(recommendations,
			"Routine monitoring sufficient for current drug combination")
	}

	recommendations = append(recommendations,
		"Always inform healthcare providers of all medications being taken")

	return recommendations
}
