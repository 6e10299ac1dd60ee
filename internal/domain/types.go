// Package domain contains core business entities and types for drug-drug
// interaction (DDI) severity prediction.
//
// Interaction severity follows the three-level convention used by the trained
// model: Major, Moderate and Minor. The severity ordering is a presentation
// contract callers depend on and must not change independently of the model.
package domain

import (
	"errors"
	"fmt"
)

// Severity represents the predicted drug-drug interaction severity.
// These labels are part of the model contract: the classifier's output
// classes map one-to-one onto them.
type Severity string

const (
	MAJOR    Severity = "Major"
	MODERATE Severity = "Moderate"
	MINOR    Severity = "Minor"
)

// RiskLevel is the operational risk tier derived from a severity label.
type RiskLevel string

const (
	RISK_HIGH    RiskLevel = "High"
	RISK_MEDIUM  RiskLevel = "Medium"
	RISK_LOW     RiskLevel = "Low"
	RISK_UNKNOWN RiskLevel = "Unknown"
)

// TherapeuticIndex classifies a drug's therapeutic window.
// NTI (narrow therapeutic index) drugs need closer monitoring.
type TherapeuticIndex string

const (
	NTI    TherapeuticIndex = "NTI"
	NonNTI TherapeuticIndex = "Non-NTI"
)

// Validation errors for prediction-data integrity
var (
	ErrInvalidSeverity  = errors.New("invalid interaction severity")
	ErrInvalidRiskLevel = errors.New("invalid risk level")
	ErrSchemaMismatch   = errors.New("feature schema does not match model")
)

// IsValid validates that the severity is one of the model's output classes.
func (s Severity) IsValid() bool {
	switch s {
	case MAJOR, MODERATE, MINOR:
		return true
	default:
		return false
	}
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// Rank returns the ordering weight of the severity for result sorting.
// Major > Moderate > Minor; unrecognized labels sort last.
func (s Severity) Rank() int {
	switch s {
	case MAJOR:
		return 3
	case MODERATE:
		return 2
	case MINOR:
		return 1
	default:
		return 0
	}
}

// RiskLevel maps a severity label to its operational risk tier.
func (s Severity) RiskLevel() RiskLevel {
	switch s {
	case MAJOR:
		return RISK_HIGH
	case MODERATE:
		return RISK_MEDIUM
	case MINOR:
		return RISK_LOW
	default:
		return RISK_UNKNOWN
	}
}

// ClinicalSignificance returns a human-readable clinical significance
// statement for the severity at the given prediction confidence. The
// confidence thresholds match the clinical text templates the model was
// deployed with.
func (s Severity) ClinicalSignificance(confidence float64) string {
	switch s {
	case MAJOR:
		if confidence > 0.8 {
			return "High clinical significance - Strong evidence of major interaction"
		}
		return "High clinical significance - Potential major interaction"
	case MODERATE:
		if confidence > 0.7 {
			return "Moderate clinical significance - Monitor patient closely"
		}
		return "Moderate clinical significance - Consider monitoring"
	case MINOR:
		if confidence > 0.6 {
			return "Low clinical significance - Minimal interaction expected"
		}
		return "Low clinical significance - Uncertain interaction"
	default:
		return "Unknown clinical significance"
	}
}

// Recommendation returns the static clinical recommendation text for the
// severity label.
func (s Severity) Recommendation() string {
	switch s {
	case MAJOR:
		return "Consider alternative medications or adjust dosing. Consult healthcare provider."
	case MODERATE:
		return "Monitor patient for adverse effects. Consider dose adjustment if needed."
	case MINOR:
		return "Generally safe combination. Routine monitoring recommended."
	default:
		return "Consult healthcare provider for guidance."
	}
}

// LogFields returns structured logging fields for audit trails.
func (s Severity) LogFields() map[string]any {
	return map[string]any{
		"severity":   string(s),
		"risk_level": string(s.RiskLevel()),
		"is_valid":   s.IsValid(),
	}
}

// IsValid validates the risk level.
func (rl RiskLevel) IsValid() bool {
	switch rl {
	case RISK_HIGH, RISK_MEDIUM, RISK_LOW:
		return true
	default:
		return false
	}
}

// IsValid validates the therapeutic index.
func (ti TherapeuticIndex) IsValid() bool {
	switch ti {
	case NTI, NonNTI:
		return true
	default:
		return false
	}
}

// Severities lists the model's output classes in rank order (highest first).
// Used to build probability distributions with a stable key set.
func Severities() []Severity {
	return []Severity{MAJOR, MODERATE, MINOR}
}

// ParseSeverity converts a raw class label into a Severity.
func ParseSeverity(label string) (Severity, error) {
	s := Severity(label)
	if !s.IsValid() {
		return "", fmt.Errorf("parse severity %q: %w", label, ErrInvalidSeverity)
	}
	return s, nil
}
