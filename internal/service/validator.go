// Package service implements the drug interaction prediction core: input
// validation, pairwise feature engineering and pair orchestration.
package service

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ddi-prediction-server/internal/domain"
)

// Batch bounds. The lower bound is enforced; the upper bound is soft
// operational guidance because pairwise cost grows quadratically.
const (
	MinDrugs     = 2
	SoftMaxDrugs = 10
)

// Per-field limits.
const (
	minNameLength    = 2
	maxNameLength    = 100
	maxTextLength    = 200
	extremeThreshold = 1000.0
)

// requiredFields lists the seven wire-format fields every drug record must
// carry.
var requiredFields = []string{
	"drug_name",
	"pharmacodynamic_class",
	"logp",
	"therapeutic_index",
	"transporter_interaction",
	"plasma_protein_binding",
	"metabolic_pathways",
}

// textFields are the free-text fields subject to the oversize warning.
var textFields = []string{
	"drug_name",
	"pharmacodynamic_class",
	"transporter_interaction",
	"metabolic_pathways",
}

// suspiciousNameChars flags control/markup-like characters in drug names.
// Permissive on purpose: this is anomaly flagging, not a security boundary.
var suspiciousNameChars = regexp.MustCompile(`[<>{}\[\]\\]`)

// Validator rejects malformed input before any feature computation. It
// never fails on bad input; every outcome is a structured BatchValidation.
// Errors block the batch, warnings never do: the system prefers returning
// an approximate prediction with a flagged anomaly over refusing a request.
type Validator struct {
	schema *domain.FeatureSchema
	logger *logrus.Logger
}

// NewValidator creates a validator bound to a feature schema. The schema
// supplies the recognized category vocabularies and numeric domain ranges.
func NewValidator(schema *domain.FeatureSchema, logger *logrus.Logger) *Validator {
	return &Validator{
		schema: schema,
		logger: logger,
	}
}

// ValidateBatch validates a raw JSON-decoded payload and, when the batch is
// clean, coerces it into typed drug records. The records slice is nil
// whenever the batch is invalid; downstream components rely on that single
// source of truth and do not re-validate.
func (v *Validator) ValidateBatch(payload any) (*domain.BatchValidation, []domain.DrugRecord) {
	result := &domain.BatchValidation{
		Errors:   []string{},
		Warnings: []string{},
	}

	data, ok := payload.(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, "Input must be a JSON object")
		return result, nil
	}

	rawDrugs, ok := data["drugs"]
	if !ok {
		result.Errors = append(result.Errors, "Missing 'drugs' key in input data")
		return result, nil
	}

	list, ok := rawDrugs.([]any)
	if !ok {
		result.Errors = append(result.Errors, "'drugs' must be a list")
		return result, nil
	}

	result.DrugsCount = len(list)
	result.PairsToAnalyze = len(list) * (len(list) - 1) / 2

	if len(list) < MinDrugs {
		result.Errors = append(result.Errors, "At least 2 drugs are required for interaction analysis")
	}
	if len(list) > SoftMaxDrugs {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Large number of drugs (%d) may result in slow processing", len(list)))
	}

	for i, raw := range list {
		errs, warns := v.validateRecord(raw, i)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warns...)
	}

	if v.hasDuplicateNames(list) {
		result.Warnings = append(result.Warnings,
			"Duplicate drug names detected - this may affect interaction analysis")
	}

	result.Valid = len(result.Errors) == 0
	if !result.Valid {
		v.logger.WithFields(logrus.Fields{
			"drugs_count": result.DrugsCount,
			"error_count": len(result.Errors),
		}).Info("Batch validation rejected input")
		return result, nil
	}

	records := make([]domain.DrugRecord, len(list))
	for i, raw := range list {
		records[i] = buildRecord(raw.(map[string]any))
	}

	if len(result.Warnings) > 0 {
		v.logger.WithFields(logrus.Fields{
			"drugs_count":   result.DrugsCount,
			"warning_count": len(result.Warnings),
		}).Warn("Batch validated with warnings")
	}

	return result, records
}

// validateRecord checks a single raw drug entry and returns errors and
// warnings scoped to its position.
func (v *Validator) validateRecord(raw any, index int) ([]string, []string) {
	var errs, warns []string
	prefix := fmt.Sprintf("Drug %d", index+1)

	rec, ok := raw.(map[string]any)
	if !ok {
		return []string{fmt.Sprintf("%s: Must be an object", prefix)}, nil
	}

	for _, field := range requiredFields {
		value, present := rec[field]
		if !present {
			errs = append(errs, fmt.Sprintf("%s: Missing required field '%s'", prefix, field))
			continue
		}
		if value == nil || value == "" {
			errs = append(errs, fmt.Sprintf("%s: Field '%s' cannot be empty", prefix, field))
		}
	}

	if name, present := rec["drug_name"]; present {
		nameErrs, nameWarns := v.validateName(name, prefix)
		errs = append(errs, nameErrs...)
		warns = append(warns, nameWarns...)
	}

	for _, field := range []string{"logp", "plasma_protein_binding"} {
		value, present := rec[field]
		if !present {
			continue
		}
		numErrs, numWarns := v.validateNumeric(value, field, prefix)
		errs = append(errs, numErrs...)
		warns = append(warns, numWarns...)
	}

	if value, present := rec["therapeutic_index"]; present {
		warns = append(warns, v.validateTherapeuticIndex(value, prefix)...)
	}

	if value, present := rec["pharmacodynamic_class"]; present {
		warns = append(warns, v.validatePharmacodynamicClass(value, prefix)...)
	}

	for _, field := range textFields {
		if s, ok := rec[field].(string); ok && len(s) > maxTextLength {
			warns = append(warns, fmt.Sprintf("%s: Field '%s' is unusually long (%d characters)",
				prefix, field, len(s)))
		}
	}

	return errs, warns
}

// validateName checks the drug name. Very long names and names containing
// markup-like characters are warnings, not errors.
func (v *Validator) validateName(value any, prefix string) ([]string, []string) {
	name, ok := value.(string)
	if !ok {
		return []string{fmt.Sprintf("%s: Drug name must be a string", prefix)}, nil
	}

	var errs, warns []string
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < minNameLength {
		errs = append(errs, fmt.Sprintf("%s: Drug name too short", prefix))
	} else if len(trimmed) > maxNameLength {
		warns = append(warns, fmt.Sprintf("%s: Drug name is unusually long", prefix))
	}

	if suspiciousNameChars.MatchString(trimmed) {
		warns = append(warns, fmt.Sprintf("%s: Drug name contains unusual characters", prefix))
	}

	return errs, warns
}

// validateNumeric checks that a numeric field parses and lies within its
// nominal domain. Out-of-domain values are errors; in-range but extreme
// magnitudes only warn.
func (v *Validator) validateNumeric(value any, field, prefix string) ([]string, []string) {
	num, ok := toFloat(value)
	if !ok {
		return []string{fmt.Sprintf("%s: Field '%s' must be a valid number", prefix, field)}, nil
	}

	var errs, warns []string
	if r, ok := v.schema.NumericRange(field); ok && !r.Contains(num) {
		errs = append(errs, fmt.Sprintf("%s: Field '%s' value %v is outside valid range [%v, %v]",
			prefix, field, num, r.Min, r.Max))
	}

	if math.Abs(num) > extremeThreshold {
		warns = append(warns, fmt.Sprintf("%s: Field '%s' has an extreme value (%v)", prefix, field, num))
	}

	return errs, warns
}

// validateTherapeuticIndex warns on non-standard values; downstream folds
// them into the Other bucket rather than failing the request.
func (v *Validator) validateTherapeuticIndex(value any, prefix string) []string {
	s, ok := value.(string)
	if !ok {
		return nil
	}

	if domain.TherapeuticIndex(s).IsValid() {
		return nil
	}
	return []string{fmt.Sprintf(
		"%s: Therapeutic index '%s' is not a standard value (expected: %s, %s)",
		prefix, s, domain.NTI, domain.NonNTI)}
}

// validatePharmacodynamicClass warns when the class is not in the
// recognized list. Same fallback philosophy as the therapeutic index.
func (v *Validator) validatePharmacodynamicClass(value any, prefix string) []string {
	s, ok := value.(string)
	if !ok {
		return nil
	}

	if v.schema.KnownCategory(domain.FieldPharmacodynamicClass, s) {
		return nil
	}

	v.logger.WithFields(logrus.Fields{
		"field": "pharmacodynamic_class",
		"value": s,
	}).Warn("Unknown category will be mapped to 'Other'")

	return []string{fmt.Sprintf(
		"%s: Pharmacodynamic class '%s' is not commonly recognized - will be mapped to 'Other'",
		prefix, s)}
}

// hasDuplicateNames reports case-insensitive duplicates among the batch's
// drug names. Interactions between duplicate entries are still computed.
func (v *Validator) hasDuplicateNames(list []any) bool {
	seen := make(map[string]struct{}, len(list))
	for _, raw := range list {
		rec, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, ok := rec["drug_name"].(string)
		if !ok {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
	}
	return false
}

// buildRecord coerces a validated raw record into its typed form. Only
// called on records that passed validation, so numeric coercion cannot
// fail here.
func buildRecord(rec map[string]any) domain.DrugRecord {
	logp, _ := toFloat(rec["logp"])
	ppb, _ := toFloat(rec["plasma_protein_binding"])

	return domain.DrugRecord{
		Name:                   toString(rec["drug_name"]),
		PharmacodynamicClass:   toString(rec["pharmacodynamic_class"]),
		LogP:                   logp,
		TherapeuticIndex:       toString(rec["therapeutic_index"]),
		TransporterInteraction: toString(rec["transporter_interaction"]),
		PlasmaProteinBinding:   ppb,
		MetabolicPathways:      toString(rec["metabolic_pathways"]),
	}
}

// toFloat coerces JSON-decoded values into float64. Numeric strings are
// accepted for parity with the trained model's ingestion behavior.
func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// toString renders a raw field for the typed record.
func toString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}
