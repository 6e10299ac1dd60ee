package service

import (
	"github.com/sirupsen/logrus"

	"github.com/ddi-prediction-server/internal/domain"
)

// FeatureBuilder converts a validated drug pair into the fixed-order
// numeric vector the classifier was trained on. The transformation is
// deterministic: identical inputs always yield bit-identical vectors.
//
// The builder assumes the validator already rejected malformed input and
// performs no re-validation of its own.
type FeatureBuilder struct {
	schema *domain.FeatureSchema
	logger *logrus.Logger
}

// NewFeatureBuilder creates a feature builder bound to a feature schema.
func NewFeatureBuilder(schema *domain.FeatureSchema, logger *logrus.Logger) *FeatureBuilder {
	return &FeatureBuilder{
		schema: schema,
		logger: logger,
	}
}

// Schema returns the feature contract the builder emits.
func (fb *FeatureBuilder) Schema() *domain.FeatureSchema {
	return fb.schema
}

// Build produces the feature vector for one drug pair in the schema's
// canonical column order. Any expected column that could not be computed is
// filled with 0.0 and logged, never raised.
func (fb *FeatureBuilder) Build(drugA, drugB *domain.DrugRecord) []float64 {
	features := make(map[string]float64, fb.schema.NumFeatures())

	// Raw numeric features, verbatim.
	features["LogP_A"] = drugA.LogP
	features["LogP_B"] = drugB.LogP
	features["Plasma_Protein_Binding_A"] = drugA.PlasmaProteinBinding
	features["Plasma_Protein_Binding_B"] = drugB.PlasmaProteinBinding

	// Engineered pairwise features. The ratio's zero-guard (0 when B's LogP
	// is 0) is a convention the model was trained on and must be preserved
	// exactly for numeric parity.
	features["LogP_diff"] = drugA.LogP - drugB.LogP
	if drugB.LogP != 0 {
		features["LogP_ratio"] = drugA.LogP / drugB.LogP
	} else {
		features["LogP_ratio"] = 0
	}
	features["Protein_Binding_diff"] = drugA.PlasmaProteinBinding - drugB.PlasmaProteinBinding
	features["Protein_Binding_avg"] = (drugA.PlasmaProteinBinding + drugB.PlasmaProteinBinding) / 2

	fb.addCategorical(features, drugA, "A")
	fb.addCategorical(features, drugB, "B")

	return fb.assemble(features)
}

// addCategorical emits the one-hot indicator block for every categorical
// field of one drug. Exactly one indicator per field is set: the matching
// named category, or Other when the value is outside the known set.
func (fb *FeatureBuilder) addCategorical(features map[string]float64, drug *domain.DrugRecord, suffix string) {
	values := map[string]string{
		domain.FieldPharmacodynamicClass:   drug.PharmacodynamicClass,
		domain.FieldTherapeuticIndex:       drug.TherapeuticIndex,
		domain.FieldTransporterInteraction: drug.TransporterInteraction,
		domain.FieldMetabolicPathways:      drug.MetabolicPathways,
	}

	for _, field := range domain.CategoricalFields() {
		value := values[field]
		known := fb.schema.KnownCategory(field, value)
		if !known {
			fb.logger.WithFields(logrus.Fields{
				"field": field,
				"value": value,
				"drug":  drug.Name,
			}).Debug("Folding unknown category into 'Other'")
		}

		categories := fb.schema.Vocabularies[field]
		for _, category := range categories {
			col := domain.OneHotColumn(field, suffix, category)
			switch {
			case category == domain.OtherCategory:
				features[col] = indicator(!known)
			default:
				features[col] = indicator(value == category)
			}
		}
	}
}

// assemble orders the computed values into the schema's canonical column
// order. A column with no computed value is filled with 0.0 and logged.
func (fb *FeatureBuilder) assemble(features map[string]float64) []float64 {
	vector := make([]float64, fb.schema.NumFeatures())
	for i, col := range fb.schema.Columns {
		value, ok := features[col]
		if !ok {
			fb.logger.WithField("column", col).Warn("Missing feature column, using 0")
			value = 0.0
		}
		vector[i] = value
	}
	return vector
}

func indicator(set bool) float64 {
	if set {
		return 1.0
	}
	return 0.0
}
