package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// SchemaVersion is the feature contract version the built-in schema
// implements. The column order is versioned together with the model
// artifact: a mismatch silently corrupts predictions, so the loader
// cross-checks the model's expected feature count against the schema.
const SchemaVersion = "1.0"

// Categorical field base names, in canonical order. One-hot blocks are
// emitted per field, drug A before drug B, categories in vocabulary order.
const (
	FieldPharmacodynamicClass   = "Pharmacodynamic_Class"
	FieldTherapeuticIndex       = "Therapeutic_Index"
	FieldTransporterInteraction = "Transporter_Interaction"
	FieldMetabolicPathways      = "Metabolic_Pathways"
)

// OtherCategory is the fallback bucket every categorical vocabulary ends
// with. Values outside the known set fold into it.
const OtherCategory = "Other"

// Numeric feature column names, in canonical order. Raw per-drug values
// first, then the engineered pairwise features.
var numericColumns = []string{
	"LogP_A",
	"LogP_B",
	"Plasma_Protein_Binding_A",
	"Plasma_Protein_Binding_B",
	"LogP_diff",
	"LogP_ratio",
	"Protein_Binding_diff",
	"Protein_Binding_avg",
}

// NumericRange bounds a numeric input field's nominal domain.
type NumericRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies inside the nominal domain.
func (r NumericRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// FeatureSchema is the immutable feature contract shared by the feature
// builder and the classifier: ordered column names, per-field categorical
// vocabularies and numeric domain ranges. It is initialized once at startup
// and never mutated afterward, so concurrent readers need no locking.
type FeatureSchema struct {
	Version       string                  `json:"version"`
	Columns       []string                `json:"columns"`
	Vocabularies  map[string][]string     `json:"vocabularies"`
	NumericRanges map[string]NumericRange `json:"numeric_ranges"`

	colIndex map[string]int
}

// CategoricalFields returns the categorical field base names in canonical
// order.
func CategoricalFields() []string {
	return []string{
		FieldPharmacodynamicClass,
		FieldTherapeuticIndex,
		FieldTransporterInteraction,
		FieldMetabolicPathways,
	}
}

// DefaultFeatureSchema returns the built-in v1 feature contract. The
// vocabularies mirror the categorical mappings the model was trained with;
// the trailing Other bucket in each is mandatory.
func DefaultFeatureSchema() *FeatureSchema {
	vocab := map[string][]string{
		FieldPharmacodynamicClass: {
			"Antibiotic", "Antidepressant", "Antidiabetic", "Antifungal",
			"Antihistamine", "Antimalarial", "Antipsychotic", "Corticosteroid",
			"Diuretic", "Tyrosine Kinase Inhibitor", "Immunosuppressant",
			"Beta-2 Agonist", "Antineoplastic", "Opioid Analgesic",
			"Androgen Synthesis Inhibitor", "Antiandrogen", "Antiprotozoal",
			OtherCategory,
		},
		FieldTherapeuticIndex: {
			string(NTI), string(NonNTI), OtherCategory,
		},
		FieldTransporterInteraction: {
			"No Transporter",
			"Substrate: P-gp",
			"Substrate: P-gp / Inhibitor: P-gp",
			"Substrate: P-gp / Inhibitor: P-gp;BCRP",
			"Substrate: P-gp / Inhibitor: P-gp;OATP1B1",
			"Substrate: P-gp / Inhibitor: OATP1B1",
			"Substrate: OATP1B1",
			"Substrate: OATP1B1;OATP1B3",
			"Substrate: OCT1;OCT2",
			OtherCategory,
		},
		FieldMetabolicPathways: {
			"No Metabolism",
			"Minimal Metabolism",
			"Substrate: CYP3A4",
			"Substrate: CYP2D6",
			"Substrate: CYP2D6;CYP3A4",
			"Substrate: CYP2C9;CYP2C19",
			"Substrate: CYP2C9;CYP3A4",
			"Substrate: CYP3A4 / Inhibitor: CYP3A4",
			"Substrate: CYP3A4 / Inhibitor: CYP2D6",
			"Substrate: CYP3A4 / Inducer: CYP3A4;CYP2C9",
			OtherCategory,
		},
	}

	s := &FeatureSchema{
		Version:      SchemaVersion,
		Columns:      buildColumns(vocab),
		Vocabularies: vocab,
		NumericRanges: map[string]NumericRange{
			"logp":                   {Min: -10.0, Max: 15.0},
			"plasma_protein_binding": {Min: 0.0, Max: 100.0},
		},
	}
	s.buildIndex()
	return s
}

// LoadFeatureSchema reads a feature schema from a JSON file shipped
// alongside the model artifact.
func LoadFeatureSchema(path string) (*FeatureSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feature schema: %w", err)
	}

	s := &FeatureSchema{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse feature schema: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feature schema %q: %w", path, err)
	}
	s.buildIndex()
	return s, nil
}

// buildColumns assembles the canonical column order: numeric columns first,
// then one one-hot block per categorical field per drug (A before B),
// categories in vocabulary order, columns keyed {Field}_{A|B}_{Category}.
func buildColumns(vocab map[string][]string) []string {
	columns := make([]string, 0, 64)
	columns = append(columns, numericColumns...)
	for _, field := range CategoricalFields() {
		for _, suffix := range []string{"A", "B"} {
			for _, category := range vocab[field] {
				columns = append(columns, OneHotColumn(field, suffix, category))
			}
		}
	}
	return columns
}

// OneHotColumn returns the canonical column name for one indicator.
func OneHotColumn(field, suffix, category string) string {
	return fmt.Sprintf("%s_%s_%s", field, suffix, category)
}

// Validate checks the schema's structural invariants.
func (s *FeatureSchema) Validate() error {
	if s.Version == "" {
		return fmt.Errorf("schema version is required")
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema has no columns")
	}

	seen := make(map[string]struct{}, len(s.Columns))
	for _, col := range s.Columns {
		if _, dup := seen[col]; dup {
			return fmt.Errorf("duplicate column %q", col)
		}
		seen[col] = struct{}{}
	}

	for _, field := range CategoricalFields() {
		categories, ok := s.Vocabularies[field]
		if !ok || len(categories) == 0 {
			return fmt.Errorf("missing vocabulary for field %q", field)
		}
		if categories[len(categories)-1] != OtherCategory {
			return fmt.Errorf("vocabulary for field %q must end with %q", field, OtherCategory)
		}
	}

	for _, name := range []string{"logp", "plasma_protein_binding"} {
		r, ok := s.NumericRanges[name]
		if !ok {
			return fmt.Errorf("missing numeric range for field %q", name)
		}
		if r.Min >= r.Max {
			return fmt.Errorf("numeric range for field %q is empty", name)
		}
	}

	return nil
}

// buildIndex precomputes the column name -> position lookup.
func (s *FeatureSchema) buildIndex() {
	s.colIndex = make(map[string]int, len(s.Columns))
	for i, col := range s.Columns {
		s.colIndex[col] = i
	}
}

// NumFeatures returns the fixed feature vector length.
func (s *FeatureSchema) NumFeatures() int {
	return len(s.Columns)
}

// ColumnIndex returns the fixed position of a column in the feature vector.
func (s *FeatureSchema) ColumnIndex(name string) (int, bool) {
	if s.colIndex == nil {
		s.buildIndex()
	}
	i, ok := s.colIndex[name]
	return i, ok
}

// KnownCategory reports whether value matches one of the field's named
// categories (the Other bucket excluded). Matching is exact: category
// strings are part of the trained-model contract.
func (s *FeatureSchema) KnownCategory(field, value string) bool {
	categories := s.Vocabularies[field]
	for _, c := range categories[:len(categories)-1] {
		if value == c {
			return true
		}
	}
	return false
}

// RecognizedClasses returns the named pharmacodynamic classes, for
// validator warnings.
func (s *FeatureSchema) RecognizedClasses() []string {
	categories := s.Vocabularies[FieldPharmacodynamicClass]
	return categories[:len(categories)-1]
}

// NumericRange returns the nominal domain for a numeric input field.
func (s *FeatureSchema) NumericRange(field string) (NumericRange, bool) {
	r, ok := s.NumericRanges[strings.ToLower(field)]
	return r, ok
}
