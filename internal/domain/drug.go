package domain

import (
	"fmt"
	"strings"
)

// DrugRecord holds one drug's static characteristics used for interaction
// prediction. All fields are required; records reach this typed form only
// after passing batch validation, so downstream components do not re-check.
type DrugRecord struct {
	// Name identifies the drug in reports only; it contributes no features.
	Name string `json:"drug_name"`

	PharmacodynamicClass string `json:"pharmacodynamic_class"`

	// LogP is the lipophilicity value, nominal domain [-10, 15].
	LogP float64 `json:"logp"`

	TherapeuticIndex string `json:"therapeutic_index"`

	TransporterInteraction string `json:"transporter_interaction"`

	// PlasmaProteinBinding is a percentage, nominal domain [0, 100].
	PlasmaProteinBinding float64 `json:"plasma_protein_binding"`

	MetabolicPathways string `json:"metabolic_pathways"`
}

// NormalizedName returns the case-folded, trimmed name used for duplicate
// detection.
func (d *DrugRecord) NormalizedName() string {
	return strings.ToLower(strings.TrimSpace(d.Name))
}

// DrugPair is an unordered combination of two drug records identified by
// their original positional indices in the input batch. Pairs are produced
// by the orchestrator and are never persisted.
type DrugPair struct {
	IndexA int
	IndexB int
	DrugA  *DrugRecord
	DrugB  *DrugRecord
}

// Key returns a stable identifier for the pair, for logging.
func (p *DrugPair) Key() string {
	return fmt.Sprintf("%d:%d", p.IndexA, p.IndexB)
}

// EnumeratePairs returns all C(N,2) unordered index pairs over the records,
// preserving original input order for the indices.
func EnumeratePairs(records []DrugRecord) []DrugPair {
	n := len(records)
	if n < 2 {
		return nil
	}
	pairs := make([]DrugPair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, DrugPair{
				IndexA: i,
				IndexB: j,
				DrugA:  &records[i],
				DrugB:  &records[j],
			})
		}
	}
	return pairs
}
