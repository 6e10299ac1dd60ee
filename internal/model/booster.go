// Package model implements in-process inference for the pre-trained
// gradient-boosted tree classifier. The model ships as a JSON artifact of
// per-class regression trees exported from the training pipeline; scoring
// sums each class's leaf values and applies softmax over the class margins.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ddi-prediction-server/internal/domain"
)

// Artifact is the on-disk model format, versioned together with the
// feature schema it was trained against.
type Artifact struct {
	Version       string   `json:"version"`
	SchemaVersion string   `json:"schema_version"`
	Classes       []string `json:"classes"`
	NumFeatures   int      `json:"num_features"`
	BaseScore     float64  `json:"base_score"`
	Trees         []Tree   `json:"trees"`
}

// Tree is one regression tree contributing to one output class.
type Tree struct {
	Class int    `json:"class"`
	Nodes []Node `json:"nodes"`
}

// Node is one tree node. Internal nodes route on feature < threshold;
// leaves carry the margin contribution.
type Node struct {
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Leaf      float64 `json:"leaf,omitempty"`
	IsLeaf    bool    `json:"is_leaf"`
}

// Booster is the loaded classifier. Immutable after load, safe for
// concurrent use without locking.
type Booster struct {
	logger      *logrus.Logger
	classes     []domain.Severity
	numFeatures int
	baseScore   float64
	trees       []Tree
}

// Load reads a model artifact from disk and cross-checks it against the
// feature schema. A feature-count mismatch would silently corrupt
// predictions, so it is rejected at load time.
func Load(path string, schema *domain.FeatureSchema, logger *logrus.Logger) (*Booster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	artifact := &Artifact{}
	if err := json.Unmarshal(data, artifact); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact: %w", err)
	}

	booster, err := New(artifact, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid model artifact %q: %w", path, err)
	}

	if artifact.NumFeatures != schema.NumFeatures() {
		return nil, fmt.Errorf("model expects %d features, schema %q has %d: %w",
			artifact.NumFeatures, schema.Version, schema.NumFeatures(), domain.ErrSchemaMismatch)
	}
	if artifact.SchemaVersion != "" && artifact.SchemaVersion != schema.Version {
		return nil, fmt.Errorf("model trained against schema %q, loaded schema is %q: %w",
			artifact.SchemaVersion, schema.Version, domain.ErrSchemaMismatch)
	}

	logger.WithFields(logrus.Fields{
		"artifact":     path,
		"version":      artifact.Version,
		"classes":      artifact.Classes,
		"num_features": artifact.NumFeatures,
		"trees":        len(artifact.Trees),
	}).Info("Model loaded")

	return booster, nil
}

// New builds a Booster from a parsed artifact.
func New(artifact *Artifact, logger *logrus.Logger) (*Booster, error) {
	if len(artifact.Classes) == 0 {
		return nil, fmt.Errorf("artifact declares no classes")
	}
	if artifact.NumFeatures <= 0 {
		return nil, fmt.Errorf("artifact declares no features")
	}
	if len(artifact.Trees) == 0 {
		return nil, fmt.Errorf("artifact contains no trees")
	}

	classes := make([]domain.Severity, len(artifact.Classes))
	for i, label := range artifact.Classes {
		severity, err := domain.ParseSeverity(label)
		if err != nil {
			return nil, fmt.Errorf("artifact class %d: %w", i, err)
		}
		classes[i] = severity
	}

	for i, tree := range artifact.Trees {
		if tree.Class < 0 || tree.Class >= len(classes) {
			return nil, fmt.Errorf("tree %d targets unknown class %d", i, tree.Class)
		}
		if err := validateTree(&tree, artifact.NumFeatures); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}

	return &Booster{
		logger:      logger,
		classes:     classes,
		numFeatures: artifact.NumFeatures,
		baseScore:   artifact.BaseScore,
		trees:       artifact.Trees,
	}, nil
}

// validateTree checks node references so traversal can never step out of
// bounds at inference time.
func validateTree(tree *Tree, numFeatures int) error {
	if len(tree.Nodes) == 0 {
		return fmt.Errorf("empty node list")
	}
	for i, node := range tree.Nodes {
		if node.IsLeaf {
			continue
		}
		if node.Feature < 0 || node.Feature >= numFeatures {
			return fmt.Errorf("node %d references feature %d out of range", i, node.Feature)
		}
		if node.Left < 0 || node.Left >= len(tree.Nodes) || node.Right < 0 || node.Right >= len(tree.Nodes) {
			return fmt.Errorf("node %d has child index out of range", i)
		}
		if node.Left == i || node.Right == i {
			return fmt.Errorf("node %d references itself", i)
		}
	}
	return nil
}

// NumFeatures returns the feature vector length the model expects.
func (b *Booster) NumFeatures() int {
	return b.numFeatures
}

// Classes returns the model's output classes in artifact order.
func (b *Booster) Classes() []domain.Severity {
	return b.classes
}

// Classify scores one feature vector: per-class margins from the trees,
// softmax into a probability distribution, argmax as the winning label.
// Inference is deterministic; identical vectors produce identical results.
func (b *Booster) Classify(ctx context.Context, features []float64) (*domain.Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(features) != b.numFeatures {
		return nil, fmt.Errorf("feature vector has %d values, model expects %d: %w",
			len(features), b.numFeatures, domain.ErrSchemaMismatch)
	}

	margins := make([]float64, len(b.classes))
	for i := range margins {
		margins[i] = b.baseScore
	}
	for _, tree := range b.trees {
		margins[tree.Class] += traverse(&tree, features)
	}

	probs := softmax(margins)

	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}

	distribution := make(map[domain.Severity]float64, len(b.classes))
	for i, class := range b.classes {
		distribution[class] = probs[i]
	}

	return &domain.Classification{
		Severity:      b.classes[best],
		Confidence:    probs[best],
		Probabilities: distribution,
	}, nil
}

// traverse walks one tree to its leaf for the given feature vector.
func traverse(tree *Tree, features []float64) float64 {
	idx := 0
	for !tree.Nodes[idx].IsLeaf {
		node := &tree.Nodes[idx]
		if features[node.Feature] < node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
	return tree.Nodes[idx].Leaf
}

// softmax converts class margins into probabilities, shifted by the max
// margin for numeric stability.
func softmax(margins []float64) []float64 {
	max := margins[0]
	for _, m := range margins[1:] {
		if m > max {
			max = m
		}
	}

	probs := make([]float64, len(margins))
	var sum float64
	for i, m := range margins {
		probs[i] = math.Exp(m - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
