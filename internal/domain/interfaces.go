package domain

import "context"

// Classification is the opaque classifier's verdict for one feature vector:
// the winning severity label and the full probability distribution over all
// severity classes.
type Classification struct {
	Severity      Severity
	Confidence    float64
	Probabilities map[Severity]float64
}

// Classifier is the call contract to the trained model. The core treats the
// model as an opaque function over a fixed-order feature vector; it does not
// know or care whether inference runs in-process or against a remote model
// server. Implementations must be safe for concurrent use.
type Classifier interface {
	// Classify scores one feature vector. The vector must follow the
	// feature schema the model was loaded with.
	Classify(ctx context.Context, features []float64) (*Classification, error)

	// NumFeatures returns the feature vector length the model expects.
	NumFeatures() int
}

// ConfigManager provides access to application configuration
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetModelConfig() *ModelConfig
	Validate() error
}
