// Package external holds clients for external collaborators of the
// prediction core. The only collaborator today is an optional remote model
// server that performs classification out of process.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/ddi-prediction-server/internal/domain"
)

// ModelClientConfig configures the remote model server client.
type ModelClientConfig struct {
	BaseURL     string        `json:"base_url"`
	Timeout     time.Duration `json:"timeout"`
	RateLimit   int           `json:"rate_limit"`
	NumFeatures int           `json:"num_features"`
}

// predictRequest is the wire format sent to the model server.
type predictRequest struct {
	Features []float64 `json:"features"`
}

// predictResponse is the model server's reply: the winning label and the
// full probability distribution.
type predictResponse struct {
	Severity      string             `json:"severity"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// ModelClient is a domain.Classifier backed by a remote model server. Calls
// run through a circuit breaker so a failing model server sheds load fast,
// and through a rate limiter bounding the call rate. An open breaker
// surfaces as a classification error; there is no retry, matching the
// no-retry policy for deterministic inference.
type ModelClient struct {
	config  ModelClientConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewModelClient creates a remote model client.
func NewModelClient(config ModelClientConfig, logger *logrus.Logger) *ModelClient {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 50
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ModelServer",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &ModelClient{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimit),
		logger:  logger,
	}
}

// Classify sends the feature vector to the model server and parses the
// verdict.
func (m *ModelClient) Classify(ctx context.Context, features []float64) (*domain.Classification, error) {
	if m.config.NumFeatures > 0 && len(features) != m.config.NumFeatures {
		return nil, fmt.Errorf("feature vector has %d values, model expects %d: %w",
			len(features), m.config.NumFeatures, domain.ErrSchemaMismatch)
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	result, err := m.breaker.Execute(func() (interface{}, error) {
		return m.predict(ctx, features)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("model server unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("model server prediction failed: %w", err)
	}

	return result.(*domain.Classification), nil
}

// NumFeatures returns the configured feature vector length; zero when the
// server owns the contract.
func (m *ModelClient) NumFeatures() int {
	return m.config.NumFeatures
}

// BreakerState exposes the circuit breaker state for health reporting.
func (m *ModelClient) BreakerState() gobreaker.State {
	return m.breaker.State()
}

// predict performs one HTTP round trip to the model server.
func (m *ModelClient) predict(ctx context.Context, features []float64) (*domain.Classification, error) {
	body, err := json.Marshal(predictRequest{Features: features})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.BaseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model server request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model server returned status %d", resp.StatusCode)
	}

	parsed := &predictResponse{}
	if err := json.NewDecoder(resp.Body).Decode(parsed); err != nil {
		return nil, fmt.Errorf("failed to decode model server response: %w", err)
	}

	return m.toClassification(parsed)
}

// toClassification validates the wire response against the severity
// contract.
func (m *ModelClient) toClassification(parsed *predictResponse) (*domain.Classification, error) {
	severity, err := domain.ParseSeverity(parsed.Severity)
	if err != nil {
		return nil, err
	}

	probabilities := make(map[domain.Severity]float64, len(parsed.Probabilities))
	for label, p := range parsed.Probabilities {
		class, err := domain.ParseSeverity(label)
		if err != nil {
			return nil, fmt.Errorf("probability distribution: %w", err)
		}
		probabilities[class] = p
	}

	confidence, ok := probabilities[severity]
	if !ok {
		return nil, fmt.Errorf("model server response missing probability for %q", severity)
	}

	return &domain.Classification{
		Severity:      severity,
		Confidence:    confidence,
		Probabilities: probabilities,
	}, nil
}
