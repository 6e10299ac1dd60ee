package external

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddi-prediction-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestClient(baseURL string) *ModelClient {
	return NewModelClient(ModelClientConfig{
		BaseURL:     baseURL,
		Timeout:     2 * time.Second,
		RateLimit:   100,
		NumFeatures: 4,
	}, testLogger())
}

func TestModelClient_Classify(t *testing.T) {
	var received predictRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		json.NewEncoder(w).Encode(predictResponse{
			Severity: "Major",
			Probabilities: map[string]float64{
				"Major":    0.82,
				"Moderate": 0.13,
				"Minor":    0.05,
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Classify(context.Background(), []float64{1, 2, 3, 4})

	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, received.Features)
	assert.Equal(t, domain.MAJOR, result.Severity)
	assert.Equal(t, 0.82, result.Confidence)
	assert.Len(t, result.Probabilities, 3)
}

func TestModelClient_RejectsWrongVectorLength(t *testing.T) {
	client := newTestClient("http://localhost:1")

	_, err := client.Classify(context.Background(), []float64{1.0})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSchemaMismatch))
}

func TestModelClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Classify(context.Background(), []float64{1, 2, 3, 4})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestModelClient_InvalidSeverityLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(predictResponse{
			Severity:      "Catastrophic",
			Probabilities: map[string]float64{"Catastrophic": 0.9},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Classify(context.Background(), []float64{1, 2, 3, 4})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidSeverity))
}

func TestModelClient_MissingWinningProbability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(predictResponse{
			Severity:      "Major",
			Probabilities: map[string]float64{"Minor": 0.9},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Classify(context.Background(), []float64{1, 2, 3, 4})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing probability")
}

func TestModelClient_CircuitBreakerOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	// Trip the breaker: it opens after 3 requests at a >=60% failure rate.
	for i := 0; i < 3; i++ {
		_, err := client.Classify(context.Background(), []float64{1, 2, 3, 4})
		require.Error(t, err)
	}

	assert.Equal(t, gobreakerOpen, client.BreakerState().String())

	_, err := client.Classify(context.Background(), []float64{1, 2, 3, 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
}

// gobreaker's State.String for the open state.
const gobreakerOpen = "open"
