package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAPIError(t *testing.T) {
	err := NewAPIError(ErrValidation, "Input validation failed", "req-123",
		"Drug 1: Missing required field 'logp'")

	if err.Code != ErrValidation {
		t.Errorf("Code = %s, expected %s", err.Code, ErrValidation)
	}
	if err.Timestamp.IsZero() {
		t.Error("Timestamp must be set")
	}
	if !strings.Contains(err.Error(), "VALIDATION_ERROR") {
		t.Errorf("Error() = %q, expected code prefix", err.Error())
	}

	data, jsonErr := json.Marshal(err)
	if jsonErr != nil {
		t.Fatalf("Failed to marshal APIError: %v", jsonErr)
	}
	if !strings.Contains(string(data), `"request_id":"req-123"`) {
		t.Errorf("Marshaled error missing request_id: %s", data)
	}
}

func TestAPIErrorOmitsEmptyFields(t *testing.T) {
	err := NewAPIError(ErrInternalServer, "boom", "")
	data, jsonErr := json.Marshal(err)
	if jsonErr != nil {
		t.Fatalf("Failed to marshal APIError: %v", jsonErr)
	}
	if strings.Contains(string(data), "request_id") {
		t.Errorf("Empty request_id must be omitted: %s", data)
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError(0, "logp", "must be a valid number", "abc")

	if !strings.Contains(err.Error(), "drug 1") {
		t.Errorf("Error() must be 1-indexed for humans: %q", err.Error())
	}
	if !strings.Contains(err.Error(), "logp") {
		t.Errorf("Error() must name the field: %q", err.Error())
	}
}
