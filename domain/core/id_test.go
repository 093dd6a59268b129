package core

import (
	"errors"
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}
}

func TestParseRunID(t *testing.T) {
	id := NewRunID()
	parsed, err := ParseRunID(id.String())
	if err != nil {
		t.Fatalf("ParseRunID(%q) failed: %v", id, err)
	}
	if parsed != id {
		t.Errorf("Expected %s, got %s", id, parsed)
	}

	if _, err := ParseRunID("not-a-uuid"); err == nil {
		t.Error("Expected error for malformed run id")
	}
}

func TestErrorClassification(t *testing.T) {
	rangeErr := NewRangeError("individual_variation_level", 1.5, 0, 1)
	if !errors.Is(rangeErr, ErrInvalidParameterRange) || !IsParameterError(rangeErr) {
		t.Errorf("Expected range error to classify as parameter error: %v", rangeErr)
	}
	if IsSamplingError(rangeErr) {
		t.Error("Range error must not classify as sampling error")
	}

	implausible := NewImplausibleError(10, 0.5, 900)
	if !IsSamplingError(implausible) {
		t.Errorf("Expected implausible error to classify as sampling error: %v", implausible)
	}

	missing := NewMissingDataError("sigma_fit_draws")
	if !errors.Is(missing, ErrMissingEmpiricalData) {
		t.Errorf("Expected missing data error, got %v", missing)
	}
}
