package errors

import (
	"fmt"
	"sync"
	"testing"
)

func TestFastPathNoReporting(t *testing.T) {
	t.Parallel()

	// Create an error with no reporter installed - should use fast path
	err := fmt.Errorf("test error")
	ee := New(err).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}

	if ee.GetComponent() != ComponentUnknown {
		t.Errorf("Expected component 'unknown' in fast path, got '%s'", ee.GetComponent())
	}

	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic' in fast path, got '%s'", ee.Category)
	}
}

func TestBuilderMetadata(t *testing.T) {
	t.Parallel()

	ee := Newf("contact %s rejected", "client_42").
		Category(CategoryValidation).
		Component("mapper").
		Context("external_id", "client_42").
		Build()

	if ee.GetComponent() != "mapper" {
		t.Errorf("Expected component 'mapper', got '%s'", ee.GetComponent())
	}
	if ee.Category != CategoryValidation {
		t.Errorf("Expected category 'validation', got '%s'", ee.Category)
	}
	ctx := ee.GetContext()
	if ctx["external_id"] != "client_42" {
		t.Errorf("Expected context external_id 'client_42', got '%v'", ctx["external_id"])
	}
}

func TestIsCategory(t *testing.T) {
	t.Parallel()

	notFound := Newf("contact gone").Category(CategoryNotFound).Build()
	wrapped := fmt.Errorf("lookup failed: %w", notFound)

	if !IsNotFound(wrapped) {
		t.Error("Expected wrapped not-found error to match IsNotFound")
	}
	if IsRateLimit(wrapped) {
		t.Error("Did not expect wrapped not-found error to match IsRateLimit")
	}
}

type recordingReporter struct {
	mu   sync.Mutex
	seen []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, ee)
}

func TestReporterReceivesBuiltErrors(t *testing.T) {
	rep := &recordingReporter{}
	SetReporter(rep)
	defer SetReporter(nil)

	ee := Newf("quota exhausted").Category(CategoryRateLimit).Component("provider").Build()

	rep.mu.Lock()
	defer rep.mu.Unlock()
	if len(rep.seen) != 1 {
		t.Fatalf("Expected 1 reported error, got %d", len(rep.seen))
	}
	if rep.seen[0] != ee {
		t.Error("Reporter received a different error instance")
	}
	if !ee.IsReported() {
		t.Error("Expected error to be marked reported")
	}
}

func TestCategoryDetectionHeuristics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg  string
		want ErrorCategory
	}{
		{"rate limit exceeded for /contacts", CategoryRateLimit},
		{"contact not found", CategoryNotFound},
		{"connection refused", CategoryNetwork},
		{"invalid phone number", CategoryValidation},
		{"sql: database is locked", CategoryDatabase},
		{"something odd happened", CategoryGeneric},
	}

	for _, tt := range tests {
		if got := detectCategory(fmt.Errorf("%s", tt.msg)); got != tt.want {
			t.Errorf("detectCategory(%q) = %s, want %s", tt.msg, got, tt.want)
		}
	}
}
