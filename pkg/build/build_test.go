package build

import (
	"testing"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func buildWithPhase(phase string) *Build {
	return New(&unstructured.Unstructured{Object: map[string]any{
		"metadata": map[string]any{"name": "osbs-1"},
		"status":   map[string]any{"phase": phase},
	}})
}

func TestPhaseSetContains(t *testing.T) {
	s := NewPhaseSet("Complete", "FAILED")

	for _, phase := range []string{"complete", "Complete", "COMPLETE", "failed"} {
		if !s.Contains(phase) {
			t.Errorf("expected set to contain %q", phase)
		}
	}
	if s.Contains("running") {
		t.Error("set should not contain running")
	}
}

func TestPhaseSetUnion(t *testing.T) {
	u := FinishedPhases().Union(RunningPhases())

	for _, phase := range []string{PhaseComplete, PhaseFailed, PhaseError, PhaseCancelled, PhaseRunning} {
		if !u.Contains(phase) {
			t.Errorf("expected union to contain %q", phase)
		}
	}
	if u.Contains(PhasePending) {
		t.Error("union should not contain pending")
	}
}

func TestBuildPhasePredicates(t *testing.T) {
	cases := []struct {
		phase      string
		finished   bool
		succeeded  bool
		failed     bool
		pending    bool
		inProgress bool
	}{
		{"New", false, false, false, true, true},
		{"Pending", false, false, false, true, true},
		{"Running", false, false, false, false, true},
		{"Complete", true, true, false, false, false},
		{"Failed", true, false, true, false, false},
		{"Error", true, false, true, false, false},
		{"Cancelled", true, false, true, false, false},
	}

	for _, tc := range cases {
		b := buildWithPhase(tc.phase)
		if got := b.IsFinished(); got != tc.finished {
			t.Errorf("%s: IsFinished=%v, want %v", tc.phase, got, tc.finished)
		}
		if got := b.IsSucceeded(); got != tc.succeeded {
			t.Errorf("%s: IsSucceeded=%v, want %v", tc.phase, got, tc.succeeded)
		}
		if got := b.IsFailed(); got != tc.failed {
			t.Errorf("%s: IsFailed=%v, want %v", tc.phase, got, tc.failed)
		}
		if got := b.IsPending(); got != tc.pending {
			t.Errorf("%s: IsPending=%v, want %v", tc.phase, got, tc.pending)
		}
		if got := b.IsInProgress(); got != tc.inProgress {
			t.Errorf("%s: IsInProgress=%v, want %v", tc.phase, got, tc.inProgress)
		}
	}
}

func TestBuildAccessors(t *testing.T) {
	b := buildWithPhase("Running")

	if b.Name() != "osbs-1" {
		t.Errorf("got name %q", b.Name())
	}
	if b.Phase() != "Running" {
		t.Errorf("got phase %q", b.Phase())
	}
	if b.IsCancelled() {
		t.Error("build should not be cancelled")
	}
}

func TestSetCancelled(t *testing.T) {
	b := buildWithPhase("Running")
	if err := b.SetCancelled(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelled, found, _ := unstructured.NestedBool(b.Object().Object, "status", "cancelled")
	if !found || !cancelled {
		t.Error("status.cancelled not set")
	}
}
