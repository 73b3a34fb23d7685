// Package build holds the build phase vocabulary and a thin accessor
// over the raw build document.
package build

import (
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Build phases, compared case-insensitively.
const (
	PhaseNew       = "new"
	PhasePending   = "pending"
	PhaseRunning   = "running"
	PhaseComplete  = "complete"
	PhaseFailed    = "failed"
	PhaseError     = "error"
	PhaseCancelled = "cancelled"
)

// PhaseSet is a set of accepted phases, keyed lowercase.
type PhaseSet map[string]bool

// NewPhaseSet builds a set from the given phases, lowercasing each.
func NewPhaseSet(phases ...string) PhaseSet {
	s := make(PhaseSet, len(phases))
	for _, p := range phases {
		s[strings.ToLower(p)] = true
	}
	return s
}

// Contains reports whether phase is in the set, ignoring case.
func (s PhaseSet) Contains(phase string) bool {
	return s[strings.ToLower(phase)]
}

// Union returns a new set holding the phases of both sets.
func (s PhaseSet) Union(other PhaseSet) PhaseSet {
	u := make(PhaseSet, len(s)+len(other))
	for p := range s {
		u[p] = true
	}
	for p := range other {
		u[p] = true
	}
	return u
}

// FinishedPhases are the terminal build phases: no further phase
// changes will happen and no image will appear later.
func FinishedPhases() PhaseSet {
	return NewPhaseSet(PhaseFailed, PhaseComplete, PhaseError, PhaseCancelled)
}

// FailedPhases are the terminal phases that produced no image.
func FailedPhases() PhaseSet {
	return NewPhaseSet(PhaseFailed, PhaseError, PhaseCancelled)
}

// RunningPhases contains the single in-progress phase.
func RunningPhases() PhaseSet {
	return NewPhaseSet(PhaseRunning)
}

// PendingPhases are the phases before the build has been scheduled.
func PendingPhases() PhaseSet {
	return NewPhaseSet(PhasePending, PhaseNew)
}

// Build wraps a raw build document.
type Build struct {
	obj *unstructured.Unstructured
}

func New(obj *unstructured.Unstructured) *Build {
	return &Build{obj: obj}
}

// Object returns the underlying document.
func (b *Build) Object() *unstructured.Unstructured {
	return b.obj
}

// Name returns metadata.name, or the empty string when absent.
func (b *Build) Name() string {
	name, _, _ := unstructured.NestedString(b.obj.Object, "metadata", "name")
	return name
}

// Phase returns status.phase as reported by the server.
func (b *Build) Phase() string {
	phase, _, _ := unstructured.NestedString(b.obj.Object, "status", "phase")
	return phase
}

func (b *Build) IsFinished() bool {
	return FinishedPhases().Contains(b.Phase())
}

func (b *Build) IsSucceeded() bool {
	return strings.EqualFold(b.Phase(), PhaseComplete)
}

func (b *Build) IsFailed() bool {
	return FailedPhases().Contains(b.Phase())
}

func (b *Build) IsCancelled() bool {
	return strings.EqualFold(b.Phase(), PhaseCancelled)
}

func (b *Build) IsPending() bool {
	return PendingPhases().Contains(b.Phase())
}

func (b *Build) IsInProgress() bool {
	return !b.IsFinished()
}

// SetCancelled marks the build for cancellation; the updated document
// is then PUT back to the server.
func (b *Build) SetCancelled() error {
	return unstructured.SetNestedField(b.obj.Object, true, "status", "cancelled")
}
