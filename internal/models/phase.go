// Package models defines data structures for the pharmsync import pipeline.
package models

import "fmt"

// Phase identifies one stage of the import pipeline.
type Phase string

const (
	PhasePlanning  Phase = "planning"
	PhaseHashing   Phase = "hashing"
	PhaseUploading Phase = "uploading"
	PhaseImporting Phase = "importing"
)

// Phases lists all pipeline phases in execution order.
var Phases = []Phase{PhasePlanning, PhaseHashing, PhaseUploading, PhaseImporting}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown tags are an
// error so a corrupted checkpoint fails loudly instead of silently
// defaulting a phase.
func (p *Phase) UnmarshalText(text []byte) error {
	s := Phase(text)
	switch s {
	case PhasePlanning, PhaseHashing, PhaseUploading, PhaseImporting:
		*p = s
		return nil
	}
	return fmt.Errorf("unknown phase %q", string(text))
}

// PhaseState is the lifecycle status of a single phase.
type PhaseState string

const (
	PhasePending   PhaseState = "pending"
	PhaseRunning   PhaseState = "running"
	PhaseCompleted PhaseState = "completed"
	PhaseFailed    PhaseState = "failed"
)

// MarshalText implements encoding.TextMarshaler.
func (s PhaseState) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *PhaseState) UnmarshalText(text []byte) error {
	v := PhaseState(text)
	switch v {
	case PhasePending, PhaseRunning, PhaseCompleted, PhaseFailed:
		*s = v
		return nil
	}
	return fmt.Errorf("unknown phase state %q", string(text))
}

// ItemStatus is the processing status of a single work item.
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemCompleted ItemStatus = "completed"
	ItemFailed    ItemStatus = "failed"
	ItemSkipped   ItemStatus = "skipped"
)

// MarshalText implements encoding.TextMarshaler.
func (s ItemStatus) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ItemStatus) UnmarshalText(text []byte) error {
	v := ItemStatus(text)
	switch v {
	case ItemPending, ItemCompleted, ItemFailed, ItemSkipped:
		*s = v
		return nil
	}
	return fmt.Errorf("unknown item status %q", string(text))
}
