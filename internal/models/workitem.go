package models

import (
	"slices"
	"time"
)

// WorkItem tracks one input file pair (result JSON plus optional screenshot)
// through every phase of the pipeline.
type WorkItem struct {
	WorkID   string `json:"work_id"`
	DedupKey string `json:"dedup_key"`

	JSONPath  string `json:"json_path"`
	ImagePath string `json:"image_path,omitempty"`
	HasImage  bool   `json:"has_image"`

	PharmacyName    string     `json:"pharmacy_name"`
	State           string     `json:"state"`
	SearchTimestamp *time.Time `json:"search_timestamp,omitempty"`

	SizeBytes   int64   `json:"size_bytes"`
	Fingerprint *string `json:"fingerprint,omitempty"`
	AssetExists *bool   `json:"asset_exists,omitempty"`

	Status        ItemStatus `json:"status"`
	RetryCount    int        `json:"retry_count"`
	LastError     *string    `json:"last_error,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

// MarkFailed records a failure on the item.
func (w *WorkItem) MarkFailed(err error) {
	now := time.Now().UTC()
	msg := err.Error()
	w.Status = ItemFailed
	w.LastError = &msg
	w.LastAttemptAt = &now
}

// PhaseStatus records progress and outcome of one pipeline phase.
type PhaseStatus struct {
	Status          PhaseState `json:"status"`
	Processed       int        `json:"processed"`
	Completed       int        `json:"completed"`
	Failed          int        `json:"failed"`
	Skipped         int        `json:"skipped"`
	DurationSeconds float64    `json:"duration_seconds"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// WorkState is the whole-pipeline snapshot. It is created once by the
// planner, mutated in place by every later phase, and persisted wholesale
// to the checkpoint file after each phase.
type WorkState struct {
	RunID      string `json:"run_id"`
	DatasetID  int64  `json:"dataset_id"`
	DatasetTag string `json:"dataset_tag"`

	TotalFiles  int `json:"total_files"`
	TotalImages int `json:"total_images"`

	Items []*WorkItem `json:"items"`

	Phases       map[Phase]*PhaseStatus `json:"phases"`
	CurrentPhase Phase                  `json:"current_phase"`

	FailedItemIDs    []string `json:"failed_item_ids"`
	CompletedItemIDs []string `json:"completed_item_ids"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWorkState creates an empty state with every phase pending.
func NewWorkState(runID, tag string, datasetID int64) *WorkState {
	phases := make(map[Phase]*PhaseStatus, len(Phases))
	for _, p := range Phases {
		phases[p] = &PhaseStatus{Status: PhasePending}
	}
	now := time.Now().UTC()
	return &WorkState{
		RunID:        runID,
		DatasetID:    datasetID,
		DatasetTag:   tag,
		Phases:       phases,
		CurrentPhase: PhasePlanning,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Phase returns the status record for p, creating it if the checkpoint
// predates the phase.
func (s *WorkState) Phase(p Phase) *PhaseStatus {
	if s.Phases == nil {
		s.Phases = make(map[Phase]*PhaseStatus)
	}
	ps, ok := s.Phases[p]
	if !ok {
		ps = &PhaseStatus{Status: PhasePending}
		s.Phases[p] = ps
	}
	return ps
}

// FirstIncompletePhase returns the earliest phase whose recorded status is
// not completed. Resume re-enters the pipeline here rather than trusting
// the CurrentPhase marker alone.
func (s *WorkState) FirstIncompletePhase() (Phase, bool) {
	for _, p := range Phases {
		if s.Phase(p).Status != PhaseCompleted {
			return p, true
		}
	}
	return "", false
}

// RecordOutcome appends the item to the failed or completed id list,
// keeping the quick-inspection lists in sync with item status.
func (s *WorkState) RecordOutcome(item *WorkItem) {
	switch item.Status {
	case ItemFailed:
		if !slices.Contains(s.FailedItemIDs, item.WorkID) {
			s.FailedItemIDs = append(s.FailedItemIDs, item.WorkID)
		}
	case ItemCompleted:
		if !slices.Contains(s.CompletedItemIDs, item.WorkID) {
			s.CompletedItemIDs = append(s.CompletedItemIDs, item.WorkID)
		}
	}
}

// SortItems orders work items ascending by search timestamp, items without
// a timestamp first. Import ordering biases conflict resolution toward
// deterministic replay.
func (s *WorkState) SortItems() {
	slices.SortStableFunc(s.Items, func(a, b *WorkItem) int {
		switch {
		case a.SearchTimestamp == nil && b.SearchTimestamp == nil:
			return 0
		case a.SearchTimestamp == nil:
			return -1
		case b.SearchTimestamp == nil:
			return 1
		}
		return a.SearchTimestamp.Compare(*b.SearchTimestamp)
	})
}
