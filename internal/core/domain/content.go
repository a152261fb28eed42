package domain

import "time"

// ContentStatus is the overall processing status of a content item,
// derived from its five stage statuses.
type ContentStatus string

const (
	ContentPending    ContentStatus = "pending"
	ContentProcessing ContentStatus = "processing"
	ContentCompleted  ContentStatus = "completed"
	ContentFailed     ContentStatus = "failed"
	ContentPaused     ContentStatus = "paused"
)

// StageStatus tracks the state of a single pipeline stage.
type StageStatus struct {
	State       StageState `json:"state"`
	Progress    int        `json:"progress"` // 0-100, meaningful only while processing
	Error       string     `json:"error,omitempty"`
	ErrorKind   ErrorKind  `json:"error_kind,omitempty"`
	RetryCount  int        `json:"retry_count"`
	PauseReason string     `json:"pause_reason,omitempty"`
	QuotaInfo   *QuotaInfo `json:"quota_info,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ContentProcessingState owns the five stage statuses of one content item.
// It is created at upload time with every stage pending and mutated only by
// the pipeline and the recovery scheduler.
type ContentProcessingState struct {
	ContentID string                 `json:"content_id"`
	UserID    string                 `json:"user_id"`
	Stages    map[Stage]*StageStatus `json:"stages"`
	Status    ContentStatus          `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	DeletedAt *time.Time             `json:"deleted_at,omitempty"`
}

// NewContentProcessingState creates a fresh processing state with all
// stages pending.
func NewContentProcessingState(contentID, userID string) *ContentProcessingState {
	stages := make(map[Stage]*StageStatus, len(StageOrder))
	for _, s := range StageOrder {
		stages[s] = &StageStatus{State: StagePending}
	}
	now := time.Now().UTC()
	return &ContentProcessingState{
		ContentID: contentID,
		UserID:    userID,
		Stages:    stages,
		Status:    ContentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// StageStatusFor returns the status for a stage, creating a pending entry
// if the stored state predates the stage.
func (c *ContentProcessingState) StageStatusFor(stage Stage) *StageStatus {
	if c.Stages == nil {
		c.Stages = make(map[Stage]*StageStatus, len(StageOrder))
	}
	st, ok := c.Stages[stage]
	if !ok {
		st = &StageStatus{State: StagePending}
		c.Stages[stage] = st
	}
	return st
}

// FirstIncomplete returns the first stage in pipeline order that is not
// completed, or false when all five stages are done.
func (c *ContentProcessingState) FirstIncomplete() (Stage, bool) {
	for _, s := range StageOrder {
		if c.StageStatusFor(s).State != StageCompleted {
			return s, true
		}
	}
	return "", false
}

// FirstResumable returns the first paused or failed stage in pipeline order.
func (c *ContentProcessingState) FirstResumable() (Stage, bool) {
	for _, s := range StageOrder {
		state := c.StageStatusFor(s).State
		if state == StagePaused || state == StageFailed {
			return s, true
		}
	}
	return "", false
}

// PausedQuotaInfo returns the quota info of the first quota-paused stage.
func (c *ContentProcessingState) PausedQuotaInfo() *QuotaInfo {
	for _, s := range StageOrder {
		st := c.StageStatusFor(s)
		if st.State == StagePaused && st.QuotaInfo != nil {
			return st.QuotaInfo
		}
	}
	return nil
}

// DeriveStatus computes the overall content status from the stage statuses.
// Worst state wins: paused > failed > processing > completed.
func DeriveStatus(stages map[Stage]*StageStatus) ContentStatus {
	var anyPaused, anyFailed, anyCompleted, anyIncomplete bool
	for _, s := range StageOrder {
		st, ok := stages[s]
		if !ok {
			anyIncomplete = true
			continue
		}
		switch st.State {
		case StagePaused:
			anyPaused = true
		case StageFailed:
			anyFailed = true
		case StageCompleted:
			anyCompleted = true
		default:
			anyIncomplete = true
		}
	}

	switch {
	case anyPaused:
		return ContentPaused
	case anyFailed:
		return ContentFailed
	case !anyIncomplete:
		return ContentCompleted
	case anyCompleted:
		return ContentProcessing
	default:
		return ContentPending
	}
}

// Refresh recomputes the derived overall status.
func (c *ContentProcessingState) Refresh() {
	c.Status = DeriveStatus(c.Stages)
	c.UpdatedAt = time.Now().UTC()
}
