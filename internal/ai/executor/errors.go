package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/studyflow/processor/internal/ai/catalog"
	"github.com/studyflow/processor/internal/core/domain"
)

// QuotaPauseError signals that a periodic quota was hit. The pipeline
// turns it into a paused stage instead of a failure.
type QuotaPauseError struct {
	Task  catalog.TaskType
	Model string
	Info  *domain.QuotaInfo
	Err   error
}

func (e *QuotaPauseError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("quota exceeded on model %s: %v", e.Model, e.Err)
	}
	return fmt.Sprintf("quota exceeded: %v", e.Err)
}

func (e *QuotaPauseError) Unwrap() error { return e.Err }

// ExhaustedError is raised once every model in the fallback chain has
// been tried. It names everything needed to explain the failure.
type ExhaustedError struct {
	Task            catalog.TaskType
	ModelsAttempted []string
	Attempts        int
	Elapsed         time.Duration
	LastErr         error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf(
		"all models failed for %s (tried %s, %d attempts over %s): %v",
		e.Task,
		strings.Join(e.ModelsAttempted, ", "),
		e.Attempts,
		e.Elapsed.Round(time.Millisecond),
		e.LastErr,
	)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }
