package domain

// Stage is one ordered unit of content processing.
type Stage string

const (
	StageTranscription       Stage = "transcription"
	StageVectorization       Stage = "vectorization"
	StageSummarization       Stage = "summarization"
	StageFlashcardGeneration Stage = "flashcard_generation"
	StageQuizGeneration      Stage = "quiz_generation"
)

// StageOrder is the fixed pipeline order. A later stage never starts
// before every earlier stage is completed.
var StageOrder = []Stage{
	StageTranscription,
	StageVectorization,
	StageSummarization,
	StageFlashcardGeneration,
	StageQuizGeneration,
}

// Valid reports whether s names a known pipeline stage.
func (s Stage) Valid() bool {
	for _, known := range StageOrder {
		if s == known {
			return true
		}
	}
	return false
}

// StageState is the processing state of a single stage.
type StageState string

const (
	StagePending    StageState = "pending"
	StageProcessing StageState = "processing"
	StageCompleted  StageState = "completed"
	StageFailed     StageState = "failed"
	StagePaused     StageState = "paused"
)

// ErrorKind categorizes why a stage failed or paused.
type ErrorKind string

const (
	ErrorKindRetryable     ErrorKind = "retryable"
	ErrorKindNeedsFallback ErrorKind = "needs_fallback"
	ErrorKindQuota         ErrorKind = "quota_exceeded"
	ErrorKindFatal         ErrorKind = "fatal"
)
