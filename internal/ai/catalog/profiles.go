package catalog

// TaskType identifies a category of AI work with its own model preference.
type TaskType string

const (
	TaskQuickSummary        TaskType = "quick-summary"
	TaskDeepSummary         TaskType = "deep-summary"
	TaskFlashcardGeneration TaskType = "flashcard-generation"
	TaskQuizGeneration      TaskType = "quiz-generation"
	TaskStreamingQA         TaskType = "streaming-qa"
	TaskEmbedding           TaskType = "embedding"
	TaskTranscription       TaskType = "transcription"
)

// AllTasks lists every known task type. Order matches the constant block.
var AllTasks = []TaskType{
	TaskQuickSummary,
	TaskDeepSummary,
	TaskFlashcardGeneration,
	TaskQuizGeneration,
	TaskStreamingQA,
	TaskEmbedding,
	TaskTranscription,
}

// TaskProfile maps a task type to an ordered model preference.
type TaskProfile struct {
	Primary   string
	Fallbacks []string
}

// Chain returns the primary followed by the fallbacks, in order.
func (p TaskProfile) Chain() []string {
	chain := make([]string, 0, len(p.Fallbacks)+1)
	chain = append(chain, p.Primary)
	chain = append(chain, p.Fallbacks...)
	return chain
}

// taskProfiles is static configuration, read-only at run time. Heavy
// synthesis tasks prefer the larger models; latency-sensitive tasks
// prefer the flash tier.
var taskProfiles = map[TaskType]TaskProfile{
	TaskQuickSummary: {
		Primary:   "gemini-2.0-flash",
		Fallbacks: []string{"gemini-2.0-flash-lite", "gemini-1.5-flash"},
	},
	TaskDeepSummary: {
		Primary:   "gemini-2.0-pro",
		Fallbacks: []string{"gemini-2.0-flash", "gemini-1.5-pro"},
	},
	TaskFlashcardGeneration: {
		Primary:   "gemini-2.0-flash",
		Fallbacks: []string{"gemini-2.0-flash-lite", "gemini-1.5-flash"},
	},
	TaskQuizGeneration: {
		Primary:   "gemini-2.0-pro",
		Fallbacks: []string{"gemini-2.0-flash", "gemini-1.5-pro", "gemini-1.5-flash"},
	},
	TaskStreamingQA: {
		Primary:   "gemini-2.0-flash",
		Fallbacks: []string{"gemini-1.5-flash"},
	},
	TaskEmbedding: {
		Primary:   "text-embedding-004",
		Fallbacks: []string{"embedding-001"},
	},
	TaskTranscription: {
		Primary:   "gemini-2.0-flash",
		Fallbacks: []string{"gemini-1.5-flash", "gemini-1.5-pro"},
	},
}

// ProfileFor returns the preference profile for a task type. Unknown task
// types get the quick-summary profile, the cheapest safe default.
func ProfileFor(task TaskType) TaskProfile {
	if p, ok := taskProfiles[task]; ok {
		return p
	}
	return taskProfiles[TaskQuickSummary]
}
