package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/studyflow/processor/internal/ai/budget"
	"github.com/studyflow/processor/internal/ai/catalog"
	"github.com/studyflow/processor/internal/ai/executor"
	"github.com/studyflow/processor/internal/ai/provider"
	"github.com/studyflow/processor/internal/core/domain"
)

// Source supplies the raw material a stage works on and receives the
// artifacts it produces. Concrete implementations (object storage,
// document DB, vector index) are external collaborators.
type Source interface {
	// LoadText returns the transcript or document text for a content item.
	LoadText(ctx context.Context, contentID string) (string, error)

	// StoreArtifact persists one stage output (summary, flashcards, quiz,
	// transcript) under its kind.
	StoreArtifact(ctx context.Context, contentID, kind string, payload string) error
}

// Embedder indexes content into the vector store. Indexing mechanics are
// out of scope here; the pipeline only orchestrates the call.
type Embedder interface {
	IndexContent(ctx context.Context, contentID string, text string) error
}

// generationProcessor is the shared shape of the AI-backed stages: load
// the text, wait out any budget throttle, run one generation through the
// executor, store the artifact.
type generationProcessor struct {
	stage    domain.Stage
	task     catalog.TaskType
	artifact string
	prompt   func(text string) string

	exec    *executor.Executor
	client  provider.Client
	source  Source
	tracker budget.Tracker
}

func (g *generationProcessor) Process(
	ctx context.Context,
	state *domain.ContentProcessingState,
	report func(progress int),
) error {
	text, err := g.source.LoadText(ctx, state.ContentID)
	if err != nil {
		return fmt.Errorf("load source text: %w", err)
	}
	report(10)

	if g.tracker != nil {
		if delay := g.tracker.GetThrottleDelay(string(g.task)); delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
	}

	outcome, err := g.exec.ExecuteWithFallback(ctx, g.task,
		func(ctx context.Context, model catalog.ModelDescriptor) (any, error) {
			if g.tracker != nil {
				g.tracker.RecordCall(string(g.task), model.Name)
			}
			resp, err := g.client.GenerateContent(ctx, model.Name, provider.GenerateRequest{
				Prompt:          g.prompt(text),
				Temperature:     model.Temperature,
				TopP:            model.TopP,
				TopK:            model.TopK,
				MaxOutputTokens: model.OutputTokenLimit,
			})
			if err != nil {
				return nil, err
			}
			return resp.Text, nil
		}, executor.Options{})
	if err != nil {
		return err
	}
	report(80)

	payload, _ := outcome.Payload.(string)
	if err := g.source.StoreArtifact(ctx, state.ContentID, g.artifact, payload); err != nil {
		return fmt.Errorf("store %s artifact: %w", g.artifact, err)
	}
	return nil
}

// vectorizationProcessor hands the text to the embedder with the
// retries-only policy: there is no model chain to walk for indexing.
type vectorizationProcessor struct {
	exec     *executor.Executor
	source   Source
	embedder Embedder
}

func (v *vectorizationProcessor) Process(
	ctx context.Context,
	state *domain.ContentProcessingState,
	report func(progress int),
) error {
	text, err := v.source.LoadText(ctx, state.ContentID)
	if err != nil {
		return fmt.Errorf("load source text: %w", err)
	}
	report(20)

	_, err = v.exec.ExecuteWithRetriesOnly(ctx, func(ctx context.Context) (any, error) {
		return nil, v.embedder.IndexContent(ctx, state.ContentID, text)
	}, executor.Options{})
	return err
}

// Deps bundles the collaborators the default processors need.
type Deps struct {
	Executor *executor.Executor
	Client   provider.Client
	Source   Source
	Embedder Embedder
	Tracker  budget.Tracker
}

// DefaultProcessors wires the built-in AI-backed stage processors.
func DefaultProcessors(deps Deps) map[domain.Stage]StageProcessor {
	gen := func(stage domain.Stage, task catalog.TaskType, artifact string, prompt func(string) string) StageProcessor {
		return &generationProcessor{
			stage:    stage,
			task:     task,
			artifact: artifact,
			prompt:   prompt,
			exec:     deps.Executor,
			client:   deps.Client,
			source:   deps.Source,
			tracker:  deps.Tracker,
		}
	}

	return map[domain.Stage]StageProcessor{
		domain.StageTranscription: gen(
			domain.StageTranscription, catalog.TaskTranscription, "transcript",
			func(text string) string {
				return "Clean up the following raw transcript, fixing punctuation and speaker turns:\n\n" + text
			},
		),
		domain.StageVectorization: &vectorizationProcessor{
			exec:     deps.Executor,
			source:   deps.Source,
			embedder: deps.Embedder,
		},
		domain.StageSummarization: gen(
			domain.StageSummarization, catalog.TaskDeepSummary, "summary",
			func(text string) string {
				return "Write a structured study summary of the following material:\n\n" + text
			},
		),
		domain.StageFlashcardGeneration: gen(
			domain.StageFlashcardGeneration, catalog.TaskFlashcardGeneration, "flashcards",
			func(text string) string {
				return "Generate question/answer flashcards as JSON for the following material:\n\n" + text
			},
		),
		domain.StageQuizGeneration: gen(
			domain.StageQuizGeneration, catalog.TaskQuizGeneration, "quiz",
			func(text string) string {
				return "Generate a multiple-choice quiz as JSON for the following material:\n\n" + text
			},
		),
	}
}
