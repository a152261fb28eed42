package cli

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/studyflow/processor/internal/control"
	"github.com/studyflow/processor/internal/core/config"
	"github.com/studyflow/processor/internal/core/domain"
)

var fromStage string

var resumeCmd = &cobra.Command{
	Use:   "resume <content-id>",
	Short: "Re-run processing for a paused or failed content item",
	Args:  cobra.ExactArgs(1),
	Run:   runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&fromStage, "from-stage", "", "stage to restart from (default: first paused or failed)")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) {
	stylelog.InitDefault(&tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.RFC3339,
	})

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	var stage *domain.Stage
	if fromStage != "" {
		s := domain.Stage(fromStage)
		if !s.Valid() {
			slog.Error("Unknown stage", "stage", fromStage)
			os.Exit(1)
		}
		stage = &s
	}

	// Full wiring: the resume runs the stages in this process, guarded by
	// the same Redis lease the service uses.
	app, err := control.NewApp(*cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	contentID := args[0]
	if err := app.Resume(ctx, contentID, stage); err != nil {
		slog.Error("Resume failed", "content", contentID, "error", err)
		os.Exit(1)
	}
	slog.Info("Resume finished", "content", contentID)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	_ = app.Stop(stopCtx)
}
