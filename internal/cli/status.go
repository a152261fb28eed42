package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/studyflow/processor/internal/core/config"
	"github.com/studyflow/processor/internal/core/domain"
	"github.com/studyflow/processor/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status [content-id]",
	Short: "Show processing status, either one item in detail or a recent overview",
	Args:  cobra.MaximumNArgs(1),
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		slog.Error("status requires a database URL in config")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	if len(args) == 1 {
		printOne(ctx, db, args[0])
		return
	}
	printOverview(ctx, db)
}

func printOne(ctx context.Context, db *postgres.DB, contentID string) {
	repo := postgres.NewContentRepo(db)
	state, err := repo.Get(ctx, contentID)
	if err != nil {
		slog.Error("Failed to load content", "content", contentID, "error", err)
		os.Exit(1)
	}

	fmt.Printf("content: %s\nuser:    %s\nstatus:  %s\nupdated: %s\n\n",
		state.ContentID, state.UserID, state.Status, state.UpdatedAt.Format("2006-01-02 15:04:05"))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "STAGE\tSTATE\tPROGRESS\tRETRIES\tDETAIL")
	for _, stage := range domain.StageOrder {
		st := state.StageStatusFor(stage)
		detail := st.Error
		if st.State == domain.StagePaused {
			detail = st.PauseReason
			if st.QuotaInfo != nil && st.QuotaInfo.EstimatedRecovery != nil {
				detail += " until " + st.QuotaInfo.EstimatedRecovery.Format("15:04:05")
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d%%\t%d\t%s\n", stage, st.State, st.Progress, st.RetryCount, detail)
	}
	_ = w.Flush()
}

func printOverview(ctx context.Context, db *postgres.DB) {
	rows, err := db.QueryContext(ctx, `
		SELECT content_id, user_id, status, updated_at
		FROM content_processing
		WHERE deleted_at IS NULL
		ORDER BY updated_at DESC
		LIMIT 50
	`)
	if err != nil {
		slog.Error("Failed to query content", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CONTENT\tUSER\tSTATUS\tUPDATED")
	for rows.Next() {
		var contentID, userID, status string
		var updatedAt time.Time
		if err := rows.Scan(&contentID, &userID, &status, &updatedAt); err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", contentID, userID, status,
			updatedAt.Format("2006-01-02 15:04:05"))
	}
	_ = w.Flush()
}
