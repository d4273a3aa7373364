package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codegraph-dev/codegraph/internal/errs"
	"github.com/codegraph-dev/codegraph/internal/model"
	"github.com/codegraph-dev/codegraph/internal/orchestrator"
	"github.com/codegraph-dev/codegraph/internal/stagedag"
	"github.com/codegraph-dev/codegraph/internal/store"
	"github.com/codegraph-dev/codegraph/internal/watcher"
	"github.com/codegraph-dev/codegraph/pkg/config"
	"github.com/codegraph-dev/codegraph/pkg/observability"
)

// NewWatchCommand builds the `watch` subcommand: starts the File
// Watcher rooted at a repository path and runs an incremental job for
// every debounced batch of changes until interrupted.
func NewWatchCommand() *cobra.Command {
	var (
		configFile string
		repoID     string
	)

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a repository and run incremental jobs on change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), args[0], configFile, repoID)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "path to a .codegraph.yaml config file")
	cmd.Flags().StringVar(&repoID, "repo-id", "", "repository identifier (default: derived from path)")

	return cmd
}

func runWatch(ctx context.Context, path, configFile, repoID string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	providers, err := observability.Init(observability.DefaultConfig("codegraph", observability.ModeWatch))
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer providers.Shutdown(ctx) //nolint:errcheck

	logger := providers.Logger

	if repoID == "" {
		repoID = filepath.Base(path)
	}

	storeDir := filepath.Join(path, ".codegraph")
	if mkdirErr := os.MkdirAll(storeDir, 0o755); mkdirErr != nil {
		return fmt.Errorf("create store dir: %w", mkdirErr)
	}

	st, err := store.Open(filepath.Join(storeDir, "store.db"), logger)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	if _, getErr := st.GetRepository(repoID); getErr != nil {
		if saveErr := st.SaveRepository(model.Repository{RepoID: repoID, Name: repoID, LocalPath: path}); saveErr != nil {
			return saveErr
		}
	}

	watchCfg := watcher.Config{
		DebounceWindow: cfg.Watcher.DebounceWindow,
		Extensions:     cfg.Watcher.Extensions,
		IgnoreGlobs:    cfg.Watcher.IgnoreGlobs,
		Recursive:      cfg.Watcher.Recursive,
	}

	fw, err := watcher.New(path, watchCfg, logger)
	if err != nil {
		return err
	}
	defer fw.Close() //nolint:errcheck

	reg := stagedag.NewRegistry()

	plan, err := reg.Resolve(stagedag.Preset(cfg.Preset), overridesFromConfig(cfg.StageOverrides))
	if err != nil {
		return errs.New(errs.CategoryConfiguration, "cmd.watch", err)
	}

	pool := orchestrator.NewPool(reg, orchestrator.PoolConfig{
		MaxParsers: cfg.Orchestrator.MaxParsers,
		Logger:     logger,
	})

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("watching repository", "repo_id", repoID, "path", path)

	var previousSnapshot string

	for {
		select {
		case <-sigCtx.Done():
			logger.Info("watch stopped")

			return nil
		case events, ok := <-fw.Events():
			if !ok {
				return nil
			}

			if runErr := runIncrementalJob(sigCtx, pool, plan, cfg, repoID, &previousSnapshot, events, logger); runErr != nil {
				logger.Error("incremental job failed", "error", runErr)
			}
		case watchErr, ok := <-fw.Errors():
			if !ok {
				continue
			}

			logger.Error("watcher error", "error", watchErr)
		}
	}
}

func runIncrementalJob(
	ctx context.Context,
	pool *orchestrator.Pool,
	plan stagedag.Plan,
	cfg *config.Config,
	repoID string,
	previousSnapshot *string,
	events []watcher.FileEvent,
	logger *slog.Logger,
) error {
	changedFiles := make([]string, len(events))
	for i, e := range events {
		changedFiles[i] = e.Path
	}

	snapshotID := uuid.NewString()
	job := orchestrator.NewIncrementalJob(repoID, snapshotID, *previousSnapshot, changedFiles, 0)

	if len(plan.Order) == 0 {
		return nil
	}

	if err := job.Start("cli-watch", plan.Order[0]); err != nil {
		return err
	}

	configHash := orchestrator.FingerprintInputs(cfg.Preset, fmt.Sprintf("%v", cfg.StageOverrides))

	outputs, err := pool.Run(ctx, job, plan, configHash)
	if err != nil {
		_ = job.Fail(err, job.CurrentStage)

		return err
	}

	if err := job.Complete(len(outputs)); err != nil {
		return err
	}

	*previousSnapshot = snapshotID
	logger.Info("incremental job completed", "snapshot_id", snapshotID, "files_changed", len(changedFiles))

	return nil
}
