// Package commands implements CLI command handlers for codegraph.
package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codegraph-dev/codegraph/internal/errs"
	"github.com/codegraph-dev/codegraph/internal/model"
	"github.com/codegraph-dev/codegraph/internal/orchestrator"
	"github.com/codegraph-dev/codegraph/internal/stagedag"
	"github.com/codegraph-dev/codegraph/internal/store"
	"github.com/codegraph-dev/codegraph/pkg/config"
	"github.com/codegraph-dev/codegraph/pkg/observability"
)

// NewIndexCommand builds the `index` subcommand: resolves a stage plan
// from configuration, opens the repository's chunk store, registers it
// if new, and runs one job through the orchestrator pool.
func NewIndexCommand() *cobra.Command {
	var (
		configFile string
		repoID     string
		snapshotID string
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Run the stage DAG against a repository once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), args[0], configFile, repoID, snapshotID)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "path to a .codegraph.yaml config file")
	cmd.Flags().StringVar(&repoID, "repo-id", "", "repository identifier (default: derived from path)")
	cmd.Flags().StringVar(&snapshotID, "snapshot-id", "", "snapshot identifier (default: a generated UUID)")

	return cmd
}

func runIndex(ctx context.Context, path, configFile, repoID, snapshotID string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	providers, err := observability.Init(observability.DefaultConfig("codegraph", observability.ModeIndex))
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer providers.Shutdown(ctx) //nolint:errcheck

	logger := providers.Logger

	if repoID == "" {
		repoID = filepath.Base(path)
	}

	if snapshotID == "" {
		snapshotID = uuid.NewString()
	}

	reg := stagedag.NewRegistry()

	plan, err := reg.Resolve(stagedag.Preset(cfg.Preset), overridesFromConfig(cfg.StageOverrides))
	if err != nil {
		return errs.New(errs.CategoryConfiguration, "cmd.index", err)
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

	if createErr := st.CreateSnapshot(repoID, snapshotID, "", ""); createErr != nil && errs.Classify(createErr) != errs.CategoryIntegrity {
		return createErr
	}

	pool := orchestrator.NewPool(reg, orchestrator.PoolConfig{
		MaxParsers: cfg.Orchestrator.MaxParsers,
		Logger:     logger,
	})

	job := orchestrator.NewJob(repoID, snapshotID, 0)
	if startErr := job.Start("cli-local", plan.Order[0]); startErr != nil {
		return startErr
	}

	configHash := orchestrator.FingerprintInputs(cfg.Preset, fmt.Sprintf("%v", cfg.StageOverrides))

	outputs, runErr := pool.Run(ctx, job, plan, configHash)
	if runErr != nil {
		_ = job.Fail(runErr, job.CurrentStage)

		return runErr
	}

	if completeErr := job.Complete(len(outputs)); completeErr != nil {
		return completeErr
	}

	logger.Info("index run completed",
		"repo_id", repoID, "snapshot_id", snapshotID, "preset", cfg.Preset, "stages_run", len(outputs))

	return nil
}

func overridesFromConfig(raw map[string]bool) map[stagedag.ID]bool {
	overrides := make(map[stagedag.ID]bool, len(raw))
	for k, v := range raw {
		overrides[stagedag.ID(k)] = v
	}

	return overrides
}
