package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/thruflo/loopsh/internal/checkpoint"
	"github.com/thruflo/loopsh/internal/logging"
	"github.com/thruflo/loopsh/internal/recovery"
)

var discardCmd = &cobra.Command{
	Use:   "discard <task>",
	Short: "Delete a task's checkpoint",
	Long: `Deletes the saved checkpoint of a task so the next run starts fresh.

Files the assistant changed are left as they are.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiscard,
}

func init() {
	rootCmd.AddCommand(discardCmd)
}

func runDiscard(cmd *cobra.Command, args []string) error {
	taskID := args[0]

	cwd, err := workDir()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	logger := logging.New()
	logger.SetWriter(cmd.ErrOrStderr())
	store := checkpoint.NewFileStore(afero.NewOsFs(), cwd)
	orch := recovery.New(store, logger)

	// An unreadable checkpoint is discarded like any other.
	if _, err := orch.Inspect(taskID); errors.Is(err, recovery.ErrNoCheckpoint) {
		fmt.Fprintf(cmd.OutOrStdout(), "No checkpoint for %s.\n", taskID)
		return nil
	}

	if err := orch.Clear(taskID, false); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Discarded checkpoint for %s.\n", taskID)
	return nil
}
