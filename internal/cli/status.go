package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/thruflo/loopsh/internal/checkpoint"
	"github.com/thruflo/loopsh/internal/effect"
	"github.com/thruflo/loopsh/internal/logging"
	"github.com/thruflo/loopsh/internal/recovery"
)

var statusCmd = &cobra.Command{
	Use:   "status [task]",
	Short: "Show task checkpoints",
	Long: `Shows the saved progress of loopsh tasks.

Without arguments, lists every task with a checkpoint.
With a task argument, shows the checkpoint and assistant sessions for that task.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := workDir()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	fs := afero.NewOsFs()
	logger := logging.New()
	logger.SetWriter(cmd.ErrOrStderr())
	orch := recovery.New(checkpoint.NewFileStore(fs, cwd), logger)

	if len(args) == 0 {
		return listTasks(cmd.OutOrStdout(), fs, cwd, orch)
	}
	return showTask(cmd.OutOrStdout(), fs, cwd, orch, args[0])
}

// taskIDs returns the names of the task directories under base.
func taskIDs(fs afero.Fs, base string) ([]string, error) {
	entries, err := afero.ReadDir(fs, checkpoint.TasksDir(base))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func listTasks(w io.Writer, fs afero.Fs, base string, orch *recovery.Orchestrator) error {
	ids, err := taskIDs(fs, base)
	if err != nil {
		return err
	}

	type row struct{ task, phase, status string }
	var rows []row
	for _, id := range ids {
		info, err := orch.Inspect(id)
		switch {
		case errors.Is(err, recovery.ErrNoCheckpoint):
			continue
		case errors.Is(err, recovery.ErrInvalidCheckpoint):
			rows = append(rows, row{id, "-", "invalid checkpoint"})
		case err != nil:
			return err
		default:
			rows = append(rows, row{id, info.StoredPhase.String(), info.Summary})
		}
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, "No tasks found.")
		return nil
	}

	// Calculate column widths
	taskWidth := len("TASK")
	phaseWidth := len("PHASE")
	for _, r := range rows {
		taskWidth = max(taskWidth, len(r.task))
		phaseWidth = max(phaseWidth, len(r.phase))
	}

	fmt.Fprintf(w, "%-*s  %-*s  %s\n", taskWidth, "TASK", phaseWidth, "PHASE", "STATUS")
	fmt.Fprintf(w, "%s  %s  %s\n", strings.Repeat("-", taskWidth), strings.Repeat("-", phaseWidth), "------")
	for _, r := range rows {
		fmt.Fprintf(w, "%-*s  %-*s  %s\n", taskWidth, r.task, phaseWidth, r.phase, r.status)
	}
	return nil
}

func showTask(w io.Writer, fs afero.Fs, base string, orch *recovery.Orchestrator, taskID string) error {
	info, err := orch.Inspect(taskID)
	if errors.Is(err, recovery.ErrNoCheckpoint) {
		fmt.Fprintf(w, "No checkpoint for %s.\n", taskID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to inspect checkpoint: %w", err)
	}

	fmt.Fprintln(w, "Task Details")
	fmt.Fprintln(w, "============")
	fmt.Fprintln(w)

	printField(w, "Task", taskID)
	printField(w, "Status", info.Summary)
	printField(w, "Phase", info.StoredPhase.String())
	if info.Phase != info.StoredPhase {
		printField(w, "Interrupted", info.Phase.String())
	}
	printField(w, "Iteration", fmt.Sprintf("%d", info.Iteration))
	printField(w, "Completed", fmt.Sprintf("%d task(s)", info.CompletedCount))
	if info.LastTask != "" {
		printField(w, "Last Task", info.LastTask)
	}
	printField(w, "Resumable", yesNo(info.CanResume))
	printField(w, "Saved", formatTime(info.Timestamp))
	printField(w, "Age", formatDuration(time.Since(info.Timestamp)))

	sessions, err := effect.NewSessionRegistry(fs, checkpoint.TaskDir(base, taskID)).List()
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}
	if len(sessions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sessions")
		fmt.Fprintln(w, "--------")
		for _, s := range sessions {
			printField(w, s.Name, fmt.Sprintf("%s (created %s)", s.ID, formatTime(s.CreatedAt)))
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %-14s %s\n", label+":", value)
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
