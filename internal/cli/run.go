package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/thruflo/loopsh/internal/actionlog"
	"github.com/thruflo/loopsh/internal/assistant"
	"github.com/thruflo/loopsh/internal/checkpoint"
	"github.com/thruflo/loopsh/internal/config"
	"github.com/thruflo/loopsh/internal/driver"
	"github.com/thruflo/loopsh/internal/effect"
	"github.com/thruflo/loopsh/internal/logging"
	"github.com/thruflo/loopsh/internal/recovery"
)

var (
	runDryRun        bool
	runResume        bool
	runRestart       bool
	runGoal          string
	runMaxIterations int
)

// runExecutor runs the assistant CLI. It can be overridden in tests.
var runExecutor assistant.Executor = assistant.NewLocalExecutor()

// runLookPath locates the assistant CLI. Nil uses exec.LookPath.
var runLookPath func(string) (string, error)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run the plan/build loop for a task",
	Long: `Runs the spec → plan → build loop for a task until the plan is done,
a limit is reached, or the run is interrupted.

If an earlier run of the same task was interrupted, its checkpoint is shown
and you can resume, restart or cancel. Without a terminal, pass --resume or
--restart to decide up front.

With --dry-run nothing is executed: assistant calls, file writes and session
changes are recorded and summarized instead.

Example:
  loopsh run feat-auth --goal "Add password login"
  loopsh run feat-auth --resume
  loopsh run feat-auth --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "record intended actions instead of performing them")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "resume an interrupted run without asking")
	runCmd.Flags().BoolVar(&runRestart, "restart", false, "discard an interrupted run and start over without asking")
	runCmd.Flags().StringVarP(&runGoal, "goal", "g", "", "goal to write a spec for when none exists")
	runCmd.Flags().IntVarP(&runMaxIterations, "max-iterations", "n", 0, "override limits.max_iterations")
	runCmd.MarkFlagsMutuallyExclusive("resume", "restart")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	taskID := args[0]
	out := cmd.OutOrStdout()

	cwd, err := workDir()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg, err := config.LoadConfig(cwd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if runMaxIterations > 0 {
		cfg.Limits.MaxIterations = runMaxIterations
	}
	dryRun := cfg.DryRun || runDryRun

	logger := newLogger(cfg, cmd.ErrOrStderr()).WithTask(taskID)
	fs := afero.NewOsFs()
	disk := checkpoint.NewFileStore(fs, cwd)
	orch := recovery.New(disk, logger)

	// The mode is fixed here for the whole run.
	var (
		provider effect.Provider
		sim      *effect.Simulated
		store    checkpoint.Store = disk
	)
	if dryRun {
		sim = effect.NewSimulated(effect.SimulatedOptions{
			Log:     actionlog.New(),
			FS:      fs,
			WorkDir: cwd,
			Model:   cfg.Assistant.Model,
		})
		provider = sim
		store = checkpoint.NewMemoryStore()
		fmt.Fprintln(out, newStyles(out).Warning.Render("Dry run: nothing will be executed or written."))
	} else {
		env, err := config.LoadEnvFile(cwd)
		if err != nil {
			return fmt.Errorf("failed to load assistant.env: %w", err)
		}
		provider = effect.NewReal(effect.RealOptions{
			FS:        fs,
			WorkDir:   cwd,
			TaskDir:   checkpoint.TaskDir(cwd, taskID),
			Executor:  runExecutor,
			Assistant: assistant.OptionsFromConfig(cfg.Assistant),
			Env:       env,
			LookPath:  runLookPath,
			Logger:    logger,
		})
	}

	ec, proceed, err := resolveStart(orch, taskID, out, logger, sim)
	if err != nil {
		return err
	}
	if !proceed {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := driver.New(driver.Options{
		TaskID:      taskID,
		Provider:    provider,
		Store:       store,
		Config:      cfg,
		Goal:        runGoal,
		FS:          fs,
		WorkDir:     cwd,
		TemplateDir: filepath.Join(config.Dir(cwd), "templates"),
		Logger:      logger,
	})
	res := d.Run(ctx, ec)

	if err := orch.Clear(taskID, true); err != nil {
		logger.Warn("failed to leave resume mode", "error", err)
	}

	renderResult(out, taskID, res)
	if sim != nil {
		renderSummary(out, sim.Summarize())
		sim.Close()
	}

	switch res.Reason {
	case driver.ExitReasonProviderFailure, driver.ExitReasonToolUnavailable, driver.ExitReasonCrash:
		return fmt.Errorf("run stopped: %s", res.Reason)
	}
	return nil
}

// resolveStart inspects the task's checkpoint and decides where the driver
// starts. proceed is false when the user cancelled.
func resolveStart(orch *recovery.Orchestrator, taskID string, out io.Writer, logger *logging.Logger, sim *effect.Simulated) (ec recovery.ExecutionContext, proceed bool, err error) {
	s := newStyles(out)

	info, err := orch.Inspect(taskID)
	switch {
	case errors.Is(err, recovery.ErrNoCheckpoint):
		return recovery.ExecutionContext{}, true, nil
	case errors.Is(err, recovery.ErrInvalidCheckpoint):
		logger.Warn("discarding unreadable checkpoint", "error", err)
		fmt.Fprintln(out, s.Warning.Render("The saved checkpoint is unreadable; starting over."))
		return recovery.ExecutionContext{}, true, restart(orch, taskID, sim)
	case err != nil:
		return recovery.ExecutionContext{}, false, err
	}

	// Finished or idle checkpoints have nothing to resume.
	if !info.NeedsRecovery && info.StoredPhase != checkpoint.PhaseError {
		logger.Debug("clearing finished checkpoint", "task", taskID, "phase", info.StoredPhase)
		return recovery.ExecutionContext{}, true, restart(orch, taskID, sim)
	}

	renderRecovery(out, taskID, *info)

	choice, err := orch.Prompt(*info, chooser(out))
	if sim != nil {
		sim.Log().Add(actionlog.Menu, "recovery prompt", "choice", choice.String())
	}
	if err != nil {
		return recovery.ExecutionContext{}, false, err
	}

	switch choice {
	case recovery.ChoiceResume:
		resumed, err := orch.Recover(taskID)
		if err != nil {
			if errors.Is(err, recovery.ErrInvalidCheckpoint) || errors.Is(err, recovery.ErrUnresumable) {
				fmt.Fprintln(out, s.Warning.Render("Cannot resume ("+err.Error()+"); starting over."))
				return recovery.ExecutionContext{}, true, restart(orch, taskID, sim)
			}
			return recovery.ExecutionContext{}, false, err
		}
		fmt.Fprintf(out, "Resuming from %s, iteration %d.\n", resumed.Phase, resumed.Iteration)
		return *resumed, true, nil
	case recovery.ChoiceRestart:
		return recovery.ExecutionContext{}, true, restart(orch, taskID, sim)
	default:
		return recovery.ExecutionContext{}, false, nil
	}
}

// restart forgets the stored checkpoint. A dry run keeps it on disk.
func restart(orch *recovery.Orchestrator, taskID string, sim *effect.Simulated) error {
	if sim != nil {
		sim.Log().Add(actionlog.FileDelete, "delete checkpoint", "task", taskID)
	}
	return orch.Clear(taskID, sim != nil)
}

// chooser returns the prompter for the recovery menu: the --resume or
// --restart flag when given, the terminal otherwise. Without either the run
// is cancelled.
func chooser(out io.Writer) recovery.Prompter {
	switch {
	case runResume:
		return fixedChoice(recovery.ChoiceResume)
	case runRestart:
		return fixedChoice(recovery.ChoiceRestart)
	case stdinIsTerminal():
		return newLinePrompter(promptInput, out)
	default:
		return recovery.PrompterFunc(func(recovery.Info, []recovery.Choice) (recovery.Choice, error) {
			fmt.Fprintln(out, "No terminal to ask on; pass --resume or --restart.")
			return recovery.ChoiceCancel, nil
		})
	}
}

func fixedChoice(c recovery.Choice) recovery.Prompter {
	return recovery.PrompterFunc(func(recovery.Info, []recovery.Choice) (recovery.Choice, error) {
		return c, nil
	})
}
