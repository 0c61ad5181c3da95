package driver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/thruflo/loopsh/internal/checkpoint"
	"github.com/thruflo/loopsh/internal/config"
	"github.com/thruflo/loopsh/internal/effect"
	"github.com/thruflo/loopsh/internal/logging"
	"github.com/thruflo/loopsh/internal/plan"
	"github.com/thruflo/loopsh/internal/recovery"
)

// ExitReason indicates why the driver stopped.
type ExitReason int

const (
	ExitReasonUnknown         ExitReason = iota
	ExitReasonDone                       // Plan fully built
	ExitReasonMaxIterations              // Hit iteration limit
	ExitReasonMaxDuration                // Hit duration limit
	ExitReasonCancelled                  // Context cancelled
	ExitReasonProviderFailure            // Assistant call or file effect failed
	ExitReasonToolUnavailable            // Assistant CLI not installed
	ExitReasonCrash                      // Checkpoint or template failure
	ExitReasonStuck                      // Same plan item came back without progress
)

// String returns a human-readable description of the exit reason.
func (r ExitReason) String() string {
	switch r {
	case ExitReasonDone:
		return "completed"
	case ExitReasonMaxIterations:
		return "max iterations"
	case ExitReasonMaxDuration:
		return "max duration"
	case ExitReasonCancelled:
		return "cancelled"
	case ExitReasonProviderFailure:
		return "provider failure"
	case ExitReasonToolUnavailable:
		return "tool unavailable"
	case ExitReasonCrash:
		return "crash"
	case ExitReasonStuck:
		return "stuck"
	default:
		return "unknown"
	}
}

// Resumable reports whether a run that stopped for r left a checkpoint the
// next run can pick up.
func (r ExitReason) Resumable() bool {
	switch r {
	case ExitReasonMaxIterations, ExitReasonMaxDuration, ExitReasonCancelled, ExitReasonProviderFailure, ExitReasonStuck:
		return true
	default:
		return false
	}
}

// ErrToolUnavailable is returned in Result.Error when the assistant CLI
// cannot be found.
var ErrToolUnavailable = errors.New("assistant CLI not available")

// Result contains the outcome of a driver run.
type Result struct {
	Reason         ExitReason
	Iterations     int
	CompletedTasks []string
	Error          error
}

// Options holds the dependencies of a Driver.
type Options struct {
	TaskID      string
	Provider    effect.Provider
	Store       checkpoint.Store
	Config      *config.Config
	Goal        string   // enables spec creation when the spec file is missing
	FS          afero.Fs // read-only use: spec detection and templates
	WorkDir     string
	TemplateDir string
	Logger      *logging.Logger
	StartTime   time.Time        // Optional: for deterministic duration tests
	Now         func() time.Time // Optional: defaults to time.Now
}

// Driver runs the spec → plan → build loop for one task.
type Driver struct {
	taskID      string
	provider    effect.Provider
	store       checkpoint.Store
	cfg         *config.Config
	goal        string
	fs          afero.Fs
	workDir     string
	templateDir string
	logger      *logging.Logger
	now         func() time.Time
	startTime   time.Time

	phase       checkpoint.Phase
	iteration   int
	currentTask string
	completed   []string
	sessionID   string
	stalled     int // builds in a row that left their item unchecked

	// next is the plan item read after the last build or while choosing
	// the first phase. nextRead is false when it still has to be read.
	next     *plan.Task
	nextRead bool
}

// New creates a Driver.
func New(opts Options) *Driver {
	cfg := opts.Config
	if cfg == nil {
		def := config.DefaultConfig()
		cfg = &def
	}
	fs := opts.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Driver{
		taskID:      opts.TaskID,
		provider:    opts.Provider,
		store:       opts.Store,
		cfg:         cfg,
		goal:        opts.Goal,
		fs:          fs,
		workDir:     opts.WorkDir,
		templateDir: opts.TemplateDir,
		logger:      logger.WithTask(opts.TaskID),
		now:         now,
		startTime:   opts.StartTime,
	}
}

// Run drives the task from ec until it completes, hits a limit, is
// cancelled or fails. A zero ec starts from scratch.
func (d *Driver) Run(ctx context.Context, ec recovery.ExecutionContext) Result {
	if d.startTime.IsZero() {
		d.startTime = d.now()
	}
	d.phase = ec.Phase
	if d.phase == "" {
		d.phase = checkpoint.PhaseIdle
	}
	d.iteration = ec.Iteration
	d.currentTask = ec.CurrentTask
	d.completed = append([]string{}, ec.CompletedTasks...)

	if !d.provider.CheckToolAvailable() {
		return d.result(ExitReasonToolUnavailable, fmt.Errorf("%w: %s", ErrToolUnavailable, d.cfg.Assistant.Command))
	}

	if err := d.startSession(ec.SessionID); err != nil {
		return d.fail(err)
	}

	if d.phase == checkpoint.PhaseIdle {
		first, err := d.firstPhase()
		if err != nil {
			return d.fail(err)
		}
		if err := d.transition(first); err != nil {
			return d.result(ExitReasonCrash, err)
		}
	} else {
		d.logger.Info("resuming", "phase", d.phase, "iteration", d.iteration)
	}

	for {
		if err := ctx.Err(); err != nil {
			return d.fail(&effect.CancelledError{Op: "run", Err: err})
		}

		if d.checkDurationLimit() {
			return d.result(ExitReasonMaxDuration, nil)
		}

		var err error
		switch d.phase {
		case checkpoint.PhaseSpecCreation:
			err = d.createSpec(ctx)
		case checkpoint.PhasePlanning:
			err = d.planTasks(ctx)
		case checkpoint.PhaseBuilding:
			if d.iteration >= d.cfg.Limits.MaxIterations {
				return d.result(ExitReasonMaxIterations, nil)
			}
			err = d.build(ctx)
			if err == nil && d.stuck() {
				return d.result(ExitReasonStuck, fmt.Errorf("no progress on %q after %d iteration(s)", d.currentTask, d.stalled))
			}
		case checkpoint.PhaseComplete:
			return d.complete()
		default:
			return d.result(ExitReasonCrash, fmt.Errorf("cannot run from phase %s", d.phase))
		}
		if err != nil {
			return d.fail(err)
		}
	}
}

func (d *Driver) result(reason ExitReason, err error) Result {
	if err != nil {
		d.logger.Warn("driver stopped", "reason", reason, "error", err)
	} else {
		d.logger.Info("driver stopped", "reason", reason, "iterations", d.iteration)
	}
	return Result{
		Reason:         reason,
		Iterations:     d.iteration,
		CompletedTasks: append([]string{}, d.completed...),
		Error:          err,
	}
}

// startSession continues the session of the run being resumed, or opens a
// fresh one when there is none or it is no longer registered.
func (d *Driver) startSession(resumeID string) error {
	if resumeID != "" {
		err := d.provider.ActivateSession(resumeID)
		if err == nil {
			d.sessionID = resumeID
			return nil
		}
		if !errors.Is(err, effect.ErrUnknownSession) {
			return err
		}
		d.logger.Debug("previous session is gone", "session", resumeID)
	}

	h, err := d.provider.CreateSession(d.taskID)
	if err != nil {
		return err
	}
	if err := d.provider.ActivateSession(h.ID); err != nil {
		return err
	}
	d.sessionID = h.ID
	return nil
}

// firstPhase picks where a fresh run starts: spec creation when a goal is
// given and no spec exists yet, building when the plan has work left, and
// planning otherwise.
func (d *Driver) firstPhase() (checkpoint.Phase, error) {
	if d.goal != "" {
		exists, err := afero.Exists(d.fs, d.path(d.cfg.Paths.Spec))
		if err != nil {
			return "", fmt.Errorf("failed to check spec: %w", err)
		}
		if !exists {
			return checkpoint.PhaseSpecCreation, nil
		}
	}

	task, err := d.provider.ReadNextTask(d.cfg.Paths.Plan)
	if err != nil {
		return "", err
	}
	if task == nil {
		return checkpoint.PhasePlanning, nil
	}
	d.next, d.nextRead = task, true
	return checkpoint.PhaseBuilding, nil
}

func (d *Driver) createSpec(ctx context.Context) error {
	if err := d.invoke(ctx, SpecTemplate, "spec creation"); err != nil {
		return err
	}
	return d.transition(checkpoint.PhasePlanning)
}

func (d *Driver) planTasks(ctx context.Context) error {
	if err := d.invoke(ctx, PlanTemplate, "planning"); err != nil {
		return err
	}
	return d.transition(checkpoint.PhaseBuilding)
}

// build runs one iteration: the next unchecked plan item is handed to the
// assistant. The item only counts as completed once a fresh read of the
// plan no longer returns it.
func (d *Driver) build(ctx context.Context) error {
	task, err := d.nextTask()
	if err != nil {
		return err
	}
	// A resumed run learns here whether its in-flight item got done.
	if _, err := d.settle(task); err != nil {
		return err
	}
	if task == nil {
		return d.transition(checkpoint.PhaseComplete)
	}

	d.currentTask = task.Description
	if err := d.save(); err != nil {
		return err
	}

	d.logger.Info("building", "iteration", d.iteration+1, "current", task.Description)
	if err := d.invoke(ctx, BuildTemplate, "building"); err != nil {
		return err
	}
	d.iteration++

	next, err := d.provider.ReadNextTask(d.cfg.Paths.Plan)
	if err != nil {
		return err
	}
	d.next, d.nextRead = next, true

	progressed, err := d.settle(next)
	if err != nil {
		return err
	}
	if progressed {
		d.stalled = 0
	} else {
		d.stalled++
		d.logger.Warn("plan item still open after build", "task", d.currentTask, "stalled", d.stalled)
	}
	return d.save()
}

// nextTask returns the plan item to build, reading the plan unless the
// previous step already did.
func (d *Driver) nextTask() (*plan.Task, error) {
	if d.nextRead {
		task := d.next
		d.next, d.nextRead = nil, false
		return task, nil
	}
	return d.provider.ReadNextTask(d.cfg.Paths.Plan)
}

// settle records the in-flight item as completed when next no longer names
// it, and rewrites the progress log. It reports whether it did.
func (d *Driver) settle(next *plan.Task) (bool, error) {
	if d.currentTask == "" {
		return false, nil
	}
	if next != nil && next.Description == d.currentTask {
		return false, nil
	}

	d.completed = append(d.completed, d.currentTask)
	d.currentTask = ""
	if err := d.provider.WriteFile(d.cfg.Paths.Progress, progressLog(d.completed)); err != nil {
		return false, err
	}
	return true, nil
}

// stuck reports whether the same item has come back too often in a row.
func (d *Driver) stuck() bool {
	threshold := d.cfg.Limits.NoProgressThreshold
	return threshold > 0 && d.stalled >= threshold
}

// complete closes the assistant session and removes the checkpoint.
func (d *Driver) complete() Result {
	if d.sessionID != "" {
		if err := d.provider.DeleteSession(d.sessionID); err != nil {
			d.logger.Warn("failed to delete session", "session", d.sessionID, "error", err)
		}
	}
	if err := d.store.Delete(d.taskID); err != nil {
		return d.result(ExitReasonCrash, fmt.Errorf("failed to delete checkpoint: %w", err))
	}
	return d.result(ExitReasonDone, nil)
}

func (d *Driver) invoke(ctx context.Context, tmpl, label string) error {
	prompt, err := renderPrompt(d.fs, d.templateDir, tmpl, d.promptData())
	if err != nil {
		return err
	}

	res, err := d.provider.InvokeAssistant(ctx, prompt, effect.InvokeOptions{
		Label:    label,
		Model:    d.cfg.Assistant.Model,
		MaxTurns: d.cfg.Assistant.MaxTurns,
	})
	if err != nil {
		return err
	}
	d.logger.Debug("assistant finished", "label", label, "duration", res.Duration, "cost", res.CostUSD, "turns", res.NumTurns)
	return nil
}

func (d *Driver) promptData() PromptData {
	return PromptData{
		Goal:           d.goal,
		SpecPath:       d.cfg.Paths.Spec,
		PlanPath:       d.cfg.Paths.Plan,
		ProgressPath:   d.cfg.Paths.Progress,
		Task:           d.currentTask,
		Iteration:      d.iteration,
		CompletedTasks: d.completed,
	}
}

// transition moves to phase and records it.
func (d *Driver) transition(phase checkpoint.Phase) error {
	d.logger.Debug("phase transition", "from", d.phase, "to", phase)
	d.phase = phase
	if phase == checkpoint.PhaseComplete {
		return nil
	}
	return d.save()
}

// save replaces the checkpoint with the driver's current position.
func (d *Driver) save() error {
	c := checkpoint.New(d.phase, d.iteration, d.now())
	c.CurrentTask = d.currentTask
	c.CompletedTasks = append(c.CompletedTasks, d.completed...)
	c.SessionID = d.sessionID
	c.CanResume = d.phase.Working()
	if err := d.store.Write(d.taskID, c); err != nil {
		return &checkpointError{err: err}
	}
	return nil
}

// checkpointError marks failures to persist progress. They are not
// provider failures and leave no error checkpoint behind.
type checkpointError struct {
	err error
}

func (e *checkpointError) Error() string { return "failed to write checkpoint: " + e.err.Error() }
func (e *checkpointError) Unwrap() error { return e.err }

// fail records an Error checkpoint for err and returns the matching result.
// The checkpoint allows a resume only when the interrupted work left no
// partial changes behind.
func (d *Driver) fail(err error) Result {
	var cpErr *checkpointError
	if errors.As(err, &cpErr) {
		return d.result(ExitReasonCrash, err)
	}

	reason := ExitReasonProviderFailure
	kind := checkpoint.ErrorKindProviderFailure
	var op string
	var cancelled *effect.CancelledError
	var failure *effect.ProviderError
	switch {
	case errors.As(err, &cancelled):
		reason, kind, op = ExitReasonCancelled, checkpoint.ErrorKindCancelled, cancelled.Op
	case errors.As(err, &failure):
		op = failure.Op
	default:
		reason, kind = ExitReasonCrash, checkpoint.ErrorKindInternal
	}

	interrupted := d.phase
	if !interrupted.Working() {
		// Nothing resumable ran yet; the next run starts fresh.
		return d.result(reason, err)
	}

	c := checkpoint.New(checkpoint.PhaseError, d.iteration, d.now())
	c.InterruptedPhase = interrupted
	c.CurrentTask = d.currentTask
	c.CompletedTasks = append(c.CompletedTasks, d.completed...)
	c.SessionID = d.sessionID
	c.CanResume = kind != checkpoint.ErrorKindInternal && !effect.Mutated(err)
	c.Error = &checkpoint.ErrorDetail{Kind: kind, Message: err.Error()}
	if op != "" {
		c.Error.Context = map[string]string{"op": op}
	}
	if werr := d.store.Write(d.taskID, c); werr != nil {
		return d.result(ExitReasonCrash, fmt.Errorf("%w (and failed to write checkpoint: %v)", err, werr))
	}
	return d.result(reason, err)
}

func (d *Driver) checkDurationLimit() bool {
	if d.cfg.Limits.MaxDurationHours <= 0 {
		return false
	}
	limit := time.Duration(d.cfg.Limits.MaxDurationHours * float64(time.Hour))
	return d.now().Sub(d.startTime) >= limit
}

func (d *Driver) path(p string) string {
	if filepath.IsAbs(p) || d.workDir == "" {
		return p
	}
	return filepath.Join(d.workDir, p)
}

// progressLog renders the completed tasks as the progress file.
func progressLog(completed []string) []byte {
	var sb strings.Builder
	sb.WriteString("# Progress\n\n")
	for _, t := range completed {
		sb.WriteString("- [x] ")
		sb.WriteString(t)
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}
