// Package recovery decides whether an interrupted task can be picked up
// where it stopped and turns its checkpoint into the context the session
// driver starts from.
//
// The orchestrator never trusts a checkpoint it has not validated: anything
// missing, corrupt or ambiguous routes the user to a fresh start.
package recovery

import (
	"errors"
	"fmt"
	"time"

	"github.com/thruflo/loopsh/internal/checkpoint"
	"github.com/thruflo/loopsh/internal/logging"
)

var (
	// ErrNoCheckpoint means there is nothing to recover.
	ErrNoCheckpoint = errors.New("no checkpoint")
	// ErrInvalidCheckpoint means the stored checkpoint is corrupt or fails
	// validation. Callers should offer a restart.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
	// ErrUnresumable means the checkpoint is valid but may not be resumed.
	ErrUnresumable = errors.New("checkpoint cannot be resumed")
)

// Info describes a stored checkpoint for display and decision making.
type Info struct {
	NeedsRecovery  bool // interrupted work worth offering to resume
	CanResume      bool
	Phase          checkpoint.Phase // phase a resume would start from
	StoredPhase    checkpoint.Phase
	Iteration      int
	CompletedCount int
	LastTask       string
	Summary        string
	Timestamp      time.Time
}

// ExecutionContext is where the session driver picks up a resumed task.
type ExecutionContext struct {
	Phase          checkpoint.Phase
	Iteration      int
	CurrentTask    string
	CompletedCount int
	CompletedTasks []string
	SessionID      string // assistant session to continue, if any
}

// Orchestrator inspects checkpoints and tracks whether the current run is
// resuming one.
type Orchestrator struct {
	store  checkpoint.Store
	logger *logging.Logger

	resuming bool
	taskID   string
}

// New creates an Orchestrator reading from store. A nil logger uses the
// package default.
func New(store checkpoint.Store, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{store: store, logger: logger}
}

// NeedsRecovery reports whether c records interrupted work worth offering
// to resume.
func (o *Orchestrator) NeedsRecovery(c *checkpoint.Checkpoint) bool {
	if c == nil {
		return false
	}
	if c.Phase.Working() {
		return true
	}
	return c.Phase == checkpoint.PhaseError && c.CanResume
}

// Describe summarizes c. It does not validate; callers that need a usable
// checkpoint go through Inspect or Recover.
func (o *Orchestrator) Describe(c *checkpoint.Checkpoint) Info {
	if c == nil {
		return Info{Phase: checkpoint.PhaseIdle, StoredPhase: checkpoint.PhaseIdle, Summary: summaryIdle}
	}

	info := Info{
		NeedsRecovery:  o.NeedsRecovery(c),
		CanResume:      o.NeedsRecovery(c) && c.ResumePhase().Working(),
		Phase:          c.ResumePhase(),
		StoredPhase:    c.Phase,
		Iteration:      c.Iteration,
		CompletedCount: len(c.CompletedTasks),
		LastTask:       c.LastTask(),
		Timestamp:      c.Timestamp,
	}

	switch c.Phase {
	case checkpoint.PhaseError:
		msg := c.ErrorMessage()
		if msg == "" {
			msg = "unknown error"
		}
		info.Summary = "Stopped due to: " + msg
	case checkpoint.PhaseBuilding:
		info.Summary = fmt.Sprintf("%d iteration(s) completed", c.Iteration)
		if c.CurrentTask != "" {
			info.Summary += " - Last: " + c.CurrentTask
		}
	case checkpoint.PhasePlanning:
		info.Summary = "Planning was interrupted"
	case checkpoint.PhaseSpecCreation:
		info.Summary = "Spec creation was interrupted"
	case checkpoint.PhaseComplete:
		info.Summary = "Session completed"
	default:
		info.Summary = summaryIdle
	}
	return info
}

const summaryIdle = "Session has not started"

// load reads and validates the checkpoint for taskID.
func (o *Orchestrator) load(taskID string) (*checkpoint.Checkpoint, error) {
	c, err := o.store.Read(taskID)
	if err != nil {
		o.logger.Warn("failed to read checkpoint", "task", taskID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidCheckpoint, err)
	}
	if c == nil {
		return nil, ErrNoCheckpoint
	}
	if err := checkpoint.Check(c); err != nil {
		o.logger.Warn("checkpoint failed validation", "task", taskID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidCheckpoint, err)
	}
	return c, nil
}

// Inspect reads the checkpoint for taskID and describes it.
func (o *Orchestrator) Inspect(taskID string) (*Info, error) {
	c, err := o.load(taskID)
	if err != nil {
		return nil, err
	}
	info := o.Describe(c)
	return &info, nil
}

// Recover re-reads the checkpoint for taskID and returns the context to
// resume from. Error checkpoints resume from their interrupted phase.
func (o *Orchestrator) Recover(taskID string) (*ExecutionContext, error) {
	c, err := o.load(taskID)
	if err != nil {
		return nil, err
	}

	switch c.Phase {
	case checkpoint.PhaseError:
		if !c.CanResume {
			return nil, fmt.Errorf("%w: %s", ErrUnresumable, c.ErrorMessage())
		}
		if !c.InterruptedPhase.Working() {
			return nil, fmt.Errorf("%w: error checkpoint has no resumable phase (%q)", ErrInvalidCheckpoint, c.InterruptedPhase)
		}
	case checkpoint.PhaseComplete, checkpoint.PhaseIdle:
		return nil, fmt.Errorf("%w: phase is %s", ErrUnresumable, c.Phase)
	}

	ec := &ExecutionContext{
		Phase:          c.ResumePhase(),
		Iteration:      c.Iteration,
		CurrentTask:    c.CurrentTask,
		CompletedCount: len(c.CompletedTasks),
		CompletedTasks: append([]string{}, c.CompletedTasks...),
		SessionID:      c.SessionID,
	}

	o.resuming = true
	o.taskID = taskID
	o.logger.Info("resuming task", "task", taskID, "phase", ec.Phase, "iteration", ec.Iteration)
	return ec, nil
}

// Clear leaves resume mode and deletes the checkpoint for taskID unless
// keepCheckpoint is set.
func (o *Orchestrator) Clear(taskID string, keepCheckpoint bool) error {
	o.resuming = false
	o.taskID = ""

	if keepCheckpoint {
		return nil
	}
	if err := o.store.Delete(taskID); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	o.logger.Debug("checkpoint cleared", "task", taskID)
	return nil
}

// Resuming reports the task being resumed, if any.
func (o *Orchestrator) Resuming() (string, bool) {
	return o.taskID, o.resuming
}
