// Package checkpoint defines the durable single-slot progress record of a
// loopsh task, its validation rules, and the stores that persist it.
package checkpoint

import "time"

// CurrentVersion is the checkpoint schema version written by this build.
const CurrentVersion = 1

// Phase is a named stage of the plan/build loop.
type Phase string

// Phase values. They are serialized verbatim.
const (
	PhaseIdle         Phase = "Idle"
	PhaseSpecCreation Phase = "SpecCreation"
	PhasePlanning     Phase = "Planning"
	PhaseBuilding     Phase = "Building"
	PhaseComplete     Phase = "Complete"
	PhaseError        Phase = "Error"
)

var knownPhases = map[Phase]bool{
	PhaseIdle:         true,
	PhaseSpecCreation: true,
	PhasePlanning:     true,
	PhaseBuilding:     true,
	PhaseComplete:     true,
	PhaseError:        true,
}

func (p Phase) String() string { return string(p) }

// Known reports whether p is one of the six recognized phases.
func (p Phase) Known() bool {
	return knownPhases[p]
}

// Working reports whether p is a phase in which the loop does work that can
// be interrupted and later resumed.
func (p Phase) Working() bool {
	switch p {
	case PhaseSpecCreation, PhasePlanning, PhaseBuilding:
		return true
	default:
		return false
	}
}

// ErrorKind tags the cause recorded in an ErrorDetail.
type ErrorKind string

const (
	ErrorKindCancelled       ErrorKind = "cancelled"
	ErrorKindProviderFailure ErrorKind = "provider_failure"
	ErrorKindInternal        ErrorKind = "internal"
)

// ErrorDetail describes why a session entered the Error phase.
type ErrorDetail struct {
	Kind    ErrorKind         `json:"kind"`
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
}

// Checkpoint is the last known-good progress point for one task.
// A zero Version, empty Phase or zero Timestamp means the field is absent.
type Checkpoint struct {
	Version          int          `json:"version"`
	Phase            Phase        `json:"phase"`
	InterruptedPhase Phase        `json:"interruptedPhase,omitempty"`
	Iteration        int          `json:"iteration"`
	CurrentTask      string       `json:"currentTask,omitempty"`
	CompletedTasks   []string     `json:"completedTasks"`
	Timestamp        time.Time    `json:"timestamp"`
	Error            *ErrorDetail `json:"error,omitempty"`
	CanResume        bool         `json:"canResume"`
	SessionID        string       `json:"sessionId,omitempty"` // assistant session a resume continues
}

// New returns a checkpoint for phase stamped with the current schema version.
func New(phase Phase, iteration int, now time.Time) *Checkpoint {
	return &Checkpoint{
		Version:        CurrentVersion,
		Phase:          phase,
		Iteration:      iteration,
		CompletedTasks: []string{},
		Timestamp:      now,
	}
}

// ResumePhase returns the phase a resume should restart from: the
// interrupted phase for Error checkpoints and the stored phase otherwise.
func (c *Checkpoint) ResumePhase() Phase {
	if c.Phase == PhaseError {
		return c.InterruptedPhase
	}
	return c.Phase
}

// LastTask returns the task in progress, falling back to the most recently
// completed one.
func (c *Checkpoint) LastTask() string {
	if c.CurrentTask != "" {
		return c.CurrentTask
	}
	if n := len(c.CompletedTasks); n > 0 {
		return c.CompletedTasks[n-1]
	}
	return ""
}

// ErrorMessage returns the recorded error message, or "" when none is set.
func (c *Checkpoint) ErrorMessage() string {
	if c.Error == nil {
		return ""
	}
	return c.Error.Message
}

// Clone returns a deep copy so stores never share slices or maps with callers.
func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}
	cp := *c
	if c.CompletedTasks != nil {
		cp.CompletedTasks = append([]string(nil), c.CompletedTasks...)
	}
	if c.Error != nil {
		detail := *c.Error
		if c.Error.Context != nil {
			detail.Context = make(map[string]string, len(c.Error.Context))
			for k, v := range c.Error.Context {
				detail.Context[k] = v
			}
		}
		cp.Error = &detail
	}
	return &cp
}
