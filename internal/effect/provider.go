package effect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thruflo/loopsh/internal/plan"
)

// Mode selects which Provider implementation a run uses. It is chosen once
// before the run starts.
type Mode int

const (
	ModeReal Mode = iota
	ModeSimulated
)

// String returns "real" or "dry-run".
func (m Mode) String() string {
	if m == ModeSimulated {
		return "dry-run"
	}
	return "real"
}

// InvokeOptions tunes a single assistant call.
type InvokeOptions struct {
	Label    string // phase or purpose, for logs and the action log
	Model    string
	MaxTurns int
}

// InvokeResult is the outcome of an assistant call.
type InvokeResult struct {
	Success  bool
	Output   string
	Duration time.Duration
	CostUSD  float64
	NumTurns int
}

// Provider performs the side effects of a loop run.
type Provider interface {
	Mode() Mode
	InvokeAssistant(ctx context.Context, prompt string, opts InvokeOptions) (*InvokeResult, error)
	WriteFile(path string, content []byte) error
	CreateSession(name string) (*SessionHandle, error)
	ActivateSession(id string) error
	DeleteSession(id string) error
	// ReadNextTask returns nil when the plan is missing or has no unchecked
	// items, meaning planning is needed.
	ReadNextTask(planPath string) (*plan.Task, error)
	CheckToolAvailable() bool
}

// Sentinel errors matched with errors.Is.
var (
	// ErrProviderFailure marks a failed real operation.
	ErrProviderFailure = errors.New("provider operation failed")
	// ErrCancelled marks an operation interrupted by the user. It is
	// neither a success nor an ordinary failure.
	ErrCancelled = errors.New("operation cancelled")
)

// ProviderError reports a failed real operation. Mutated is set when the
// operation may already have changed the workspace before failing.
type ProviderError struct {
	Op      string
	Mutated bool
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is matches ErrProviderFailure.
func (e *ProviderError) Is(target error) bool { return target == ErrProviderFailure }

// CancelledError reports an interrupted operation. Mutated is set when the
// interrupted operation had already started changing the workspace, in
// which case the interrupted step cannot safely be replayed.
type CancelledError struct {
	Op      string
	Mutated bool
	Err     error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s cancelled: %v", e.Op, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// Is matches ErrCancelled.
func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

// Mutated reports whether err says the failed or cancelled operation may
// have partially changed the workspace. Unknown errors are assumed to have.
func Mutated(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Mutated
	}
	var ce *CancelledError
	if errors.As(err, &ce) {
		return ce.Mutated
	}
	return err != nil
}
