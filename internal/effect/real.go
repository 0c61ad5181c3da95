package effect

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"
	"github.com/thruflo/loopsh/internal/assistant"
	"github.com/thruflo/loopsh/internal/logging"
	"github.com/thruflo/loopsh/internal/plan"
)

// RealOptions holds the dependencies of a Real provider.
type RealOptions struct {
	FS        afero.Fs
	WorkDir   string // project root; relative paths resolve against it
	TaskDir   string // where the session registry lives
	Executor  assistant.Executor
	Assistant assistant.Options
	Env       map[string]string
	LookPath  func(string) (string, error) // defaults to exec.LookPath
	Logger    *logging.Logger
	Now       func() time.Time
}

// Real performs actual side effects.
type Real struct {
	fs       afero.Fs
	workDir  string
	executor assistant.Executor
	opts     assistant.Options
	env      []string
	lookPath func(string) (string, error)
	sessions *SessionRegistry
	log      *logging.Logger
	now      func() time.Time
}

// NewReal creates a Real provider.
func NewReal(o RealOptions) *Real {
	fs := o.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	lookPath := o.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	logger := o.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := o.Now
	if now == nil {
		now = time.Now
	}

	keys := make([]string, 0, len(o.Env))
	for k := range o.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+o.Env[k])
	}

	sessions := NewSessionRegistry(fs, o.TaskDir)
	sessions.now = now

	return &Real{
		fs:       fs,
		workDir:  o.WorkDir,
		executor: o.Executor,
		opts:     o.Assistant,
		env:      env,
		lookPath: lookPath,
		sessions: sessions,
		log:      logger,
		now:      now,
	}
}

// Mode returns ModeReal.
func (r *Real) Mode() Mode { return ModeReal }

func (r *Real) resolve(p string) string {
	if filepath.IsAbs(p) || r.workDir == "" {
		return p
	}
	return filepath.Join(r.workDir, p)
}

// InvokeAssistant runs the assistant CLI once in the active session.
// A cancelled context yields a *CancelledError; any other failure a
// *ProviderError. Both carry whether a tool was used before the call ended.
func (r *Real) InvokeAssistant(ctx context.Context, prompt string, opts InvokeOptions) (*InvokeResult, error) {
	const op = "invoke assistant"

	if r.executor == nil {
		return nil, &ProviderError{Op: op, Err: errors.New("no executor configured")}
	}

	session, err := r.sessions.Active()
	if err != nil {
		return nil, &ProviderError{Op: op, Err: err}
	}

	call := assistant.CallArgs{Prompt: prompt, Model: opts.Model, MaxTurns: opts.MaxTurns}
	if session != nil {
		call.SessionID = session.ID
		call.Resume = session.Used
	}
	req := assistant.Request{
		Dir:     r.workDir,
		Command: r.opts.Command,
		Args:    r.opts.BuildArgs(call),
		Env:     r.env,
	}

	r.log.Debug("invoking assistant", "label", opts.Label, "prompt_length", len(prompt), "session", call.SessionID, "resume", call.Resume)

	var tr assistant.Transcript
	start := r.now()
	execErr := r.executor.Execute(ctx, req, tr.Feed)
	result := &InvokeResult{
		Output:   tr.Output(),
		Duration: r.now().Sub(start),
		CostUSD:  tr.CostUSD,
		NumTurns: tr.Turns,
	}

	if session != nil && (tr.Lines > 0 || execErr == nil) {
		if err := r.sessions.MarkUsed(session.ID); err != nil {
			r.log.Warn("failed to mark session used", "session", session.ID, "error", err)
		}
	}

	if ctx.Err() != nil || errors.Is(execErr, context.Canceled) {
		cause := ctx.Err()
		if cause == nil {
			cause = execErr
		}
		return result, &CancelledError{Op: op, Mutated: tr.Mutated(), Err: cause}
	}
	if execErr != nil {
		return result, &ProviderError{Op: op, Mutated: tr.Mutated(), Err: execErr}
	}
	if tr.Completed && !tr.Success {
		return result, &ProviderError{Op: op, Mutated: tr.Mutated(), Err: fmt.Errorf("assistant reported an error result: %s", tr.Output())}
	}

	result.Success = true
	r.log.Info("assistant call finished", "label", opts.Label, "duration", result.Duration.Round(time.Millisecond), "cost_usd", result.CostUSD, "turns", result.NumTurns)
	return result, nil
}

// WriteFile writes content to path, creating parent directories.
func (r *Real) WriteFile(path string, content []byte) error {
	full := r.resolve(path)
	if err := r.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return &ProviderError{Op: "write file", Err: err}
	}
	if err := afero.WriteFile(r.fs, full, content, 0o644); err != nil {
		return &ProviderError{Op: "write file", Mutated: true, Err: err}
	}
	return nil
}

// CreateSession registers a new assistant session.
func (r *Real) CreateSession(name string) (*SessionHandle, error) {
	h, err := r.sessions.Create(name)
	if err != nil {
		return nil, &ProviderError{Op: "create session", Err: err}
	}
	return h, nil
}

// ActivateSession selects the session later calls run in.
func (r *Real) ActivateSession(id string) error {
	if err := r.sessions.Activate(id); err != nil {
		return &ProviderError{Op: "activate session", Err: err}
	}
	return nil
}

// DeleteSession forgets a session.
func (r *Real) DeleteSession(id string) error {
	if err := r.sessions.Delete(id); err != nil {
		return &ProviderError{Op: "delete session", Err: err}
	}
	return nil
}

// ReadNextTask returns the first unchecked item of the plan.
func (r *Real) ReadNextTask(planPath string) (*plan.Task, error) {
	task, err := plan.NextTask(r.fs, r.resolve(planPath))
	if err != nil {
		return nil, &ProviderError{Op: "read next task", Err: err}
	}
	return task, nil
}

// CheckToolAvailable reports whether the assistant command is on PATH.
func (r *Real) CheckToolAvailable() bool {
	_, err := r.lookPath(r.opts.Command)
	return err == nil
}
