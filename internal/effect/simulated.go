package effect

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
	"github.com/thruflo/loopsh/internal/actionlog"
	"github.com/thruflo/loopsh/internal/plan"
)

// SimulatedOutput is the assistant output reported by every dry-run call.
const SimulatedOutput = "[dry run] assistant call skipped"

// SimulatedOptions holds the dependencies of a Simulated provider.
type SimulatedOptions struct {
	Log     *actionlog.Log
	FS      afero.Fs // only read, to inspect the real plan file
	WorkDir string
	Model   string // reported in AICall details
}

// Simulated records intended operations instead of performing them.
type Simulated struct {
	log     *actionlog.Log
	fs      afero.Fs
	workDir string
	model   string

	sessions int
	handed   map[string]int // tasks handed out per plan path
}

// NewSimulated creates a Simulated provider. The action log is reset so
// the run starts from an empty record.
func NewSimulated(o SimulatedOptions) *Simulated {
	log := o.Log
	if log == nil {
		log = actionlog.New()
	}
	log.Reset()

	fs := o.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	return &Simulated{
		log:     log,
		fs:      afero.NewReadOnlyFs(fs),
		workDir: o.WorkDir,
		model:   o.Model,
		handed:  make(map[string]int),
	}
}

// Mode returns ModeSimulated.
func (s *Simulated) Mode() Mode { return ModeSimulated }

// Log returns the action log the provider records into.
func (s *Simulated) Log() *actionlog.Log { return s.log }

// Summarize reports what the run would have done.
func (s *Simulated) Summarize() actionlog.Report {
	return s.log.Summarize()
}

// Close ends the dry run and clears the action log. Callers render the
// summary first.
func (s *Simulated) Close() {
	s.log.Reset()
}

func (s *Simulated) resolve(p string) string {
	if filepath.IsAbs(p) || s.workDir == "" {
		return p
	}
	return filepath.Join(s.workDir, p)
}

// InvokeAssistant records an AICall and reports success without running
// anything. The prompt itself is never recorded, only its length.
func (s *Simulated) InvokeAssistant(_ context.Context, prompt string, opts InvokeOptions) (*InvokeResult, error) {
	model := opts.Model
	if model == "" {
		model = s.model
	}
	if model == "" {
		model = "default"
	}

	desc := "invoke assistant"
	if opts.Label != "" {
		desc = fmt.Sprintf("invoke assistant (%s)", opts.Label)
	}
	s.log.Add(actionlog.AICall, desc,
		"prompt_length", strconv.Itoa(len(prompt)),
		"model", model,
	)

	return &InvokeResult{Success: true, Output: SimulatedOutput}, nil
}

// WriteFile records a FileWrite. Nothing is written.
func (s *Simulated) WriteFile(path string, content []byte) error {
	s.log.Add(actionlog.FileWrite, "write "+path,
		"path", path,
		"bytes", strconv.Itoa(len(content)),
	)
	return nil
}

// CreateSession records the creation and returns a deterministic handle.
func (s *Simulated) CreateSession(name string) (*SessionHandle, error) {
	s.sessions++
	id := fmt.Sprintf("dry-run-session-%d", s.sessions)
	s.log.Add(actionlog.Command, "create assistant session "+name, "name", name, "id", id)
	return &SessionHandle{ID: id, Name: name}, nil
}

// ActivateSession records the activation.
func (s *Simulated) ActivateSession(id string) error {
	s.log.Add(actionlog.Command, "activate assistant session", "id", id)
	return nil
}

// DeleteSession records the deletion.
func (s *Simulated) DeleteSession(id string) error {
	s.log.Add(actionlog.Command, "delete assistant session", "id", id)
	return nil
}

// ReadNextTask inspects the real plan read-only. While the plan has
// unchecked items they are handed out in order, one per call, since a dry
// run never checks anything off; after that, or when the plan is missing,
// it reports that planning is needed.
func (s *Simulated) ReadNextTask(planPath string) (*plan.Task, error) {
	tasks, exists, err := plan.Load(s.fs, s.resolve(planPath))

	var next *plan.Task
	result := "planning needed"
	switch {
	case err != nil:
		result = "plan unreadable; planning needed"
	case !exists:
		result = "plan missing; planning needed"
	default:
		pending := plan.Pending(tasks)
		if k := s.handed[planPath]; k < len(pending) {
			t := pending[k]
			t.Simulated = true
			next = &t
			s.handed[planPath] = k + 1
			result = "next: " + t.Description
		}
	}

	s.log.Add(actionlog.Task, "read next task from "+planPath, "plan", planPath, "result", result)
	return next, nil
}

// CheckToolAvailable records the check and reports the tool as available.
func (s *Simulated) CheckToolAvailable() bool {
	s.log.Add(actionlog.Command, "check assistant CLI availability")
	return true
}
