package assistant

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// ErrEmptyCommand is returned when a Request names no command.
var ErrEmptyCommand = errors.New("no command specified")

// Request describes one assistant process invocation.
type Request struct {
	Dir     string
	Command string
	Args    []string
	Env     []string // extra KEY=VALUE pairs appended to the parent environment
}

// Executor runs the assistant CLI. onLine receives every stdout and stderr
// line in arrival order.
type Executor interface {
	Execute(ctx context.Context, req Request, onLine func(string)) error
}

// LocalExecutor runs the assistant as a local child process.
type LocalExecutor struct{}

// NewLocalExecutor creates a LocalExecutor.
func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{}
}

// Execute starts the process and streams its output until it exits or ctx is
// cancelled. A cancelled context is reported as ctx.Err().
func (e *LocalExecutor) Execute(ctx context.Context, req Request, onLine func(string)) error {
	if req.Command == "" {
		return ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, req.Command, req.Args...)
	cmd.Dir = req.Dir
	cmd.Env = append(os.Environ(), req.Env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", req.Command, err)
	}

	// Both pipes feed one callback; serialize so callers stay single-threaded.
	var mu sync.Mutex
	emit := func(line string) {
		if onLine == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		onLine(line)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- scanLines(stdout, emit) }()
	go func() { errCh <- scanLines(stderr, emit) }()
	streamErr1 := <-errCh
	streamErr2 := <-errCh

	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return fmt.Errorf("%s exited with code %d", req.Command, exitErr.ExitCode())
		}
		return fmt.Errorf("%s failed: %w", req.Command, waitErr)
	}
	if streamErr1 != nil {
		return fmt.Errorf("failed to read output: %w", streamErr1)
	}
	if streamErr2 != nil {
		return fmt.Errorf("failed to read output: %w", streamErr2)
	}
	return nil
}

func scanLines(r io.Reader, emit func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		emit(scanner.Text())
	}
	return scanner.Err()
}

// MockExecutor is a test double for Executor.
type MockExecutor struct {
	// ExecuteFunc is called when Execute is invoked. If nil, Execute
	// returns nil without output.
	ExecuteFunc func(ctx context.Context, req Request, onLine func(string)) error

	mu       sync.Mutex
	requests []Request
}

// Execute records req and calls ExecuteFunc if set.
func (m *MockExecutor) Execute(ctx context.Context, req Request, onLine func(string)) error {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, req, onLine)
	}
	return nil
}

// Requests returns every request seen so far.
func (m *MockExecutor) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Calls returns how many times Execute was invoked.
func (m *MockExecutor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
