package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"github.com/thruflo/loopsh/internal/assistant"
	"github.com/thruflo/loopsh/internal/checkpoint"
	"github.com/thruflo/loopsh/internal/testutil"
)

const (
	toolUseLine = `{"type":"assistant","message":{"content":[{"type":"tool_use","id":"t1","name":"Edit"}]}}`
	successLine = `{"type":"result","subtype":"success","total_cost_usd":0.1,"num_turns":1,"result":"ok"}`
)

// chdirTemp runs the test inside a fresh temporary project directory and
// restores every package-level hook afterwards.
func chdirTemp(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	originalDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))

	saved := struct {
		dryRun, resume, restart, verbose, force bool
		goal                                    string
		maxIterations                           int
		executor                                assistant.Executor
		lookPath                                func(string) (string, error)
		isTerminal                              func() bool
		input                                   io.Reader
	}{runDryRun, runResume, runRestart, verbose, initForce, runGoal, runMaxIterations, runExecutor, runLookPath, stdinIsTerminal, promptInput}

	runDryRun, runResume, runRestart, verbose, initForce = false, false, false, false, false
	runGoal, runMaxIterations = "", 0
	runLookPath = func(string) (string, error) { return "/usr/bin/claude", nil }
	stdinIsTerminal = func() bool { return false }
	promptInput = strings.NewReader("")

	t.Cleanup(func() {
		os.Chdir(originalDir)
		runDryRun, runResume, runRestart, verbose, initForce = saved.dryRun, saved.resume, saved.restart, saved.verbose, saved.force
		runGoal, runMaxIterations = saved.goal, saved.maxIterations
		runExecutor, runLookPath = saved.executor, saved.lookPath
		stdinIsTerminal, promptInput = saved.isTerminal, saved.input
	})

	// Resolve symlinks so paths match os.Getwd.
	cwd, err := os.Getwd()
	require.NoError(t, err)
	return cwd
}

// execute runs fn as cmd with args and returns what it printed.
func execute(t *testing.T, cmd *cobra.Command, fn func(*cobra.Command, []string) error, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetErr(nil)
	})
	err := fn(cmd, args)
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	testutil.WriteTestFile(t, afero.NewOsFs(), filepath.Dir(path), filepath.Base(path), []byte(content))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func writeCheckpoint(t *testing.T, base, taskID string, c *checkpoint.Checkpoint) {
	t.Helper()
	testutil.WriteCheckpoint(t, checkpoint.NewFileStore(afero.NewOsFs(), base), taskID, c)
}

func checkpointExists(base, taskID string) bool {
	return checkpoint.NewFileStore(afero.NewOsFs(), base).Exists(taskID)
}

func buildingCheckpoint(iteration int, completed ...string) *checkpoint.Checkpoint {
	c := checkpoint.New(checkpoint.PhaseBuilding, iteration, time.Now())
	c.CompletedTasks = append(c.CompletedTasks, completed...)
	return c
}

// checkingOffAssistant checks off the first unchecked item of the plan at
// planPath on every call, like an assistant finishing its task.
func checkingOffAssistant(planPath string) *assistant.MockExecutor {
	return &assistant.MockExecutor{
		ExecuteFunc: func(_ context.Context, _ assistant.Request, onLine func(string)) error {
			data, err := os.ReadFile(planPath)
			if err == nil {
				updated := strings.Replace(string(data), "- [ ]", "- [x]", 1)
				if err := os.WriteFile(planPath, []byte(updated), 0o644); err != nil {
					return err
				}
			}
			onLine(toolUseLine)
			onLine(successLine)
			return nil
		},
	}
}
