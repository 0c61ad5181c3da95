package effect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thruflo/loopsh/internal/assistant"
	"github.com/thruflo/loopsh/internal/testutil"
)

const (
	initLine    = `{"type":"system","subtype":"init","session_id":"s-1"}`
	textLine    = `{"type":"assistant","message":{"content":[{"type":"text","text":"Thinking"}]}}`
	toolUseLine = `{"type":"assistant","message":{"content":[{"type":"tool_use","id":"t1","name":"Edit"}]}}`
	successLine = `{"type":"result","subtype":"success","total_cost_usd":0.25,"num_turns":2,"result":"done"}`
	errorLine   = `{"type":"result","subtype":"error_during_execution","is_error":true,"result":"tool crashed"}`
)

func emitting(lines ...string) func(context.Context, assistant.Request, func(string)) error {
	return func(_ context.Context, _ assistant.Request, onLine func(string)) error {
		for _, l := range lines {
			onLine(l)
		}
		return nil
	}
}

func newTestReal(t *testing.T, exec *assistant.MockExecutor) (*Real, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	r := NewReal(RealOptions{
		FS:       fs,
		WorkDir:  "/repo",
		TaskDir:  "/repo/.loopsh/tasks/t1",
		Executor: exec,
		Assistant: assistant.Options{
			Command:      "claude",
			OutputFormat: "stream-json",
			Verbose:      true,
		},
		Env:      map[string]string{"B": "2", "A": "1"},
		LookPath: func(string) (string, error) { return "/usr/bin/claude", nil },
	})
	return r, fs
}

func TestReal_InvokeAssistant_Success(t *testing.T) {
	t.Parallel()

	exec := &assistant.MockExecutor{ExecuteFunc: emitting(initLine, textLine, successLine)}
	r, _ := newTestReal(t, exec)

	ctx, cancel := testutil.AssistantCallContext(t)
	defer cancel()

	res, err := r.InvokeAssistant(ctx, "plan the work", InvokeOptions{Label: "planning", Model: "opus"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "done", res.Output)
	assert.InDelta(t, 0.25, res.CostUSD, 1e-9)
	assert.Equal(t, 2, res.NumTurns)

	reqs := exec.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "claude", reqs[0].Command)
	assert.Equal(t, "/repo", reqs[0].Dir)
	assert.Equal(t, []string{"A=1", "B=2"}, reqs[0].Env)
	assert.Equal(t, []string{"-p", "plan the work", "--output-format", "stream-json", "--verbose", "--model", "opus"}, reqs[0].Args)
}

func TestReal_InvokeAssistant_UsesActiveSession(t *testing.T) {
	t.Parallel()

	exec := &assistant.MockExecutor{ExecuteFunc: emitting(successLine)}
	r, _ := newTestReal(t, exec)

	h, err := r.CreateSession("feat")
	require.NoError(t, err)
	require.NoError(t, r.ActivateSession(h.ID))

	ctx, cancel := testutil.AssistantCallContext(t)
	defer cancel()

	_, err = r.InvokeAssistant(ctx, "one", InvokeOptions{})
	require.NoError(t, err)
	_, err = r.InvokeAssistant(ctx, "two", InvokeOptions{})
	require.NoError(t, err)

	reqs := exec.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].Args, "--session-id")
	assert.NotContains(t, reqs[0].Args, "--resume")
	assert.Contains(t, reqs[1].Args, "--resume")
	assert.Contains(t, reqs[1].Args, h.ID)
}

func TestReal_InvokeAssistant_Cancelled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		lines       []string
		wantMutated bool
	}{
		{"before any tool use", []string{initLine, textLine}, false},
		{"after tool use", []string{initLine, toolUseLine}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			exec := &assistant.MockExecutor{
				ExecuteFunc: func(ctx context.Context, _ assistant.Request, onLine func(string)) error {
					for _, l := range tt.lines {
						onLine(l)
					}
					cancel()
					<-ctx.Done()
					return ctx.Err()
				},
			}
			r, _ := newTestReal(t, exec)

			res, err := r.InvokeAssistant(ctx, "build", InvokeOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCancelled)
			assert.ErrorIs(t, err, context.Canceled)
			assert.NotErrorIs(t, err, ErrProviderFailure)
			assert.Equal(t, tt.wantMutated, Mutated(err))
			require.NotNil(t, res)
			assert.False(t, res.Success)
		})
	}
}

func TestReal_InvokeAssistant_Failure(t *testing.T) {
	t.Parallel()

	exec := &assistant.MockExecutor{
		ExecuteFunc: func(_ context.Context, _ assistant.Request, onLine func(string)) error {
			onLine(toolUseLine)
			return errors.New("claude exited with code 1")
		},
	}
	r, _ := newTestReal(t, exec)

	_, err := r.InvokeAssistant(context.Background(), "build", InvokeOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.NotErrorIs(t, err, ErrCancelled)
	assert.True(t, Mutated(err))
	assert.Contains(t, err.Error(), "exited with code 1")
}

func TestReal_InvokeAssistant_ErrorResult(t *testing.T) {
	t.Parallel()

	exec := &assistant.MockExecutor{ExecuteFunc: emitting(initLine, errorLine)}
	r, _ := newTestReal(t, exec)

	res, err := r.InvokeAssistant(context.Background(), "build", InvokeOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.False(t, Mutated(err))
	assert.Contains(t, err.Error(), "tool crashed")
	assert.False(t, res.Success)
}

func TestReal_InvokeAssistant_NoExecutor(t *testing.T) {
	t.Parallel()

	r := NewReal(RealOptions{FS: afero.NewMemMapFs(), TaskDir: "/t"})
	_, err := r.InvokeAssistant(context.Background(), "x", InvokeOptions{})
	assert.ErrorIs(t, err, ErrProviderFailure)
}

func TestReal_InvokeAssistant_Duration(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	calls := 0
	exec := &assistant.MockExecutor{ExecuteFunc: emitting(successLine)}
	r := NewReal(RealOptions{
		FS:       afero.NewMemMapFs(),
		TaskDir:  "/t",
		Executor: exec,
		Now: func() time.Time {
			calls++
			return ts.Add(time.Duration(calls) * 3 * time.Second)
		},
	})

	res, err := r.InvokeAssistant(context.Background(), "x", InvokeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, res.Duration)
}

func TestReal_WriteFile(t *testing.T) {
	t.Parallel()

	r, fs := newTestReal(t, &assistant.MockExecutor{})

	require.NoError(t, r.WriteFile("notes/PROGRESS.md", []byte("hello")))
	require.NoError(t, r.WriteFile("/abs/out.txt", []byte("abs")))

	data, err := afero.ReadFile(fs, "/repo/notes/PROGRESS.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	data, err = afero.ReadFile(fs, "/abs/out.txt")
	require.NoError(t, err)
	assert.Equal(t, "abs", string(data))
}

func TestReal_WriteFile_ReadOnlyFs(t *testing.T) {
	t.Parallel()

	r := NewReal(RealOptions{FS: afero.NewReadOnlyFs(afero.NewMemMapFs()), WorkDir: "/repo", TaskDir: "/t"})
	err := r.WriteFile("x.txt", []byte("x"))
	assert.ErrorIs(t, err, ErrProviderFailure)
}

func TestReal_ReadNextTask(t *testing.T) {
	t.Parallel()

	r, fs := newTestReal(t, &assistant.MockExecutor{})

	task, err := r.ReadNextTask("PLAN.md")
	require.NoError(t, err)
	assert.Nil(t, task)

	require.NoError(t, afero.WriteFile(fs, "/repo/PLAN.md", []byte("- [x] done\n- [ ] Implement auth\n"), 0o644))
	task, err = r.ReadNextTask("PLAN.md")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "Implement auth", task.Description)
	assert.False(t, task.Simulated)
}

func TestReal_CheckToolAvailable(t *testing.T) {
	t.Parallel()

	var looked string
	r := NewReal(RealOptions{
		FS:        afero.NewMemMapFs(),
		TaskDir:   "/t",
		Assistant: assistant.Options{Command: "claude"},
		LookPath: func(name string) (string, error) {
			looked = name
			return "", errors.New("not found")
		},
	})

	assert.False(t, r.CheckToolAvailable())
	assert.Equal(t, "claude", looked)

	r2, _ := newTestReal(t, &assistant.MockExecutor{})
	assert.True(t, r2.CheckToolAvailable())
	assert.Equal(t, ModeReal, r2.Mode())
}

func TestReal_SessionErrors(t *testing.T) {
	t.Parallel()

	r, _ := newTestReal(t, &assistant.MockExecutor{})
	err := r.ActivateSession("nope")
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.ErrorIs(t, err, ErrUnknownSession)

	assert.ErrorIs(t, r.DeleteSession("nope"), ErrUnknownSession)
}
