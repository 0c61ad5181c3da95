package effect

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thruflo/loopsh/internal/actionlog"
	"github.com/thruflo/loopsh/internal/assistant"
)

// snapshot maps every file on fs to its content.
func snapshot(t *testing.T, fs afero.Fs) map[string]string {
	t.Helper()
	files := make(map[string]string)
	err := afero.Walk(fs, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return err
		}
		files[path] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

func seededFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/repo/PLAN.md", []byte("- [ ] Implement auth\n- [ ] Add tests\n"), 0o644))
	return fs
}

type op int

const (
	opCheckTool op = iota
	opCreateSession
	opActivateSession
	opDeleteSession
	opReadNextTask
	opInvoke
	opWriteFile
)

// run issues ops against p in order. Session ops act on the most recently
// created session; each write goes to its own file.
func run(t *testing.T, p Provider, ops []op) {
	t.Helper()

	var session string
	writes := 0
	for _, o := range ops {
		switch o {
		case opCheckTool:
			require.True(t, p.CheckToolAvailable())
		case opCreateSession:
			h, err := p.CreateSession("feat-auth")
			require.NoError(t, err)
			session = h.ID
		case opActivateSession:
			require.NoError(t, p.ActivateSession(session))
		case opDeleteSession:
			require.NoError(t, p.DeleteSession(session))
		case opReadNextTask:
			_, err := p.ReadNextTask("PLAN.md")
			require.NoError(t, err)
		case opInvoke:
			res, err := p.InvokeAssistant(context.Background(), "implement the next task", InvokeOptions{Label: "building"})
			require.NoError(t, err)
			require.True(t, res.Success)
		case opWriteFile:
			writes++
			require.NoError(t, p.WriteFile(fmt.Sprintf("out-%d.md", writes), []byte(fmt.Sprintf("write %d\n", writes))))
		}
	}
}

func count(ops []op, want op) int {
	n := 0
	for _, o := range ops {
		if o == want {
			n++
		}
	}
	return n
}

func TestShadowFidelity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ops  []op
	}{
		{"empty", nil},
		{"single invoke", []op{opInvoke}},
		{"writes only", []op{opWriteFile, opWriteFile, opWriteFile}},
		{"reads only", []op{opReadNextTask, opReadNextTask}},
		{"build iteration", []op{
			opCheckTool, opCreateSession, opActivateSession,
			opReadNextTask, opInvoke, opWriteFile, opDeleteSession,
		}},
		{"several iterations", []op{
			opCheckTool, opCreateSession, opActivateSession,
			opReadNextTask, opInvoke, opWriteFile,
			opReadNextTask, opInvoke, opWriteFile,
			opReadNextTask, opInvoke, opInvoke, opWriteFile,
		}},
		{"session churn", []op{
			opCreateSession, opActivateSession, opDeleteSession,
			opCreateSession, opActivateSession, opInvoke,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fs := seededFs(t)
			before := snapshot(t, fs)
			exec := &assistant.MockExecutor{ExecuteFunc: emitting(successLine)}

			sim := NewSimulated(SimulatedOptions{FS: fs, WorkDir: "/repo"})
			run(t, sim, tt.ops)

			assert.Equal(t, len(tt.ops), sim.Log().Len(), "one entry per call")
			assert.Equal(t, before, snapshot(t, fs), "no filesystem mutation")
			assert.Equal(t, 0, exec.Calls(), "no assistant invocation")

			r := sim.Summarize()
			assert.Equal(t, count(tt.ops, opInvoke), r.Count(actionlog.AICall))
			assert.Equal(t, count(tt.ops, opWriteFile), r.Count(actionlog.FileWrite))
			assert.Equal(t, count(tt.ops, opReadNextTask), r.Count(actionlog.Task))
			assert.Equal(t, 0, r.FilesModified)
			assert.Equal(t, 0, r.TokensSpent)

			// The same calls through Real on the same fs and executor
			// produce the effects the dry run only recorded.
			rp := NewReal(RealOptions{
				FS:        fs,
				WorkDir:   "/repo",
				TaskDir:   "/repo/.loopsh/tasks/feat-auth",
				Executor:  exec,
				Assistant: assistant.Options{Command: "claude"},
				LookPath:  func(string) (string, error) { return "/bin/claude", nil },
			})
			run(t, rp, tt.ops)

			assert.Equal(t, count(tt.ops, opInvoke), exec.Calls())
			after := snapshot(t, fs)
			for i := 1; i <= count(tt.ops, opWriteFile); i++ {
				assert.Equal(t, fmt.Sprintf("write %d\n", i), after[fmt.Sprintf("/repo/out-%d.md", i)])
			}
			_, hasSessions := after["/repo/.loopsh/tasks/feat-auth/sessions.yaml"]
			assert.Equal(t, count(tt.ops, opCreateSession) > 0, hasSessions)
		})
	}
}
