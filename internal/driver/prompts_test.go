package driver

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPrompt_Defaults(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	data := PromptData{
		Goal:           "Add authentication",
		SpecPath:       "SPEC.md",
		PlanPath:       "PLAN.md",
		Task:           "Add logout",
		CompletedTasks: []string{"Add login"},
	}

	spec, err := renderPrompt(fs, "/tmpl", SpecTemplate, data)
	require.NoError(t, err)
	assert.Contains(t, spec, "to SPEC.md")
	assert.Contains(t, spec, "Goal: Add authentication")

	build, err := renderPrompt(fs, "/tmpl", BuildTemplate, data)
	require.NoError(t, err)
	assert.Contains(t, build, "Implement the next task from PLAN.md:\n\nAdd logout\n")
	assert.Contains(t, build, "Already completed:\n- Add login\n")
}

func TestRenderPrompt_BuildWithoutHistory(t *testing.T) {
	t.Parallel()

	out, err := renderPrompt(afero.NewMemMapFs(), "", BuildTemplate, PromptData{PlanPath: "PLAN.md", Task: "x"})
	require.NoError(t, err)
	assert.NotContains(t, out, "Already completed")
}

func TestRenderPrompt_Override(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/tmpl/plan.md", []byte("Plan {{.SpecPath}} into {{.PlanPath}}"), 0o644))

	out, err := renderPrompt(fs, "/tmpl", PlanTemplate, PromptData{SpecPath: "a.md", PlanPath: "b.md"})
	require.NoError(t, err)
	assert.Equal(t, "Plan a.md into b.md", out)
}

func TestRenderPrompt_Errors(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/tmpl/build.md", []byte("{{.Task"), 0o644))

	_, err := renderPrompt(fs, "/tmpl", BuildTemplate, PromptData{})
	assert.ErrorContains(t, err, "failed to parse template build.md")

	_, err = renderPrompt(fs, "/tmpl", "review.md", PromptData{})
	assert.ErrorContains(t, err, "unknown template review.md")
}

func TestProgressLog(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "# Progress\n\n", string(progressLog(nil)))
	assert.Equal(t, "# Progress\n\n- [x] a\n- [x] b\n", string(progressLog([]string{"a", "b"})))
}
