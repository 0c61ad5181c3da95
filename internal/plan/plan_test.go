package plan

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePlan = `# Implementation Plan

Some intro text with a [ ] that is not a list item.

- [x] Set up project layout
- [ ] Implement auth
* [ ] Add session store
+ [X] Write README
1. [ ] Wire CLI
- [ ]
- [?] Unknown marker
- plain bullet
`

func TestParse(t *testing.T) {
	t.Parallel()

	tasks := Parse(samplePlan)
	require.Len(t, tasks, 5)

	assert.Equal(t, Task{Description: "Set up project layout", Line: 5, Done: true}, tasks[0])
	assert.Equal(t, Task{Description: "Implement auth", Line: 6}, tasks[1])
	assert.Equal(t, Task{Description: "Add session store", Line: 7}, tasks[2])
	assert.Equal(t, Task{Description: "Write README", Line: 8, Done: true}, tasks[3])
	assert.Equal(t, Task{Description: "Wire CLI", Line: 9}, tasks[4])
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("# Nothing here\n\njust prose\n"))
}

func TestPending(t *testing.T) {
	t.Parallel()

	pending := Pending(Parse(samplePlan))
	require.Len(t, pending, 3)
	assert.Equal(t, "Implement auth", pending[0].Description)
	assert.Equal(t, "Add session store", pending[1].Description)
	assert.Equal(t, "Wire CLI", pending[2].Description)
}

func TestNextTask(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()

	t.Run("missing plan", func(t *testing.T) {
		task, err := NextTask(fs, "/repo/missing.md")
		require.NoError(t, err)
		assert.Nil(t, task)
	})

	t.Run("first unchecked", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fs, "/repo/plan.md", []byte(samplePlan), 0o644))
		task, err := NextTask(fs, "/repo/plan.md")
		require.NoError(t, err)
		require.NotNil(t, task)
		assert.Equal(t, "Implement auth", task.Description)
	})

	t.Run("all done", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fs, "/repo/done.md", []byte("- [x] a\n- [X] b\n"), 0o644))
		task, err := NextTask(fs, "/repo/done.md")
		require.NoError(t, err)
		assert.Nil(t, task)
	})
}

func TestLoad_ReportsExistence(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	_, exists, err := Load(fs, "/nope.md")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, afero.WriteFile(fs, "/empty.md", []byte(""), 0o644))
	tasks, exists, err := Load(fs, "/empty.md")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Empty(t, tasks)
}
