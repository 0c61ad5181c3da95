package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thruflo/loopsh/internal/actionlog"
	"github.com/thruflo/loopsh/internal/checkpoint"
)

// AssertCheckpointPhase asserts that a checkpoint is stored in the expected
// phase.
func AssertCheckpointPhase(t *testing.T, c *checkpoint.Checkpoint, expected checkpoint.Phase) {
	t.Helper()
	require.NotNil(t, c, "checkpoint is nil")
	assert.Equal(t, expected, c.Phase, "checkpoint phase mismatch")
}

// AssertResumable asserts that a checkpoint is valid and can be resumed from
// its working phase.
func AssertResumable(t *testing.T, c *checkpoint.Checkpoint) {
	t.Helper()
	require.NotNil(t, c, "checkpoint is nil")
	assert.NoError(t, checkpoint.Check(c), "checkpoint should be valid")
	assert.True(t, c.CanResume, "checkpoint should be resumable")
	assert.True(t, c.ResumePhase().Working(), "resume phase %q is not a working phase", c.ResumePhase())
}

// AssertNotResumable asserts that a checkpoint cannot be resumed.
func AssertNotResumable(t *testing.T, c *checkpoint.Checkpoint) {
	t.Helper()
	require.NotNil(t, c, "checkpoint is nil")
	assert.False(t, c.CanResume && c.ResumePhase().Working(), "checkpoint should not be resumable")
}

// AssertCheckpointError asserts that a checkpoint records an error of the
// expected kind and remembers the phase it interrupted.
func AssertCheckpointError(t *testing.T, c *checkpoint.Checkpoint, kind checkpoint.ErrorKind, interrupted checkpoint.Phase) {
	t.Helper()
	AssertCheckpointPhase(t, c, checkpoint.PhaseError)
	require.NotNil(t, c.Error, "checkpoint has no error detail")
	assert.Equal(t, kind, c.Error.Kind, "error kind mismatch")
	assert.Equal(t, interrupted, c.InterruptedPhase, "interrupted phase mismatch")
}

// AssertCompletedTasks asserts the completed task list of a checkpoint.
func AssertCompletedTasks(t *testing.T, c *checkpoint.Checkpoint, expected ...string) {
	t.Helper()
	require.NotNil(t, c, "checkpoint is nil")
	if len(expected) == 0 {
		assert.Empty(t, c.CompletedTasks, "expected no completed tasks")
		return
	}
	assert.Equal(t, expected, c.CompletedTasks, "completed tasks mismatch")
}

// AssertReportCounts asserts the per-type entry counts of a dry-run report.
// Types missing from expected must not appear in the report.
func AssertReportCounts(t *testing.T, r actionlog.Report, expected map[actionlog.ActionType]int) {
	t.Helper()

	total := 0
	for _, typ := range actionlog.Types {
		want := expected[typ]
		total += want
		assert.Equal(t, want, r.Count(typ), "%s count mismatch", typ)
	}
	assert.Equal(t, total, r.Total, "report total mismatch")
}
