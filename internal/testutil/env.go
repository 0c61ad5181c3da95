package testutil

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/thruflo/loopsh/internal/checkpoint"
)

// SetupMemFS returns an in-memory filesystem with the .loopsh structure under
// basePath and a FileStore over it.
func SetupMemFS(t *testing.T, basePath string) (afero.Fs, *checkpoint.FileStore) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(checkpoint.TasksDir(basePath), 0o755))
	return fs, checkpoint.NewFileStore(fs, basePath)
}

// WriteCheckpoint stores c for taskID, failing the test on error.
func WriteCheckpoint(t *testing.T, store checkpoint.Store, taskID string, c *checkpoint.Checkpoint) {
	t.Helper()
	require.NoError(t, store.Write(taskID, c))
}

// ReadCheckpoint loads the checkpoint for taskID, failing the test on error
// or when none is stored.
func ReadCheckpoint(t *testing.T, store checkpoint.Store, taskID string) *checkpoint.Checkpoint {
	t.Helper()
	c, err := store.Read(taskID)
	require.NoError(t, err)
	require.NotNil(t, c, "no checkpoint stored for %s", taskID)
	return c
}

// MustMarshalJSON marshals a value to JSON, failing the test on error.
// Uses indented format for readability.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	return data
}

// MustUnmarshalJSON unmarshals JSON data into v, failing the test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(data, v))
}

// WriteTestFile writes content to a file in the test directory.
// Creates parent directories as needed.
func WriteTestFile(t *testing.T, fs afero.Fs, basePath, relativePath string, content []byte) {
	t.Helper()
	fullPath := filepath.Join(basePath, relativePath)
	require.NoError(t, fs.MkdirAll(filepath.Dir(fullPath), 0o755))
	require.NoError(t, afero.WriteFile(fs, fullPath, content, 0o644))
}
