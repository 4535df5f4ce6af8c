package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T) (*Runtime, string) {
	t.Helper()
	dir := t.TempDir()
	return NewRuntime(dir, 5), dir
}

func TestReadFile_TracksForLaterEdit(t *testing.T) {
	rt, _ := newTestRuntime(t)
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("line one\nline two\n"), 0o644))

	out, err := rt.executeReadFile(context.Background(), map[string]any{"path": path})
	require.NoError(t, err)
	assert.Contains(t, out, "line one")

	tracked, matches := rt.Tracker.Check(path, []byte("line one\nline two\n"))
	assert.True(t, tracked)
	assert.True(t, matches)
}

func TestReadFile_MissingPath(t *testing.T) {
	rt, _ := newTestRuntime(t)
	_, err := rt.executeReadFile(context.Background(), map[string]any{"path": filepath.Join(t.TempDir(), "missing.txt")})
	assert.ErrorContains(t, err, "NotFound")
}

func TestEditFile_RequiresPriorRead(t *testing.T) {
	rt, _ := newTestRuntime(t)
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	_, err := rt.executeEditFile(context.Background(), map[string]any{
		"path": path, "search": "hello", "replace": "goodbye",
	})
	assert.ErrorContains(t, err, "StaleRead")
}

func TestEditFile_RefusesStaleReadAfterExternalChange(t *testing.T) {
	rt, _ := newTestRuntime(t)
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	_, err := rt.executeReadFile(context.Background(), map[string]any{"path": path})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("modified elsewhere"), 0o644))

	_, err = rt.executeEditFile(context.Background(), map[string]any{
		"path": path, "search": "hello", "replace": "goodbye",
	})
	assert.ErrorContains(t, err, "StaleRead")
}

func TestEditFile_AmbiguousMatchRejected(t *testing.T) {
	rt, _ := newTestRuntime(t)
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("foo\nfoo\n"), 0o644))

	_, err := rt.executeReadFile(context.Background(), map[string]any{"path": path})
	require.NoError(t, err)

	_, err = rt.executeEditFile(context.Background(), map[string]any{
		"path": path, "search": "foo", "replace": "bar",
	})
	assert.ErrorContains(t, err, "Ambiguous")
}

func TestEditFile_SuccessfulReplaceBacksUpAndRefreshesTracker(t *testing.T) {
	rt, backupDir := newTestRuntime(t)
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	_, err := rt.executeReadFile(context.Background(), map[string]any{"path": path})
	require.NoError(t, err)

	diff, err := rt.executeEditFile(context.Background(), map[string]any{
		"path": path, "search": "hello", "replace": "goodbye",
	})
	require.NoError(t, err)
	assert.Contains(t, diff, "goodbye")

	updated, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "goodbye world", string(updated))

	tracked, matches := rt.Tracker.Check(path, updated)
	assert.True(t, tracked)
	assert.True(t, matches)

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "edit_file must back up the file before writing")
}

func TestWriteFile_OverwriteBacksUpExisting(t *testing.T) {
	rt, backupDir := newTestRuntime(t)
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	_, err := rt.executeWriteFile(context.Background(), map[string]any{
		"path": path, "content": "new content",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(data))

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "overwriting an existing file must back it up first")
}

func TestWriteFile_AppendMode(t *testing.T) {
	rt, _ := newTestRuntime(t)
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o644))

	_, err := rt.executeWriteFile(context.Background(), map[string]any{
		"path": path, "content": "second\n", "mode": "append",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

