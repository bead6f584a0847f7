package workspace

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	ws, err := New(dir)
	require.NoError(t, err)
	ws.Out = io.Discard
	return ws
}

func TestSetupCreatesBuildAndEnters(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, ws.Setup())

	st, err := os.Stat(ws.Build)
	require.NoError(t, err)
	assert.True(t, st.IsDir())

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, ws.Build, cwd)
}

func TestSetupRotatesPreservingTimestamps(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, ws.Setup())

	// 1. A previous run leaves a file in build.
	old := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	path := filepath.Join(ws.Build, "out.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	require.NoError(t, os.Chtimes(path, old, old))

	// 2. The next run rotates it into the archive, timestamp intact.
	require.NoError(t, ws.Setup())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "build should start empty")

	st, err := os.Stat(filepath.Join(ws.Archive, "out.txt"))
	require.NoError(t, err)
	assert.True(t, st.ModTime().Equal(old))

	// 3. A third rotation replaces the same-named archive entry.
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	require.NoError(t, ws.Setup())
	data, err := os.ReadFile(filepath.Join(ws.Archive, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestClean(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, ws.Setup())
	require.NoError(t, os.MkdirAll(ws.Archive, 0o755))

	require.NoError(t, Clean(ws.Original))
	_, err := os.Stat(ws.Build)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(ws.Archive)
	assert.True(t, os.IsNotExist(err))
}

func TestDirHelpers(t *testing.T) {
	assert.Equal(t, filepath.Join("d", ".mash"), BuildDir("d"))
	assert.Equal(t, filepath.Join("d", ".mash-archive"), ArchiveDir("d"))
}
