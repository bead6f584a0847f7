package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	led, err := Open(path)
	require.NoError(t, err)

	led.Record("saved", "x.txt", "5 bytes")
	led.Record("recall-hit", "out.pdf", "")
	led.RecordShell("pdflatex doc.tex", 0, 1500*time.Millisecond, 1.25, 0.5)
	require.NoError(t, led.Close())

	events, err := Read(path)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "saved", events[0].Action)
	assert.Equal(t, "x.txt", events[0].Target)
	assert.Equal(t, "5 bytes", events[0].Detail)

	sh := events[2]
	assert.Equal(t, "shell", sh.Action)
	assert.Equal(t, "pdflatex doc.tex", sh.Target)
	assert.Equal(t, "exit 0", sh.Detail)
	assert.Equal(t, int64(1500), sh.WallMS)
	assert.Equal(t, 1.25, sh.UserTime)
	assert.Equal(t, 0.5, sh.SysTime)
	assert.WithinDuration(t, time.Now(), sh.At, time.Minute)
}

func TestLedgerReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	led, err := Open(path)
	require.NoError(t, err)
	led.Record("saved", "a", "")
	require.NoError(t, led.Close())

	led, err = Open(path)
	require.NoError(t, err)
	led.Record("saved", "b", "")
	require.NoError(t, led.Close())

	events, err := Read(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Target)
	assert.Equal(t, "b", events[1].Target)
}
