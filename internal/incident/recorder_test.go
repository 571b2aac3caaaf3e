package incident

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecordWritesTraceFile(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, zap.NewNop())
	r.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }

	path, err := r.Record("DBError", errors.New("disk full"), zap.String("command", "birthday"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "DBError-20260314T093000Z-"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "error: disk full")
	assert.Contains(t, content, "command: birthday")
	assert.Contains(t, content, "goroutine")
}

func TestRecoverSwallowsPanic(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, zap.NewNop())
	called := false

	func() {
		defer r.Recover("command", func() { called = true })
		panic("boom")
	}()

	assert.True(t, called)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "Panic-"))
}

func TestRecoverWithoutPanicDoesNothing(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, zap.NewNop())

	func() {
		defer r.Recover("event", func() { t.Fatal("onPanic called without a panic") })
	}()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Error", sanitize(""))
	assert.Equal(t, "a_b_c", sanitize("a/b c"))
}
