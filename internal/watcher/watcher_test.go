package watcher_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/internal/watcher"
)

func TestWatcherEmitsCreatedEventForNewFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w, err := watcher.New(dir, watcher.Config{DebounceWindow: 20 * time.Millisecond}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	target := filepath.Join(dir, "new_file.go")
	require.NoError(t, os.WriteFile(target, []byte("package main\n"), 0o644))

	select {
	case batch := <-w.Events():
		found := false

		for _, ev := range batch {
			if ev.Path == target {
				found = true
			}
		}

		assert.True(t, found, "expected a batch containing %s", target)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watcher event")
	}
}

func TestWatcherFiltersByExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w, err := watcher.New(dir, watcher.Config{
		DebounceWindow: 20 * time.Millisecond,
		Extensions:     []string{"go"},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kept.go"), []byte("package main\n"), 0o644))

	select {
	case batch := <-w.Events():
		for _, ev := range batch {
			assert.Equal(t, ".go", filepath.Ext(ev.Path))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watcher event")
	}
}

func TestWatcherIgnoreGlobSkipsNestedDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vendor", "pkg"), 0o755))

	w, err := watcher.New(dir, watcher.Config{
		DebounceWindow: 20 * time.Millisecond,
		Recursive:      true,
		IgnoreGlobs:    []string{"**/vendor/**"},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor", "pkg", "ignored.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kept.go"), []byte("package main\n"), 0o644))

	select {
	case batch := <-w.Events():
		for _, ev := range batch {
			assert.NotContains(t, ev.Path, "vendor")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watcher event")
	}
}
