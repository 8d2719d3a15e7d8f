package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0644))

	changed := make(chan string, 4)
	w, err := NewWatcher(func(name string) error {
		changed <- name
		return nil
	}, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch(path))

	require.NoError(t, os.WriteFile(path, []byte("b"), 0644))

	select {
	case name := <-changed:
		assert.Equal(t, path, name)
	case <-time.After(5 * time.Second):
		t.Fatal("reload was not called")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0644))

	var calls atomic.Int32
	w, err := NewWatcher(func(string) error {
		calls.Add(1)
		return nil
	}, 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch(path))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestDebouncerCollapsesCalls(t *testing.T) {
	d := &Debouncer{duration: 30 * time.Millisecond}
	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		d.Debounce(func() { calls.Add(1) })
	}
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatchMissingDirectory(t *testing.T) {
	w, err := NewWatcher(func(string) error { return nil }, 0)
	require.NoError(t, err)
	defer w.Close()
	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "missing", "stack.yaml")))
}
