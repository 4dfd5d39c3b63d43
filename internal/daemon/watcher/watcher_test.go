package watcher

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logPattern = regexp.MustCompile(`^log_.*\.csv$`)

func startWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	w, err := New(logPattern)
	require.NoError(t, err)
	require.NoError(t, w.WatchDir(dir))
	w.Start()
	t.Cleanup(w.Stop)
	return w
}

func TestWakeOnLogWrite(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	path := filepath.Join(dir, "log_220917_124302_KJYO.csv")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("row\n"), 0o644))
	}

	select {
	case <-w.Wake():
	case <-time.After(5 * time.Second):
		t.Fatal("no wake after writing a log")
	}

	select {
	case ev := <-w.Events():
		assert.Equal(t, EventLogChanged, ev.Type)
		assert.Equal(t, path, ev.Path)
	case <-time.After(time.Second):
		t.Fatal("no event after wake")
	}
}

func TestIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "airframe_info.xml"), []byte("x"), 0o644))

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %v", ev)
	case <-time.After(3 * DebounceDelay):
	}
}

func TestSettingsChanged(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "settings.yaml")

	w, err := New(logPattern)
	require.NoError(t, err)
	require.NoError(t, w.WatchSettings(settings))
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(settings, []byte("poll_period: 5s\n"), 0o644))

	select {
	case ev := <-w.Events():
		assert.Equal(t, EventSettingsChanged, ev.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no settings event")
	}
	assert.Len(t, w.Wake(), 0, "settings changes do not wake the engine")
}

func TestStopIsIdempotent(t *testing.T) {
	w, err := New(nil)
	require.NoError(t, err)
	w.Start()
	w.Stop()
	w.Stop()
}
