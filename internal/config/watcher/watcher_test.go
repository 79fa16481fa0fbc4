package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpWrite, "write"},
		{OpCreate, "create"},
		{OpRemove, "remove"},
		{OpRename, "rename"},
		{Operation(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestWatcher_WatchUnwatch(t *testing.T) {
	dir := t.TempDir()
	w := New()

	if err := w.Watch(filepath.Join(dir, "a.toml")); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if err := w.Watch(filepath.Join(dir, "a.toml")); err != nil {
		t.Fatalf("second Watch() error = %v", err)
	}
	if err := w.Watch(filepath.Join(dir, "b.toml")); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if got := len(w.WatchedFiles()); got != 2 {
		t.Errorf("WatchedFiles() = %d files, want 2", got)
	}
	if w.dirs[dir] != 2 {
		t.Errorf("dir refcount = %d, want 2", w.dirs[dir])
	}

	if err := w.Unwatch(filepath.Join(dir, "a.toml")); err != nil {
		t.Fatalf("Unwatch() error = %v", err)
	}
	if got := len(w.WatchedFiles()); got != 1 {
		t.Errorf("WatchedFiles() = %d files, want 1", got)
	}
}

func TestWatcher_StartStop(t *testing.T) {
	w := New()
	if err := w.Watch(filepath.Join(t.TempDir(), "kb.toml")); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !w.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	if err := w.Start(); err != ErrRunning {
		t.Errorf("second Start() = %v, want ErrRunning", err)
	}
	w.Stop()
	w.Stop()
	if w.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}

func TestWatcher_DeliversDebouncedWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.toml")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := New(WithDebounce(200 * time.Millisecond))
	events := make(chan Event, 16)
	w.OnChange(func(e Event) { events <- e })
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	const writes = 3
	for i := 0; i < writes; i++ {
		if err := os.WriteFile(path, []byte{byte('b' + i)}, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	// fsnotify may deliver the burst late, so drain until the watcher has
	// been quiet for longer than the debounce.
	var got []Event
	deadline := time.After(5 * time.Second)
	quiet := 2 * time.Second
drain:
	for {
		select {
		case e := <-events:
			got = append(got, e)
			quiet = 600 * time.Millisecond
		case <-time.After(quiet):
			break drain
		case <-deadline:
			break drain
		}
	}

	if len(got) == 0 {
		t.Fatal("no event delivered")
	}
	if len(got) > writes {
		t.Errorf("burst of %d writes produced %d events, want at most one per write", writes, len(got))
	}
	for _, e := range got {
		if e.Path != path {
			t.Errorf("event path = %q, want %q", e.Path, path)
		}
	}
}

func TestQueueEvent_Coalesces(t *testing.T) {
	w := New()
	now := time.Now()

	w.queueEvent(Event{Path: "/kb.toml", Op: OpCreate, Time: now})
	w.queueEvent(Event{Path: "/kb.toml", Op: OpWrite, Time: now.Add(time.Millisecond)})
	if got := w.pending["/kb.toml"]; got.Op != OpCreate || !got.Time.Equal(now.Add(time.Millisecond)) {
		t.Errorf("create+write = %+v, want create at latest time", got)
	}

	w.queueEvent(Event{Path: "/kb.toml", Op: OpRemove, Time: now})
	if got := w.pending["/kb.toml"].Op; got != OpRemove {
		t.Errorf("create+write+remove = %v, want remove", got)
	}
}

func TestSafeCallHandler_RecoversPanic(t *testing.T) {
	w := New(WithDebounce(0))
	called := false
	w.OnChange(func(Event) { panic("boom") })
	w.OnChange(func(Event) { called = true })

	w.emitEvent(Event{Path: "/kb.toml"})
	if !called {
		t.Error("handler after a panicking one was not called")
	}
}
