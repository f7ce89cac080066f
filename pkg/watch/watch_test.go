package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_Watch_TriggersOnChangeOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "echo.test.yaml")
	if err := os.WriteFile(path, []byte("description: x\n"), 0o644); err != nil {
		t.Fatalf("seeding test file: %v", err)
	}

	triggered := make(chan struct{}, 1)
	w := NewWatcher([]string{path}, func() error {
		select {
		case triggered <- struct{}{}:
		default:
		}
		return nil
	})
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Watch(ctx) }()

	// Give fsnotify time to register the watch before writing.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("description: y\n"), 0o644); err != nil {
		t.Fatalf("rewriting test file: %v", err)
	}

	select {
	case <-triggered:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was never called after the watched file changed")
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after context cancellation")
	}
}

func TestWatcher_Watch_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "echo.test.yaml")
	other := filepath.Join(dir, "unrelated.txt")
	if err := os.WriteFile(target, []byte("description: x\n"), 0o644); err != nil {
		t.Fatalf("seeding target file: %v", err)
	}

	triggered := make(chan struct{}, 1)
	w := NewWatcher([]string{target}, func() error {
		triggered <- struct{}{}
		return nil
	})
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Watch(ctx)
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(other, []byte("noise"), 0o644); err != nil {
		t.Fatalf("writing unrelated file: %v", err)
	}

	select {
	case <-triggered:
		t.Fatal("onChange fired for a file outside the watch set")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_Watch_StopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "echo.test.yaml")
	if err := os.WriteFile(path, []byte("description: x\n"), 0o644); err != nil {
		t.Fatalf("seeding test file: %v", err)
	}

	w := NewWatcher([]string{path}, func() error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Watch(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("expected Watch to return ctx.Err() on cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after context cancellation")
	}
}
