package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/yleoer/stataconv/pkg/processor"
	"github.com/yleoer/stataconv/pkg/scanner"
)

type recordingConverter struct {
	mu    sync.Mutex
	paths []string
	calls chan string
}

func newRecordingConverter() *recordingConverter {
	return &recordingConverter{calls: make(chan string, 16)}
}

func (c *recordingConverter) ConvertFile(_ context.Context, path string) (*processor.Result, error) {
	c.mu.Lock()
	c.paths = append(c.paths, path)
	c.mu.Unlock()
	c.calls <- path
	return &processor.Result{Source: path}, nil
}

func (c *recordingConverter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}

func newTestScheduler(dir string, conv Converter) *TaskScheduler {
	logger := log.New(io.Discard, "", 0)
	return NewTaskScheduler(dir, 100*time.Millisecond, scanner.NewDTAScanner(logger), conv, logger)
}

func waitCall(t *testing.T, conv *recordingConverter) string {
	t.Helper()
	select {
	case path := <-conv.calls:
		return path
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for conversion")
	}
	return ""
}

func TestInitialScan(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"b.dta", "a.dta", "skip.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	conv := newRecordingConverter()
	newTestScheduler(dir, conv).InitialScan(context.Background())

	if got := conv.count(); got != 2 {
		t.Fatalf("want 2 conversions, got %d", got)
	}
	if first := waitCall(t, conv); filepath.Base(first) != "a.dta" {
		t.Fatalf("files must be converted in name order, first was %s", first)
	}
}

func TestRun_DebouncesWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	conv := newRecordingConverter()
	ts := newTestScheduler(dir, conv)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- ts.Run(ctx) }()
	// 等待监听器就绪
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(dir, "officials.dta")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.WriteString("chunk"); err != nil {
			t.Fatalf("write: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	f.Close()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := waitCall(t, conv); got != path {
		t.Fatalf("unexpected converted path %s", got)
	}
	time.Sleep(400 * time.Millisecond)
	if got := conv.count(); got != 1 {
		t.Fatalf("writes should be debounced into one conversion, got %d", got)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestRun_RemovedBeforeQuiet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	conv := newRecordingConverter()
	ts := newTestScheduler(dir, conv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ts.Run(ctx)
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(dir, "tmp.dta")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	time.Sleep(500 * time.Millisecond)
	if got := conv.count(); got != 0 {
		t.Fatalf("removed file must not be converted, got %d conversions", got)
	}
}

func TestRun_MissingDir(t *testing.T) {
	t.Parallel()

	ts := newTestScheduler(filepath.Join(t.TempDir(), "missing"), newRecordingConverter())
	if err := ts.Run(context.Background()); err == nil {
		t.Fatalf("expected error for missing input directory")
	}
}
