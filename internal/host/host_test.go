package host

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zboralski/hltest/internal/driver"
	"github.com/zboralski/hltest/internal/highlight"
	"github.com/zboralski/hltest/internal/trace"
)

const workerEnv = "HLTEST_HOST_WORKER"

// TestMain doubles as the highlighter worker when re-executed by a Host.
func TestMain(m *testing.M) {
	if os.Getenv(workerEnv) == "1" {
		if err := driver.Run(context.Background(), os.Stdin, os.Stdout, highlight.New(), driver.Options{}); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func testConfig() Config {
	return Config{
		Command: []string{os.Args[0]},
		Env:     []string{workerEnv + "=1"},
		Timeout: 2 * time.Second,
	}
}

func startHost(t *testing.T, cfg Config, opts ...Option) *Host {
	t.Helper()
	h := New(cfg, opts...)
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start host: %v", err)
	}
	return h
}

// closeHost checks that nothing is left to dequeue, then stops the host.
func closeHost(t *testing.T, h *Host) {
	t.Helper()
	if hl, ok := waitDequeue(h, 300*time.Millisecond); ok {
		t.Errorf("Expected no more highlights, got %+v", hl)
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func waitDequeue(h *Host, timeout time.Duration) (Highlight, bool) {
	deadline := time.Now().Add(timeout)
	for {
		if hl, ok := h.Dequeue(); ok {
			return hl, true
		}
		if time.Now().After(deadline) {
			return Highlight{}, false
		}
		time.Sleep(3 * time.Millisecond)
	}
}

func expectDequeue(t *testing.T, h *Host, pos int, c highlight.Color) {
	t.Helper()
	hl, ok := waitDequeue(h, 3*time.Second)
	if !ok {
		t.Fatalf("Timed out waiting for %v at %d", c, pos)
	}
	if hl.Pos != pos || hl.Color != c {
		t.Fatalf("Expected %v at %d, got %v at %d", c, pos, hl.Color, hl.Pos)
	}
}

func TestHostSanity(t *testing.T) {
	h := startHost(t, testConfig())

	h.Insert(0, "R")
	h.Insert(1, "G")
	h.Insert(2, "B")

	expectDequeue(t, h, 0, highlight.Red)
	expectDequeue(t, h, 1, highlight.Green)
	expectDequeue(t, h, 2, highlight.Blue)

	h.Insert(6, "RGBRGB")

	expectDequeue(t, h, 6, highlight.Red)
	expectDequeue(t, h, 7, highlight.Green)
	expectDequeue(t, h, 8, highlight.Blue)
	expectDequeue(t, h, 9, highlight.Red)
	expectDequeue(t, h, 10, highlight.Green)
	expectDequeue(t, h, 11, highlight.Blue)

	closeHost(t, h)
}

func TestHostIgnoredCrash(t *testing.T) {
	h := startHost(t, testConfig())
	h.Insert(0, "C")
	expectDequeue(t, h, 0, highlight.Grey)
	closeHost(t, h)
}

func TestHostUnrestorableCrash(t *testing.T) {
	var crashes atomic.Int32
	h := startHost(t, testConfig(), WithEventHandler(func(e *trace.Event) {
		if e.Tags.Primary() == trace.Crash {
			crashes.Add(1)
		}
	}))

	h.Insert(1, "TC")
	if hl, ok := waitDequeue(h, time.Second); ok {
		t.Errorf("Expected no highlight from a worker that always crashes, got %+v", hl)
	}
	if crashes.Load() == 0 {
		t.Error("Expected at least one crash event")
	}
	if n := h.Pending(); n != 2 {
		t.Errorf("Expected 2 pending bytes, got %d", n)
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestHostRestorableCrash(t *testing.T) {
	h := startHost(t, testConfig())

	h.Insert(0, "T")
	expectDequeue(t, h, 0, highlight.Grey)
	// The worker is armed now and dies on C. Its replacement starts
	// disarmed and only sees the replayed C.
	h.Insert(1, "C")
	expectDequeue(t, h, 1, highlight.Grey)

	closeHost(t, h)
}

func TestHostRestorableSleep(t *testing.T) {
	h := startHost(t, testConfig())
	h.Insert(0, "TS")
	expectDequeue(t, h, 0, highlight.Grey)
	expectDequeue(t, h, 1, highlight.Grey)
	closeHost(t, h)
}

func TestHostTimeoutRestart(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 200 * time.Millisecond

	events := make(chan *trace.Event, 64)
	h := startHost(t, cfg, WithEventHandler(func(e *trace.Event) {
		select {
		case events <- e:
		default:
		}
	}))

	// The sleep outlasts the timeout, so every worker is replaced before it
	// answers.
	h.Insert(0, "TS")

	var sawTimeout, sawReplay bool
	deadline := time.After(3 * time.Second)
	for !(sawTimeout && sawReplay) {
		select {
		case e := <-events:
			switch e.Tags.Primary() {
			case trace.Timeout:
				sawTimeout = true
				if !e.Tags.Has(trace.Restart) {
					t.Errorf("Expected timeout event to carry restart tag, got %v", e.Tags)
				}
			case trace.Replay:
				sawReplay = true
				if e.Annotations["bytes"] != "2" {
					t.Errorf("Expected 2 replayed bytes, got %q", e.Annotations["bytes"])
				}
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for events: timeout=%v replay=%v", sawTimeout, sawReplay)
		}
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestHostNotifyCalled(t *testing.T) {
	var mu sync.Mutex
	cond := sync.NewCond(&mu)
	count := 0
	h := startHost(t, testConfig(), WithNotify(func() {
		mu.Lock()
		count++
		mu.Unlock()
		cond.Broadcast()
	}))

	h.Insert(0, "a")

	done := make(chan struct{})
	go func() {
		mu.Lock()
		for count == 0 {
			cond.Wait()
		}
		mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Expected notify to be called")
	}

	expectDequeue(t, h, 0, highlight.Black)
	closeHost(t, h)
}

func TestHostRandomTyping(t *testing.T) {
	h := startHost(t, testConfig())

	h.Insert(0, "R")
	h.Insert(0, "G")
	h.Insert(0, "B")

	expectDequeue(t, h, 2, highlight.Red)
	expectDequeue(t, h, 1, highlight.Green)
	expectDequeue(t, h, 0, highlight.Blue)

	h.Insert(5, "R")
	h.Insert(3, "G")
	h.Insert(1, "B")

	expectDequeue(t, h, 7, highlight.Red)
	expectDequeue(t, h, 4, highlight.Green)
	expectDequeue(t, h, 1, highlight.Blue)

	closeHost(t, h)
}

func TestHostDeleteTyped(t *testing.T) {
	h := startHost(t, testConfig())

	h.Insert(0, "R")
	h.Remove(0, 1)
	h.Insert(0, "G")
	h.Remove(0, 1)
	h.Insert(0, "B")

	expectDequeue(t, h, 0, highlight.Blue)
	closeHost(t, h)
}

func TestHostBigText(t *testing.T) {
	const n = 16 * 1024
	h := startHost(t, testConfig())
	h.Insert(0, strings.Repeat("RB", n))
	for i := 0; i < n; i++ {
		expectDequeue(t, h, 2*i, highlight.Red)
		expectDequeue(t, h, 2*i+1, highlight.Blue)
	}
	closeHost(t, h)
}

func TestHostBadCommand(t *testing.T) {
	h := New(Config{Command: []string{"/nonexistent/hltest-worker"}})
	if err := h.Start(context.Background()); err == nil {
		t.Fatal("Expected start to fail for a missing worker")
	}
	if err := h.Close(); err != ErrNotStarted {
		t.Errorf("Expected ErrNotStarted, got %v", err)
	}
}

func TestHostNoCommand(t *testing.T) {
	h := New(Config{})
	if err := h.Start(context.Background()); err == nil {
		t.Fatal("Expected start to fail without a command")
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.setDefaults()
	if c.Timeout != DefaultTimeout || c.QueueLimit != DefaultQueueLimit ||
		c.ReadColors != DefaultReadColors || c.RetryInterval != DefaultRetryInterval {
		t.Errorf("Unexpected defaults: %+v", c)
	}
}
