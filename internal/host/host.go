// Package host runs a highlighter as a subprocess on behalf of an editor.
//
// The editor reports document edits with Insert and Remove. Inserted bytes
// are streamed to the worker process, which answers with one R,G,B triple
// per byte. Dequeue hands colors back together with the position the
// character has in the document now, after any later edits.
//
// Workers are expected to misbehave. A worker that makes no progress for
// Config.Timeout, or that exits, is killed and replaced, and every byte it
// had not colored yet is sent to the replacement. A worker that crashes on
// some input therefore only loses its mode bit, while one that crashes on
// the same bytes every time never produces them.
package host

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zboralski/hltest/internal/highlight"
	"github.com/zboralski/hltest/internal/log"
	"github.com/zboralski/hltest/internal/trace"
)

// Defaults for zero Config fields.
const (
	DefaultTimeout       = 5500 * time.Millisecond
	DefaultQueueLimit    = 4096
	DefaultReadColors    = 16
	DefaultRetryInterval = 3 * time.Millisecond
)

// Config describes the worker and the supervision limits.
type Config struct {
	// Command is the worker argv.
	Command []string
	// Env is appended to the parent environment.
	Env []string
	// Stderr receives the worker's stderr; nil discards it.
	Stderr io.Writer
	// Timeout is how long pending bytes may go without a color before the
	// worker is replaced.
	Timeout time.Duration
	// QueueLimit caps bytes written to a worker but not yet colored.
	QueueLimit int
	// ReadColors is how many colors one read from the worker may return.
	ReadColors int
	// RetryInterval is the pause before replacing a worker that exited.
	RetryInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.QueueLimit <= 0 {
		c.QueueLimit = DefaultQueueLimit
	}
	if c.ReadColors <= 0 {
		c.ReadColors = DefaultReadColors
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
}

// Highlight is a color for the character at Pos.
type Highlight struct {
	Pos   int
	Color highlight.Color
}

// Option configures a Host.
type Option func(*Host)

// WithNotify sets a callback run after each batch of colors arrives. It is
// called from the supervisor goroutine and must not block.
func WithNotify(fn func()) Option {
	return func(h *Host) { h.notify = fn }
}

// WithEventHandler sets a callback for worker lifecycle events. It is
// called from the supervisor goroutine.
func WithEventHandler(fn func(*trace.Event)) Option {
	return func(h *Host) { h.onEvent = fn }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(h *Host) { h.log = l }
}

// Host supervises highlighter workers.
type Host struct {
	cfg     Config
	notify  func()
	onEvent func(*trace.Event)
	log     *log.Logger

	// docMu guards doc. Insert, Remove and Dequeue take it.
	docMu sync.Mutex
	doc   document

	// mu guards the worker side: the current worker, bytes not yet
	// colored, how many of them the current worker has been sent, and a
	// partial triple carried between reads.
	mu      sync.Mutex
	w       *worker
	pending []byte
	sent    int
	carry   []byte

	colorMu sync.Mutex
	colors  []highlight.Color

	wake   chan struct{}
	cancel context.CancelFunc
	group  *errgroup.Group
}

// ErrNotStarted is returned by Close on a Host that was never started.
var ErrNotStarted = errors.New("host: not started")

// New creates a Host. Call Start before use.
func New(cfg Config, opts ...Option) *Host {
	cfg.setDefaults()
	h := &Host{
		cfg:  cfg,
		log:  log.NewNop(),
		wake: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.Named("host")
	return h
}

// Start launches the first worker and the supervisor goroutine. The
// supervisor stops when ctx is done or Close is called.
func (h *Host) Start(ctx context.Context) error {
	w, err := startWorker(h.cfg)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.w = w
	h.mu.Unlock()
	h.emit(trace.Start, w, "")

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	h.cancel = cancel
	h.group = g
	g.Go(func() error {
		return h.supervise(gctx)
	})
	return nil
}

// Close stops the supervisor and kills the current worker.
func (h *Host) Close() error {
	if h.group == nil {
		return ErrNotStarted
	}
	h.cancel()
	return h.group.Wait()
}

// Insert records text inserted at pos and queues it for highlighting.
func (h *Host) Insert(pos int, text string) {
	if text == "" {
		return
	}
	h.docMu.Lock()
	h.doc.insert(pos, text)
	h.docMu.Unlock()

	h.mu.Lock()
	h.pending = append(h.pending, text...)
	h.flush()
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Remove records that n bytes at pos were deleted. Colors for deleted
// characters are dropped by Dequeue.
func (h *Host) Remove(pos, n int) {
	if n <= 0 {
		return
	}
	h.docMu.Lock()
	h.doc.remove(pos, n)
	h.docMu.Unlock()
}

// Dequeue returns the next available color and the current position of
// its character. It returns false when no color is ready.
//
// Positions are computed against the edits reported so far, so Insert and
// Remove must not run concurrently with Dequeue if the result is to match
// the caller's document.
func (h *Host) Dequeue() (Highlight, bool) {
	h.docMu.Lock()
	defer h.docMu.Unlock()
	for {
		c, ok := h.popColor()
		if !ok {
			return Highlight{}, false
		}
		pos, ok := h.doc.position()
		if !ok || pos < 0 {
			continue
		}
		return Highlight{Pos: pos, Color: c}, true
	}
}

// Pending returns how many inserted bytes have not been colored yet.
func (h *Host) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

func (h *Host) popColor() (highlight.Color, bool) {
	h.colorMu.Lock()
	defer h.colorMu.Unlock()
	if len(h.colors) == 0 {
		return highlight.Color{}, false
	}
	c := h.colors[0]
	h.colors = h.colors[1:]
	return c, true
}

// flush writes pending bytes to the current worker up to the queue limit.
// Callers hold mu.
func (h *Host) flush() {
	if h.w == nil {
		return
	}
	for h.sent < len(h.pending) && h.sent < h.cfg.QueueLimit {
		end := min(len(h.pending), h.cfg.QueueLimit)
		n, err := h.w.write(h.pending[h.sent:end])
		h.sent += n
		if err != nil {
			h.log.Debug("write to worker failed", log.Worker(h.w.id), zap.Error(err))
			return
		}
	}
}

func (h *Host) busy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending) > 0
}

func (h *Host) current() *worker {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.w
}

func (h *Host) supervise(ctx context.Context) error {
	timer := time.NewTimer(h.cfg.Timeout)
	defer timer.Stop()

	for {
		w := h.current()
		if !h.busy() {
			select {
			case <-ctx.Done():
				return h.shutdown()
			case <-h.wake:
			}
			resetTimer(timer, h.cfg.Timeout)
			continue
		}

		select {
		case <-ctx.Done():
			return h.shutdown()

		case <-h.wake:
			// More input; the deadline still runs from the last progress.

		case buf, ok := <-w.out:
			if !ok {
				h.emit(trace.Crash, w, w.exitDetail())
				select {
				case <-ctx.Done():
					return h.shutdown()
				case <-time.After(h.cfg.RetryInterval):
				}
				if err := h.restart(); err != nil {
					return err
				}
				resetTimer(timer, h.cfg.Timeout)
				continue
			}
			if n := h.consume(buf); n > 0 {
				h.emitColors(w, n)
				if h.notify != nil {
					h.notify()
				}
			}
			resetTimer(timer, h.cfg.Timeout)

		case <-timer.C:
			h.emit(trace.Timeout, w, h.cfg.Timeout.String())
			if err := h.restart(); err != nil {
				return err
			}
			timer.Reset(h.cfg.Timeout)
		}
	}
}

// consume decodes colors from buf, acknowledges that many pending bytes
// and refills the worker's queue. It returns the number of colors.
func (h *Host) consume(buf []byte) int {
	h.mu.Lock()
	h.carry = append(h.carry, buf...)
	n := len(h.carry) / 3
	got := make([]highlight.Color, n)
	for i := range got {
		got[i] = highlight.ColorFromBytes(h.carry[3*i:])
	}
	h.carry = append(h.carry[:0], h.carry[3*n:]...)

	if n > len(h.pending) {
		h.log.Warn("worker sent more colors than bytes",
			log.Worker(h.w.id), log.Len(n), zap.Int("pending", len(h.pending)))
		n = len(h.pending)
		got = got[:n]
	}
	h.pending = h.pending[n:]
	h.sent -= n
	h.flush()
	h.mu.Unlock()

	h.colorMu.Lock()
	h.colors = append(h.colors, got...)
	h.colorMu.Unlock()
	return n
}

// restart replaces the current worker and replays every pending byte.
func (h *Host) restart() error {
	h.mu.Lock()
	old := h.w
	h.w = nil
	h.mu.Unlock()

	if old != nil {
		if err := old.stop(); err != nil {
			h.log.Debug("stop worker", log.Worker(old.id), zap.Error(err))
		}
	}

	w, err := startWorker(h.cfg)
	if err != nil {
		h.log.Error("restart worker", zap.Error(err))
		return err
	}

	h.mu.Lock()
	h.w = w
	h.sent = 0
	h.carry = h.carry[:0]
	replay := len(h.pending)
	h.flush()
	h.mu.Unlock()

	h.emit(trace.Start, w, "")
	if replay > 0 {
		e := h.event(trace.Replay, w, "")
		e.Annotate("bytes", strconv.Itoa(replay))
		h.publish(e)
	}
	return nil
}

func (h *Host) shutdown() error {
	h.mu.Lock()
	w := h.w
	h.w = nil
	h.mu.Unlock()
	if w == nil {
		return nil
	}
	err := w.stop()
	h.emit(trace.Stop, w, "")
	return err
}

func (h *Host) event(tag trace.Tag, w *worker, detail string) *trace.Event {
	e := trace.NewEvent(tag, w.id, detail)
	trace.DefaultEnricher(e)
	return e
}

func (h *Host) emit(tag trace.Tag, w *worker, detail string) {
	h.publish(h.event(tag, w, detail))
}

func (h *Host) emitColors(w *worker, n int) {
	if h.onEvent == nil {
		return
	}
	e := h.event(trace.Colors, w, "")
	e.Annotate("n", strconv.Itoa(n))
	h.publish(e)
}

func (h *Host) publish(e *trace.Event) {
	switch e.Tags.Primary() {
	case trace.Crash, trace.Timeout:
		h.log.Warn(string(e.Tags.Primary()), log.Worker(e.Worker), zap.String("detail", e.Detail))
	case trace.Colors:
	default:
		h.log.Debug(string(e.Tags.Primary()), log.Worker(e.Worker), zap.Any("ann", e.Annotations))
	}
	if h.onEvent != nil {
		h.onEvent(e)
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
