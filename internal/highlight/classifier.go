// Package highlight implements the byte classifier used as a stand-in for a
// real syntax highlighter. Each input byte gets one Color. A persistent mode
// bit, toggled by marker bytes, arms a slow step and a crash so a host can be
// tested against hung and dying highlighters.
package highlight

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/zboralski/hltest/internal/log"
)

// Marker bytes.
const (
	MarkArm    = 'T'
	MarkDisarm = 'F'
	MarkSleep  = 'S'
	MarkCrash  = 'C'
)

// DefaultDelay is how long the sleep marker blocks while armed.
const DefaultDelay = time.Second

// ErrCanceled is returned with a partial result when the cancel predicate
// reported true.
var ErrCanceled = errors.New("highlight: canceled")

// Canceled is the cooperative cancellation probe. It must be cheap and free
// of side effects.
type Canceled func() bool

// Never is a Canceled that never fires.
func Never() bool { return false }

// Classifier maps bytes to colors.
type Classifier struct {
	mode   *Mode
	faults Faults
	delay  time.Duration
	// cancelEvery is the polling interval in bytes; zero never polls.
	cancelEvery int
	log         *log.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithMode shares an existing mode bit.
func WithMode(m *Mode) Option {
	return func(c *Classifier) { c.mode = m }
}

// WithFaults sets the fault strategy.
func WithFaults(f Faults) Option {
	return func(c *Classifier) { c.faults = f }
}

// WithDelay sets the sleep marker duration.
func WithDelay(d time.Duration) Option {
	return func(c *Classifier) { c.delay = d }
}

// WithCancelEvery polls the cancel predicate before every n-th byte.
func WithCancelEvery(n int) Option {
	return func(c *Classifier) { c.cancelEvery = n }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Classifier) { c.log = l }
}

// New creates a Classifier. Without options it owns a fresh disarmed mode,
// uses ProcessFaults and DefaultDelay, and never polls for cancellation.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		faults: ProcessFaults{},
		delay:  DefaultDelay,
		log:    log.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.mode == nil {
		c.mode = &Mode{}
	}
	return c
}

// Mode returns the classifier's mode bit.
func (c *Classifier) Mode() *Mode {
	return c.mode
}

// Classify returns one color per input byte. If cancellation polling is
// enabled and canceled reports true, the colors produced so far are returned
// with ErrCanceled.
func (c *Classifier) Classify(input []byte, canceled Canceled) ([]Color, error) {
	out := make([]Color, 0, len(input))
	for i, b := range input {
		if c.cancelEvery > 0 && canceled != nil && i%c.cancelEvery == 0 && canceled() {
			c.log.Debug("canceled", log.Pos(i), log.Len(len(input)))
			return out, ErrCanceled
		}
		out = append(out, c.ClassifyByte(b))
	}
	return out, nil
}

// ClassifyByte classifies a single byte against the current mode, applying
// marker side effects.
func (c *Classifier) ClassifyByte(b byte) Color {
	switch b {
	case MarkArm:
		c.mode.Arm()
		return Grey
	case MarkDisarm:
		c.mode.Disarm()
		return Grey
	case MarkSleep:
		if c.mode.Armed() {
			c.log.Debug("sleep", zap.Duration("delay", c.delay))
			c.faults.Delay(c.delay)
		}
		return Grey
	case MarkCrash:
		if c.mode.Armed() {
			c.log.Error("crash marker while armed")
			c.faults.Abort("crash marker while armed")
		}
		return Grey
	case 'R':
		return Red
	case 'G':
		return Green
	case 'B':
		return Blue
	}
	switch {
	case isDigit(b):
		return Blue
	case isSpace(b):
		return White
	}
	return Black
}

func isDigit(b byte) bool {
	return '0' <= b && b <= '9'
}

// isSpace matches the C locale isspace set.
func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// Default is the process-wide classifier behind the package-level Classify.
var Default = New()

// Classify runs Default, whose mode persists for the life of the process.
func Classify(input []byte, canceled Canceled) ([]Color, error) {
	return Default.Classify(input, canceled)
}
