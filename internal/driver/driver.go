// Package driver frames the classifier over a byte stream: bytes in,
// R,G,B triples out.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/zboralski/hltest/internal/highlight"
	"github.com/zboralski/hltest/internal/log"
)

// DefaultChunkSize is the largest read handed to the classifier at once.
const DefaultChunkSize = 128

// Options configures Run.
type Options struct {
	ChunkSize int
	Log       *log.Logger
}

// Run reads r in chunks, classifies each chunk with c and writes three bytes
// per color to w. It returns nil when a read yields no bytes. A nil c uses
// highlight.Default.
//
// Each chunk's colors are written with a single unbuffered Write so a reader
// on the other end of a pipe sees them as soon as the chunk is done.
func Run(ctx context.Context, r io.Reader, w io.Writer, c *highlight.Classifier, opts Options) error {
	if c == nil {
		c = highlight.Default
	}
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	l := opts.Log
	if l == nil {
		l = log.NewNop()
	}

	canceled := func() bool { return ctx.Err() != nil }
	in := make([]byte, size)
	out := make([]byte, 0, 3*size)
	total := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := r.Read(in)
		if n > 0 {
			colors, cerr := c.Classify(in[:n], canceled)
			out = out[:0]
			for _, col := range colors {
				b := col.Bytes()
				out = append(out, b[:]...)
			}
			if _, err := w.Write(out); err != nil {
				return fmt.Errorf("write colors: %w", err)
			}
			total += len(colors)
			if errors.Is(cerr, highlight.ErrCanceled) {
				l.Debug("canceled mid-chunk", log.Len(len(colors)))
				return ctx.Err()
			}
		}

		switch {
		case errors.Is(rerr, io.EOF):
			l.Debug("end of input", log.Len(total))
			return nil
		case rerr != nil:
			return fmt.Errorf("read input: %w", rerr)
		case n == 0:
			l.Debug("empty read", log.Len(total))
			return nil
		}
	}
}
