package host

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// worker is one highlighter process. Its stdout is read by a goroutine
// that forwards chunks on out and closes out once the process is reaped.
type worker struct {
	id    string
	cmd   *exec.Cmd
	stdin io.WriteCloser
	out   chan []byte
	quit  chan struct{}

	// err is the Wait result; valid once out is closed.
	err error

	once    sync.Once
	stopErr error
}

func startWorker(cfg Config) (*worker, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("host: no worker command")
	}
	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}
	cmd.Stderr = cfg.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Command[0], err)
	}

	w := &worker{
		id:    uuid.NewString(),
		cmd:   cmd,
		stdin: stdin,
		out:   make(chan []byte, 1),
		quit:  make(chan struct{}),
	}
	go w.read(stdout, 3*cfg.ReadColors)
	return w, nil
}

func (w *worker) read(r io.Reader, size int) {
	defer close(w.out)
	for {
		buf := make([]byte, size)
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case w.out <- buf[:n]:
			case <-w.quit:
			}
		}
		if err != nil {
			break
		}
	}
	w.err = w.cmd.Wait()
}

func (w *worker) write(p []byte) (int, error) {
	return w.stdin.Write(p)
}

// stop kills the process and waits for it to be reaped.
func (w *worker) stop() error {
	w.once.Do(func() {
		close(w.quit)
		err := w.stdin.Close()
		if kerr := w.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			err = multierr.Append(err, kerr)
		}
		for range w.out {
		}
		w.stopErr = err
	})
	return w.stopErr
}

// exitDetail describes how the process ended.
func (w *worker) exitDetail() string {
	if w.err == nil {
		return "exit status 0"
	}
	return w.err.Error()
}
