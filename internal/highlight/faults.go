package highlight

import (
	"fmt"
	"sync"
	"time"

	"github.com/zboralski/hltest/internal/log"
)

// Faults injects the two test hooks the classifier can trigger while armed:
// a slow step and a crash.
type Faults interface {
	// Delay blocks the calling goroutine for d.
	Delay(d time.Duration)
	// Abort terminates the process. Implementations other than
	// ProcessFaults may return, in which case classification continues.
	Abort(reason string)
}

// ProcessFaults performs real sleeps and really kills the process.
type ProcessFaults struct{}

// Delay sleeps for d.
func (ProcessFaults) Delay(d time.Duration) {
	time.Sleep(d)
}

// Abort crashes the process. The panic is raised on a fresh goroutine so no
// caller can recover it; the calling goroutine never resumes.
func (ProcessFaults) Abort(reason string) {
	_ = log.L.Sync()
	go func() {
		panic(fmt.Sprintf("highlight: abort: %s", reason))
	}()
	select {}
}

// NopFaults ignores both hooks.
type NopFaults struct{}

func (NopFaults) Delay(time.Duration) {}
func (NopFaults) Abort(string)        {}

// RecordingFaults records hook invocations without acting on them.
type RecordingFaults struct {
	mu     sync.Mutex
	delays []time.Duration
	aborts []string
}

// Delay records d.
func (f *RecordingFaults) Delay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays = append(f.delays, d)
}

// Abort records reason.
func (f *RecordingFaults) Abort(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts = append(f.aborts, reason)
}

// Delays returns the recorded delays.
func (f *RecordingFaults) Delays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.delays...)
}

// Aborts returns the recorded abort reasons.
func (f *RecordingFaults) Aborts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.aborts...)
}
