// Package trace provides types for host lifecycle events.
package trace

import (
	"sort"
	"strings"
	"time"
)

// Tag represents an event category.
// Tags are stored without # prefix; the prefix is added on rendering.
type Tag string

// Standard tags for host events.
const (
	Start   Tag = "start"
	Stop    Tag = "stop"
	Timeout Tag = "timeout"
	Crash   Tag = "crash"
	Restart Tag = "restart"
	Replay  Tag = "replay"
	Colors  Tag = "colors"
)

// Tags is a collection of tags with helper methods.
type Tags []Tag

// Has returns true if the tag collection contains the given tag.
func (t Tags) Has(tag Tag) bool {
	for _, x := range t {
		if x == tag {
			return true
		}
	}
	return false
}

// Add adds a tag if not already present.
func (t *Tags) Add(tag Tag) {
	if !t.Has(tag) {
		*t = append(*t, tag)
	}
}

// Strings returns tags as strings with # prefix for display.
func (t Tags) Strings() []string {
	out := make([]string, len(t))
	for i, tag := range t {
		out[i] = "#" + string(tag)
	}
	return out
}

// Primary returns the first tag or empty string if none.
func (t Tags) Primary() Tag {
	if len(t) > 0 {
		return t[0]
	}
	return ""
}

// Annotations holds key-value metadata for events.
type Annotations map[string]string

// Event is something that happened to a worker process.
type Event struct {
	Tags        Tags        // first is primary
	Worker      string      // worker generation id
	Detail      string      // e.g. "exit status 2"
	Annotations Annotations // Key-value metadata
	Timestamp   time.Time
}

// NewEvent creates a new event with the given primary tag.
func NewEvent(tag Tag, worker, detail string) *Event {
	return &Event{
		Tags:        Tags{tag},
		Worker:      worker,
		Detail:      detail,
		Annotations: make(Annotations),
		Timestamp:   time.Now(),
	}
}

// Annotate sets an annotation on the event.
func (e *Event) Annotate(k, v string) {
	if e.Annotations == nil {
		e.Annotations = make(Annotations)
	}
	e.Annotations[k] = v
}

// String renders the event on one line: tags, worker, detail, then
// annotations sorted by key.
func (e *Event) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(e.Tags.Strings(), " "))
	if e.Worker != "" {
		b.WriteString(" worker=")
		b.WriteString(e.Worker)
	}
	if e.Detail != "" {
		b.WriteString(" ")
		b.WriteString(e.Detail)
	}
	keys := make([]string, 0, len(e.Annotations))
	for k := range e.Annotations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(e.Annotations[k])
	}
	return b.String()
}

// Enricher enriches events based on their primary tag.
type Enricher func(e *Event)

// DefaultEnricher adds secondary tags: timeouts and crashes both lead to a
// restart.
func DefaultEnricher(e *Event) {
	switch e.Tags.Primary() {
	case Timeout, Crash:
		e.Tags.Add(Restart)
	}
}
