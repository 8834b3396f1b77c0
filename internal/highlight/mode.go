package highlight

import "sync/atomic"

// Mode is the persistent armed/disarmed bit. While armed, the delay and
// fault markers take effect. The zero value is disarmed and safe for
// concurrent use.
type Mode struct {
	armed atomic.Bool
}

// Armed reports whether the mode is armed.
func (m *Mode) Armed() bool {
	return m.armed.Load()
}

// Arm sets the mode to armed.
func (m *Mode) Arm() {
	m.armed.Store(true)
}

// Disarm sets the mode to disarmed.
func (m *Mode) Disarm() {
	m.armed.Store(false)
}

func (m *Mode) String() string {
	if m.Armed() {
		return "armed"
	}
	return "disarmed"
}
