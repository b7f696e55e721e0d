package events

// Event represents a structured state change emitted by a settlement engine.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. indexers, the
// scenario simulator, metrics exporters).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default wiring for engines whose callers do not subscribe to
// notifications.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Capture records every emitted event in order. It exists for tests and for
// the simulator, which replays captured events into its report output.
type Capture struct {
	Events []Event
}

// Emit implements the Emitter interface.
func (c *Capture) Emit(ev Event) {
	if c == nil || ev == nil {
		return
	}
	c.Events = append(c.Events, ev)
}

// Reset drops all captured events.
func (c *Capture) Reset() {
	if c == nil {
		return
	}
	c.Events = nil
}
