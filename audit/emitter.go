package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink receives every event an Emitter publishes.
type Sink interface {
	Handle(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Handle(e Event) { f(e) }

// Emitter stamps events with the run id and fans them out to sinks.
// A nil *Emitter discards everything.
type Emitter struct {
	runID  string
	dryRun bool
	now    func() time.Time
	mu     sync.Mutex
	sinks  []Sink
}

// NewEmitter creates an emitter with a fresh run id.
func NewEmitter(sinks ...Sink) *Emitter {
	return &Emitter{
		runID: uuid.NewString(),
		now:   time.Now,
		sinks: sinks,
	}
}

// RunID returns the id stamped on every event of this run.
func (e *Emitter) RunID() string {
	if e == nil {
		return ""
	}
	return e.runID
}

// SetDryRun marks subsequent events as not applied.
func (e *Emitter) SetDryRun(dryRun bool) {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.dryRun = dryRun
	e.mu.Unlock()
}

// Subscribe adds a sink.
func (e *Emitter) Subscribe(s Sink) {
	if e == nil || s == nil {
		return
	}
	e.mu.Lock()
	e.sinks = append(e.sinks, s)
	e.mu.Unlock()
}

// Emit publishes ev to every sink in subscription order.
func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}
	e.mu.Lock()
	sinks := append([]Sink(nil), e.sinks...)
	ev.RunID = e.runID
	ev.DryRun = ev.DryRun || e.dryRun
	if ev.Time.IsZero() {
		ev.Time = e.now()
	}
	e.mu.Unlock()

	for _, s := range sinks {
		s.Handle(ev)
	}
}

// Warn publishes a free-text warning.
func (e *Emitter) Warn(message string) {
	e.Emit(Event{Kind: KindWarning, Message: message})
}

// Info publishes a free-text informational line.
func (e *Emitter) Info(message string) {
	e.Emit(Event{Kind: KindInfo, Message: message})
}
