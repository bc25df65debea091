package audit

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/hypebeast/go-osc/osc"
)

// LogSink writes events to a charmbracelet logger.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink returns a sink for logger, or for the default logger when nil.
func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Handle(e Event) {
	keyvals := []any{"kind", string(e.Kind)}
	if e.ID != "" {
		keyvals = append(keyvals, "id", e.ID)
	}
	s.logger.Log(e.Level(), e.String(), keyvals...)
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Lines returns the rendered audit lines in order.
func (r *Recorder) Lines() []string {
	events := r.Events()
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = e.String()
	}
	return lines
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	n := 0
	for _, e := range r.Events() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// OSCAddress is the OSC address audit lines are sent to.
const OSCAddress = "/boardsync/log"

// OSCSink forwards each audit line to a UI listener as an OSC message with
// the arguments run id, kind and line.
type OSCSink struct {
	client *osc.Client
}

// NewOSCSink sends to host:port over UDP.
func NewOSCSink(host string, port int) *OSCSink {
	return &OSCSink{client: osc.NewClient(host, port)}
}

func (s *OSCSink) Handle(e Event) {
	msg := osc.NewMessage(OSCAddress)
	msg.Append(e.RunID)
	msg.Append(string(e.Kind))
	msg.Append(e.String())
	if err := s.client.Send(msg); err != nil {
		log.Debugf("Failed to forward audit line over OSC: %v", err)
	}
}
