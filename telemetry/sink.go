package telemetry

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

// Sink receives one event per routing decision. Appending is fire-and-forget
// from the router's perspective: the service logs a returned error and keeps
// going, so no sink implementation can fail a routing call. Implementations
// must tolerate concurrent Record calls.
type Sink interface {
	Record(event map[string]any) error
}

// MemorySink accumulates events in memory. Used by tests and as the default
// sink when no persistent backend is configured.
type MemorySink struct {
	mu     sync.Mutex
	events []map[string]any
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record appends the event.
func (s *MemorySink) Record(event map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of everything recorded so far.
func (s *MemorySink) Events() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.events))
	copy(out, s.events)
	return out
}

// Len returns the number of recorded events.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// LogSink writes each event as one JSON line, mirroring the compliance-log
// stream the decisions are audited from. Static context pairs are merged
// into every event; event keys win on collision.
type LogSink struct {
	context map[string]string
	logger  *log.Logger
}

// NewLogSink returns a LogSink writing to stderr with the given static
// context.
func NewLogSink(context map[string]string) *LogSink {
	return &LogSink{
		context: context,
		logger:  log.New(os.Stderr, "", 0),
	}
}

// Record serializes the merged event and emits it as a single line.
func (s *LogSink) Record(event map[string]any) error {
	merged := make(map[string]any, len(s.context)+len(event))
	for k, v := range s.context {
		merged[k] = v
	}
	for k, v := range event {
		merged[k] = v
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	s.logger.Println(string(data))
	return nil
}

// MultiSink fans one event out to several sinks. The first error is
// returned after every sink has seen the event.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks; nil entries are dropped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Record delivers the event to every sink.
func (m *MultiSink) Record(event map[string]any) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Record(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
