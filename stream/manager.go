// Package stream tracks the lifecycle of active pipelines, providing
// create/remove/list operations for a control-plane surface sitting above
// the fabric (spec.md §6's add/remove/connect/start/stop hooks).
package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zsiec/fabric/pipeline"
)

// Stream pairs a pipeline.Manager with the bookkeeping a control plane
// needs: a stable key, a start time, and a channel other goroutines can
// select on to learn when it has been torn down.
type Stream struct {
	Key       string
	StartedAt time.Time
	Manager   *pipeline.Manager

	done chan struct{}
}

// Done returns a channel closed when this stream is removed.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Manager tracks the set of active streams, each wrapping one
// pipeline.Manager. There is no process-wide singleton (spec.md §9): a
// caller constructs and owns a Manager, the same way it owns a
// pipeline.Manager.
type Manager struct {
	log     *slog.Logger
	mu      sync.RWMutex
	streams map[string]*Stream
}

// NewManager creates a new stream manager. If log is nil, slog.Default()
// is used.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:     log.With("component", "stream-manager"),
		streams: make(map[string]*Stream),
	}
}

// Create registers a new stream with a freshly constructed pipeline
// Manager. Returns the stream and true if created, or nil and false if a
// stream with this key already exists.
func (m *Manager) Create(key string, opt pipeline.Options) (*Stream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.streams[key]; ok {
		m.log.Warn("stream already exists, rejecting duplicate", "key", key)
		return nil, false
	}

	s := &Stream{
		Key:       key,
		StartedAt: time.Now(),
		Manager:   pipeline.New(opt, m.log.With("stream", key)),
		done:      make(chan struct{}),
	}

	m.streams[key] = s
	m.log.Info("stream created", "key", key, "run_id", s.Manager.ID())
	return s, true
}

// Get returns the stream registered under key, if any.
func (m *Manager) Get(key string) (*Stream, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.streams[key]
	return s, ok
}

// Remove stops the stream's pipeline and removes it from the manager.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	s, ok := m.streams[key]
	if ok {
		delete(m.streams, key)
	}
	m.mu.Unlock()

	if ok {
		s.Manager.Stop()
		close(s.done)
		m.log.Info("stream removed", "key", key)
	}
}

// List returns all active streams.
func (m *Manager) List() []*Stream {
	m.mu.RLock()
	defer m.mu.RUnlock()

	streams := make([]*Stream, 0, len(m.streams))
	for _, s := range m.streams {
		streams = append(streams, s)
	}
	return streams
}

// RunAndRemove runs s's pipeline until ctx is cancelled or it exits on its
// own, then removes it from the manager. Intended to be launched in its
// own goroutine by the control plane that called Create.
func (m *Manager) RunAndRemove(ctx context.Context, s *Stream) error {
	err := s.Manager.Run(ctx)
	m.Remove(s.Key)
	return err
}
