// Package pipeline implements the topology registry and worker-thread
// scheduler that drives filters' ProcessFrame entry points, respecting
// each filter's role, pacing, and queue readiness, per spec.md §4.4.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zsiec/fabric/filter"
)

// Sentinel errors for the registry and scheduler, distinguished with
// errors.Is by control-plane callers.
var (
	ErrUnknownFilter  = errors.New("pipeline: unknown filter")
	ErrAlreadyRunning = errors.New("pipeline: already running")
	ErrNotRunning     = errors.New("pipeline: not running")
)

// Options configures the scheduler's worker pool. The zero value is valid:
// Workers defaults to 4, TickGranularity to 2ms.
type Options struct {
	Workers         int
	TickGranularity time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.TickGranularity <= 0 {
		o.TickGranularity = 2 * time.Millisecond
	}
	return o
}

// Manager is the topology registry plus scheduler for one pipeline: it
// owns the set of filters, the wiring between them, and the worker pool
// that repeatedly drives their ProcessFrame cycles. There is no global
// singleton (spec.md §9): callers construct and own a Manager instance.
type Manager struct {
	id  string
	log *slog.Logger
	opt Options

	mu      sync.RWMutex
	filters map[int]filter.Filter
	network []filter.Filter // RoleNetwork filters, run via RunNetwork

	nextRunMu sync.Mutex
	nextRun   map[int]time.Time // RoleMaster filters only, keyed by filter id

	running atomic.Bool
	cancel  context.CancelFunc
}

// New creates a Manager with no filters registered. log may be nil.
func New(opt Options, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()
	return &Manager{
		id:      id,
		log:     log.With("component", "pipeline", "run_id", id),
		opt:     opt.withDefaults(),
		filters: make(map[int]filter.Filter),
		nextRun: make(map[int]time.Time),
	}
}

// ID returns this Manager's run-correlation id.
func (m *Manager) ID() string { return m.id }

// AddFilter registers a filter under its own ID. It is a wiring error to
// register two filters with the same ID.
func (m *Manager) AddFilter(f filter.Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.filters[f.ID()]; exists {
		return fmt.Errorf("pipeline: filter %d already registered", f.ID())
	}
	m.filters[f.ID()] = f
	if f.Role() == filter.RoleNetwork {
		m.network = append(m.network, f)
	}
	m.log.Info("filter added", "id", f.ID(), "role", f.Role().String())
	return nil
}

// RemoveFilter stops and unregisters a filter. Any queues it still owns or
// reads from are left to the caller's Disconnect calls: removal does not
// implicitly tear down wiring.
func (m *Manager) RemoveFilter(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.filters[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownFilter, id)
	}
	f.Stop()
	delete(m.filters, id)
	for i, nf := range m.network {
		if nf.ID() == id {
			m.network = append(m.network[:i], m.network[i+1:]...)
			break
		}
	}
	m.nextRunMu.Lock()
	delete(m.nextRun, id)
	m.nextRunMu.Unlock()
	m.log.Info("filter removed", "id", id)
	return nil
}

// Filter returns the registered filter by id.
func (m *Manager) Filter(id int) (filter.Filter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.filters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFilter, id)
	}
	return f, nil
}

// snapshot returns a stable slice of registered filters for one scheduler
// pass, taken under the registry lock so AddFilter/RemoveFilter during a
// pass cannot race the iteration.
func (m *Manager) snapshot() []filter.Filter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]filter.Filter, 0, len(m.filters))
	for _, f := range m.filters {
		out = append(out, f)
	}
	return out
}
