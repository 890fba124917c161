package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/fabric/filter"
)

// Run starts the worker pool and blocks until ctx is cancelled or Stop is
// called (spec.md §7's FatalShutdownRequested). Each worker repeatedly:
// picks a ready filter (a Master whose next-invocation time has arrived,
// or a Regular filter), calls ProcessFrame, inlines any enabled Slave
// filters in this same worker, then reschedules the Master with the delay
// it returned. Slave and Network filters are never picked directly by a
// worker: Slave runs only when an upstream filter's cycle enables it, and
// Network is handed control exactly once via RunNetwork.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	network := append([]filter.Filter(nil), m.network...)
	m.mu.Unlock()
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < m.opt.Workers; i++ {
		g.Go(func() error {
			return m.workerLoop(ctx)
		})
	}

	for _, nf := range network {
		nf := nf
		g.Go(func() error {
			return m.runNetwork(ctx, nf)
		})
	}

	m.log.Info("pipeline running", "workers", m.opt.Workers, "network_filters", len(network))
	err := g.Wait()
	m.log.Info("pipeline stopped", "error", err)
	return err
}

// Stop requests a graceful shutdown: workers finish their current cycle
// (no abortive cancellation mid-cycle, per spec.md §5) and then exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// runNetwork hands control to a RoleNetwork filter's external event loop
// exactly once, per spec.md §4.3. The core never calls ProcessFrame on a
// Network filter directly.
func (m *Manager) runNetwork(ctx context.Context, f filter.Filter) error {
	runner, ok := f.(NetworkRunner)
	if !ok {
		m.log.Warn("network filter does not implement RunNetwork, leaving idle", "id", f.ID())
		<-ctx.Done()
		return nil
	}
	m.log.Info("handing control to network filter", "id", f.ID())
	return runner.RunNetwork(ctx)
}

// NetworkRunner is implemented by RoleNetwork filters that integrate with
// an external event loop (e.g. an SRT or RTSP server's own accept/recv
// loop). RunNetwork blocks until ctx is cancelled or the event loop exits
// on its own.
type NetworkRunner interface {
	RunNetwork(ctx context.Context) error
}

// workerLoop is one scheduler worker: it scans the registry for ready
// filters, drives one cycle, and inlines any Slave filters that cycle
// enabled, until ctx is cancelled. TickGranularity is the worker's own
// polling interval, not a Master filter's invocation rate: readyFilters
// still withholds a Master until its own next-invocation time has
// arrived.
func (m *Manager) workerLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.opt.TickGranularity)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for _, f := range m.readyFilters(time.Now()) {
			if !f.Running() {
				continue
			}
			m.driveOneCycle(f)
		}
	}
}

// readyFilters returns the filters this pass should attempt, in a fixed
// priority order: due Master filters first (so a self-clocked source is
// never starved by opportunistic consumers polling the same worker pool),
// Regular filters second. A Master is due only once its own next-run time
// (tracked by driveOneCycle from the delay its last cycle returned) has
// arrived; this mirrors the intentional, not load-balanced, video-before-
// audio drain bias of the original channel-based pipeline this scheduler
// generalizes (see SPEC_FULL.md §4 "priority-aware scheduler drain").
func (m *Manager) readyFilters(now time.Time) []filter.Filter {
	all := m.snapshot()
	masters := make([]filter.Filter, 0, len(all))
	regulars := make([]filter.Filter, 0, len(all))
	for _, f := range all {
		switch f.Role() {
		case filter.RoleMaster:
			if m.masterDue(f.ID(), now) {
				masters = append(masters, f)
			}
		case filter.RoleRegular:
			regulars = append(regulars, f)
		}
	}
	return append(masters, regulars...)
}

// masterDue reports whether a Master filter's next-invocation time has
// arrived. A Master with no recorded next-run time (never cycled, or just
// registered) is due immediately.
func (m *Manager) masterDue(id int, now time.Time) bool {
	m.nextRunMu.Lock()
	defer m.nextRunMu.Unlock()
	next, ok := m.nextRun[id]
	return !ok || !now.Before(next)
}

// driveOneCycle runs a single filter's ProcessFrame, records a Master's
// next-invocation time from the delay it returned (spec.md §4.4 step 4,
// "reschedule the filter with its returned delay"), and inlines any Slave
// filters its cycle just enabled downstream.
func (m *Manager) driveOneCycle(f filter.Filter) {
	nextDelay, enabled, err := f.ProcessFrame()
	if err != nil {
		m.log.Debug("filter cycle fault", "id", f.ID(), "error", err)
	}
	if f.Role() == filter.RoleMaster {
		m.nextRunMu.Lock()
		m.nextRun[f.ID()] = time.Now().Add(nextDelay)
		m.nextRunMu.Unlock()
	}
	if len(enabled) == 0 {
		return
	}
	for _, downstreamID := range m.slavesEnabledBy(f.ID(), enabled) {
		if slave, err := m.Filter(downstreamID); err == nil && slave.Running() {
			m.driveOneCycle(slave)
		}
	}
}

// slavesEnabledBy returns the ids of registered Slave filters that read
// from any of writerIDs owned by filter upstreamID. It is a small,
// O(filters) scan rather than a maintained index: pipelines are small
// enough (tens of filters, not thousands) that this is cheaper than
// keeping a reverse index in sync across Connect/Disconnect.
func (m *Manager) slavesEnabledBy(upstreamID int, writerIDs []int) []int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	enabledSet := make(map[int]bool, len(writerIDs))
	for _, id := range writerIDs {
		enabledSet[id] = true
	}

	var out []int
	for _, f := range m.filters {
		if f.Role() != filter.RoleSlave {
			continue
		}
		rd, ok := f.(readerHolder)
		if !ok {
			continue
		}
		for _, r := range rd.Readers() {
			if r.UpstreamFilterID == upstreamID && enabledSet[r.WriterID] {
				out = append(out, f.ID())
				break
			}
		}
	}
	return out
}

// readerHolder is implemented by Tail/Transform filters, which expose
// their reader map via the embedded filter.Endpoints.
type readerHolder interface {
	Readers() map[int]*filter.Reader
}
