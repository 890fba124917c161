// Package filter defines the processing-stage contract filters implement
// to plug into the fabric: typed input readers and output writers around a
// single blocking ProcessFrame entry point, paced according to Role.
package filter

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Role determines how the scheduler paces a filter. See spec.md §4.3.
type Role int

const (
	// RoleRegular runs opportunistically whenever the scheduler has
	// capacity and the filter has input.
	RoleRegular Role = iota
	// RoleMaster drives its own clock from FrameTime.
	RoleMaster
	// RoleSlave runs only inline, composed into the tick of the upstream
	// filter whose cycle just published into its input.
	RoleSlave
	// RoleNetwork integrates with an external event loop; the scheduler
	// hands it control once via RunNetwork and never calls ProcessFrame
	// on it directly.
	RoleNetwork
)

func (r Role) String() string {
	switch r {
	case RoleMaster:
		return "master"
	case RoleSlave:
		return "slave"
	case RoleNetwork:
		return "network"
	default:
		return "regular"
	}
}

// ConnectionData identifies one wiring between a writer endpoint of one
// filter and a reader endpoint of another, per spec.md §6.
type ConnectionData struct {
	WFilterID int
	RFilterID int
	WriterID  int
	ReaderID  int
}

func (c ConnectionData) String() string {
	return fmt.Sprintf("%d:%d -> %d:%d", c.WFilterID, c.WriterID, c.RFilterID, c.ReaderID)
}

// Sentinel errors for wiring failures callers distinguish with errors.Is.
var (
	ErrUnsupportedCodec         = errors.New("filter: unsupported codec")
	ErrMissingPixelFormat       = errors.New("filter: missing pixel format")
	ErrIncompatibleSampleFormat = errors.New("filter: incompatible sample format")
	ErrShapeMismatch            = errors.New("filter: reader/writer shape mismatch")
)

// WiringError wraps a connection-time failure with the ConnectionData that
// failed to construct, mirroring the *ParseError shape used for
// context-carrying errors elsewhere in this codebase.
type WiringError struct {
	Conn ConnectionData
	Err  error
}

func (e *WiringError) Error() string {
	return fmt.Sprintf("filter: wiring %s failed: %v", e.Conn, e.Err)
}

func (e *WiringError) Unwrap() error { return e.Err }

// FaultError reports that doProcessFrame returned false: not escalated,
// counted by the filter itself (RecordFault) and surfaced via GetState.
type FaultError struct {
	FilterID int
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("filter %d: doProcessFrame returned false", e.FilterID)
}

// Base holds the state and pacing logic shared by every concrete filter
// shape (Head/Tail/OneToOne/OneToMany/ManyToOne). Embedding Base gives a
// filter its ID, Role, FrameTime pacing, the running flag the scheduler
// checks between cycles, and the per-filter reentrancy guard: at most one
// worker may be inside a given filter's ProcessFrame at a time.
type Base struct {
	Log *slog.Logger

	id        int
	role      Role
	frameTime time.Duration // 0 means "as fast as possible"

	running atomic.Bool
	busy    atomic.Bool

	lastProcess atomic.Int64 // UnixNano of last successful cycle
	faults      atomic.Uint64
	cycles      atomic.Uint64
}

// NewBase constructs a Base with the given id and role. log may be nil, in
// which case slog.Default() is used, scoped with the filter's id.
func NewBase(id int, role Role, frameTime time.Duration, log *slog.Logger) *Base {
	if log == nil {
		log = slog.Default()
	}
	b := &Base{
		Log:       log.With("component", "filter", "id", id, "role", role.String()),
		id:        id,
		role:      role,
		frameTime: frameTime,
	}
	b.running.Store(true)
	return b
}

// ID returns the filter's id within its owning pipeline.
func (b *Base) ID() int { return b.id }

// Role returns the filter's scheduling role.
func (b *Base) Role() Role { return b.role }

// FrameTime returns the target period between successive produced frames.
func (b *Base) FrameTime() time.Duration { return b.frameTime }

// Running reports whether the filter has not yet been stopped.
func (b *Base) Running() bool { return b.running.Load() }

// Stop clears the running flag. The scheduler checks it between cycles;
// there is no abortive cancellation mid-cycle, so a filter always runs a
// ProcessFrame call to completion once started.
func (b *Base) Stop() { b.running.Store(false) }

// TryEnter acquires the per-filter reentrancy guard without blocking. It
// returns false if another worker is already inside this filter's
// ProcessFrame; the scheduler treats that as "not ready, try another
// filter" rather than waiting.
func (b *Base) TryEnter() bool {
	return b.busy.CompareAndSwap(false, true)
}

// Leave releases the reentrancy guard.
func (b *Base) Leave() { b.busy.Store(false) }

// NextDelay computes the scheduler's next-invocation delay for a Master
// filter given the wall-clock duration its last cycle took: max(0,
// FrameTime - elapsed). Non-Master filters ignore pacing (SLAVE runs
// inline, REGULAR runs whenever the scheduler has capacity, NETWORK is
// never ticked directly), so NextDelay is meaningful only when Role ==
// RoleMaster.
func (b *Base) NextDelay(elapsed time.Duration) time.Duration {
	if b.frameTime <= 0 {
		return 0
	}
	d := b.frameTime - elapsed
	if d < 0 {
		return 0
	}
	return d
}

// RecordCycle marks a successful ProcessFrame cycle, updating
// LastProcessTime and the cycle counter returned via GetState.
func (b *Base) RecordCycle(at time.Time) {
	b.lastProcess.Store(at.UnixNano())
	b.cycles.Add(1)
}

// RecordFault increments the fault counter. Faults are not escalated: the
// filter is retried next cycle, but the count is visible via GetState so
// an operator can notice a filter that is consistently failing.
func (b *Base) RecordFault() { b.faults.Add(1) }

// Stats returns a point-in-time snapshot of this filter's scheduling
// state for the pipeline manager's GetState tree.
func (b *Base) Stats() Stats {
	return Stats{
		ID:              b.id,
		Role:            b.role.String(),
		Running:         b.running.Load(),
		Cycles:          b.cycles.Load(),
		Faults:          b.faults.Load(),
		LastProcessUnix: b.lastProcess.Load(),
	}
}

// Stats is the JSON-serializable scheduling snapshot for one filter,
// reported as part of pipeline.Manager.GetState().
type Stats struct {
	ID              int    `json:"id"`
	Role            string `json:"role"`
	Running         bool   `json:"running"`
	Cycles          uint64 `json:"cycles"`
	Faults          uint64 `json:"faults"`
	LastProcessUnix int64  `json:"lastProcessUnixNano"`
}
