// Package queue implements the bounded single-producer/single-consumer ring
// buffer of pre-allocated frames that connects one filter's writer to
// another filter's reader. It never copies a frame's payload on enqueue or
// dequeue: the producer writes in place into the slot returned by GetRear,
// then publishes it; the consumer reads in place from the slot returned by
// GetFront, then releases it.
package queue

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/zsiec/fabric/frame"
)

// ErrQueueFull and ErrQueueEmpty are the transient conditions a producer or
// consumer peek can hit under normal operation. They are not escalated:
// the scheduler treats them as "retry later" (consumer) or "drop newest via
// forceGetRear" (producer) per spec.md §7.
var (
	ErrQueueFull  = errors.New("queue: full")
	ErrQueueEmpty = errors.New("queue: empty")
)

// SetupError reports a FrameQueue construction failure: unsupported codec,
// missing pixel format, or incompatible sample format. It is a wiring
// error at construction time, not a runtime condition.
type SetupError struct {
	Reason string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("queue: setup failed: %s", e.Reason)
}

// FrameQueue is a bounded ring of Max pre-allocated frames shared between
// exactly one producer and one consumer. Front and Rear are plain integers
// published with atomic release/acquire semantics: the producer's write
// into a slot happens-before its atomic store to Rear; the consumer's
// atomic load of Rear happens-before its read of the slot. Effective
// capacity is Max-1: the slot at (rear+1)%max is never claimed by the
// producer while it equals front, so the ring can always distinguish empty
// from full.
type FrameQueue struct {
	log *slog.Logger

	frames []frame.Frame
	max    int

	front atomic.Int64 // consumer-owned; advanced only by RemoveFrame
	rear  atomic.Int64 // producer-owned; advanced only by AddFrame

	writerID int
	readerID int

	dropped   atomic.Uint64
	published atomic.Bool // set once AddFrame is ever called; guards ForceGetFront
}

// New constructs a FrameQueue of max pre-allocated frames (max must be >=
// 2: one slot is always reserved so the ring can distinguish full from
// empty). writerID/readerID are the ConnectionData endpoint ids this queue
// was allocated for, used only for accounting returned by AddFrame/
// RemoveFrame. The frames slice is owned by the queue for its entire
// lifetime and never reallocated; callers use NewVideo/NewAudio to get one
// sized and shaped correctly for a codec.
func New(max int, writerID, readerID int, log *slog.Logger) (*FrameQueue, error) {
	if max < 2 {
		return nil, &SetupError{Reason: fmt.Sprintf("max must be >= 2, got %d", max)}
	}
	if log == nil {
		log = slog.Default()
	}
	return &FrameQueue{
		log:      log.With("component", "framequeue", "writer", writerID, "reader", readerID),
		frames:   make([]frame.Frame, max),
		max:      max,
		writerID: writerID,
		readerID: readerID,
	}, nil
}

func (q *FrameQueue) next(i int) int {
	i++
	if i == q.max {
		return 0
	}
	return i
}

func (q *FrameQueue) prev(i int) int {
	if i == 0 {
		return q.max - 1
	}
	return i - 1
}

// GetElements returns the number of unread frames currently published.
func (q *FrameQueue) GetElements() int {
	rear := int(q.rear.Load())
	front := int(q.front.Load())
	return ((rear - front) % q.max + q.max) % q.max
}

// Max returns the queue's total slot count (effective capacity is Max-1).
func (q *FrameQueue) Max() int { return q.max }

// Dropped returns the count of frames dropped by ForceGetRear so far.
func (q *FrameQueue) Dropped() uint64 { return q.dropped.Load() }

// GetRear returns the slot the producer should write its next frame into,
// or nil if the queue is full ((rear+1)%max == front). The caller must
// finish writing Length and timestamps into the returned Frame, then call
// AddFrame to publish it. GetRear has no side effect on Front/Rear; calling
// it twice without an intervening AddFrame returns the same slot.
func (q *FrameQueue) GetRear() *frame.Frame {
	rear := int(q.rear.Load())
	front := int(q.front.Load())
	if q.next(rear) == front {
		return nil
	}
	return &q.frames[rear]
}

// AddFrame publishes the slot previously returned by GetRear, advancing
// Rear by one. The store to Rear is the release that makes the slot's
// contents visible to the consumer; it must happen after the producer has
// finished writing Length/timestamps/Consumed into the slot. Returns the
// writerID this queue was allocated for, for scheduler accounting.
func (q *FrameQueue) AddFrame() int {
	rear := int(q.rear.Load())
	q.frames[rear].Consumed = true
	q.rear.Store(int64(q.next(rear)))
	q.published.Store(true)
	return q.writerID
}

// GetFront returns the oldest unread slot, or nil if the queue is empty
// (front == rear). The load of Rear here is the acquire matching AddFrame's
// release: if it observes the producer's advance, the slot's contents are
// guaranteed visible.
func (q *FrameQueue) GetFront() *frame.Frame {
	front := int(q.front.Load())
	rear := int(q.rear.Load())
	if front == rear {
		return nil
	}
	return &q.frames[front]
}

// RemoveFrame releases the slot previously returned by GetFront back to the
// producer's pool, advancing Front by one. Returns the readerID this queue
// was allocated for.
func (q *FrameQueue) RemoveFrame() int {
	front := int(q.front.Load())
	q.frames[front].Consumed = false
	q.front.Store(int64(q.next(front)))
	return q.readerID
}

// flush retracts the most recently published slot, treating its write as
// uncommitted. It is producer-private: the single-writer invariant breaks
// if a consumer ever calls this, so it is unexported and only reachable
// through ForceGetRear.
func (q *FrameQueue) flush() {
	rear := int(q.rear.Load())
	q.rear.Store(int64(q.prev(rear)))
}

// ForceGetRear never returns nil. If the queue is full it discards the
// newest published frame by retracting the most recently committed slot
// via flush and retrying, emitting a diagnostic; older frames are kept.
// This is the overload policy of spec.md §4.1: a full queue favors letting
// the consumer catch up without introducing latency, at the cost of
// dropping the frame that would have been newest.
func (q *FrameQueue) ForceGetRear() *frame.Frame {
	if f := q.GetRear(); f != nil {
		return f
	}
	q.flush()
	q.dropped.Add(1)
	q.log.Warn("frame discarded: queue full", "dropped_total", q.dropped.Load())
	return q.GetRear()
}

// ForceGetFront returns the slot at (front + max - 1) % max unconditionally
// — the most recently delivered slot, even if the consumer has already
// advanced past it. It requires that at least one frame has ever been
// enqueued; calling it on a queue that has never seen AddFrame returns nil
// rather than reading uninitialized slot data (spec.md §9 open question).
// The returned pointer carries no freshness guarantee: a concurrent
// producer may be overwriting it.
func (q *FrameQueue) ForceGetFront() *frame.Frame {
	if !q.published.Load() {
		return nil
	}
	front := int(q.front.Load())
	idx := q.prev(front)
	return &q.frames[idx]
}
