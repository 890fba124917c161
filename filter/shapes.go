package filter

import (
	"time"

	"github.com/zsiec/fabric/frame"
	"github.com/zsiec/fabric/queue"
)

// Filter is the capability every concrete shape implements: it can be
// asked to attempt one processing cycle and report scheduling state. The
// scheduler only depends on this interface; it never knows which concrete
// shape (Head/Tail/OneToOne/OneToMany/ManyToOne) it is driving.
type Filter interface {
	ID() int
	Role() Role
	FrameTime() time.Duration
	Running() bool
	Stop()
	TryEnter() bool
	Leave()
	Stats() Stats

	// ProcessFrame attempts one processing cycle and returns the delay
	// the scheduler should wait before invoking it again (meaningful
	// only for RoleMaster filters) and the writer ids whose output queue
	// just became non-empty, so the scheduler can inline any SLAVE
	// filters reading from them.
	ProcessFrame() (nextDelay time.Duration, enabled []int, err error)
}

// QueueAllocator is implemented by filters that own output queues: the
// connection allocator calls AllocQueue on the upstream (writer) side of a
// new wiring to get a correctly-typed FrameQueue. Returning a non-nil
// error means the connection is a wiring error and must be rejected.
type QueueAllocator interface {
	AllocQueue(conn ConnectionData) (*queue.FrameQueue, error)
}

// HeadProcessor is implemented by HeadFilter bodies: dstFrames maps
// writer-id to the output slot that filter should write into. Returning
// true publishes the frames the body marked Consumed; returning false
// leaves every output slot unpublished for the next retry.
type HeadProcessor interface {
	DoProcessFrame(dstFrames map[int]*frame.Frame) bool
}

// TailProcessor is implemented by TailFilter bodies: orgFrames maps
// reader-id to the input slot that filter should consume.
type TailProcessor interface {
	DoProcessFrame(orgFrames map[int]*frame.Frame) bool
}

// TransformProcessor is implemented by OneToOne/OneToMany/ManyToOne bodies:
// one atomic cycle reads every input and writes every output. Returning
// true publishes outputs and releases inputs; false releases inputs only,
// leaving outputs in place for the next retry.
type TransformProcessor interface {
	DoProcessFrame(orgFrames map[int]*frame.Frame, dstFrames map[int]*frame.Frame) bool
}
