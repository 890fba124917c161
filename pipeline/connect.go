package pipeline

import (
	"fmt"

	"github.com/zsiec/fabric/filter"
)

// writerAdder and readerAdder are implemented by the concrete filter
// shapes that own an Endpoints (Head, Tail, Transform). Connect/Disconnect
// depend only on these, not on the concrete shape, so the allocator works
// uniformly across HeadFilter/OneToOneFilter/OneToManyFilter/
// ManyToOneFilter/TailFilter.
type writerAdder interface {
	AddWriter(w *filter.Writer)
	RemoveWriter(writerID int)
}

type readerAdder interface {
	AddReader(r *filter.Reader)
	RemoveReader(readerID int)
}

// Connect wires writer endpoint writerID of filter wFilterID to reader
// endpoint readerID of filter rFilterID, per spec.md §4.5:
//  1. calls wFilterID's AllocQueue(ConnectionData) to get a correctly-typed
//     queue for its output stage;
//  2. on success, installs the queue as a Writer handle on the upstream
//     filter and a Reader handle on the downstream filter;
//  3. on failure (nil queue, or a non-nil error), aborts and returns a
//     *filter.WiringError — the topology change is rejected, nothing is
//     installed on either side.
func (m *Manager) Connect(wFilterID, writerID, rFilterID, readerID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wf, ok := m.filters[wFilterID]
	if !ok {
		return fmt.Errorf("%w: writer filter %d", ErrUnknownFilter, wFilterID)
	}
	rf, ok := m.filters[rFilterID]
	if !ok {
		return fmt.Errorf("%w: reader filter %d", ErrUnknownFilter, rFilterID)
	}

	conn := filter.ConnectionData{
		WFilterID: wFilterID,
		RFilterID: rFilterID,
		WriterID:  writerID,
		ReaderID:  readerID,
	}

	allocator, ok := wf.(filter.QueueAllocator)
	if !ok {
		return &filter.WiringError{Conn: conn, Err: fmt.Errorf("filter %d does not own output queues", wFilterID)}
	}
	q, err := allocator.AllocQueue(conn)
	if err != nil {
		return &filter.WiringError{Conn: conn, Err: err}
	}
	if q == nil {
		return &filter.WiringError{Conn: conn, Err: fmt.Errorf("AllocQueue returned a nil queue")}
	}

	wa, ok := wf.(writerAdder)
	if !ok {
		return &filter.WiringError{Conn: conn, Err: fmt.Errorf("filter %d cannot hold writer endpoints", wFilterID)}
	}
	ra, ok := rf.(readerAdder)
	if !ok {
		return &filter.WiringError{Conn: conn, Err: fmt.Errorf("filter %d cannot hold reader endpoints", rFilterID)}
	}

	wa.AddWriter(&filter.Writer{WriterID: writerID, DownstreamFilterID: rFilterID, ReaderID: readerID, Queue: q})
	ra.AddReader(&filter.Reader{ReaderID: readerID, UpstreamFilterID: wFilterID, WriterID: writerID, Queue: q})

	m.log.Info("connected", "conn", conn.String())
	return nil
}

// Disconnect removes both endpoint handles for a wiring and drops the
// queue; its pre-allocated frames are released for GC, per spec.md §4.5.
func (m *Manager) Disconnect(wFilterID, writerID, rFilterID, readerID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wf, ok := m.filters[wFilterID]
	if !ok {
		return fmt.Errorf("%w: writer filter %d", ErrUnknownFilter, wFilterID)
	}
	rf, ok := m.filters[rFilterID]
	if !ok {
		return fmt.Errorf("%w: reader filter %d", ErrUnknownFilter, rFilterID)
	}

	if wa, ok := wf.(writerAdder); ok {
		wa.RemoveWriter(writerID)
	}
	if ra, ok := rf.(readerAdder); ok {
		ra.RemoveReader(readerID)
	}

	m.log.Info("disconnected", "w", wFilterID, "writerID", writerID, "r", rFilterID, "readerID", readerID)
	return nil
}
