package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/zsiec/fabric/filter"
	"github.com/zsiec/fabric/frame"
	"github.com/zsiec/fabric/queue"
)

// allocatingHead is a minimal HeadFilter that owns one output queue of a
// fixed size, producing sequence-numbered frames each cycle.
type allocatingHead struct {
	*filter.Head
	max int
	seq uint64
}

func newAllocatingHead(id int, role filter.Role, frameTime time.Duration, max int) *allocatingHead {
	h := &allocatingHead{max: max}
	h.Head = filter.NewHead(filter.NewBase(id, role, frameTime, nil), h)
	return h
}

func (h *allocatingHead) AllocQueue(conn filter.ConnectionData) (*queue.FrameQueue, error) {
	return queue.New(h.max, conn.WriterID, conn.ReaderID, nil)
}

func (h *allocatingHead) DoProcessFrame(dst map[int]*frame.Frame) bool {
	h.seq++
	for _, f := range dst {
		f.SequenceNumber = h.seq
		f.Consumed = true
	}
	return true
}

type collectingTailFilter struct {
	*filter.Tail
	mu   sync.Mutex
	seqs []uint64
}

func newCollectingTailFilter(id int) *collectingTailFilter {
	c := &collectingTailFilter{}
	c.Tail = filter.NewTail(filter.NewBase(id, filter.RoleRegular, 0, nil), c)
	return c
}

func (c *collectingTailFilter) DoProcessFrame(org map[int]*frame.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range org {
		c.seqs = append(c.seqs, f.SequenceNumber)
	}
	return true
}

func (c *collectingTailFilter) snapshot() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint64(nil), c.seqs...)
}

func TestAddFilterRejectsDuplicateID(t *testing.T) {
	t.Parallel()
	m := New(Options{}, nil)
	h := newAllocatingHead(1, filter.RoleRegular, 0, 4)
	if err := m.AddFilter(h); err != nil {
		t.Fatalf("first AddFilter: %v", err)
	}
	h2 := newAllocatingHead(1, filter.RoleRegular, 0, 4)
	if err := m.AddFilter(h2); err == nil {
		t.Fatal("expected error registering a duplicate filter id")
	}
}

func TestConnectWiresEndpoints(t *testing.T) {
	t.Parallel()
	m := New(Options{}, nil)
	h := newAllocatingHead(1, filter.RoleRegular, 0, 4)
	tl := newCollectingTailFilter(2)

	if err := m.AddFilter(h); err != nil {
		t.Fatalf("AddFilter head: %v", err)
	}
	if err := m.AddFilter(tl.Tail); err != nil {
		t.Fatalf("AddFilter tail: %v", err)
	}

	if err := m.Connect(1, 10, 2, 20); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if len(h.Writers()) != 1 {
		t.Fatalf("head should have one writer, got %d", len(h.Writers()))
	}
	if len(tl.Readers()) != 1 {
		t.Fatalf("tail should have one reader, got %d", len(tl.Readers()))
	}
}

func TestConnectUnknownFilterIsRejected(t *testing.T) {
	t.Parallel()
	m := New(Options{}, nil)
	h := newAllocatingHead(1, filter.RoleRegular, 0, 4)
	if err := m.AddFilter(h); err != nil {
		t.Fatalf("AddFilter: %v", err)
	}
	if err := m.Connect(1, 10, 99, 20); err == nil {
		t.Fatal("expected error connecting to an unregistered filter")
	}
}

func TestDisconnectRemovesEndpoints(t *testing.T) {
	t.Parallel()
	m := New(Options{}, nil)
	h := newAllocatingHead(1, filter.RoleRegular, 0, 4)
	tl := newCollectingTailFilter(2)
	m.AddFilter(h)
	m.AddFilter(tl.Tail)
	m.Connect(1, 10, 2, 20)

	if err := m.Disconnect(1, 10, 2, 20); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if len(h.Writers()) != 0 {
		t.Fatal("writer endpoint should be removed")
	}
	if len(tl.Readers()) != 0 {
		t.Fatal("reader endpoint should be removed")
	}
}

func TestGetStateReportsQueueDepth(t *testing.T) {
	t.Parallel()
	m := New(Options{}, nil)
	h := newAllocatingHead(1, filter.RoleRegular, 0, 4)
	tl := newCollectingTailFilter(2)
	m.AddFilter(h)
	m.AddFilter(tl.Tail)
	m.Connect(1, 10, 2, 20)

	h.ProcessFrame()

	st := m.GetState()
	if len(st.Filters) != 2 {
		t.Fatalf("expected 2 filters in state, got %d", len(st.Filters))
	}
	var headState *FilterState
	for i := range st.Filters {
		if st.Filters[i].ID == 1 {
			headState = &st.Filters[i]
		}
	}
	if headState == nil {
		t.Fatal("missing head filter in state")
	}
	if len(headState.OutputQueues) != 1 || headState.OutputQueues[0].Elements != 1 {
		t.Fatalf("expected 1 output queue with 1 element, got %+v", headState.OutputQueues)
	}
}
