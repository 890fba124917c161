package srtsource

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/zsiec/fabric/filter"
	"github.com/zsiec/fabric/frame"
	"github.com/zsiec/fabric/queue"
)

// fakeConn replays a fixed sequence of reads, then blocks until closed.
type fakeConn struct {
	mu      sync.Mutex
	payload [][]byte
	idx     int
	closed  chan struct{}
}

func newFakeConn(payload ...[]byte) *fakeConn {
	return &fakeConn{payload: payload, closed: make(chan struct{})}
}

func (c *fakeConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	if c.idx < len(c.payload) {
		n := copy(p, c.payload[c.idx])
		c.idx++
		c.mu.Unlock()
		return n, nil
	}
	c.mu.Unlock()

	<-c.closed
	return 0, io.EOF
}

func (c *fakeConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	calls int
}

func (d *fakeDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.calls >= len(d.conns) {
		return nil, errors.New("no more fake connections")
	}
	c := d.conns[d.calls]
	d.calls++
	return c, nil
}

func newTestSource(t *testing.T, dialer Dialer) *Source {
	t.Helper()
	cfg := queue.VideoConfig{Codec: frame.VCodecRaw, PixelFormat: frame.PixYUV420P, Width: 16, Height: 16}
	s := New(1, "test-addr:6000", cfg, nil)
	s.dialer = dialer
	return s
}

func connectOutput(t *testing.T, s *Source) *queue.FrameQueue {
	t.Helper()
	q, err := s.AllocQueue(filter.ConnectionData{WFilterID: 1, RFilterID: 2, WriterID: 10, ReaderID: 20})
	if err != nil {
		t.Fatalf("AllocQueue: %v", err)
	}
	s.AddWriter(&filter.Writer{WriterID: 10, DownstreamFilterID: 2, ReaderID: 20, Queue: q})
	return q
}

func TestRunNetworkPublishesEachRead(t *testing.T) {
	t.Parallel()

	conn := newFakeConn([]byte("frame-one"), []byte("frame-two"))
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	s := newTestSource(t, dialer)
	q := connectOutput(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunNetwork(ctx) }()

	first := waitForFrame(t, q)
	if first.SequenceNumber != 1 {
		t.Errorf("first frame sequence: got %d, want 1", first.SequenceNumber)
	}
	q.RemoveFrame()

	second := waitForFrame(t, q)
	if second.SequenceNumber != 2 {
		t.Errorf("second frame sequence: got %d, want 2", second.SequenceNumber)
	}

	cancel()
	conn.Close() // unblock the pump's in-flight Read so RunNetwork can return
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunNetwork did not return after cancel")
	}
}

func TestRunNetworkReconnectsAfterEOF(t *testing.T) {
	t.Parallel()

	first := newFakeConn([]byte("payload"))
	first.Close() // EOF immediately after the one read
	second := newFakeConn([]byte("payload-2"))
	t.Cleanup(func() { first.Close(); second.Close() })
	dialer := &fakeDialer{conns: []*fakeConn{first, second}}

	s := newTestSource(t, dialer)
	q := connectOutput(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunNetwork(ctx) }()

	f := waitForFrame(t, q)
	if f.SequenceNumber != 1 {
		t.Errorf("sequence: got %d, want 1", f.SequenceNumber)
	}
	q.RemoveFrame()

	f2 := waitForFrame(t, q)
	if f2.SequenceNumber != 2 {
		t.Errorf("sequence after reconnect: got %d, want 2", f2.SequenceNumber)
	}

	cancel()
	second.Close() // unblock the pump's in-flight Read so RunNetwork can return
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunNetwork did not return after cancel")
	}
}

func TestRunNetworkReturnsNilWhenCancelledBeforeStart(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{} // Dial would always error; a cancelled ctx returns before any dial
	s := newTestSource(t, dialer)
	connectOutput(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.RunNetwork(ctx); err != nil {
		t.Fatalf("RunNetwork after pre-cancelled ctx: got %v, want nil", err)
	}
}

func waitForFrame(t *testing.T, q *queue.FrameQueue) *frame.Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f := q.GetFront(); f != nil {
			return f
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for a published frame")
	return nil
}
