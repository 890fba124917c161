// Package srtsource adapts an SRT pull connection into a RoleNetwork
// HeadFilter: SRT's own blocking recv loop is the "external event loop"
// of spec.md §4.3, so Source's RunNetwork hands control to it and only
// calls back into the fabric (GetRear/ForceGetRear/AddFrame) once per
// received payload. Demuxing the received MPEG-TS/container bytes into
// codec-specific access units is explicitly out of the fabric's scope
// (spec.md §1); Source treats each read as one opaque raw-video Frame
// payload, leaving framing to whatever OneToOneFilter a caller wires
// downstream of it.
package srtsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	srtgo "github.com/zsiec/srtgo"

	"github.com/zsiec/fabric/filter"
	"github.com/zsiec/fabric/frame"
	"github.com/zsiec/fabric/queue"
)

const readBufferSize = 1500 // one MPEG-TS-over-SRT payload unit

// Conn is the subset of *srtgo.Conn that Source depends on, so tests can
// substitute a fake without a real SRT listener.
type Conn interface {
	Read(p []byte) (int, error)
	Close() error
}

// Dialer dials an SRT address and returns a Conn. A Source built by New
// uses srtDialer, which wraps srtgo.Dial.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

type srtDialer struct{}

func (srtDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	cfg := srtgo.DefaultConfig()
	type result struct {
		conn *srtgo.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := srtgo.Dial(addr, cfg)
		ch <- result{conn, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return r.conn, nil
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// Source is a RoleNetwork HeadFilter pulling raw bytes from a remote SRT
// listener. The scheduler never calls its ProcessFrame directly (see
// pipeline.Manager.runNetwork); RunNetwork is the only entry point that
// ever publishes frames.
type Source struct {
	*filter.Head

	log    *slog.Logger
	addr   string
	dialer Dialer
	cfg    queue.VideoConfig

	seq        atomic.Uint64
	bytesRead  atomic.Uint64
	reconnects atomic.Uint64
}

// New constructs a Source that will pull from addr once RunNetwork is
// invoked by the pipeline scheduler. cfg shapes the single output queue
// AllocQueue produces; it is typically VCodecRaw with a pixel format
// that the downstream demux filter agrees on, since Source does not
// interpret the bytes it receives.
func New(id int, addr string, cfg queue.VideoConfig, log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}
	s := &Source{
		log:    log.With("component", "srtsource", "id", id, "addr", addr),
		addr:   addr,
		dialer: srtDialer{},
		cfg:    cfg,
	}
	s.Head = filter.NewHead(filter.NewBase(id, filter.RoleNetwork, 0, s.log), noopHeadProcessor{})
	return s
}

// AllocQueue implements filter.QueueAllocator.
func (s *Source) AllocQueue(conn filter.ConnectionData) (*queue.FrameQueue, error) {
	return queue.NewVideo(s.cfg, conn.WriterID, conn.ReaderID, s.log)
}

// BytesRead returns the running total of bytes pulled from the SRT
// connection, for diagnostics.
func (s *Source) BytesRead() uint64 { return s.bytesRead.Load() }

// RunNetwork implements pipeline.NetworkRunner. It dials the remote SRT
// source, reconnecting with backoff on failure, and publishes each read
// as a Frame into every output queue, until ctx is cancelled.
func (s *Source) RunNetwork(ctx context.Context) error {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := s.dialer.Dial(ctx, s.addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("dial failed, retrying", "error", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		s.reconnects.Add(1)
		if err := s.pump(ctx, conn); err != nil && ctx.Err() == nil {
			s.log.Info("connection ended, reconnecting", "error", err)
		}
	}
	return nil
}

func (s *Source) pump(ctx context.Context, conn Conn) error {
	defer conn.Close()
	buf := make([]byte, readBufferSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("srtsource: read: %w", err)
		}
		s.bytesRead.Add(uint64(n))
		s.publish(buf[:n])
	}
}

func (s *Source) publish(payload []byte) {
	for _, w := range s.Writers() {
		f := w.Queue.GetRear()
		if f == nil {
			f = w.Queue.ForceGetRear()
		}
		f.Kind = frame.KindVideo
		f.Video.Length = copy(f.Video.Data, payload)
		f.SequenceNumber = s.seq.Add(1)
		f.OriginTime = time.Now().UnixMicro()
		f.Consumed = true
		w.Queue.AddFrame()
	}
}

// noopHeadProcessor satisfies filter.HeadProcessor so Source can embed
// filter.Head for its Endpoints/AllocQueue machinery. The scheduler never
// calls ProcessFrame on a RoleNetwork filter (see pipeline.Manager.Run),
// so this is never actually invoked.
type noopHeadProcessor struct{}

func (noopHeadProcessor) DoProcessFrame(map[int]*frame.Frame) bool { return false }
