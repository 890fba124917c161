package main

import (
	"log/slog"
	"time"

	"github.com/zsiec/fabric/filter"
	"github.com/zsiec/fabric/frame"
	"github.com/zsiec/fabric/queue"
)

// generator is a RoleMaster HeadFilter producing synthetic raw video
// frames at a fixed frame time, standing in for a real capture device or
// decoder in this demonstration pipeline.
type generator struct {
	*filter.Head
	cfg queue.VideoConfig
	seq uint64
}

func newGenerator(id int, cfg queue.VideoConfig, frameTime time.Duration) *generator {
	g := &generator{cfg: cfg}
	g.Head = filter.NewHead(filter.NewBase(id, filter.RoleMaster, frameTime, slog.Default()), g)
	return g
}

func (g *generator) AllocQueue(conn filter.ConnectionData) (*queue.FrameQueue, error) {
	return queue.NewVideo(g.cfg, conn.WriterID, conn.ReaderID, slog.Default())
}

func (g *generator) DoProcessFrame(dst map[int]*frame.Frame) bool {
	g.seq++
	for _, f := range dst {
		for i := range f.Video.Data {
			f.Video.Data[i] = byte(g.seq)
		}
		f.Video.Length = len(f.Video.Data)
		f.SequenceNumber = g.seq
		f.OriginTime = time.Now().UnixMicro()
		f.Consumed = true
	}
	return true
}

// passthrough is a RoleRegular OneToOneFilter that copies its single
// input to its single output unchanged, standing in for a real transform
// (scale, resample, annotate) in this demonstration pipeline.
type passthrough struct {
	*filter.Transform
	cfg queue.VideoConfig
}

func newPassthrough(id int) *passthrough {
	p := &passthrough{cfg: queue.VideoConfig{Codec: frame.VCodecRaw, PixelFormat: frame.PixYUV420P, Width: 320, Height: 180}}
	p.Transform = filter.NewTransform(filter.NewBase(id, filter.RoleRegular, 0, slog.Default()), p)
	return p
}

func (p *passthrough) AllocQueue(conn filter.ConnectionData) (*queue.FrameQueue, error) {
	return queue.NewVideo(p.cfg, conn.WriterID, conn.ReaderID, slog.Default())
}

func (p *passthrough) DoProcessFrame(org, dst map[int]*frame.Frame) bool {
	if len(org) != 1 || len(dst) != 1 {
		return false
	}
	var src *frame.Frame
	for _, v := range org {
		src = v
	}
	for _, d := range dst {
		n := copy(d.Video.Data, src.Video.Data[:min(src.Video.Length, len(src.Video.Data))])
		d.Video.Length = n
		d.SequenceNumber = src.SequenceNumber
		d.OriginTime = src.OriginTime
		d.PresentationTime = src.PresentationTime
		d.Consumed = true
	}
	return true
}

// countingTail is a RoleRegular TailFilter that only tracks how many
// frames it has consumed, standing in for a metrics sink.
type countingTail struct {
	*filter.Tail
	count uint64
}

func newCountingTail(id int) *countingTail {
	t := &countingTail{}
	t.Tail = filter.NewTail(filter.NewBase(id, filter.RoleRegular, 0, slog.Default()), t)
	return t
}

func (t *countingTail) DoProcessFrame(org map[int]*frame.Frame) bool {
	t.count++
	return true
}

// loggingTail is a RoleRegular TailFilter that logs every nth frame it
// consumes, standing in for an operator-facing debug sink.
type loggingTail struct {
	*filter.Tail
	every uint64
	count uint64
}

func newLoggingTail(id int, every uint64) *loggingTail {
	t := &loggingTail{every: every}
	t.Tail = filter.NewTail(filter.NewBase(id, filter.RoleRegular, 0, slog.Default()), t)
	return t
}

func (t *loggingTail) DoProcessFrame(org map[int]*frame.Frame) bool {
	t.count++
	if t.every > 0 && t.count%t.every == 0 {
		for _, f := range org {
			slog.Info("frame received", "seq", f.SequenceNumber, "bytes", f.Video.Length)
		}
	}
	return true
}
