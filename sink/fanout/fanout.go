// Package fanout implements an OneToManyFilter that republishes every
// frame from its single input into one dynamically added output queue per
// downstream consumer, generalizing the "add/remove viewer, broadcast to
// all" pattern of a live-streaming relay into the fabric's queue-based
// wiring model: each consumer gets its own SPSC queue rather than sharing
// a fan-out channel. A cycle runs only when every consumer queue has a
// free slot, so one consumer that falls behind holds back all of them.
package fanout

import (
	"log/slog"
	"sync/atomic"

	"github.com/zsiec/fabric/filter"
	"github.com/zsiec/fabric/frame"
	"github.com/zsiec/fabric/queue"
)

// Config controls how Fanout sizes queues it allocates for new consumers.
type Config struct {
	QueueDepth int
	Video      queue.VideoConfig
	Audio      queue.AudioConfig
	Kind       frame.Kind
}

// Fanout is a OneToManyFilter: one reader into an upstream queue, an
// arbitrary number of writer queues, one per connected consumer. Every
// cycle it copies the input frame's payload into each output slot and
// marks it Consumed, so every consumer sees every frame rather than a
// load-balanced split. If any consumer queue is full the cycle does not
// run and the input frame stays queued; no consumer frame is dropped.
type Fanout struct {
	*filter.Transform
	cfg      Config
	received atomic.Uint64
}

// New constructs a Fanout filter. id is this filter's id within the owning
// pipeline.Manager.
func New(id int, cfg Config, log *slog.Logger) *Fanout {
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = frame.DefaultVideoFrames
	}
	f := &Fanout{cfg: cfg}
	f.Transform = filter.NewTransform(filter.NewBase(id, filter.RoleSlave, 0, log), f)
	return f
}

// AllocQueue implements filter.QueueAllocator: every new consumer gets its
// own queue, shaped the same way regardless of which consumer asked,
// sized by cfg.QueueDepth.
func (f *Fanout) AllocQueue(conn filter.ConnectionData) (*queue.FrameQueue, error) {
	switch f.cfg.Kind {
	case frame.KindAudio:
		cfg := f.cfg.Audio
		cfg.Max = f.cfg.QueueDepth
		return queue.NewAudio(cfg, conn.WriterID, conn.ReaderID, f.Log)
	default:
		cfg := f.cfg.Video
		cfg.Max = f.cfg.QueueDepth
		return queue.NewVideo(cfg, conn.WriterID, conn.ReaderID, f.Log)
	}
}

// ConsumerCount reports how many output queues are currently wired.
func (f *Fanout) ConsumerCount() int { return len(f.Writers()) }

// Received reports the running count of frames this filter has read from
// its upstream input, used for diagnostics independent of per-consumer
// drop counts (those live on each consumer's own FrameQueue).
func (f *Fanout) Received() uint64 { return f.received.Load() }

// DoProcessFrame implements filter.TransformProcessor. It requires exactly
// one reader (one-to-many fans a single upstream out, never joins
// multiple upstreams — that would be the explicitly out-of-scope general
// dataflow join per spec.md §1).
func (f *Fanout) DoProcessFrame(org map[int]*frame.Frame, dst map[int]*frame.Frame) bool {
	if len(org) != 1 {
		f.Log.Error("fanout requires exactly one input", "got", len(org))
		return false
	}
	var src *frame.Frame
	for _, v := range org {
		src = v
	}
	f.received.Add(1)

	for _, d := range dst {
		copyFrame(d, src)
		d.Consumed = true
	}
	return true
}

// copyFrame duplicates metadata and payload from src into dst in place,
// without reallocating dst's buffers: this is the one point in the fabric
// where a genuine copy is unavoidable, because a single input frame must
// become N independently-paced output slots, each eventually overwritten
// by its own producer-side queue on the next cycle (spec.md §9's note on
// falling back to copy only when a filter fans out into differently
// lifetimed outputs).
func copyFrame(dst, src *frame.Frame) {
	dst.Kind = src.Kind
	dst.PresentationTime = src.PresentationTime
	dst.OriginTime = src.OriginTime
	dst.SequenceNumber = src.SequenceNumber

	switch src.Kind {
	case frame.KindAudio:
		n := copy(dst.Audio.Data, src.Audio.Data[:min(src.Audio.Length, len(src.Audio.Data))])
		dst.Audio.Length = n
		for i := range dst.Audio.Planes {
			if i < len(src.Audio.Planes) {
				copy(dst.Audio.Planes[i], src.Audio.Planes[i])
			}
		}
		dst.Audio.Channels = src.Audio.Channels
		dst.Audio.SampleRate = src.Audio.SampleRate
		dst.Audio.Samples = src.Audio.Samples
		dst.Audio.Codec = src.Audio.Codec
	default:
		n := copy(dst.Video.Data, src.Video.Data[:min(src.Video.Length, len(src.Video.Data))])
		dst.Video.Length = n
		dst.Video.Width = src.Video.Width
		dst.Video.Height = src.Video.Height
		dst.Video.PixelFormat = src.Video.PixelFormat
		dst.Video.Codec = src.Video.Codec
	}
}
