package filter

import (
	"time"

	"github.com/zsiec/fabric/frame"
)

// Head is a source filter: no input readers, one or more owned output
// queues. Each cycle it tries to acquire GetRear on every output queue; if
// any is full it falls back to ForceGetRear so a slow downstream never
// stalls production, per spec.md §4.2.
type Head struct {
	*Base
	Endpoints
	Proc HeadProcessor
}

// NewHead constructs a Head filter around proc, which implements the
// actual frame production logic.
func NewHead(base *Base, proc HeadProcessor) *Head {
	return &Head{Base: base, Endpoints: newEndpoints(), Proc: proc}
}

// ProcessFrame implements Filter.
func (h *Head) ProcessFrame() (time.Duration, []int, error) {
	if !h.TryEnter() {
		return h.NextDelay(0), nil, nil
	}
	defer h.Leave()

	start := time.Now()

	writers := h.Writers()
	if len(writers) == 0 {
		return h.NextDelay(time.Since(start)), nil, nil
	}

	dst := make(map[int]*frame.Frame, len(writers))
	for id, w := range writers {
		f := w.Queue.GetRear()
		if f == nil {
			f = w.Queue.ForceGetRear()
		}
		dst[id] = f
	}

	ok := h.Proc.DoProcessFrame(dst)
	elapsed := time.Since(start)
	if !ok {
		h.RecordFault()
		return h.NextDelay(elapsed), nil, &FaultError{FilterID: h.ID()}
	}

	enabled := make([]int, 0, len(writers))
	for id, w := range writers {
		if dst[id].Consumed {
			w.Queue.AddFrame()
			enabled = append(enabled, id)
		}
	}

	h.RecordCycle(start)
	return h.NextDelay(elapsed), enabled, nil
}
