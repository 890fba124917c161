package filter

import (
	"time"

	"github.com/zsiec/fabric/frame"
)

// Transform is a processing stage with both readers and writers: one cycle
// reads every input and writes every output atomically. OneToOneFilter,
// OneToManyFilter, and ManyToOneFilter in spec.md §4.2 all share this
// contract; they differ only in how many readers/writers they are wired
// with, which the Endpoints maps already accommodate without a distinct
// type per cardinality.
type Transform struct {
	*Base
	Endpoints
	Proc TransformProcessor
}

// NewTransform constructs a Transform filter around proc.
func NewTransform(base *Base, proc TransformProcessor) *Transform {
	return &Transform{Base: base, Endpoints: newEndpoints(), Proc: proc}
}

// ProcessFrame implements Filter.
func (x *Transform) ProcessFrame() (time.Duration, []int, error) {
	if !x.TryEnter() {
		return x.NextDelay(0), nil, nil
	}
	defer x.Leave()

	start := time.Now()

	readers := x.Readers()
	writers := x.Writers()

	org := make(map[int]*frame.Frame, len(readers))
	for id, r := range readers {
		f := r.Queue.GetFront()
		if f == nil {
			return x.NextDelay(time.Since(start)), nil, nil
		}
		org[id] = f
	}

	dst := make(map[int]*frame.Frame, len(writers))
	for id, w := range writers {
		f := w.Queue.GetRear()
		if f == nil {
			return x.NextDelay(time.Since(start)), nil, nil
		}
		dst[id] = f
	}

	ok := x.Proc.DoProcessFrame(org, dst)

	for _, r := range readers {
		r.Queue.RemoveFrame()
	}

	elapsed := time.Since(start)
	if !ok {
		x.RecordFault()
		return x.NextDelay(elapsed), nil, &FaultError{FilterID: x.ID()}
	}

	enabled := make([]int, 0, len(writers))
	for id, w := range writers {
		if dst[id].Consumed {
			w.Queue.AddFrame()
			enabled = append(enabled, id)
		}
	}

	x.RecordCycle(start)
	return x.NextDelay(elapsed), enabled, nil
}
