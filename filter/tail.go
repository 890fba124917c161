package filter

import (
	"time"

	"github.com/zsiec/fabric/frame"
)

// Tail is a sink filter: no output writers, one or more readers into
// upstream queues. Each cycle it acquires GetFront on every input; if any
// is nil the cycle is "not ready", and the scheduler retries later, per
// spec.md §4.2. Inputs are always released via RemoveFrame once the cycle
// runs, whether or not DoProcessFrame succeeded.
type Tail struct {
	*Base
	Endpoints
	Proc TailProcessor
}

// NewTail constructs a Tail filter around proc, which implements the
// actual frame consumption logic.
func NewTail(base *Base, proc TailProcessor) *Tail {
	return &Tail{Base: base, Endpoints: newEndpoints(), Proc: proc}
}

// ProcessFrame implements Filter.
func (t *Tail) ProcessFrame() (time.Duration, []int, error) {
	if !t.TryEnter() {
		return t.NextDelay(0), nil, nil
	}
	defer t.Leave()

	start := time.Now()

	readers := t.Readers()
	if len(readers) == 0 {
		return t.NextDelay(time.Since(start)), nil, nil
	}

	org := make(map[int]*frame.Frame, len(readers))
	for id, r := range readers {
		f := r.Queue.GetFront()
		if f == nil {
			return t.NextDelay(time.Since(start)), nil, nil
		}
		org[id] = f
	}

	ok := t.Proc.DoProcessFrame(org)

	for _, r := range readers {
		r.Queue.RemoveFrame()
	}

	elapsed := time.Since(start)
	if !ok {
		t.RecordFault()
		return t.NextDelay(elapsed), nil, &FaultError{FilterID: t.ID()}
	}

	t.RecordCycle(start)
	return t.NextDelay(elapsed), nil, nil
}
