package pipeline

import "github.com/zsiec/fabric/filter"

// QueueDepth reports the instantaneous element count of one queue
// endpoint, keyed by the writer/reader ids ConnectionData assigned it.
type QueueDepth struct {
	WriterID int    `json:"writerId"`
	ReaderID int    `json:"readerId"`
	Elements int    `json:"elements"`
	Max      int    `json:"max"`
	Dropped  uint64 `json:"dropped"`
}

// FilterState is the JSON-shaped per-filter report spec.md §6 expects from
// getState: id, role, queue depths, plus the scheduling counters from
// filter.Stats.
type FilterState struct {
	filter.Stats
	OutputQueues []QueueDepth `json:"outputQueues,omitempty"`
}

// State is the top-level getState tree for one pipeline.
type State struct {
	RunID   string        `json:"runId"`
	Filters []FilterState `json:"filters"`
}

// outputQueueReporter is implemented by Head/Transform, which own output
// queues via the embedded Endpoints.
type outputQueueReporter interface {
	Writers() map[int]*filter.Writer
}

// GetState returns a point-in-time snapshot of every registered filter's
// scheduling state and owned queue depths, suitable for JSON serialization
// to an external control-plane surface (spec.md §6).
func (m *Manager) GetState() State {
	filters := m.snapshot()
	st := State{RunID: m.id, Filters: make([]FilterState, 0, len(filters))}

	for _, f := range filters {
		fs := FilterState{Stats: f.Stats()}
		if owner, ok := f.(outputQueueReporter); ok {
			for _, w := range owner.Writers() {
				fs.OutputQueues = append(fs.OutputQueues, QueueDepth{
					WriterID: w.WriterID,
					ReaderID: w.ReaderID,
					Elements: w.Queue.GetElements(),
					Max:      w.Queue.Max(),
					Dropped:  w.Queue.Dropped(),
				})
			}
		}
		st.Filters = append(st.Filters, fs)
	}
	return st
}
