package filter

import "github.com/zsiec/fabric/queue"

// Reader is a handle into an upstream queue, installed into a filter's
// Readers map when ConnectionData wiring completes. ReaderID is the
// endpoint id within the owning filter; UpstreamFilterID/WriterID identify
// the producer side for diagnostics.
type Reader struct {
	ReaderID         int
	UpstreamFilterID int
	WriterID         int
	Queue            *queue.FrameQueue
}

// Writer is a handle to a queue this filter owns and produces into. A
// filter allocates its own writers via AllocQueue when a downstream
// consumer connects.
type Writer struct {
	WriterID           int
	DownstreamFilterID int
	ReaderID           int
	Queue              *queue.FrameQueue
}

// Endpoints holds the reader/writer maps every filter shape needs,
// keyed by the small integer ids ConnectionData carries. It is embedded
// (not just composed) so concrete filter types get Readers()/Writers()
// and the mutation helpers for free, matching spec.md §3's Filter model.
type Endpoints struct {
	readers map[int]*Reader
	writers map[int]*Writer
}

func newEndpoints() Endpoints {
	return Endpoints{
		readers: make(map[int]*Reader),
		writers: make(map[int]*Writer),
	}
}

// Readers returns the filter's reader handles keyed by reader id.
func (e *Endpoints) Readers() map[int]*Reader { return e.readers }

// Writers returns the filter's writer handles keyed by writer id.
func (e *Endpoints) Writers() map[int]*Writer { return e.writers }

// AddReader installs a reader handle, used by the connection allocator
// once the upstream filter's AllocQueue succeeds.
func (e *Endpoints) AddReader(r *Reader) { e.readers[r.ReaderID] = r }

// AddWriter installs a writer handle this filter owns, used by the
// connection allocator right after AllocQueue returns a queue.
func (e *Endpoints) AddWriter(w *Writer) { e.writers[w.WriterID] = w }

// RemoveReader drops a reader handle on disconnect.
func (e *Endpoints) RemoveReader(readerID int) { delete(e.readers, readerID) }

// RemoveWriter drops a writer handle on disconnect. The caller is
// responsible for the matching RemoveReader on the downstream filter.
func (e *Endpoints) RemoveWriter(writerID int) { delete(e.writers, writerID) }
