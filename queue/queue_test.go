package queue

import (
	"testing"

	"github.com/zsiec/fabric/frame"
)

func publish(t *testing.T, q *FrameQueue, seq uint64) bool {
	t.Helper()
	f := q.GetRear()
	if f == nil {
		return false
	}
	f.SequenceNumber = seq
	q.AddFrame()
	return true
}

// TestCapacityInvariant covers spec.md S1: with max=4, three published
// frames leave GetRear nil (one slot reserved) and GetElements==3; a
// single dequeue frees exactly one slot.
func TestCapacityInvariant(t *testing.T) {
	t.Parallel()
	q, err := New(4, 1, 2, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, seq := range []uint64{1, 2, 3} {
		if !publish(t, q, seq) {
			t.Fatalf("expected publish of seq %d to succeed", seq)
		}
	}

	if got := q.GetElements(); got != 3 {
		t.Fatalf("GetElements: got %d, want 3", got)
	}
	if f := q.GetRear(); f != nil {
		t.Fatal("GetRear: expected nil on full queue")
	}

	front := q.GetFront()
	if front == nil || front.SequenceNumber != 1 {
		t.Fatalf("GetFront: got %+v, want seq 1", front)
	}
	q.RemoveFrame()

	if f := q.GetRear(); f == nil {
		t.Fatal("GetRear: expected a free slot after one dequeue")
	}
}

// TestElementsFormula covers spec.md property 1: GetElements always equals
// (rear-front) mod max, tracked across a run of publish/dequeue operations.
func TestElementsFormula(t *testing.T) {
	t.Parallel()
	q, err := New(5, 1, 2, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := 0
	for i := 0; i < 20; i++ {
		if i%3 != 0 {
			if publish(t, q, uint64(i)) {
				want++
			}
		} else if want > 0 {
			q.RemoveFrame()
			want--
		}
		if got := q.GetElements(); got != want {
			t.Fatalf("step %d: GetElements got %d, want %d", i, got, want)
		}
	}
}

// TestFIFOOrder covers spec.md property 2: frames dequeued with no drops
// come out in publish order.
func TestFIFOOrder(t *testing.T) {
	t.Parallel()
	q, err := New(8, 1, 2, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, seq := range []uint64{10, 20, 30, 40} {
		if !publish(t, q, seq) {
			t.Fatalf("publish seq %d failed", seq)
		}
	}

	for _, want := range []uint64{10, 20, 30, 40} {
		f := q.GetFront()
		if f == nil {
			t.Fatalf("GetFront: unexpected nil, want seq %d", want)
		}
		if f.SequenceNumber != want {
			t.Fatalf("GetFront: got seq %d, want %d", f.SequenceNumber, want)
		}
		q.RemoveFrame()
	}
}

// TestNoCopy covers spec.md property 3: the slot pointer returned by
// GetRear for a given publish is the same pointer GetFront later returns
// for that slot, so payload mutations are visible without a copy.
func TestNoCopy(t *testing.T) {
	t.Parallel()
	q, err := New(4, 1, 2, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rear := q.GetRear()
	rear.Video.Length = 42
	q.AddFrame()

	front := q.GetFront()
	if front != rear {
		t.Fatal("GetFront returned a different pointer than GetRear for the same slot")
	}
	if front.Video.Length != 42 {
		t.Fatalf("mutation not visible: got Length %d, want 42", front.Video.Length)
	}
}

// TestDropNewestUnderOverload covers spec.md property 4 / scenario S2:
// ForceGetRear on a full queue decreases elements by exactly one (via
// flush) and returns a non-nil slot that the producer can then publish.
func TestDropNewestUnderOverload(t *testing.T) {
	t.Parallel()
	q, err := New(4, 1, 2, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, seq := range []uint64{1, 2, 3} {
		publish(t, q, seq)
	}
	if got := q.GetElements(); got != 3 {
		t.Fatalf("GetElements before overload: got %d, want 3", got)
	}

	f := q.ForceGetRear()
	if f == nil {
		t.Fatal("ForceGetRear returned nil")
	}
	if got := q.GetElements(); got != 2 {
		t.Fatalf("GetElements after ForceGetRear: got %d, want 2", got)
	}
	if got := q.Dropped(); got != 1 {
		t.Fatalf("Dropped: got %d, want 1", got)
	}

	f.SequenceNumber = 4
	q.AddFrame()

	var seqs []uint64
	for {
		front := q.GetFront()
		if front == nil {
			break
		}
		seqs = append(seqs, front.SequenceNumber)
		q.RemoveFrame()
	}
	want := []uint64{1, 2, 4}
	if len(seqs) != len(want) {
		t.Fatalf("contents: got %v, want %v", seqs, want)
	}
	for i := range want {
		if seqs[i] != want[i] {
			t.Fatalf("contents: got %v, want %v", seqs, want)
		}
	}
}

// TestForceGetFrontRequiresPriorPublish covers spec.md property 5 /
// §9's open question: ForceGetFront on a queue that has never published a
// frame returns nil instead of reading uninitialized slot data.
func TestForceGetFrontRequiresPriorPublish(t *testing.T) {
	t.Parallel()
	q, err := New(4, 1, 2, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if f := q.ForceGetFront(); f != nil {
		t.Fatal("ForceGetFront on an empty, never-published queue should return nil")
	}

	publish(t, q, 99)
	q.RemoveFrame()

	f := q.ForceGetFront()
	if f == nil {
		t.Fatal("ForceGetFront after a publish+drain should return the last delivered slot")
	}
	if f.SequenceNumber != 99 {
		t.Fatalf("ForceGetFront: got seq %d, want 99", f.SequenceNumber)
	}
}

func TestNewRejectsSmallMax(t *testing.T) {
	t.Parallel()
	if _, err := New(1, 1, 2, nil); err == nil {
		t.Fatal("expected error for max < 2")
	}
}

func TestVideoQueueRejectsRawWithoutPixelFormat(t *testing.T) {
	t.Parallel()
	_, err := NewVideo(VideoConfig{Codec: frame.VCodecRaw}, 1, 2, nil)
	if err == nil {
		t.Fatal("expected setup error for RAW without a pixel format")
	}
}

func TestAudioQueueForcesS16ForOpus(t *testing.T) {
	t.Parallel()
	q, err := NewAudio(AudioConfig{Codec: frame.ACodecOpus, SampleFmt: frame.SampleFLT}, 1, 2, nil)
	if err != nil {
		t.Fatalf("NewAudio: %v", err)
	}
	f := q.GetRear()
	if f.Audio.SampleFmt != frame.SampleS16 {
		t.Fatalf("SampleFmt: got %v, want S16", f.Audio.SampleFmt)
	}
}

func TestAudioQueueRejectsIncompatiblePCMFormat(t *testing.T) {
	t.Parallel()
	_, err := NewAudio(AudioConfig{Codec: frame.ACodecPCM, SampleFmt: frame.SampleFmt(99)}, 1, 2, nil)
	if err == nil {
		t.Fatal("expected setup error for an unrecognized sample format")
	}
}
