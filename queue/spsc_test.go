package queue

import (
	"math/rand"
	"testing"
	"time"
)

// TestSPSCSafety covers spec.md property 6: one producer and one consumer
// goroutine run N operations each with random pauses; every frame the
// consumer observes carries a strictly increasing sequence number, proving
// no duplicate or out-of-order delivery even when the producer is dropping
// frames under overload.
func TestSPSCSafety(t *testing.T) {
	q, err := New(16, 1, 2, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const n = 20000
	producerDone := make(chan struct{})

	go func() {
		defer close(producerDone)
		rng := rand.New(rand.NewSource(1))
		for i := uint64(1); i <= n; i++ {
			f := q.GetRear()
			if f == nil {
				f = q.ForceGetRear()
			}
			f.SequenceNumber = i
			q.AddFrame()
			if rng.Intn(64) == 0 {
				time.Sleep(time.Microsecond)
			}
		}
	}()

	rng := rand.New(rand.NewSource(2))
	var last uint64
	received := 0
	for {
		f := q.GetFront()
		if f == nil {
			select {
			case <-producerDone:
				if q.GetFront() == nil {
					// Producer finished and queue drained: done.
					if received == 0 {
						t.Fatal("consumer never observed any frame")
					}
					if last > n {
						t.Fatalf("observed sequence number %d beyond producer's max %d", last, n)
					}
					return
				}
			default:
			}
			continue
		}

		if f.SequenceNumber <= last {
			t.Fatalf("out of order or duplicate: got seq %d after %d", f.SequenceNumber, last)
		}
		last = f.SequenceNumber
		received++
		q.RemoveFrame()
		if rng.Intn(64) == 0 {
			time.Sleep(time.Microsecond)
		}
	}
}
