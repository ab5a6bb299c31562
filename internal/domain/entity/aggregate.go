package entity

import (
	"container/heap"
	"time"
)

// Aggregate is the embeddable base for aggregate roots. It buffers domain
// events in a min-heap ordered by OccurredAt so the persistence layer can
// drain them earliest-first during commit.
type Aggregate struct {
	pending eventHeap
}

// PushEvent buffers an event for publication after commit.
func (a *Aggregate) PushEvent(event DomainEvent) {
	heap.Push(&a.pending, event)
}

// PopEvent removes and returns the earliest-timestamped pending event, or nil
// when the buffer is empty. Used by repositories while collecting events;
// draining is exactly-once per transaction.
func (a *Aggregate) PopEvent() DomainEvent {
	if a.pending.Len() == 0 {
		return nil
	}
	return heap.Pop(&a.pending).(DomainEvent)
}

func now() time.Time {
	return time.Now().UTC()
}

type eventHeap []DomainEvent

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return h[i].OccurredAt().Before(h[j].OccurredAt()) }
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(DomainEvent)) }

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	event := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return event
}
