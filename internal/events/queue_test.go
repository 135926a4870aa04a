package events

import (
	"sync"
	"testing"
)

func TestQueueDeliversInOrder(t *testing.T) {
	q := NewQueue(4)
	q.Publish(SessionStartedEvent{SessionID: "a"})
	q.Publish(SessionEndedEvent{SessionID: "a", Reason: "manual"})

	first := <-q.Events()
	if e, ok := first.(SessionStartedEvent); !ok || e.SessionID != "a" {
		t.Fatalf("first event = %#v", first)
	}
	second := <-q.Events()
	if e, ok := second.(SessionEndedEvent); !ok || e.Reason != "manual" {
		t.Fatalf("second event = %#v", second)
	}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	q := NewQueue(2)
	for _, id := range []string{"1", "2", "3"} {
		q.Publish(SessionStartedEvent{SessionID: id})
	}

	if got := q.Dropped(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
	got := []string{
		(<-q.Events()).(SessionStartedEvent).SessionID,
		(<-q.Events()).(SessionStartedEvent).SessionID,
	}
	if got[0] != "2" || got[1] != "3" {
		t.Fatalf("events = %v, want [2 3]", got)
	}
}

func TestQueueCloseIsSafe(t *testing.T) {
	q := NewQueue(8)
	q.Publish(SessionStartedEvent{SessionID: "kept"})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			q.Close()
		}()
		go func() {
			defer wg.Done()
			q.Publish(SessionStartedEvent{SessionID: "late"})
		}()
	}
	wg.Wait()

	var ids []string
	for evt := range q.Events() {
		ids = append(ids, evt.(SessionStartedEvent).SessionID)
	}
	if len(ids) == 0 || ids[0] != "kept" {
		t.Fatalf("events after close = %v", ids)
	}
}
