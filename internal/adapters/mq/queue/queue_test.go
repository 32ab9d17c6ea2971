package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/usercf/internal/domain/model"
)

func ratingEvent(id string) model.RatingEvent {
	return model.RatingEvent{EventID: id, UserID: "user-" + id, ItemID: "item-" + id, Rating: 4, TS: time.Now()}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Capacity(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	if !q.Enqueue(ctx, ratingEvent("r1")) {
		t.Fatal("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	event := <-q.Dequeue(ctx)
	if event.EventID != "r1" || event.UserID != "user-r1" || event.Rating != 4 {
		t.Errorf("unexpected event %+v", event)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, ratingEvent("r1")) || !q.Enqueue(ctx, ratingEvent("r2")) {
		t.Fatal("expected first two enqueues to succeed")
	}
	if q.Enqueue(ctx, ratingEvent("r3")) {
		t.Error("expected enqueue beyond capacity to fail")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_InvalidCapacityKeepsDefault(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(0))
	if q.Capacity() != defaultQueueCapacity {
		t.Errorf("expected default capacity, got %d", q.Capacity())
	}
}

func TestInMemoryQueue_FIFO(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		q.Enqueue(ctx, ratingEvent(fmt.Sprintf("r%d", i)))
	}
	ch := q.Dequeue(ctx)
	for i := 0; i < 5; i++ {
		got := <-ch
		if want := fmt.Sprintf("r%d", i); got.EventID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, got.EventID)
		}
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	q.Enqueue(ctx, ratingEvent("r1"))
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if q.Enqueue(ctx, ratingEvent("r2")) {
		t.Error("expected enqueue after close to fail")
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	// Events queued before Close are still delivered, then the channel closes.
	var got []string
	for ev := range q.Dequeue(ctx) {
		got = append(got, ev.EventID)
	}
	if len(got) != 1 || got[0] != "r1" {
		t.Errorf("expected [r1], got %v", got)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, ratingEvent("r1")) {
		t.Error("expected enqueue with cancelled context to fail")
	}

	select {
	case _, ok := <-q.Dequeue(ctx):
		if ok {
			t.Error("expected no events on cancelled dequeue")
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue channel was not closed after cancellation")
	}
}

func TestInMemoryQueue_ConcurrentEnqueue(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1000))
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Enqueue(ctx, ratingEvent(fmt.Sprintf("%d-%d", g, i)))
			}
		}(g)
	}
	wg.Wait()

	if l := q.Len(ctx); l != 1000 {
		t.Errorf("expected 1000 queued events, got %d", l)
	}
}
