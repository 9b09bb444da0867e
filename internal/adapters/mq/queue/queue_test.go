package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/types"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	event1 := model.ScoreEvent{EventID: "event1", Entity: "alice", Category: types.CategoryXP, Timeframe: types.TimeframeAllTime, Score: 100}
	if !q.Enqueue(ctx, event1) {
		t.Error("expected enqueue to succeed")
	}

	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	eventChan := q.Dequeue(ctx)
	event := <-eventChan
	if event.EventID != "event1" {
		t.Errorf("expected event1, got %v", event.EventID)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		e := model.ScoreEvent{EventID: fmt.Sprintf("event%d", i), Entity: "alice", Category: types.CategoryXP, Timeframe: types.TimeframeAllTime, Score: 10}
		if !q.Enqueue(ctx, e) {
			t.Errorf("expected enqueue %d to succeed", i)
		}
	}

	overflow := model.ScoreEvent{EventID: "overflow", Entity: "bob", Category: types.CategoryXP, Timeframe: types.TimeframeAllTime, Score: 10}
	if q.Enqueue(ctx, overflow) {
		t.Error("expected enqueue to fail when full")
	}

	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	e := model.ScoreEvent{EventID: "event1", Entity: "alice", Category: types.CategoryXP, Timeframe: types.TimeframeAllTime, Score: 10}
	if !q.Enqueue(ctx, e) {
		t.Error("expected enqueue to succeed")
	}

	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if q.Enqueue(ctx, e) {
		t.Error("expected enqueue to fail after close")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to be a no-op, got %v", err)
	}

	// Buffered events drain, then the channel closes.
	ch := q.Dequeue(ctx)
	got := <-ch
	if got.EventID != "event1" {
		t.Errorf("expected event1, got %v", got.EventID)
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for channel close")
	}
}

func TestInMemoryQueue_ConcurrentProducers(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1000))
	ctx := context.Background()
	producers := 10
	perProducer := 100

	done := make(chan bool, producers)
	for i := 0; i < producers; i++ {
		go func(id int) {
			for j := 0; j < perProducer; j++ {
				e := model.ScoreEvent{
					EventID:   fmt.Sprintf("p%d-e%d", id, j),
					Entity:    fmt.Sprintf("entity%d", id),
					Category:  types.CategoryXP,
					Timeframe: types.TimeframeAllTime,
					Score:     uint64(j),
				}
				q.Enqueue(ctx, e)
			}
			done <- true
		}(i)
	}

	for i := 0; i < producers; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for producers")
		}
	}

	if l := q.Len(ctx); l != producers*perProducer {
		t.Errorf("expected %d queued events, got %d", producers*perProducer, l)
	}
}
