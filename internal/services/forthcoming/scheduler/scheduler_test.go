package scheduler

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
)

func TestAdvanceRunsTasksAtTheirDueTick(t *testing.T) {
	s := New()
	var fired []domain.Tick
	s.After(40, func() { fired = append(fired, s.Now()) })
	s.After(3, func() { fired = append(fired, s.Now()) })

	s.Advance(2)
	if len(fired) != 0 {
		t.Fatalf("fired early: %v", fired)
	}
	s.Advance(38)
	if !slices.Equal(fired, []domain.Tick{3, 40}) {
		t.Fatalf("fired = %v, want [3 40]", fired)
	}
	if s.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", s.Pending())
	}
}

func TestSameTickTasksKeepInsertionOrder(t *testing.T) {
	s := New()
	var order []string
	s.After(5, func() { order = append(order, "first") })
	s.After(5, func() { order = append(order, "second") })
	s.After(4, func() { order = append(order, "earlier") })

	s.Advance(5)
	if !slices.Equal(order, []string{"earlier", "first", "second"}) {
		t.Fatalf("order = %v", order)
	}
}

func TestNestedSchedulingIsRelativeToTheRunningTask(t *testing.T) {
	s := New()
	var fired []domain.Tick
	s.After(40, func() {
		fired = append(fired, s.Now())
		s.After(100, func() { fired = append(fired, s.Now()) })
		s.After(0, func() { fired = append(fired, s.Now()) })
	})

	s.AdvanceTo(200)
	if !slices.Equal(fired, []domain.Tick{40, 40, 140}) {
		t.Fatalf("fired = %v, want [40 40 140]", fired)
	}
}

func TestPanickingTaskDoesNotStopTheClock(t *testing.T) {
	s := New()
	ran := false
	s.After(1, func() { panic("boom") })
	s.After(1, func() { ran = true })

	s.Advance(1)
	if !ran {
		t.Fatal("expected task after panic to run")
	}
}

func TestAfterIgnoresNilTask(t *testing.T) {
	s := New()
	s.After(1, nil)
	if s.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", s.Pending())
	}
}

func TestConcurrentSchedulingFromManyGoroutines(t *testing.T) {
	s := New()
	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(delay int) {
			defer wg.Done()
			s.After(domain.Tick(delay%10), func() {
				mu.Lock()
				count++
				mu.Unlock()
			})
		}(i)
	}
	wg.Wait()

	s.Advance(10)
	if count != 50 {
		t.Fatalf("count = %d, want 50", count)
	}
}

func TestRunAdvancesUntilCancelled(t *testing.T) {
	s := New()
	fired := make(chan struct{})
	s.After(2, func() { close(fired) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, time.Millisecond)
	}()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not fire")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on cancel")
	}
}
