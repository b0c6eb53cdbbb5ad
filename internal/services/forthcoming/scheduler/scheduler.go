// Package scheduler runs delayed work on a tick clock.
//
// Tasks are ordered by (due tick, insertion sequence), so tasks scheduled
// with increasing delays always fire in that order, and tasks due on the same
// tick fire in the order they were scheduled. Advance runs due tasks on the
// caller's goroutine; Run drives Advance from a wall-clock ticker.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
)

// Scheduler is a tick clock with a queue of delayed tasks.
type Scheduler struct {
	mu    sync.Mutex
	now   domain.Tick
	seq   uint64
	queue taskQueue
}

// New returns a scheduler at tick zero.
func New() *Scheduler {
	return &Scheduler{}
}

// After schedules task to run delay ticks from now. Negative delays are
// treated as zero; a zero-delay task scheduled from inside a running task
// fires during the same Advance step.
func (s *Scheduler) After(delay domain.Tick, task func()) {
	if task == nil {
		return
	}
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	heap.Push(&s.queue, &scheduledTask{due: s.now + delay, seq: s.seq, run: task})
}

// Now returns the current tick.
func (s *Scheduler) Now() domain.Tick {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of queued tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Advance moves the clock forward n ticks, running every task that becomes
// due at each tick before moving to the next one. Tasks run without the lock
// held, so they may schedule further work.
func (s *Scheduler) Advance(n domain.Tick) {
	for ; n > 0; n-- {
		s.mu.Lock()
		s.now++
		s.mu.Unlock()
		s.runDue()
	}
}

// AdvanceTo advances until the clock reads target. Targets in the past are
// ignored.
func (s *Scheduler) AdvanceTo(target domain.Tick) {
	s.Advance(target - s.Now())
}

// Run advances one tick per interval until ctx ends.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if interval <= 0 {
		interval = domain.TickDuration
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Advance(1)
		}
	}
}

func (s *Scheduler) runDue() {
	for {
		task := s.popDue()
		if task == nil {
			return
		}
		s.runTask(task)
	}
}

func (s *Scheduler) popDue() *scheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue.Len() == 0 || s.queue[0].due > s.now {
		return nil
	}
	return heap.Pop(&s.queue).(*scheduledTask)
}

func (s *Scheduler) runTask(task *scheduledTask) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("scheduler: task due at tick %d panicked: %v", task.due, r)
		}
	}()
	task.run()
}

type scheduledTask struct {
	due domain.Tick
	seq uint64
	run func()
}

type taskQueue []*scheduledTask

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *taskQueue) Push(x any) { *q = append(*q, x.(*scheduledTask)) }

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
