// Package scheduler runs delayed and periodic background tasks against an
// injectable Clock.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"nepway/pkg/logger"
)

// Task is a unit of scheduled work. Tasks must re-check any state they act
// on since the world may have moved on since they were scheduled.
type Task func(ctx context.Context) error

type entry struct {
	name     string
	at       time.Time
	seq      uint64
	interval time.Duration
	task     Task
}

type taskQueue []*entry

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *taskQueue) Push(x interface{}) { *q = append(*q, x.(*entry)) }

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

type Scheduler struct {
	clock       Clock
	logger      *logger.Logger
	taskTimeout time.Duration

	mu    sync.Mutex
	queue taskQueue
	seq   uint64
	wake  chan struct{}
}

func New(clock Clock, log *logger.Logger, taskTimeout time.Duration) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	return &Scheduler{
		clock:       clock,
		logger:      log.WithField("component", "scheduler"),
		taskTimeout: taskTimeout,
		wake:        make(chan struct{}, 1),
	}
}

func (s *Scheduler) Clock() Clock {
	return s.clock
}

// After runs task once, delay from now.
func (s *Scheduler) After(name string, delay time.Duration, task Task) {
	s.push(&entry{name: name, at: s.clock.Now().Add(delay), task: task})
}

// Every runs task now and then every interval.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) {
	if interval <= 0 {
		panic(fmt.Sprintf("scheduler: non-positive interval for %s", name))
	}
	s.push(&entry{name: name, at: s.clock.Now(), interval: interval, task: task})
}

// Pending reports how many tasks are queued.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// RunDue runs every task whose time has come, including tasks that become
// due while it runs, and returns how many ran.
func (s *Scheduler) RunDue(ctx context.Context) int {
	ran := 0
	for {
		e := s.popDue(s.clock.Now())
		if e == nil {
			return ran
		}
		s.execute(ctx, e)
		ran++

		if e.interval > 0 {
			next := e.at.Add(e.interval)
			if now := s.clock.Now(); next.Before(now) {
				next = now
			}
			s.push(&entry{name: e.name, at: next, interval: e.interval, task: e.task})
		}
	}
}

// Run drives the queue until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started")
	defer s.logger.Info("Scheduler stopped")

	for {
		s.RunDue(ctx)

		var timer <-chan time.Time
		if wait, ok := s.nextWait(); ok {
			timer = s.clock.After(wait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		case <-timer:
		}
	}
}

func (s *Scheduler) push(e *entry) {
	s.mu.Lock()
	s.seq++
	e.seq = s.seq
	heap.Push(&s.queue, e)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) popDue(now time.Time) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 || s.queue[0].at.After(now) {
		return nil
	}
	return heap.Pop(&s.queue).(*entry)
}

func (s *Scheduler) nextWait() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return 0, false
	}
	return s.queue[0].at.Sub(s.clock.Now()), true
}

func (s *Scheduler) execute(ctx context.Context, e *entry) {
	taskCtx := ctx
	if s.taskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, s.taskTimeout)
		defer cancel()
	}

	started := time.Now()
	err := s.safeRun(taskCtx, e)
	s.logger.LogTaskRun(e.name, time.Since(started), err)
}

func (s *Scheduler) safeRun(ctx context.Context, e *entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", e.name, r)
		}
	}()
	return e.task(ctx)
}
