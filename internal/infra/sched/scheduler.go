// Package sched wraps wall-clock timers behind an injectable interface so
// reconnect and dedupe logic can be unit-tested without real waiting.
package sched

import (
	"sync"
	"time"
)

// Task is a scheduled callback that can be cancelled before it fires.
type Task interface {
	// Stop cancels the task. It reports whether the call prevented the task
	// from running; it is safe to call more than once.
	Stop() bool
}

// Scheduler provides the current time and cancellable delayed tasks.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Task
}

type realScheduler struct{}

// NewReal returns a Scheduler backed by the standard library timers.
func NewReal() Scheduler {
	return realScheduler{}
}

func (realScheduler) Now() time.Time {
	return time.Now()
}

func (realScheduler) AfterFunc(d time.Duration, fn func()) Task {
	return realTask{timer: time.AfterFunc(d, fn)}
}

type realTask struct {
	timer *time.Timer
}

func (t realTask) Stop() bool {
	return t.timer.Stop()
}

// Manual is a Scheduler driven explicitly by tests. Callbacks run on the
// goroutine that calls Advance, in due-time order.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	tasks  []*manualTask
}

type manualTask struct {
	owner   *Manual
	id      int
	due     time.Time
	fn      func()
	stopped bool
}

// NewManual returns a Manual scheduler starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.now
}

// AfterFunc schedules fn to run once the manual clock has advanced past d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	task := &manualTask{owner: m, id: m.nextID, due: m.now.Add(d), fn: fn}
	m.tasks = append(m.tasks, task)

	return task
}

// Advance moves the clock forward and fires every due task in order. A fired
// callback may schedule further tasks; those fire too if they fall within the
// advanced window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		task := m.popNextDue(target)
		if task == nil {
			break
		}
		task.fn()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

// Pending reports how many tasks are scheduled and not yet fired or stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.tasks)
}

func (m *Manual) popNextDue(target time.Time) *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	best := -1
	for i, task := range m.tasks {
		if task.due.After(target) {
			continue
		}
		if best == -1 || task.due.Before(m.tasks[best].due) || (task.due.Equal(m.tasks[best].due) && task.id < m.tasks[best].id) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}

	task := m.tasks[best]
	m.tasks = append(m.tasks[:best], m.tasks[best+1:]...)
	// The clock sits at the task's due time while its callback runs, so a
	// callback that re-arms itself lands at due+interval, not target+interval.
	if task.due.After(m.now) {
		m.now = task.due
	}

	return task
}

func (t *manualTask) Stop() bool {
	m := t.owner
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.stopped {
		return false
	}
	t.stopped = true
	for i, task := range m.tasks {
		if task.id == t.id {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)

			return true
		}
	}

	return false
}
