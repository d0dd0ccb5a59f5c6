// Package timer runs delayed and periodic callbacks off a single heap.
package timer

import (
	"container/heap"
	"sync"
	"time"

	"github.com/wfunc/wordbot/logger"
)

// DefaultResolution is how often the queue is checked for due tasks.
const DefaultResolution = 50 * time.Millisecond

type TimerTask struct {
	ID       int64
	Name     string
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x any) {
	task := x.(*TimerTask)
	task.index = len(*q)
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() any {
	old := *q
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*q = old[:n-1]
	return task
}

type TimerManager struct {
	queue     TimerQueue
	mutex     sync.Mutex
	nextID    int64
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewTimerManager(resolution time.Duration) *TimerManager {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	m := &TimerManager{
		queue:  make(TimerQueue, 0),
		nextID: 1,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	heap.Init(&m.queue)
	go m.process(resolution)
	return m
}

// AddTimer schedules callback after delay, then every interval when interval is
// positive. The returned id can be passed to RemoveTimer.
func (m *TimerManager) AddTimer(name string, delay, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &TimerTask{
		ID:       m.nextID,
		Name:     name,
		Execute:  time.Now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextID++

	heap.Push(&m.queue, task)
	return task.ID
}

// AfterFunc schedules a one-shot callback.
func (m *TimerManager) AfterFunc(name string, delay time.Duration, callback func()) int64 {
	return m.AddTimer(name, delay, 0, callback)
}

func (m *TimerManager) RemoveTimer(id int64) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, task := range m.queue {
		if task.ID == id {
			heap.Remove(&m.queue, i)
			return true
		}
	}
	return false
}

func (m *TimerManager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}

// Stop halts the manager. Pending tasks never run.
func (m *TimerManager) Stop() {
	m.closeOnce.Do(func() { close(m.stop) })
	<-m.done
}

func (m *TimerManager) process(resolution time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(resolution)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			for _, task := range m.due(now) {
				go m.run(task)
			}
		}
	}
}

// due pops every task whose time has come and reschedules periodic ones.
func (m *TimerManager) due(now time.Time) []*TimerTask {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var ready []*TimerTask
	for m.queue.Len() > 0 && !m.queue[0].Execute.After(now) {
		task := heap.Pop(&m.queue).(*TimerTask)
		ready = append(ready, task)
		if task.Interval > 0 {
			next := *task
			next.Execute = now.Add(task.Interval)
			heap.Push(&m.queue, &next)
		}
	}
	return ready
}

func (m *TimerManager) run(task *TimerTask) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorw("timer callback panicked", "timer", task.Name, "panic", r)
		}
	}()
	task.Callback()
}
