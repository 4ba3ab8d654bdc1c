// Package clock abstracts wall time and periodic callbacks so session timers
// can be driven by tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
	// Every calls fn every d until the returned task is cancelled.
	Every(d time.Duration, fn func()) Task
}

// Task is a scheduled callback. Cancel is idempotent and never blocks on a
// running callback.
type Task interface {
	Cancel()
}

// Real returns a Clock backed by time.Ticker.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Every(d time.Duration, fn func()) Task {
	t := &tickerTask{stop: make(chan struct{})}
	tk := time.NewTicker(d)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-tk.C:
				select {
				case <-t.stop:
					return
				default:
				}
				fn()
			}
		}
	}()
	return t
}

type tickerTask struct {
	once sync.Once
	stop chan struct{}
}

func (t *tickerTask) Cancel() { t.once.Do(func() { close(t.stop) }) }

// Fake is a manually advanced Clock. Callbacks run synchronously inside
// Advance, in due order.
type Fake struct {
	mu    sync.Mutex
	now   time.Time
	tasks []*fakeTask
}

func NewFake(start time.Time) *Fake { return &Fake{now: start} }

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Every(d time.Duration, fn func()) Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTask{every: d, next: f.now.Add(d), fn: fn}
	f.tasks = append(f.tasks, t)
	return t
}

// Advance moves time forward by d, firing every tick that falls due.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()
	for {
		f.mu.Lock()
		t := f.nextDue(target)
		if t == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = t.next
		t.next = t.next.Add(t.every)
		fn := t.fn
		f.mu.Unlock()
		fn()
	}
}

// Pending reports how many tasks are still scheduled.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tasks {
		if !t.cancelled() {
			n++
		}
	}
	return n
}

func (f *Fake) nextDue(target time.Time) *fakeTask {
	live := f.tasks[:0]
	for _, t := range f.tasks {
		if !t.cancelled() {
			live = append(live, t)
		}
	}
	f.tasks = live
	sort.SliceStable(live, func(i, j int) bool { return live[i].next.Before(live[j].next) })
	if len(live) == 0 || live[0].next.After(target) {
		return nil
	}
	return live[0]
}

type fakeTask struct {
	mu    sync.Mutex
	every time.Duration
	next  time.Time
	fn    func()
	done  bool
}

func (t *fakeTask) Cancel() {
	t.mu.Lock()
	t.done = true
	t.mu.Unlock()
}

func (t *fakeTask) cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}
