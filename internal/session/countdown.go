package session

import (
	"sync"
	"time"

	"github.com/mind-engage/examroom/internal/clock"
)

// TickInterval is the countdown resolution.
const TickInterval = time.Second

// Countdown ticks once per second until its deadline and then fires onExpire
// exactly once. Cancel stops it for good; after Cancel returns no callback
// starts.
type Countdown struct {
	mu       sync.Mutex
	clk      clock.Clock
	deadline time.Time
	task     clock.Task
	stopped  bool
	fired    bool
	onTick   func(remaining int)
	onExpire func()
}

// StartCountdown schedules ticks against deadline. onTick may be nil.
func StartCountdown(clk clock.Clock, deadline time.Time, onTick func(remaining int), onExpire func()) *Countdown {
	c := &Countdown{clk: clk, deadline: deadline, onTick: onTick, onExpire: onExpire}
	c.mu.Lock()
	c.task = clk.Every(TickInterval, c.tick)
	c.mu.Unlock()
	return c
}

func (c *Countdown) tick() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	rem := remaining(c.deadline, c.clk.Now())
	if rem > 0 {
		c.mu.Unlock()
		if c.onTick != nil {
			c.onTick(rem)
		}
		return
	}
	c.stopped, c.fired = true, true
	c.task.Cancel()
	c.mu.Unlock()
	if c.onTick != nil {
		c.onTick(0)
	}
	c.onExpire()
}

func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	c.task.Cancel()
}

// Remaining is the whole seconds left, rounded up, never negative.
func (c *Countdown) Remaining() int {
	return remaining(c.deadline, c.clk.Now())
}

func (c *Countdown) Deadline() time.Time { return c.deadline }

// Fired reports whether onExpire was called.
func (c *Countdown) Fired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}

func remaining(deadline, now time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
