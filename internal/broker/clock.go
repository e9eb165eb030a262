package broker

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Clock provides wall-clock timestamps and unique command IDs.
// The zero value is not usable; construct with NewClock.
type Clock struct {
	nowFunc func() time.Time
	counter atomic.Uint64
}

// NewClock creates a Clock backed by the system time.
func NewClock() *Clock {
	return &Clock{nowFunc: time.Now}
}

// Now returns the current wall-clock time.
func (c *Clock) Now() time.Time {
	return c.nowFunc()
}

// NowMs returns the current time in milliseconds.
func (c *Clock) NowMs() int64 {
	return c.nowFunc().UnixMilli()
}

// ISO returns the current time as an RFC 3339 string with millisecond
// precision, the transport representation of instants.
func (c *Clock) ISO() string {
	return c.nowFunc().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// NextCommandID synthesizes a command id from the millisecond timestamp
// plus an atomic tiebreaker, so concurrent enqueues within the same
// millisecond never collide. IDs are monotonically non-decreasing strings.
func (c *Clock) NextCommandID() string {
	ts := c.nowFunc().UnixMilli()
	n := c.counter.Add(1)
	return fmt.Sprintf("%d_%06x", ts, n&0xffffff)
}
