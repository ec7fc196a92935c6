package clock

import (
	"sync/atomic"
	"time"
)

// Clock is a source of current time for message headers.
type Clock interface {
	NowMs() uint64
	NowSec() uint64
}

type System struct{}

func (System) NowMs() uint64 {
	return uint64(time.Now().UnixMilli())
}

func (System) NowSec() uint64 {
	return uint64(time.Now().Unix())
}

// WithOffset is a system clock shifted by an offset, used to follow
// network time when the local one drifts. Safe for concurrent use.
type WithOffset struct {
	offset atomic.Int64
}

func NewWithOffset(offsetMs int64) *WithOffset {
	c := &WithOffset{}
	c.offset.Store(offsetMs)
	return c
}

func (c *WithOffset) Offset() int64 {
	return c.offset.Load()
}

func (c *WithOffset) SetOffset(ms int64) {
	c.offset.Store(ms)
}

func (c *WithOffset) NowMs() uint64 {
	return uint64(time.Now().UnixMilli() + c.offset.Load())
}

func (c *WithOffset) NowSec() uint64 {
	return c.NowMs() / 1000
}

// Fixed always returns the same time.
type Fixed uint64

func (f Fixed) NowMs() uint64 {
	return uint64(f)
}

func (f Fixed) NowSec() uint64 {
	return uint64(f) / 1000
}
