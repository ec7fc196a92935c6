package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixed(t *testing.T) {
	c := Fixed(1700000000123)
	assert.Equal(t, uint64(1700000000123), c.NowMs())
	assert.Equal(t, uint64(1700000000), c.NowSec())
}

func TestSystem(t *testing.T) {
	before := uint64(time.Now().UnixMilli())
	now := System{}.NowMs()
	after := uint64(time.Now().UnixMilli())

	assert.GreaterOrEqual(t, now, before)
	assert.LessOrEqual(t, now, after)
}

func TestWithOffset(t *testing.T) {
	c := NewWithOffset(-3600_000)
	require.Equal(t, int64(-3600_000), c.Offset())

	now := uint64(time.Now().UnixMilli())
	assert.InDelta(t, float64(now-3600_000), float64(c.NowMs()), 1000)

	c.SetOffset(5000)
	assert.InDelta(t, float64(now/1000+5), float64(c.NowSec()), 1)
}

func TestWithOffset_Concurrent(t *testing.T) {
	c := NewWithOffset(0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.SetOffset(int64(i * j))
				_ = c.NowMs()
			}
		}(i)
	}
	wg.Wait()
}
