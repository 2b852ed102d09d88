package engine

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProgress_ConcurrentAdd(t *testing.T) {
	p := NewProgress(0)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 1000; k++ {
				p.Add(3)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, uint64(16*1000*3), p.Load())
}

func TestProgress_Observer(t *testing.T) {
	p := NewProgress(10)

	var calls atomic.Int32
	var last atomic.Uint64
	p.Observe(func(done, total uint64) {
		calls.Add(1)
		last.Store(done)
		require.Equal(t, uint64(10), total)
	})

	require.Equal(t, uint64(4), p.Add(4))
	require.Equal(t, uint64(10), p.Add(6))
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, uint64(10), last.Load())

	p.Observe(nil)
	p.Add(1)
	require.Equal(t, int32(2), calls.Load())
}

func TestProgress_Reset(t *testing.T) {
	p := NewProgress(5)
	p.Add(5)
	p.Reset()
	require.Zero(t, p.Load())
	require.Equal(t, uint64(5), p.Total())

	p.SetTotal(7)
	require.Equal(t, uint64(7), p.Total())
}
