package display

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_SerialOrder(t *testing.T) {
	d := NewDispatcher(quietLogger())
	startDispatcher(t, d)

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				v := g*100 + i
				d.Post(func() {
					mu.Lock()
					got = append(got, v)
					mu.Unlock()
				})
			}
		}(g)
	}
	wg.Wait()
	flush(t, d)

	require.Len(t, got, 400)
	// each producer's items keep their relative order
	last := map[int]int{0: -1, 1: -1, 2: -1, 3: -1}
	for _, v := range got {
		g, i := v/100, v%100
		assert.Greater(t, i, last[g])
		last[g] = i
	}
}

func TestDispatcher_RecoversPanic(t *testing.T) {
	d := NewDispatcher(quietLogger())
	startDispatcher(t, d)

	ran := false
	d.Post(func() { panic("renderer failure") })
	d.Post(func() { ran = true })
	d.Post(nil)
	flush(t, d)

	assert.True(t, ran)
	assert.Equal(t, 0, d.Pending())
}

func TestDispatcher_FlushTimeout(t *testing.T) {
	d := NewDispatcher(quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, d.Flush(ctx), context.DeadlineExceeded)
	assert.Equal(t, 1, d.Pending())
}
