package fifomu

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockUnlock(t *testing.T) {
	ctx := context.Background()

	var m Mutex
	err := m.Lock(ctx)
	require.NoError(t, err)
	m.Unlock()

	err = m.Lock(ctx)
	require.NoError(t, err)
	m.Unlock()
}

func TestFifoOrder(t *testing.T) {
	ctx := context.Background()

	var m Mutex
	err := m.Lock(ctx)
	require.NoError(t, err)

	var order []int
	var wg sync.WaitGroup
	record := sync.Mutex{}

	for i := 0; i < 4; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.Lock(ctx)
			require.NoError(t, err)
			record.Lock()
			order = append(order, i)
			record.Unlock()
			m.Unlock()
		}()
		// stagger arrivals so the queue order is deterministic
		time.Sleep(time.Millisecond * 30)
	}

	m.Unlock()
	wg.Wait()

	require.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestCancelledWaiterLeavesQueue(t *testing.T) {
	ctx := context.Background()

	var m Mutex
	err := m.Lock(ctx)
	require.NoError(t, err)

	cancelCtx, cancel := context.WithCancel(ctx)
	waitErr := make(chan error, 1)
	go func() {
		waitErr <- m.Lock(cancelCtx)
	}()
	time.Sleep(time.Millisecond * 30)
	cancel()
	require.ErrorIs(t, <-waitErr, context.Canceled)

	acquired := make(chan struct{})
	go func() {
		err := m.Lock(ctx)
		require.NoError(t, err)
		close(acquired)
		m.Unlock()
	}()
	time.Sleep(time.Millisecond * 30)
	m.Unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was never handed to the remaining waiter")
	}
}

func TestExclusive(t *testing.T) {
	ctx := context.Background()

	var m Mutex
	var inside int
	var peak int
	var stats sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				err := m.Lock(ctx)
				require.NoError(t, err)
				stats.Lock()
				inside++
				if inside > peak {
					peak = inside
				}
				stats.Unlock()

				time.Sleep(time.Microsecond * 50)

				stats.Lock()
				inside--
				stats.Unlock()
				m.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, peak)
}
