package pollutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// timeline maps elapsed time to the value a poll would observe.
type timeline struct {
	mu     sync.Mutex
	start  time.Time
	points []timelinePoint
	reads  int
}

type timelinePoint struct {
	at    time.Duration
	value int
}

func newTimeline(points ...timelinePoint) *timeline {
	return &timeline{start: time.Now(), points: points}
}

func (tl *timeline) read(ctx context.Context) (int, error) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.reads++

	elapsed := time.Since(tl.start)
	value := 0
	for _, p := range tl.points {
		if elapsed >= p.at {
			value = p.value
		}
	}
	return value, nil
}

var fastStable = StableOptions{
	Interval:             time.Millisecond * 10,
	RequiredStableChecks: 6,
	MinWait:              time.Millisecond * 40,
	MaxWait:              time.Millisecond * 600,
	ConfirmDelay:         time.Millisecond * 30,
}

func TestWaitStableAcceptsSettledValue(t *testing.T) {
	tl := newTimeline(
		timelinePoint{at: 0, value: 1},
		timelinePoint{at: time.Millisecond * 20, value: 3},
		timelinePoint{at: time.Millisecond * 50, value: 5},
	)

	start := time.Now()
	value, stable, err := WaitStable(context.Background(), fastStable, tl.read)
	require.NoError(t, err)
	require.True(t, stable)
	require.Equal(t, 5, value)
	// must not have returned before the value settled plus the
	// stability window plus the confirmation re-read
	require.GreaterOrEqual(t, time.Since(start), time.Millisecond*(50+60+30))
}

func TestWaitStableConfirmationResetsOnGrowth(t *testing.T) {
	// holds at 4 through the first stability window, then grows to 9
	// exactly at the confirmation re-read (the 8th read)
	var reads int
	read := func(ctx context.Context) (int, error) {
		reads++
		if reads <= 7 {
			return 4, nil
		}
		return 9, nil
	}

	value, stable, err := WaitStable(context.Background(), fastStable, read)
	require.NoError(t, err)
	require.True(t, stable)
	require.Equal(t, 9, value)
	// 7 reads for the first window, the confirmation that saw growth,
	// then a full second window plus its confirmation
	require.GreaterOrEqual(t, reads, 15)
}

func TestWaitStableZeroRidesOutTheCeiling(t *testing.T) {
	tl := newTimeline()

	start := time.Now()
	value, stable, err := WaitStable(context.Background(), fastStable, tl.read)
	require.NoError(t, err)
	require.False(t, stable)
	require.Equal(t, 0, value)
	require.GreaterOrEqual(t, time.Since(start), fastStable.MaxWait)
}

func TestWaitStableSwallowsReadErrors(t *testing.T) {
	var calls int
	read := func(ctx context.Context) (int, error) {
		calls++
		if calls < 4 {
			return 0, fmt.Errorf("page is mid-navigation")
		}
		return 7, nil
	}

	value, stable, err := WaitStable(context.Background(), fastStable, read)
	require.NoError(t, err)
	require.True(t, stable)
	require.Equal(t, 7, value)
}

func TestWaitStableHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*50)
	defer cancel()

	tl := newTimeline()
	_, _, err := WaitStable(ctx, fastStable, tl.read)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitAtLeastReachesMinimum(t *testing.T) {
	tl := newTimeline(
		timelinePoint{at: time.Millisecond * 30, value: 2},
		timelinePoint{at: time.Millisecond * 60, value: 12},
	)

	opts := MinOptions{
		Interval: time.Millisecond * 10,
		Min:      10,
		MaxWait:  time.Millisecond * 400,
	}
	value, reached, err := WaitAtLeast(context.Background(), opts, tl.read)
	require.NoError(t, err)
	require.True(t, reached)
	require.Equal(t, 12, value)
}

func TestWaitAtLeastAcceptsPartial(t *testing.T) {
	tl := newTimeline(
		timelinePoint{at: 0, value: 3},
	)

	opts := MinOptions{
		Interval:     time.Millisecond * 10,
		Min:          10,
		PartialAfter: time.Millisecond * 50,
		MaxWait:      time.Millisecond * 400,
	}
	start := time.Now()
	value, reached, err := WaitAtLeast(context.Background(), opts, tl.read)
	require.NoError(t, err)
	require.False(t, reached)
	require.Equal(t, 3, value)
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, opts.PartialAfter)
	require.Less(t, elapsed, opts.MaxWait)
}

func TestWaitAtLeastGivesUpAtCeiling(t *testing.T) {
	tl := newTimeline()

	opts := MinOptions{
		Interval: time.Millisecond * 10,
		Min:      1,
		MaxWait:  time.Millisecond * 80,
	}
	value, reached, err := WaitAtLeast(context.Background(), opts, tl.read)
	require.NoError(t, err)
	require.False(t, reached)
	require.Equal(t, 0, value)
}
