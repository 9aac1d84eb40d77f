// Package pollutil implements bounded polling strategies for values that
// are populated asynchronously by something we cannot subscribe to, like
// a remote page filling an array as network responses arrive.
package pollutil

import (
	"context"
	"time"
)

type StableOptions struct {
	// time between reads
	Interval time.Duration
	// consecutive unchanged reads required before the value counts as stable
	RequiredStableChecks int
	// a value is never accepted before this much time has passed
	MinWait time.Duration
	// polling gives up after this much time and returns the last read value
	MaxWait time.Duration
	// after stability is reached, wait this long and re-read once; growth
	// during the confirmation window resets the stability counter
	ConfirmDelay time.Duration
}

// WaitStable polls read until its value stops changing for
// RequiredStableChecks consecutive reads and MinWait has elapsed, then
// confirms with one delayed re-read. Read errors are treated as "not
// ready yet" and swallowed, and a zero value is never accepted as stable:
// the caller only sees zero once MaxWait has run out, so it can decide
// whether "still empty" warrants a fallback. The boolean reports whether
// stability was actually observed.
//
// The only error returned is ctx's, so a caller that never cancels can
// ignore it.
func WaitStable(ctx context.Context, opts StableOptions, read func(ctx context.Context) (int, error)) (int, bool, error) {
	start := time.Now()
	last := 0
	haveLast := false
	stable := 0

	for {
		if err := sleep(ctx, opts.Interval); err != nil {
			return last, false, err
		}

		value, err := read(ctx)
		if err == nil {
			if haveLast && value == last && value > 0 {
				stable++
			} else {
				stable = 0
			}
			last = value
			haveLast = true
		}

		elapsed := time.Since(start)
		if stable >= opts.RequiredStableChecks && elapsed >= opts.MinWait {
			if err := sleep(ctx, opts.ConfirmDelay); err != nil {
				return last, false, err
			}
			confirmed, err := read(ctx)
			if err != nil || confirmed == last {
				return last, true, nil
			}
			// grew during confirmation, start over
			last = confirmed
			stable = 0
			continue
		}

		if elapsed >= opts.MaxWait {
			return last, false, nil
		}
	}
}

type MinOptions struct {
	Interval time.Duration
	// the count polling waits for
	Min int
	// after this much time, any non-zero count is accepted.
	// zero disables partial acceptance.
	PartialAfter time.Duration
	MaxWait      time.Duration
}

// WaitAtLeast polls read until its value reaches Min, a non-zero partial
// value is accepted past PartialAfter, or MaxWait runs out. Like
// WaitStable, read errors count as "not ready yet".
func WaitAtLeast(ctx context.Context, opts MinOptions, read func(ctx context.Context) (int, error)) (int, bool, error) {
	start := time.Now()
	last := 0

	for {
		value, err := read(ctx)
		if err == nil {
			last = value
		}
		if err == nil && value >= opts.Min {
			return value, true, nil
		}

		elapsed := time.Since(start)
		if opts.PartialAfter > 0 && elapsed >= opts.PartialAfter && last > 0 {
			return last, false, nil
		}
		if elapsed >= opts.MaxWait {
			return last, false, nil
		}

		if err := sleep(ctx, opts.Interval); err != nil {
			return last, false, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
