package reliability

import (
	"context"
	"time"
)

// WithDeadline races fn against d and returns fallback on timeout or error.
// Every model-backed stage of the turn pipeline (transcription, extraction,
// reply, summary) is bounded through this single combinator so a slow
// provider can never stall a turn.
func WithDeadline[T any](ctx context.Context, d time.Duration, fallback T, fn func(context.Context) (T, error)) T {
	v, _ := WithDeadlineErr(ctx, d, fallback, fn)
	return v
}

// WithDeadlineErr is WithDeadline but surfaces the failure cause so callers
// can log it before degrading.
func WithDeadlineErr[T any](ctx context.Context, d time.Duration, fallback T, fn func(context.Context) (T, error)) (T, error) {
	runCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := fn(runCtx)
		ch <- outcome{v: v, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			return fallback, out.err
		}
		return out.v, nil
	case <-runCtx.Done():
		return fallback, runCtx.Err()
	}
}
