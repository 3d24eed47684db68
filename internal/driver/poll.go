package driver

import (
	"context"
	"fmt"
	"time"
)

const DefaultPollInterval = 5 * time.Millisecond

// PollUntil calls query every interval until match accepts its result. A
// query error ends polling with that error; ctx bounds the whole wait.
func PollUntil[T any](ctx context.Context, interval time.Duration, query func(context.Context) (T, error), match func(T) bool) (T, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	var zero T
	for {
		v, err := query(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return zero, fmt.Errorf("driver: poll timed out: %w", ctx.Err())
			}
			return zero, err
		}
		if match(v) {
			return v, nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("driver: poll timed out: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// WaitForResult polls until query returns want.
func WaitForResult[T comparable](ctx context.Context, interval time.Duration, query func(context.Context) (T, error), want T) error {
	_, err := PollUntil(ctx, interval, query, func(v T) bool { return v == want })
	if err != nil {
		return fmt.Errorf("driver: result didn't become %v: %w", want, err)
	}
	return nil
}
