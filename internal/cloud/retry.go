package cloud

import (
	"context"
	"time"

	logger "github.com/PolarWolf314/keysync/internal/logging"
)

// StatusSource is anything that can report an account status.
type StatusSource interface {
	AccountStatus(ctx context.Context) (AccountStatus, error)
}

// RetryPolicy bounds the account status query.
type RetryPolicy struct {
	// MaxAttempts is the number of queries made at most. Values below 1 mean 1.
	MaxAttempts int

	// Backoff is the pause between attempts.
	Backoff time.Duration

	// Sleep waits for d or until ctx is done. Nil uses a real timer.
	Sleep func(ctx context.Context, d time.Duration) error

	Log logger.Logger
}

// DefaultRetryPolicy makes three attempts one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: time.Second}
}

// AccountStatus queries src until it reports StatusAvailable or the attempts
// run out, and returns the last status seen. A failed query counts as
// StatusUnknown. The only error returned is the context's.
func (p RetryPolicy) AccountStatus(ctx context.Context, src StatusSource) (AccountStatus, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	status := StatusUnknown
	for attempt := 1; attempt <= attempts; attempt++ {
		p.Log.Debugf("Checking account status (attempt %d/%d)", attempt, attempts)
		got, err := src.AccountStatus(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return status, ctx.Err()
			}
			p.Log.Warnf("Account status query failed: %v", err)
			got = StatusUnknown
		}
		status = got
		p.Log.Debugf("Account status: %s", status)

		if status == StatusAvailable {
			break
		}
		if attempt < attempts {
			if err := sleep(ctx, p.Backoff); err != nil {
				return status, err
			}
		}
	}
	return status, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
