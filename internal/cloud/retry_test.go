package cloud

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedSource struct {
	results []AccountStatus
	errs    []error
	calls   int
}

func (s *scriptedSource) AccountStatus(ctx context.Context) (AccountStatus, error) {
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.results[i], err
}

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func TestRetryPolicy_StopsOnAvailable(t *testing.T) {
	src := &scriptedSource{results: []AccountStatus{StatusUnknown, StatusAvailable, StatusRestricted}}
	sleeper := &recordingSleeper{}
	policy := RetryPolicy{MaxAttempts: 3, Backoff: time.Second, Sleep: sleeper.sleep}

	status, err := policy.AccountStatus(context.Background(), src)
	if err != nil {
		t.Fatalf("Failed to query status: %v", err)
	}
	if status != StatusAvailable {
		t.Errorf("Expected available, got %s", status)
	}
	if src.calls != 2 {
		t.Errorf("Expected 2 queries, got %d", src.calls)
	}
	if len(sleeper.waits) != 1 || sleeper.waits[0] != time.Second {
		t.Errorf("Expected one 1s backoff, got %v", sleeper.waits)
	}
}

func TestRetryPolicy_ExhaustsAttempts(t *testing.T) {
	src := &scriptedSource{results: []AccountStatus{StatusRestricted}}
	sleeper := &recordingSleeper{}
	policy := RetryPolicy{MaxAttempts: 3, Backoff: 10 * time.Millisecond, Sleep: sleeper.sleep}

	status, err := policy.AccountStatus(context.Background(), src)
	if err != nil {
		t.Fatalf("Failed to query status: %v", err)
	}
	if status != StatusRestricted {
		t.Errorf("Expected restricted, got %s", status)
	}
	if src.calls != 3 {
		t.Errorf("Expected 3 queries, got %d", src.calls)
	}
	if len(sleeper.waits) != 2 {
		t.Errorf("Expected 2 backoffs, got %d", len(sleeper.waits))
	}
}

func TestRetryPolicy_ErrorsCountAsUnknown(t *testing.T) {
	boom := errors.New("connection reset")
	src := &scriptedSource{
		results: []AccountStatus{StatusAvailable, StatusAvailable},
		errs:    []error{boom, boom},
	}
	policy := RetryPolicy{MaxAttempts: 2, Sleep: (&recordingSleeper{}).sleep}

	status, err := policy.AccountStatus(context.Background(), src)
	if err != nil {
		t.Fatalf("Expected query errors to be absorbed, got %v", err)
	}
	if status != StatusUnknown {
		t.Errorf("Expected unknown, got %s", status)
	}
}

func TestRetryPolicy_NoAccountIsNotRetriedEarly(t *testing.T) {
	src := &scriptedSource{results: []AccountStatus{StatusNoAccount}}
	policy := RetryPolicy{MaxAttempts: 2, Sleep: (&recordingSleeper{}).sleep}

	status, err := policy.AccountStatus(context.Background(), src)
	if err != nil {
		t.Fatalf("Failed to query status: %v", err)
	}
	if status != StatusNoAccount {
		t.Errorf("Expected no_account, got %s", status)
	}
	if src.calls != 2 {
		t.Errorf("Expected every attempt to be used, got %d", src.calls)
	}
}

func TestRetryPolicy_ZeroAttemptsMeansOne(t *testing.T) {
	src := &scriptedSource{results: []AccountStatus{StatusRestricted}}
	if _, err := (RetryPolicy{}).AccountStatus(context.Background(), src); err != nil {
		t.Fatalf("Failed to query status: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("Expected 1 query, got %d", src.calls)
	}
}

func TestRetryPolicy_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &scriptedSource{results: []AccountStatus{StatusUnknown}}
	policy := RetryPolicy{MaxAttempts: 3, Backoff: time.Hour}

	if _, err := policy.AccountStatus(ctx, src); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}
