package keystore

import (
	"context"
	"fmt"
	"sync"

	kerrors "github.com/PolarWolf314/keysync/internal/errors"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	ledger *ledger
	closed bool
	opts   options
}

var _ Replica = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{ledger: newLedger(), opts: buildOptions(opts)}
}

func (s *MemoryStore) check() error {
	if s.closed {
		return fmt.Errorf("%w: memory store is closed", kerrors.ErrStoreUnavailable)
	}
	return nil
}

func (s *MemoryStore) FetchAllSortedByCreation(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.ledger.sorted(), nil
}

func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	return &ledgerTx{now: s.opts.now, commit: s.commit}, nil
}

func (s *MemoryStore) commit(ctx context.Context, ops []staged) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	return s.ledger.apply(ops)
}

func (s *MemoryStore) PendingChanges(ctx context.Context) ([]Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.ledger.pending(), nil
}

func (s *MemoryStore) Acknowledge(ctx context.Context, upTo uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.ledger.acknowledge(upTo)
	return nil
}

func (s *MemoryStore) Merge(ctx context.Context, snap Snapshot) (MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return MergeResult{}, err
	}
	return s.ledger.merge(snap), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
