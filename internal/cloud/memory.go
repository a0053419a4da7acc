package cloud

import (
	"context"
	"slices"
	"sync"

	"github.com/PolarWolf314/keysync/internal/keystore"
)

// MemoryBackend is a Backend held in process memory.
type MemoryBackend struct {
	mu       sync.Mutex
	accounts map[string]AccountStatus
	zones    map[string]*memoryZone
}

type memoryZone struct {
	records map[string]keystore.Record
	deleted map[string]struct{}
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		accounts: make(map[string]AccountStatus),
		zones:    make(map[string]*memoryZone),
	}
}

func (b *MemoryBackend) zone(account string) *memoryZone {
	z, ok := b.zones[account]
	if !ok {
		z = &memoryZone{
			records: make(map[string]keystore.Record),
			deleted: make(map[string]struct{}),
		}
		b.zones[account] = z
	}
	return z
}

func (b *MemoryBackend) AccountStatus(ctx context.Context, account string) (AccountStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status, ok := b.accounts[account]
	if !ok {
		return StatusNoAccount, nil
	}
	return status, nil
}

func (b *MemoryBackend) SetAccountStatus(ctx context.Context, account string, status AccountStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[account] = status
	return nil
}

func (b *MemoryBackend) Push(ctx context.Context, account string, changes []keystore.Change) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	z := b.zone(account)
	for _, c := range changes {
		id := c.Record.ID
		switch c.Op {
		case keystore.OpDelete:
			delete(z.records, id)
			z.deleted[id] = struct{}{}
		case keystore.OpPut:
			if _, gone := z.deleted[id]; gone {
				continue
			}
			rec := c.Record
			rec.KeyData = append([]byte(nil), rec.KeyData...)
			rec.Seq = 0
			z.records[id] = rec
		}
	}
	return nil
}

func (b *MemoryBackend) Pull(ctx context.Context, account string) (keystore.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	z := b.zone(account)

	var snap keystore.Snapshot
	for _, r := range z.records {
		r.KeyData = append([]byte(nil), r.KeyData...)
		snap.Records = append(snap.Records, r)
	}
	keystore.SortByCreation(snap.Records)
	for id := range z.deleted {
		snap.Deleted = append(snap.Deleted, id)
	}
	slices.Sort(snap.Deleted)
	return snap, nil
}

func (b *MemoryBackend) Close() error {
	return nil
}
