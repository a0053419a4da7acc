package keystore

import (
	"context"
	"fmt"
	"sync"
	"time"

	kerrors "github.com/PolarWolf314/keysync/internal/errors"

	"github.com/google/uuid"
)

// staged is a mutation held by a transaction until commit.
type staged struct {
	op     Op
	record Record
}

// ledger is the in-memory state shared by the memory and file drivers.
type ledger struct {
	records    []Record
	journal    []Change
	deleted    map[string]struct{}
	nextSeq    uint64
	nextChange uint64
}

func newLedger() *ledger {
	return &ledger{
		deleted:    make(map[string]struct{}),
		nextSeq:    1,
		nextChange: 1,
	}
}

func (l *ledger) sorted() []Record {
	out := make([]Record, len(l.records))
	for i, r := range l.records {
		out[i] = cloneRecord(r)
	}
	SortByCreation(out)
	return out
}

func (l *ledger) index(id string) int {
	for i, r := range l.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// apply commits staged mutations. Validation runs first so a rejected batch
// leaves the ledger untouched.
func (l *ledger) apply(ops []staged) error {
	inserting := make(map[string]struct{})
	for _, s := range ops {
		if s.op != OpPut {
			continue
		}
		if s.record.ID == "" || len(s.record.KeyData) == 0 {
			return fmt.Errorf("%w: record needs an id and key data", kerrors.ErrInvalidRecord)
		}
		if _, dup := inserting[s.record.ID]; dup || l.index(s.record.ID) >= 0 {
			return fmt.Errorf("%w: duplicate record id %s", kerrors.ErrInvalidRecord, s.record.ID)
		}
		inserting[s.record.ID] = struct{}{}
	}

	for _, s := range ops {
		switch s.op {
		case OpPut:
			rec := cloneRecord(s.record)
			rec.Seq = l.nextSeq
			l.nextSeq++
			l.records = append(l.records, rec)
			l.appendChange(OpPut, rec)
		case OpDelete:
			i := l.index(s.record.ID)
			if i < 0 {
				continue
			}
			l.records = append(l.records[:i], l.records[i+1:]...)
			l.deleted[s.record.ID] = struct{}{}
			l.appendChange(OpDelete, Record{ID: s.record.ID})
		}
	}
	return nil
}

func (l *ledger) appendChange(op Op, rec Record) {
	rec = cloneRecord(rec)
	rec.Seq = 0
	l.journal = append(l.journal, Change{Seq: l.nextChange, Op: op, Record: rec})
	l.nextChange++
}

func (l *ledger) pending() []Change {
	out := make([]Change, len(l.journal))
	for i, c := range l.journal {
		c.Record = cloneRecord(c.Record)
		out[i] = c
	}
	return out
}

func (l *ledger) acknowledge(upTo uint64) {
	kept := l.journal[:0]
	for _, c := range l.journal {
		if c.Seq > upTo {
			kept = append(kept, c)
		}
	}
	l.journal = kept
}

func (l *ledger) merge(snap Snapshot) MergeResult {
	var res MergeResult
	for _, id := range snap.Deleted {
		l.deleted[id] = struct{}{}
		if i := l.index(id); i >= 0 {
			l.records = append(l.records[:i], l.records[i+1:]...)
			res.Removed++
		}
	}
	for _, r := range sortIncoming(snap.Records) {
		if r.ID == "" || len(r.KeyData) == 0 {
			continue
		}
		if _, gone := l.deleted[r.ID]; gone {
			continue
		}
		if l.index(r.ID) >= 0 {
			continue
		}
		rec := cloneRecord(r)
		rec.CreatedAt = rec.CreatedAt.UTC()
		rec.Seq = l.nextSeq
		l.nextSeq++
		l.records = append(l.records, rec)
		res.Added++
	}
	return res
}

// ledgerTx stages mutations and hands them to commit on Commit.
type ledgerTx struct {
	mu     sync.Mutex
	now    func() time.Time
	ops    []staged
	done   bool
	commit func(ctx context.Context, ops []staged) error
}

func (t *ledgerTx) Insert(ctx context.Context, keyData []byte) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return Record{}, kerrors.ErrTxDone
	}
	if len(keyData) == 0 {
		return Record{}, fmt.Errorf("%w: empty key data", kerrors.ErrInvalidRecord)
	}
	rec := Record{
		ID:        uuid.NewString(),
		KeyData:   append([]byte(nil), keyData...),
		CreatedAt: t.now().UTC(),
	}
	t.ops = append(t.ops, staged{op: OpPut, record: rec})
	return cloneRecord(rec), nil
}

func (t *ledgerTx) Delete(ctx context.Context, record Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return kerrors.ErrTxDone
	}
	t.ops = append(t.ops, staged{op: OpDelete, record: Record{ID: record.ID}})
	return nil
}

func (t *ledgerTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return kerrors.ErrTxDone
	}
	t.done = true
	if len(t.ops) == 0 {
		return nil
	}
	return t.commit(ctx, t.ops)
}

func (t *ledgerTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return kerrors.ErrTxDone
	}
	t.done = true
	t.ops = nil
	return nil
}
