package keystore

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kerrors "github.com/PolarWolf314/keysync/internal/errors"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// storeFactory opens an empty replica whose CreatedAt stamps come from now.
type storeFactory func(t *testing.T, now func() time.Time) Replica

// sequenceClock returns the given times in order, then keeps ticking by one
// second after the last of them.
func sequenceClock(times ...time.Time) func() time.Time {
	var mu sync.Mutex
	next := baseTime
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		if len(times) > 0 {
			t := times[0]
			times = times[1:]
			next = t.Add(time.Second)
			return t
		}
		t := next
		next = next.Add(time.Second)
		return t
	}
}

func insertCommitted(t *testing.T, s Store, keyData []byte) Record {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	rec, err := tx.Insert(ctx, keyData)
	if err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	return rec
}

func fetchAll(t *testing.T, s Store) []Record {
	t.Helper()
	records, err := s.FetchAllSortedByCreation(context.Background())
	if err != nil {
		t.Fatalf("Failed to fetch records: %v", err)
	}
	return records
}

// runStoreSuite checks the behaviour every driver must share.
func runStoreSuite(t *testing.T, open storeFactory) {
	t.Run("SortsOldestFirst", func(t *testing.T) {
		t1, t2, t3 := baseTime, baseTime.Add(time.Minute), baseTime.Add(2*time.Minute)
		s := open(t, sequenceClock(t2, t1, t3))

		insertCommitted(t, s, []byte("k2"))
		insertCommitted(t, s, []byte("k1"))
		insertCommitted(t, s, []byte("k3"))

		records := fetchAll(t, s)
		if len(records) != 3 {
			t.Fatalf("Expected 3 records, got %d", len(records))
		}
		for i, want := range []string{"k1", "k2", "k3"} {
			if string(records[i].KeyData) != want {
				t.Fatalf("Record %d: expected %s, got %s", i, want, records[i].KeyData)
			}
		}
	})

	t.Run("TiesBrokenByInsertionOrder", func(t *testing.T) {
		s := open(t, sequenceClock(baseTime, baseTime, baseTime))

		insertCommitted(t, s, []byte("first"))
		insertCommitted(t, s, []byte("second"))
		insertCommitted(t, s, []byte("third"))

		records := fetchAll(t, s)
		for i, want := range []string{"first", "second", "third"} {
			if string(records[i].KeyData) != want {
				t.Fatalf("Record %d: expected %s, got %s", i, want, records[i].KeyData)
			}
		}
	})

	t.Run("InsertInvisibleUntilCommit", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, sequenceClock())

		tx, err := s.Begin(ctx)
		if err != nil {
			t.Fatalf("Failed to begin: %v", err)
		}
		rec, err := tx.Insert(ctx, []byte("pending"))
		if err != nil {
			t.Fatalf("Failed to insert: %v", err)
		}
		if rec.ID == "" || rec.CreatedAt.IsZero() {
			t.Fatalf("Expected insert to assign id and timestamp, got %+v", rec)
		}
		if got := fetchAll(t, s); len(got) != 0 {
			t.Fatalf("Expected uncommitted insert to be invisible, got %d records", len(got))
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("Failed to commit: %v", err)
		}
		got := fetchAll(t, s)
		if len(got) != 1 || got[0].ID != rec.ID {
			t.Fatalf("Expected committed record %s, got %+v", rec.ID, got)
		}
	})

	t.Run("RollbackDiscards", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, sequenceClock())

		tx, _ := s.Begin(ctx)
		if _, err := tx.Insert(ctx, []byte("discarded")); err != nil {
			t.Fatalf("Failed to insert: %v", err)
		}
		if err := tx.Rollback(ctx); err != nil {
			t.Fatalf("Failed to roll back: %v", err)
		}
		if got := fetchAll(t, s); len(got) != 0 {
			t.Fatalf("Expected no records after rollback, got %d", len(got))
		}
		if err := tx.Commit(ctx); !errors.Is(err, kerrors.ErrTxDone) {
			t.Fatalf("Expected ErrTxDone after rollback, got %v", err)
		}
	})

	t.Run("DeleteAbsentIsNoop", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, sequenceClock())
		rec := insertCommitted(t, s, []byte("key"))

		for i := 0; i < 2; i++ {
			tx, _ := s.Begin(ctx)
			if err := tx.Delete(ctx, rec); err != nil {
				t.Fatalf("Delete %d failed: %v", i, err)
			}
			if err := tx.Commit(ctx); err != nil {
				t.Fatalf("Commit %d failed: %v", i, err)
			}
		}
		if got := fetchAll(t, s); len(got) != 0 {
			t.Fatalf("Expected empty store, got %d", len(got))
		}
	})

	t.Run("RejectsEmptyKeyData", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, sequenceClock())
		tx, _ := s.Begin(ctx)
		defer tx.Rollback(ctx)

		if _, err := tx.Insert(ctx, nil); !errors.Is(err, kerrors.ErrInvalidRecord) {
			t.Fatalf("Expected ErrInvalidRecord, got %v", err)
		}
	})

	t.Run("JournalAndAcknowledge", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, sequenceClock())
		rec := insertCommitted(t, s, []byte("key"))

		tx, _ := s.Begin(ctx)
		_ = tx.Delete(ctx, rec)
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("Failed to commit delete: %v", err)
		}

		changes, err := s.PendingChanges(ctx)
		if err != nil {
			t.Fatalf("Failed to read pending changes: %v", err)
		}
		if len(changes) != 2 {
			t.Fatalf("Expected 2 journaled changes, got %d", len(changes))
		}
		if changes[0].Op != OpPut || changes[0].Record.ID != rec.ID || !bytes.Equal(changes[0].Record.KeyData, rec.KeyData) {
			t.Fatalf("Unexpected first change: %+v", changes[0])
		}
		if changes[1].Op != OpDelete || changes[1].Record.ID != rec.ID {
			t.Fatalf("Unexpected second change: %+v", changes[1])
		}

		if err := s.Acknowledge(ctx, changes[0].Seq); err != nil {
			t.Fatalf("Failed to acknowledge: %v", err)
		}
		changes, _ = s.PendingChanges(ctx)
		if len(changes) != 1 || changes[0].Op != OpDelete {
			t.Fatalf("Expected only the delete to remain pending, got %+v", changes)
		}
	})

	t.Run("MergeImportsAndHonoursTombstones", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, sequenceClock())
		local := insertCommitted(t, s, []byte("local"))

		// Delete locally, then offer the stale record back from the remote.
		tx, _ := s.Begin(ctx)
		_ = tx.Delete(ctx, local)
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("Failed to commit delete: %v", err)
		}
		before, _ := s.PendingChanges(ctx)

		remote := Record{ID: "remote-1", KeyData: []byte("remote"), CreatedAt: baseTime.Add(-time.Hour)}
		res, err := s.Merge(ctx, Snapshot{Records: []Record{local, remote}})
		if err != nil {
			t.Fatalf("Failed to merge: %v", err)
		}
		if res.Added != 1 || res.Removed != 0 {
			t.Fatalf("Expected 1 added and 0 removed, got %+v", res)
		}

		records := fetchAll(t, s)
		if len(records) != 1 || records[0].ID != remote.ID {
			t.Fatalf("Expected only the remote record, got %+v", records)
		}
		if !records[0].CreatedAt.Equal(remote.CreatedAt) {
			t.Fatalf("Expected remote timestamp to be kept, got %v", records[0].CreatedAt)
		}

		after, _ := s.PendingChanges(ctx)
		if len(after) != len(before) {
			t.Fatalf("Merge must not journal: %d changes before, %d after", len(before), len(after))
		}

		res, err = s.Merge(ctx, Snapshot{Deleted: []string{remote.ID}})
		if err != nil {
			t.Fatalf("Failed to merge tombstone: %v", err)
		}
		if res.Removed != 1 {
			t.Fatalf("Expected tombstone to remove 1 record, got %+v", res)
		}
		if got := fetchAll(t, s); len(got) != 0 {
			t.Fatalf("Expected empty store after tombstone, got %d", len(got))
		}
	})

	t.Run("MergeTiesBrokenByID", func(t *testing.T) {
		ctx := context.Background()
		first := Record{ID: "aaaa", KeyData: []byte("a"), CreatedAt: baseTime}
		second := Record{ID: "bbbb", KeyData: []byte("b"), CreatedAt: baseTime}

		for _, order := range [][]Record{{first, second}, {second, first}} {
			s := open(t, sequenceClock())
			if _, err := s.Merge(ctx, Snapshot{Records: order}); err != nil {
				t.Fatalf("Failed to merge: %v", err)
			}
			records := fetchAll(t, s)
			if len(records) != 2 || records[0].ID != first.ID || records[1].ID != second.ID {
				t.Fatalf("Expected %s before %s whatever the pull order, got %+v", first.ID, second.ID, records)
			}
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T, now func() time.Time) Replica {
		s := NewMemoryStore(WithClock(now))
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Close()

	if _, err := s.FetchAllSortedByCreation(context.Background()); !errors.Is(err, kerrors.ErrStoreUnavailable) {
		t.Fatalf("Expected ErrStoreUnavailable, got %v", err)
	}
}

func TestConcurrentCommitsAllLand(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx, err := s.Begin(ctx)
			if err != nil {
				t.Errorf("Failed to begin: %v", err)
				return
			}
			if _, err := tx.Insert(ctx, []byte{byte(i + 1)}); err != nil {
				t.Errorf("Failed to insert: %v", err)
				return
			}
			if err := tx.Commit(ctx); err != nil {
				t.Errorf("Failed to commit: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := fetchAll(t, s); len(got) != 20 {
		t.Fatalf("Expected 20 records, got %d", len(got))
	}
}
