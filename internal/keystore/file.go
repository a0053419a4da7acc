package keystore

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	kerrors "github.com/PolarWolf314/keysync/internal/errors"

	"github.com/BurntSushi/toml"
	"github.com/google/renameio/v2"
)

// FileStore keeps records in a single TOML file. Every commit rewrites the
// whole file through an atomic rename, so readers and crashed writers only
// ever see a complete document.
//
// The mutex serialises access within one process. Separate processes
// sharing a file are last-writer-wins; duplicate keys that result are
// resolved by the key manager's dedup.
type FileStore struct {
	mu   sync.Mutex
	path string
	opts options
}

var _ Replica = (*FileStore)(nil)

type fileDocument struct {
	NextSeq    uint64       `toml:"next_seq"`
	NextChange uint64       `toml:"next_change"`
	Records    []fileRecord `toml:"records"`
	Journal    []fileChange `toml:"journal"`
	Deleted    []string     `toml:"deleted"`
}

type fileRecord struct {
	ID        string    `toml:"id"`
	KeyData   string    `toml:"key_data"`
	CreatedAt time.Time `toml:"created_at"`
	Seq       uint64    `toml:"seq,omitempty"`
}

type fileChange struct {
	Seq    uint64     `toml:"seq"`
	Op     string     `toml:"op"`
	Record fileRecord `toml:"record"`
}

// OpenFileStore opens the store at path, creating its directory if needed.
// A missing file is an empty store; an unreadable one is ErrStoreUnavailable.
func OpenFileStore(path string, opts ...Option) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no store path configured", kerrors.ErrStoreUnavailable)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("%w: creating directory for %s: %w", kerrors.ErrStoreUnavailable, path, err)
	}
	s := &FileStore{path: path, opts: buildOptions(opts)}
	if _, err := s.load(); err != nil {
		return nil, err
	}
	s.opts.log.Debugf("Opened file store at %s", path)
	return s, nil
}

// Path returns the file backing the store.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() (*ledger, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return newLedger(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", kerrors.ErrStoreUnavailable, s.path, err)
	}

	var doc fileDocument
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", kerrors.ErrStoreUnavailable, s.path, err)
	}

	l := newLedger()
	if doc.NextSeq > 0 {
		l.nextSeq = doc.NextSeq
	}
	if doc.NextChange > 0 {
		l.nextChange = doc.NextChange
	}
	for i, fr := range doc.Records {
		rec, err := fr.decode()
		if err != nil {
			return nil, fmt.Errorf("%w: %s record %d: %w", kerrors.ErrStoreUnavailable, s.path, i, err)
		}
		if rec.Seq >= l.nextSeq {
			l.nextSeq = rec.Seq + 1
		}
		l.records = append(l.records, rec)
	}
	for i, fc := range doc.Journal {
		rec, err := fc.Record.decodeLoose()
		if err != nil {
			return nil, fmt.Errorf("%w: %s journal entry %d: %w", kerrors.ErrStoreUnavailable, s.path, i, err)
		}
		l.journal = append(l.journal, Change{Seq: fc.Seq, Op: Op(fc.Op), Record: rec})
		if fc.Seq >= l.nextChange {
			l.nextChange = fc.Seq + 1
		}
	}
	for _, id := range doc.Deleted {
		l.deleted[id] = struct{}{}
	}
	return l, nil
}

func (s *FileStore) save(l *ledger) error {
	doc := fileDocument{
		NextSeq:    l.nextSeq,
		NextChange: l.nextChange,
	}
	for _, r := range l.records {
		doc.Records = append(doc.Records, encodeFileRecord(r))
	}
	for _, c := range l.journal {
		doc.Journal = append(doc.Journal, fileChange{Seq: c.Seq, Op: string(c.Op), Record: encodeFileRecord(c.Record)})
	}
	for id := range l.deleted {
		doc.Deleted = append(doc.Deleted, id)
	}
	slices.Sort(doc.Deleted)

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("%w: encoding %s: %w", kerrors.ErrStoreUnavailable, s.path, err)
	}
	if err := renameio.WriteFile(s.path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("%w: writing %s: %w", kerrors.ErrStoreUnavailable, s.path, err)
	}
	return nil
}

// update loads the ledger, lets fn modify it and saves it if fn succeeds.
func (s *FileStore) update(fn func(l *ledger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(l); err != nil {
		return err
	}
	return s.save(l)
}

func (s *FileStore) FetchAllSortedByCreation(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.load()
	if err != nil {
		return nil, err
	}
	return l.sorted(), nil
}

func (s *FileStore) Begin(ctx context.Context) (Tx, error) {
	return &ledgerTx{now: s.opts.now, commit: s.commit}, nil
}

func (s *FileStore) commit(ctx context.Context, ops []staged) error {
	return s.update(func(l *ledger) error {
		return l.apply(ops)
	})
}

func (s *FileStore) PendingChanges(ctx context.Context) ([]Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.load()
	if err != nil {
		return nil, err
	}
	return l.pending(), nil
}

func (s *FileStore) Acknowledge(ctx context.Context, upTo uint64) error {
	return s.update(func(l *ledger) error {
		l.acknowledge(upTo)
		return nil
	})
}

func (s *FileStore) Merge(ctx context.Context, snap Snapshot) (MergeResult, error) {
	var res MergeResult
	err := s.update(func(l *ledger) error {
		res = l.merge(snap)
		return nil
	})
	return res, err
}

func (s *FileStore) Close() error {
	return nil
}

func encodeFileRecord(r Record) fileRecord {
	return fileRecord{
		ID:        r.ID,
		KeyData:   base64.StdEncoding.EncodeToString(r.KeyData),
		CreatedAt: r.CreatedAt.UTC(),
		Seq:       r.Seq,
	}
}

// decode validates a stored record.
func (fr fileRecord) decode() (Record, error) {
	rec, err := fr.decodeLoose()
	if err != nil {
		return Record{}, err
	}
	if rec.ID == "" || len(rec.KeyData) == 0 {
		return Record{}, fmt.Errorf("%w: missing id or key data", kerrors.ErrInvalidRecord)
	}
	return rec, nil
}

// decodeLoose accepts journal entries, where deletes carry only an ID.
func (fr fileRecord) decodeLoose() (Record, error) {
	data, err := base64.StdEncoding.DecodeString(fr.KeyData)
	if err != nil {
		return Record{}, fmt.Errorf("%w: key data is not base64: %v", kerrors.ErrInvalidRecord, err)
	}
	if len(data) == 0 {
		data = nil
	}
	return Record{ID: fr.ID, KeyData: data, CreatedAt: fr.CreatedAt.UTC(), Seq: fr.Seq}, nil
}
