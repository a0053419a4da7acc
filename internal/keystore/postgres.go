package keystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	kerrors "github.com/PolarWolf314/keysync/internal/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxDB is the subset of *pgxpool.Pool the store needs.
type pgxDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Close()
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS private_keys (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	key_data   BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS private_key_journal (
	seq        BIGSERIAL PRIMARY KEY,
	op         TEXT NOT NULL,
	record_id  TEXT NOT NULL,
	key_data   BYTEA,
	created_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS private_key_tombstones (
	id         TEXT PRIMARY KEY,
	deleted_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

var (
	postgresConnectRetries = 5
	postgresRetryDelay     = time.Second
	postgresPingTimeout    = 2 * time.Second
)

// NewPostgresPool connects to dsn, retrying while the database comes up.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing database url: %w", kerrors.ErrStoreUnavailable, err)
	}
	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	var lastErr error
	for i := 0; i < postgresConnectRetries; i++ {
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, postgresPingTimeout)
			err = pool.Ping(pingCtx)
			cancel()
			if err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", kerrors.ErrStoreUnavailable, ctx.Err())
		case <-time.After(postgresRetryDelay):
		}
	}
	return nil, fmt.Errorf("%w: db ping retries exhausted: %w", kerrors.ErrStoreUnavailable, lastErr)
}

// PostgresStore keeps records in the private_keys table.
type PostgresStore struct {
	db   pgxDB
	opts options
}

var _ Replica = (*PostgresStore)(nil)

// OpenPostgresStore creates the schema if needed and returns a store on db.
// The store takes ownership of db and closes it on Close.
func OpenPostgresStore(ctx context.Context, db pgxDB, opts ...Option) (*PostgresStore, error) {
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("%w: creating schema: %w", kerrors.ErrStoreUnavailable, err)
	}
	return &PostgresStore{db: db, opts: buildOptions(opts)}, nil
}

func (s *PostgresStore) FetchAllSortedByCreation(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx, `SELECT id, key_data, created_at, seq FROM private_keys ORDER BY created_at ASC, seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying records: %w", kerrors.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var seq int64
		if err := rows.Scan(&rec.ID, &rec.KeyData, &rec.CreatedAt, &seq); err != nil {
			return nil, fmt.Errorf("%w: scanning record: %w", kerrors.ErrStoreUnavailable, err)
		}
		rec.Seq = uint64(seq)
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading records: %w", kerrors.ErrStoreUnavailable, err)
	}
	return out, nil
}

func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %w", kerrors.ErrStoreUnavailable, err)
	}
	return &postgresTx{tx: tx, now: s.opts.now}, nil
}

func (s *PostgresStore) PendingChanges(ctx context.Context) ([]Change, error) {
	rows, err := s.db.Query(ctx, `SELECT seq, op, record_id, key_data, created_at FROM private_key_journal ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying journal: %w", kerrors.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []Change
	for rows.Next() {
		var (
			seq       int64
			op        string
			id        string
			keyData   []byte
			createdAt *time.Time
		)
		if err := rows.Scan(&seq, &op, &id, &keyData, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scanning journal: %w", kerrors.ErrStoreUnavailable, err)
		}
		change := Change{Seq: uint64(seq), Op: Op(op), Record: Record{ID: id, KeyData: keyData}}
		if createdAt != nil {
			change.Record.CreatedAt = createdAt.UTC()
		}
		out = append(out, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading journal: %w", kerrors.ErrStoreUnavailable, err)
	}
	return out, nil
}

func (s *PostgresStore) Acknowledge(ctx context.Context, upTo uint64) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM private_key_journal WHERE seq <= $1`, int64(upTo)); err != nil {
		return fmt.Errorf("%w: acknowledging journal: %w", kerrors.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Merge(ctx context.Context, snap Snapshot) (MergeResult, error) {
	var res MergeResult
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("%w: beginning merge: %w", kerrors.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, id := range snap.Deleted {
		if _, err := tx.Exec(ctx, `INSERT INTO private_key_tombstones (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id); err != nil {
			return MergeResult{}, fmt.Errorf("%w: recording tombstone: %w", kerrors.ErrStoreUnavailable, err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM private_keys WHERE id = $1`, id)
		if err != nil {
			return MergeResult{}, fmt.Errorf("%w: applying remote delete: %w", kerrors.ErrStoreUnavailable, err)
		}
		res.Removed += int(tag.RowsAffected())
	}
	for _, rec := range sortIncoming(snap.Records) {
		if rec.ID == "" || len(rec.KeyData) == 0 {
			continue
		}
		tag, err := tx.Exec(ctx, `
INSERT INTO private_keys (id, key_data, created_at)
SELECT $1::text, $2::bytea, $3::timestamptz
WHERE NOT EXISTS (SELECT 1 FROM private_key_tombstones WHERE id = $1::text)
ON CONFLICT (id) DO NOTHING`, rec.ID, rec.KeyData, rec.CreatedAt.UTC())
		if err != nil {
			return MergeResult{}, fmt.Errorf("%w: importing remote record: %w", kerrors.ErrStoreUnavailable, err)
		}
		res.Added += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return MergeResult{}, fmt.Errorf("%w: committing merge: %w", kerrors.ErrStoreUnavailable, err)
	}
	return res, nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// postgresTx runs each staged mutation inside one database transaction.
type postgresTx struct {
	tx   pgx.Tx
	now  func() time.Time
	done bool
}

func (t *postgresTx) Insert(ctx context.Context, keyData []byte) (Record, error) {
	if t.done {
		return Record{}, kerrors.ErrTxDone
	}
	if len(keyData) == 0 {
		return Record{}, fmt.Errorf("%w: empty key data", kerrors.ErrInvalidRecord)
	}
	// Postgres keeps microseconds; truncating keeps Go and SQL ordering equal.
	rec := Record{
		ID:        uuid.NewString(),
		KeyData:   append([]byte(nil), keyData...),
		CreatedAt: t.now().UTC().Truncate(time.Microsecond),
	}

	var seq int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO private_keys (id, key_data, created_at) VALUES ($1, $2, $3) RETURNING seq`,
		rec.ID, rec.KeyData, rec.CreatedAt).Scan(&seq)
	if err != nil {
		return Record{}, fmt.Errorf("%w: inserting record: %w", kerrors.ErrStoreUnavailable, err)
	}
	rec.Seq = uint64(seq)

	if _, err := t.tx.Exec(ctx,
		`INSERT INTO private_key_journal (op, record_id, key_data, created_at) VALUES ($1, $2, $3, $4)`,
		string(OpPut), rec.ID, rec.KeyData, rec.CreatedAt); err != nil {
		return Record{}, fmt.Errorf("%w: journaling insert: %w", kerrors.ErrStoreUnavailable, err)
	}
	return cloneRecord(rec), nil
}

func (t *postgresTx) Delete(ctx context.Context, record Record) error {
	if t.done {
		return kerrors.ErrTxDone
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM private_keys WHERE id = $1`, record.ID)
	if err != nil {
		return fmt.Errorf("%w: deleting record: %w", kerrors.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	if _, err := t.tx.Exec(ctx, `INSERT INTO private_key_tombstones (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, record.ID); err != nil {
		return fmt.Errorf("%w: recording tombstone: %w", kerrors.ErrStoreUnavailable, err)
	}
	if _, err := t.tx.Exec(ctx,
		`INSERT INTO private_key_journal (op, record_id) VALUES ($1, $2)`,
		string(OpDelete), record.ID); err != nil {
		return fmt.Errorf("%w: journaling delete: %w", kerrors.ErrStoreUnavailable, err)
	}
	return nil
}

func (t *postgresTx) Commit(ctx context.Context) error {
	if t.done {
		return kerrors.ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing: %w", kerrors.ErrStoreUnavailable, err)
	}
	return nil
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	if t.done {
		return kerrors.ErrTxDone
	}
	t.done = true
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("%w: rolling back: %w", kerrors.ErrStoreUnavailable, err)
	}
	return nil
}
