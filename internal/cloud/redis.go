package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kerrors "github.com/PolarWolf314/keysync/internal/errors"
	"github.com/PolarWolf314/keysync/internal/keystore"

	"github.com/redis/go-redis/v9"
)

// pushScript applies a batch of changes to a zone atomically. ARGV holds
// (op, id, payload) triples; a put is skipped when the id is tombstoned.
var pushScript = redis.NewScript(`
for i = 1, #ARGV, 3 do
  local op, id, payload = ARGV[i], ARGV[i+1], ARGV[i+2]
  if op == "delete" then
    redis.call("HDEL", KEYS[1], id)
    redis.call("SADD", KEYS[2], id)
  elseif redis.call("SISMEMBER", KEYS[2], id) == 0 then
    redis.call("HSET", KEYS[1], id, payload)
  end
end
return #ARGV / 3
`)

// DefaultRedisPrefix namespaces every key the backend writes.
const DefaultRedisPrefix = "keysync:"

// RedisOptions configures NewRedisClient.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// NewRedisClient connects to Redis and pings it once.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	addr := opts.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis ping %s: %w", kerrors.ErrNetwork, addr, err)
	}
	return client, nil
}

// RedisBackend stores zones in Redis: a string key per account status, a
// hash of JSON records and a set of tombstoned ids per zone.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend wraps client. An empty prefix uses DefaultRedisPrefix.
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) accountKey(account string) string {
	return b.prefix + "account:" + account
}

func (b *RedisBackend) recordsKey(account string) string {
	return b.prefix + "zone:" + account + ":records"
}

func (b *RedisBackend) deletedKey(account string) string {
	return b.prefix + "zone:" + account + ":deleted"
}

func (b *RedisBackend) AccountStatus(ctx context.Context, account string) (AccountStatus, error) {
	raw, err := b.client.Get(ctx, b.accountKey(account)).Result()
	if errors.Is(err, redis.Nil) {
		return StatusNoAccount, nil
	}
	if err != nil {
		return StatusUnknown, redisError("reading account status", err)
	}
	status, err := ParseAccountStatus(raw)
	if err != nil {
		return StatusUnknown, fmt.Errorf("%w: %w", kerrors.ErrServiceUnavailable, err)
	}
	return status, nil
}

func (b *RedisBackend) SetAccountStatus(ctx context.Context, account string, status AccountStatus) error {
	if err := b.client.Set(ctx, b.accountKey(account), status.String(), 0).Err(); err != nil {
		return redisError("writing account status", err)
	}
	return nil
}

func (b *RedisBackend) Push(ctx context.Context, account string, changes []keystore.Change) error {
	if len(changes) == 0 {
		return nil
	}
	args := make([]any, 0, len(changes)*3)
	for _, c := range changes {
		payload := ""
		if c.Op == keystore.OpPut {
			rec := c.Record
			rec.Seq = 0
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encoding record %s: %w", rec.ID, err)
			}
			payload = string(data)
		}
		args = append(args, string(c.Op), c.Record.ID, payload)
	}
	keys := []string{b.recordsKey(account), b.deletedKey(account)}
	if err := pushScript.Run(ctx, b.client, keys, args...).Err(); err != nil {
		return redisError("pushing changes", err)
	}
	return nil
}

func (b *RedisBackend) Pull(ctx context.Context, account string) (keystore.Snapshot, error) {
	var snap keystore.Snapshot
	fields, err := b.client.HGetAll(ctx, b.recordsKey(account)).Result()
	if err != nil {
		return snap, redisError("reading records", err)
	}
	for id, payload := range fields {
		var rec keystore.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return keystore.Snapshot{}, fmt.Errorf("%w: record %s is not valid json: %w", kerrors.ErrServiceUnavailable, id, err)
		}
		snap.Records = append(snap.Records, rec)
	}
	keystore.SortByCreation(snap.Records)

	deleted, err := b.client.SMembers(ctx, b.deletedKey(account)).Result()
	if err != nil {
		return keystore.Snapshot{}, redisError("reading tombstones", err)
	}
	snap.Deleted = deleted
	return snap, nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func redisError(action string, err error) error {
	return fmt.Errorf("%w: redis %s: %w", kerrors.ErrNetwork, action, err)
}
