package shared

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/blake2b"
)

// ErrIdempotencyConflict indicates the key was already processed with the same payload.
var ErrIdempotencyConflict = fmt.Errorf("idempotent request already processed: %w", ErrConflict)

// ErrIdempotencyKeyReused indicates the key was already used for a different payload.
var ErrIdempotencyKeyReused = fmt.Errorf("idempotency key reused with a different payload: %w", ErrConflict)

// Fingerprint hashes a request payload so key reuse with another body can be told apart.
func Fingerprint(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// IdempotencyStore persists processed keys.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// CheckAndInsert ensures key uniqueness per module.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module, fingerprint string) error {
	if s == nil || s.pool == nil {
		return errors.New("idempotency store not initialised")
	}
	if err := checkKey(key, module); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (key, module, fingerprint, created_at) VALUES ($1, $2, $3, $4)`, key, module, fingerprint, time.Now())
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	var stored string
	err = s.pool.QueryRow(ctx, `SELECT fingerprint FROM idempotency_keys WHERE key=$1 AND module=$2`, key, module).Scan(&stored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrIdempotencyConflict
		}
		return err
	}
	if stored != fingerprint {
		return ErrIdempotencyKeyReused
	}
	return ErrIdempotencyConflict
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil || s.pool == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	return err
}

// Delete removes a key, typically used to roll back failed processing.
func (s *IdempotencyStore) Delete(ctx context.Context, key, module string) error {
	if s == nil || s.pool == nil {
		return nil
	}
	if err := checkKey(key, module); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key=$1 AND module=$2`, key, module)
	return err
}

// MemoryIdempotencyStore keeps keys in process memory.
type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]string
}

// NewMemoryIdempotencyStore constructs an empty store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{keys: make(map[string]string)}
}

// CheckAndInsert mirrors IdempotencyStore.CheckAndInsert.
func (s *MemoryIdempotencyStore) CheckAndInsert(ctx context.Context, key, module, fingerprint string) error {
	if err := checkKey(key, module); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := module + ":" + key
	if stored, ok := s.keys[id]; ok {
		if stored != fingerprint {
			return ErrIdempotencyKeyReused
		}
		return ErrIdempotencyConflict
	}
	s.keys[id] = fingerprint
	return nil
}

// Delete forgets a key.
func (s *MemoryIdempotencyStore) Delete(ctx context.Context, key, module string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, module+":"+key)
	return nil
}

func checkKey(key, module string) error {
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	return nil
}
