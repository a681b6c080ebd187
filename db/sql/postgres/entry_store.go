package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/adeilh/kvgate/cache"
)

// EntryStore persists cache entries in the kv_entries table. Rows whose
// expires_at has passed are treated as absent.
type EntryStore struct {
	db     *sql.DB
	ownsDB bool
	now    func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewEntryStore wraps an existing *sql.DB connection.
func NewEntryStore(db *sql.DB) *EntryStore {
	return &EntryStore{db: db, now: time.Now}
}

func (s *EntryStore) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value FROM kv_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`
	var value string
	err := s.db.QueryRowContext(ctx, query, key, s.now().UTC()).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cache.ErrNotFound
		}
		return nil, translateError("get", err)
	}
	return []byte(value), nil
}

func (s *EntryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const query = `INSERT INTO kv_entries (key, value, expires_at, updated_at)
                   VALUES ($1, $2, $3, $4)
                   ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`
	now := s.now().UTC()
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: now.Add(ttl), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query, key, string(value), expiresAt, now)
	return translateError("set", err)
}

func (s *EntryStore) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM kv_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`
	res, err := s.db.ExecContext(ctx, query, key, s.now().UTC())
	if err != nil {
		return translateError("delete", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// PurgeExpired deletes rows past their expiration and reports how many went.
func (s *EntryStore) PurgeExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= $1`
	res, err := s.db.ExecContext(ctx, query, s.now().UTC())
	if err != nil {
		return 0, translateError("purge", err)
	}
	return res.RowsAffected()
}

func (s *EntryStore) startPurger(interval time.Duration) {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				_, _ = s.PurgeExpired(ctx)
				cancel()
			}
		}
	}()
}

// Close stops the purge loop and closes the pool when the store opened it.
func (s *EntryStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.stop != nil {
			close(s.stop)
			<-s.done
		}
		if s.ownsDB && s.db != nil {
			err = s.db.Close()
		}
	})
	return err
}

func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 22021: invalid byte sequence for encoding, e.g. a NUL inside a TEXT value.
		if pqErr.Code == "22021" {
			return fmt.Errorf("postgres: %s: value not storable as text: %w", op, err)
		}
		return fmt.Errorf("postgres: %s: %s (%s): %w", op, pqErr.Message, pqErr.Code, err)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}
