package postgres

import (
	"context"
	"fmt"
)

// Connect opens PostgreSQL, creates the entry table if needed and returns an
// EntryStore that owns the connection pool. Expired rows are purged on
// Options.PurgeInterval until Close.
func Connect(ctx context.Context, opts ...Option) (*EntryStore, error) {
	db, err := Open(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if err := ApplyMigrations(ctx, db, EntryTableSchema, EntryExpiryIndex); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	store := NewEntryStore(db)
	store.ownsDB = true
	if interval := resolveOptions(opts...).PurgeInterval; interval > 0 {
		store.startPurger(interval)
	}
	return store, nil
}
