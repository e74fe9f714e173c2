package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/clinicore/rtc-service/internal/domain/model"
)

// DB wraps the SQLite connection backing the durable entities: threads,
// messages, receipts and notifications. SQLite in WAL mode serializes
// writers, which is what gives the per-thread sequence and the receipt
// append-once their atomicity.
type DB struct {
	*sql.DB
	opTimeout time.Duration
}

// Open creates the connection with WAL mode and recommended pragmas.
// opTimeout bounds every storage call that arrives without a deadline.
func Open(path string, opTimeout time.Duration) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &DB{DB: db, opTimeout: opTimeout}, nil
}

// op ensures the context carries a deadline so no storage call can hang.
func (db *DB) op(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.opTimeout)
}

// storageErr maps driver failures onto the error taxonomy. Timeouts and
// lock contention surface as transient so callers can retry or report,
// never hang.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound(op)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return model.ErrTransientStorage(op, err)
	}

	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return model.ErrTransientStorage(op, err)
		case sqlite3.ErrConstraint:
			return model.WrapError(model.KindAlreadyExists, op, err)
		}
	}
	return model.ErrTransientStorage(op, err)
}

// isConstraint reports a uniqueness violation, used where a conflict has a
// defined meaning (duplicate reaction, concurrent direct-thread creation).
func isConstraint(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint
}
