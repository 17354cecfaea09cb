// Package lock provides database advisory locks that keep two adoption runs
// from reconciling the same hosts at once.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/sqlutil"
)

// ErrLockTimeout is returned when lock acquisition times out because
// another instance is holding the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Common timeout values for lock acquisition (in seconds).
const (
	// TimeoutImmediate returns immediately if the lock cannot be acquired.
	TimeoutImmediate = 0

	// TimeoutShort is suitable for fast-failing duplicate run detection.
	TimeoutShort = 1

	// TimeoutMedium provides a reasonable wait for transient conflicts.
	TimeoutMedium = 10

	// TimeoutInfinite waits until the lock is acquired or ctx is done.
	TimeoutInfinite = -1
)

// DefaultPollInterval is how often Postgres acquisition retries
// pg_try_advisory_lock while waiting.
const DefaultPollInterval = 100 * time.Millisecond

// AdvisoryLock is a named, session-scoped database lock.
//
// MySQL uses GET_LOCK/RELEASE_LOCK and Postgres uses the
// pg_try_advisory_lock family keyed by hashtext(name). Both are bound to a
// session, so the lock pins one connection from the pool between acquire
// and release. SQLite has no advisory locks; the lock is tracked locally and
// the database file's own write lock serializes writers.
type AdvisoryLock struct {
	db           *sql.DB
	dialect      sqlutil.Dialect
	lockName     string
	conn         *sql.Conn
	held         bool
	pollInterval time.Duration
}

// NewAdvisoryLock creates an advisory lock with the given name.
// The lock is not acquired until AcquireLock is called.
func NewAdvisoryLock(db *sql.DB, dialect sqlutil.Dialect, lockName string) *AdvisoryLock {
	return &AdvisoryLock{
		db:           db,
		dialect:      dialect,
		lockName:     lockName,
		pollInterval: DefaultPollInterval,
	}
}

// SetPollInterval changes how often a waiting Postgres acquisition retries.
func (a *AdvisoryLock) SetPollInterval(d time.Duration) {
	if d > 0 {
		a.pollInterval = d
	}
}

// AcquireLock attempts to acquire the lock, waiting up to timeoutSeconds.
// It returns false without an error when the wait ran out.
//
// MySQL GET_LOCK() return values:
//   - 1: Lock was obtained successfully
//   - 0: Timeout was reached without obtaining the lock
//   - NULL: An error occurred (e.g., out of memory, thread killed)
func (a *AdvisoryLock) AcquireLock(ctx context.Context, timeoutSeconds int) (bool, error) {
	if a.held {
		return true, nil
	}

	if a.dialect == sqlutil.SQLite {
		a.held = true
		return true, nil
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reserve connection for lock %q: %w", a.lockName, err)
	}

	var acquired bool
	switch a.dialect {
	case sqlutil.Postgres:
		acquired, err = a.acquirePostgres(ctx, conn, timeoutSeconds)
	default:
		acquired, err = a.acquireMySQL(ctx, conn, timeoutSeconds)
	}
	if err != nil || !acquired {
		conn.Close()
		return false, err
	}

	a.conn = conn
	a.held = true
	return true, nil
}

func (a *AdvisoryLock) acquireMySQL(ctx context.Context, conn *sql.Conn, timeoutSeconds int) (bool, error) {
	var result sql.NullInt64
	err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", a.lockName, timeoutSeconds).Scan(&result)
	if err != nil {
		return false, fmt.Errorf("failed to execute GET_LOCK: %w", err)
	}

	if !result.Valid {
		return false, fmt.Errorf("GET_LOCK returned NULL for lock %q (possible database error)", a.lockName)
	}

	switch result.Int64 {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected GET_LOCK return value: %d", result.Int64)
	}
}

// acquirePostgres polls pg_try_advisory_lock since pg_advisory_lock has no
// timeout of its own.
func (a *AdvisoryLock) acquirePostgres(ctx context.Context, conn *sql.Conn, timeoutSeconds int) (bool, error) {
	var deadline time.Time
	if timeoutSeconds >= 0 {
		deadline = time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	}

	for {
		var ok bool
		err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", a.lockName).Scan(&ok)
		if err != nil {
			return false, fmt.Errorf("failed to execute pg_try_advisory_lock: %w", err)
		}
		if ok {
			return true, nil
		}
		if !deadline.IsZero() && !time.Now().Add(a.pollInterval).Before(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(a.pollInterval):
		}
	}
}

// ReleaseLock releases the lock and returns its pinned connection to the
// pool. It returns false when the lock was not held.
func (a *AdvisoryLock) ReleaseLock(ctx context.Context) (bool, error) {
	if !a.held {
		return false, nil
	}
	a.held = false

	if a.conn == nil {
		return true, nil
	}
	conn := a.conn
	a.conn = nil
	defer conn.Close()

	switch a.dialect {
	case sqlutil.Postgres:
		var ok bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock(hashtext($1))", a.lockName).Scan(&ok); err != nil {
			return false, fmt.Errorf("failed to execute pg_advisory_unlock: %w", err)
		}
		return ok, nil
	default:
		var result sql.NullInt64
		if err := conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", a.lockName).Scan(&result); err != nil {
			return false, fmt.Errorf("failed to execute RELEASE_LOCK: %w", err)
		}
		if !result.Valid {
			return false, fmt.Errorf("RELEASE_LOCK returned NULL for lock %q (lock did not exist)", a.lockName)
		}
		return result.Int64 == 1, nil
	}
}

// IsHeld returns true if this lock is currently held by this instance.
func (a *AdvisoryLock) IsHeld() bool {
	return a.held
}

// LockName returns the name of the advisory lock.
func (a *AdvisoryLock) LockName() string {
	return a.lockName
}

// TryAcquire attempts to acquire the lock without waiting.
func (a *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	return a.AcquireLock(ctx, TimeoutImmediate)
}

// AcquireOrFail acquires the lock with TimeoutShort and returns
// ErrLockTimeout if another instance is holding it.
func (a *AdvisoryLock) AcquireOrFail(ctx context.Context) error {
	acquired, err := a.AcquireLock(ctx, TimeoutShort)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}
	return nil
}

// GenerateRunLockName returns the lock name for an adoption scope.
// Lock names follow the format "embedadopt:{scope}" with anything outside
// [A-Za-z0-9_-] replaced by an underscore.
//
// Example: GenerateRunLockName("adopt") → "embedadopt:adopt"
func GenerateRunLockName(scope string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, scope)

	return fmt.Sprintf("embedadopt:%s", sanitized)
}

// NewRunLock creates an advisory lock for the given adoption scope.
func NewRunLock(db *sql.DB, dialect sqlutil.Dialect, scope string) *AdvisoryLock {
	return NewAdvisoryLock(db, dialect, GenerateRunLockName(scope))
}

// WithLock runs fn while holding the lock. The lock is released on every
// exit path, including a panic in fn.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeoutSeconds int, fn func() error) error {
	acquired, err := a.AcquireLock(ctx, timeoutSeconds)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}

	defer func() {
		// ctx may already be canceled here.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = a.ReleaseLock(releaseCtx)
	}()

	return fn()
}
