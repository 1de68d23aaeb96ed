package leave

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"timeoff/internal/platform/querier"
)

var postgresDialect = dialect{
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	like:        "ILIKE",
	date:        func(t time.Time) any { return CivilDate(t) },
}

// PostgresStore keeps requests and categories in postgres. Writers for one
// staff member are serialized with a transaction-scoped advisory lock; the
// exclusion constraint on time_off_requests backs the overlap rule up.
type PostgresStore struct {
	pgQueries
	DB querier.TxBeginner
}

func NewPostgresStore(db querier.TxBeginner) *PostgresStore {
	return &PostgresStore{pgQueries: pgQueries{q: db}, DB: db}
}

func (s *PostgresStore) WithinStaffTx(ctx context.Context, tenantID string, staffMemberID int64, fn func(q Queries) error) error {
	return s.withinTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", staffLockKey(tenantID, staffMemberID)); err != nil {
			return fmt.Errorf("lock staff member: %w", err)
		}
		return fn(pgQueries{q: tx})
	})
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(q Queries) error) error {
	return s.withinTx(ctx, func(tx pgx.Tx) error {
		return fn(pgQueries{q: tx})
	})
}

func (s *PostgresStore) withinTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.Warn("leave tx rollback failed", "err", rbErr)
		}
		return mapPgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// staffLockKey folds tenant and staff member into the single bigint key
// taken by pg_advisory_xact_lock.
func staffLockKey(tenantID string, staffMemberID int64) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tenantID))
	_, _ = h.Write([]byte{0})
	_, _ = fmt.Fprintf(h, "%d", staffMemberID)
	return int64(h.Sum64())
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23P01":
		return &OverlapError{}
	case "40001", "40P01":
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
	}
	return err
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
