package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agendoai/agendo/services/scheduling-service/internal/apperr"
	"github.com/agendoai/agendo/services/scheduling-service/internal/outbox"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by the repositories.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the Postgres-backed availability, appointment and service store.
// Every write commits together with its outbox event.
type Store struct {
	db     DB
	outbox *outbox.Repository
	now    func() time.Time
}

func NewStore(db DB, outboxRepo *outbox.Repository) *Store {
	return &Store{db: db, outbox: outboxRepo, now: time.Now}
}

func (s *Store) inTx(ctx context.Context, op string, fn func(pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return classify(err, "%s: begin", op)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(err, "%s: commit", op)
	}
	return nil
}

func (s *Store) emit(ctx context.Context, tx pgx.Tx, evt outbox.Event, err error) error {
	if err != nil {
		return err
	}
	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return classify(err, "write %s event", evt.EventType)
	}
	return nil
}

const (
	sqlStateExclusionViolation = "23P01"
	sqlStateUniqueViolation    = "23505"
	sqlStateForeignKey         = "23503"
	sqlStateCheckViolation     = "23514"
)

// classify maps driver errors onto apperr kinds. Errors that already carry a kind pass through.
func classify(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{apperr.ErrNotFound, apperr.ErrValidation, apperr.ErrSlotConflict, apperr.ErrDataUnavailable} {
		if errors.Is(err, kind) {
			return err
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(format, args...)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateExclusionViolation:
			return apperr.SlotConflict(format, args...)
		case sqlStateUniqueViolation:
			return apperr.Validation("%s: duplicate entry", fmt.Sprintf(format, args...))
		case sqlStateForeignKey:
			return apperr.NotFound("%s: referenced record does not exist", fmt.Sprintf(format, args...))
		case sqlStateCheckViolation:
			return apperr.Validation("%s: %s", fmt.Sprintf(format, args...), pgErr.ConstraintName)
		}
	}
	return apperr.Unavailable(err, format, args...)
}

// minutes converts a nullable smallint/int column.
func minutes(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}

func int32p(v *int) *int32 {
	if v == nil {
		return nil
	}
	n := int32(*v)
	return &n
}
