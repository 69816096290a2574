package storage

import (
	"context"
	"time"

	"github.com/agendoai/agendo/services/scheduling-service/internal/apperr"
	"github.com/agendoai/agendo/services/scheduling-service/internal/model"
	"github.com/agendoai/agendo/services/scheduling-service/internal/outbox"
	"github.com/jackc/pgx/v5"
)

const windowColumns = `id, provider_id, day_of_week, date, start_minute, end_minute, is_available, interval_minutes`

func scanWindow(row pgx.Row) (model.AvailabilityWindow, error) {
	var (
		w          model.AvailabilityWindow
		dow        *int32
		date       *time.Time
		start, end int32
		interval   *int32
	)
	if err := row.Scan(&w.ID, &w.ProviderID, &dow, &date, &start, &end, &w.IsAvailable, &interval); err != nil {
		return model.AvailabilityWindow{}, err
	}
	w.DayOfWeek = minutes(dow)
	if date != nil {
		d := model.DateOf(*date)
		w.Date = &d
	}
	w.StartTime = model.TimeOfDay(start)
	w.EndTime = model.TimeOfDay(end)
	w.IntervalMinutes = minutes(interval)
	return w, nil
}

func collectWindows(rows pgx.Rows) ([]model.AvailabilityWindow, error) {
	defer rows.Close()
	var out []model.AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) ProviderExists(ctx context.Context, providerID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM providers WHERE id = $1)`, providerID).Scan(&exists)
	if err != nil {
		return false, classify(err, "check provider %d", providerID)
	}
	return exists, nil
}

// ListWindows returns every window that could apply to date: overrides for the
// date plus recurring windows for its weekday. Precedence is applied by the caller.
func (s *Store) ListWindows(ctx context.Context, providerID int64, date model.Date) ([]model.AvailabilityWindow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE provider_id = $1
			AND (date = $2 OR (date IS NULL AND day_of_week = $3))
		ORDER BY start_minute, id
	`, providerID, date.Time(), int32(date.Weekday()))
	if err != nil {
		return nil, classify(err, "list windows for provider %d", providerID)
	}
	out, err := collectWindows(rows)
	if err != nil {
		return nil, classify(err, "list windows for provider %d", providerID)
	}
	return out, nil
}

// ListDateWindows returns only the date-specific windows of date.
func (s *Store) ListDateWindows(ctx context.Context, providerID int64, date model.Date) ([]model.AvailabilityWindow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE provider_id = $1 AND date = $2
		ORDER BY start_minute, id
	`, providerID, date.Time())
	if err != nil {
		return nil, classify(err, "list date windows for provider %d", providerID)
	}
	out, err := collectWindows(rows)
	if err != nil {
		return nil, classify(err, "list date windows for provider %d", providerID)
	}
	return out, nil
}

// AddDateWindows inserts all ranges in one transaction. A stored window with the same
// range and the same is_available flag on the date fails the whole batch.
func (s *Store) AddDateWindows(ctx context.Context, providerID int64, date model.Date, ranges []model.TimeRange, isAvailable bool) ([]model.AvailabilityWindow, error) {
	var out []model.AvailabilityWindow
	err := s.inTx(ctx, "add availability windows", func(tx pgx.Tx) error {
		for _, r := range ranges {
			var exists bool
			err := tx.QueryRow(ctx, `
				SELECT EXISTS (
					SELECT 1 FROM availability_windows
					WHERE provider_id = $1 AND date = $2 AND start_minute = $3 AND end_minute = $4
						AND is_available = $5
				)
			`, providerID, date.Time(), int32(r.StartTime), int32(r.EndTime), isAvailable).Scan(&exists)
			if err != nil {
				return classify(err, "check duplicate window")
			}
			if exists {
				return apperr.Validation("window %s-%s already exists on %s", r.StartTime, r.EndTime, date)
			}

			w, err := scanWindow(tx.QueryRow(ctx, `
				INSERT INTO availability_windows (provider_id, date, start_minute, end_minute, is_available)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING `+windowColumns,
				providerID, date.Time(), int32(r.StartTime), int32(r.EndTime), isAvailable))
			if err != nil {
				return classify(err, "insert window %s-%s", r.StartTime, r.EndTime)
			}
			evt, err := outbox.WindowEvent(outbox.EventWindowAdded, w, s.now())
			if err := s.emit(ctx, tx, evt, err); err != nil {
				return err
			}
			out = append(out, w)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) AddRecurringWindow(ctx context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error) {
	var created model.AvailabilityWindow
	err := s.inTx(ctx, "add recurring window", func(tx pgx.Tx) error {
		var err error
		created, err = scanWindow(tx.QueryRow(ctx, `
			INSERT INTO availability_windows (provider_id, day_of_week, start_minute, end_minute, is_available, interval_minutes)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+windowColumns,
			w.ProviderID, int32p(w.DayOfWeek), int32(w.StartTime), int32(w.EndTime), w.IsAvailable, int32p(w.IntervalMinutes)))
		if err != nil {
			return classify(err, "insert recurring window")
		}
		evt, err := outbox.WindowEvent(outbox.EventWindowAdded, created, s.now())
		return s.emit(ctx, tx, evt, err)
	})
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	return created, nil
}

// RemoveWindow deletes one window of the provider. Appointments are left untouched.
func (s *Store) RemoveWindow(ctx context.Context, providerID, windowID int64) (model.AvailabilityWindow, error) {
	var removed model.AvailabilityWindow
	err := s.inTx(ctx, "remove window", func(tx pgx.Tx) error {
		var err error
		removed, err = scanWindow(tx.QueryRow(ctx, `
			DELETE FROM availability_windows
			WHERE id = $1 AND provider_id = $2
			RETURNING `+windowColumns,
			windowID, providerID))
		if err != nil {
			return classify(err, "availability window %d", windowID)
		}
		evt, err := outbox.WindowEvent(outbox.EventWindowRemoved, removed, s.now())
		return s.emit(ctx, tx, evt, err)
	})
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	return removed, nil
}
