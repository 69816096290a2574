package storage

import (
	"context"
	"time"

	"github.com/agendoai/agendo/services/scheduling-service/internal/apperr"
	"github.com/agendoai/agendo/services/scheduling-service/internal/model"
	"github.com/agendoai/agendo/services/scheduling-service/internal/outbox"
	"github.com/jackc/pgx/v5"
)

const appointmentColumns = `id, provider_id, client_id, service_id, date, start_minute, end_minute, status`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a          model.Appointment
		date       time.Time
		start, end int32
		status     string
	)
	if err := row.Scan(&a.ID, &a.ProviderID, &a.ClientID, &a.ServiceID, &date, &start, &end, &status); err != nil {
		return model.Appointment{}, err
	}
	st, err := model.ParseStatus(status)
	if err != nil {
		// Fail closed: an unreadable status must not be treated as free time.
		return model.Appointment{}, apperr.Unavailable(err, "appointment %d", a.ID)
	}
	a.Date = model.DateOf(date)
	a.StartTime = model.TimeOfDay(start)
	a.EndTime = model.TimeOfDay(end)
	a.Status = st
	return a, nil
}

// ListAppointments returns the provider's appointments on date in every status;
// blocking is decided from the normalized status.
func (s *Store) ListAppointments(ctx context.Context, providerID int64, date model.Date) ([]model.Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1 AND date = $2
		ORDER BY start_minute, id
	`, providerID, date.Time())
	if err != nil {
		return nil, classify(err, "list appointments for provider %d", providerID)
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, classify(err, "list appointments for provider %d", providerID)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list appointments for provider %d", providerID)
	}
	return out, nil
}

// CreateAppointment is the conditional write that prevents double booking: the
// appointments_no_overlap exclusion constraint rejects the losing writer.
func (s *Store) CreateAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	var created model.Appointment
	err := s.inTx(ctx, "create appointment", func(tx pgx.Tx) error {
		var err error
		created, err = scanAppointment(tx.QueryRow(ctx, `
			INSERT INTO appointments (provider_id, client_id, service_id, date, start_minute, end_minute, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+appointmentColumns,
			a.ProviderID, a.ClientID, a.ServiceID, a.Date.Time(), int32(a.StartTime), int32(a.EndTime), string(a.Status)))
		if err != nil {
			return classify(err, "slot %s %s-%s is already booked", a.Date, a.StartTime, a.EndTime)
		}
		evt, err := outbox.AppointmentEvent(outbox.EventAppointmentBooked, created, s.now())
		return s.emit(ctx, tx, evt, err)
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return created, nil
}

// CancelAppointment frees the slot of a blocking appointment.
func (s *Store) CancelAppointment(ctx context.Context, appointmentID int64) (model.Appointment, error) {
	var canceled model.Appointment
	err := s.inTx(ctx, "cancel appointment", func(tx pgx.Tx) error {
		current, err := scanAppointment(tx.QueryRow(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE id = $1
			FOR UPDATE
		`, appointmentID))
		if err != nil {
			return classify(err, "appointment %d", appointmentID)
		}
		if !current.Status.Blocking() || current.Status == model.StatusCompleted {
			return apperr.Validation("appointment %d cannot be canceled from status %s", appointmentID, current.Status)
		}

		canceled, err = scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+appointmentColumns,
			appointmentID, string(model.StatusCanceled)))
		if err != nil {
			return classify(err, "cancel appointment %d", appointmentID)
		}
		evt, err := outbox.AppointmentEvent(outbox.EventAppointmentCanceled, canceled, s.now())
		return s.emit(ctx, tx, evt, err)
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return canceled, nil
}
