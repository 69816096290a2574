package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agendoai/agendo/services/scheduling-service/internal/apperr"
	"github.com/agendoai/agendo/services/scheduling-service/internal/model"
	"github.com/agendoai/agendo/services/scheduling-service/internal/outbox"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
)

var (
	windowCols      = []string{"id", "provider_id", "day_of_week", "date", "start_minute", "end_minute", "is_available", "interval_minutes"}
	appointmentCols = []string{"id", "provider_id", "client_id", "service_id", "date", "start_minute", "end_minute", "status"}
)

func i32(v int32) *int32 { return &v }

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	s := NewStore(mock, outbox.NewRepository())
	s.now = func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) }
	return s, mock
}

func monday(t *testing.T) model.Date {
	t.Helper()
	d, err := model.ParseDate("2024-06-03")
	if err != nil {
		t.Fatalf("date: %v", err)
	}
	return d
}

func TestListWindowsScansRecurringAndOverride(t *testing.T) {
	s, mock := newMockStore(t)
	d := monday(t)
	day := d.Time()

	mock.ExpectQuery("FROM availability_windows").
		WithArgs(int64(1), day, int32(1)).
		WillReturnRows(mock.NewRows(windowCols).
			AddRow(int64(10), int64(1), i32(1), (*time.Time)(nil), int32(540), int32(720), true, i32(30)).
			AddRow(int64(11), int64(1), (*int32)(nil), &day, int32(0), int32(1439), false, (*int32)(nil)))

	got, err := s.ListWindows(context.Background(), 1, d)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(got))
	}
	if !got[0].Recurring() || *got[0].DayOfWeek != 1 || *got[0].IntervalMinutes != 30 {
		t.Fatalf("unexpected recurring window: %+v", got[0])
	}
	if got[1].Recurring() || *got[1].Date != d || got[1].IsAvailable {
		t.Fatalf("unexpected override window: %+v", got[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListWindowsQueryFailureIsUnavailable(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("FROM availability_windows").WillReturnError(errors.New("connection reset"))

	_, err := s.ListWindows(context.Background(), 1, monday(t))
	if !errors.Is(err, apperr.ErrDataUnavailable) {
		t.Fatalf("expected data unavailable, got %v", err)
	}
}

func TestAddDateWindowsCommitsWithOutbox(t *testing.T) {
	s, mock := newMockStore(t)
	d := monday(t)
	day := d.Time()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(1), day, int32(540), int32(600), true).
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO availability_windows").
		WithArgs(int64(1), day, int32(540), int32(600), true).
		WillReturnRows(mock.NewRows(windowCols).
			AddRow(int64(20), int64(1), (*int32)(nil), &day, int32(540), int32(600), true, (*int32)(nil)))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(pgxmock.AnyArg(), outbox.AggregateAvailabilityWindow, "20", outbox.EventWindowAdded,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	got, err := s.AddDateWindows(context.Background(), 1, d, []model.TimeRange{{StartTime: 540, EndTime: 600}}, true)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(got) != 1 || got[0].ID != 20 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAddDateWindowsRejectsDuplicateAndRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	d := monday(t)
	day := d.Time()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(1), day, int32(540), int32(600), true).
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO availability_windows").
		WithArgs(int64(1), day, int32(540), int32(600), true).
		WillReturnRows(mock.NewRows(windowCols).
			AddRow(int64(20), int64(1), (*int32)(nil), &day, int32(540), int32(600), true, (*int32)(nil)))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(pgxmock.AnyArg(), outbox.AggregateAvailabilityWindow, "20", outbox.EventWindowAdded,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(1), day, int32(600), int32(660), true).
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := s.AddDateWindows(context.Background(), 1, d, []model.TimeRange{
		{StartTime: 540, EndTime: 600},
		{StartTime: 600, EndTime: 660},
	}, true)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRemoveWindowMissingIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM availability_windows").
		WithArgs(int64(99), int64(1)).
		WillReturnRows(mock.NewRows(windowCols))
	mock.ExpectRollback()

	_, err := s.RemoveWindow(context.Background(), 1, 99)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateAppointmentExclusionViolationIsConflict(t *testing.T) {
	s, mock := newMockStore(t)
	d := monday(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(int64(1), int64(5), int64(3), d.Time(), int32(600), int32(630), "confirmed").
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"})
	mock.ExpectRollback()

	_, err := s.CreateAppointment(context.Background(), model.Appointment{
		ProviderID: 1, ClientID: 5, ServiceID: 3, Date: d, StartTime: 600, EndTime: 630, Status: model.StatusConfirmed,
	})
	if !errors.Is(err, apperr.ErrSlotConflict) {
		t.Fatalf("expected slot conflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListAppointmentsNormalizesStatus(t *testing.T) {
	s, mock := newMockStore(t)
	d := monday(t)

	mock.ExpectQuery("FROM appointments").
		WithArgs(int64(1), d.Time()).
		WillReturnRows(mock.NewRows(appointmentCols).
			AddRow(int64(1), int64(1), int64(5), int64(3), d.Time(), int32(600), int32(630), "confirmado").
			AddRow(int64(2), int64(1), int64(6), int64(3), d.Time(), int32(660), int32(690), "cancelado"))

	got, err := s.ListAppointments(context.Background(), 1, d)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got[0].Status != model.StatusConfirmed || got[1].Status != model.StatusCanceled {
		t.Fatalf("unexpected statuses: %s %s", got[0].Status, got[1].Status)
	}
}

func TestListAppointmentsUnknownStatusFailsClosed(t *testing.T) {
	s, mock := newMockStore(t)
	d := monday(t)

	mock.ExpectQuery("FROM appointments").
		WillReturnRows(mock.NewRows(appointmentCols).
			AddRow(int64(1), int64(1), int64(5), int64(3), d.Time(), int32(600), int32(630), "on_hold"))

	_, err := s.ListAppointments(context.Background(), 1, d)
	if !errors.Is(err, apperr.ErrDataUnavailable) {
		t.Fatalf("expected data unavailable, got %v", err)
	}
}

func TestCancelAppointment(t *testing.T) {
	s, mock := newMockStore(t)
	d := monday(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(7)).
		WillReturnRows(mock.NewRows(appointmentCols).
			AddRow(int64(7), int64(1), int64(5), int64(3), d.Time(), int32(600), int32(630), "pending"))
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(int64(7), "canceled").
		WillReturnRows(mock.NewRows(appointmentCols).
			AddRow(int64(7), int64(1), int64(5), int64(3), d.Time(), int32(600), int32(630), "canceled"))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(pgxmock.AnyArg(), outbox.AggregateAppointment, "7", outbox.EventAppointmentCanceled,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	got, err := s.CancelAppointment(context.Background(), 7)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != model.StatusCanceled {
		t.Fatalf("expected canceled, got %s", got.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCancelAlreadyCanceledIsValidation(t *testing.T) {
	s, mock := newMockStore(t)
	d := monday(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(7)).
		WillReturnRows(mock.NewRows(appointmentCols).
			AddRow(int64(7), int64(1), int64(5), int64(3), d.Time(), int32(600), int32(630), "canceled"))
	mock.ExpectRollback()

	_, err := s.CancelAppointment(context.Background(), 7)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetServiceNotLinkedIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("FROM services").
		WithArgs(int64(1), int64(42)).
		WillReturnRows(mock.NewRows([]string{"id", "provider_id", "duration_minutes", "price_cents"}))

	_, err := s.GetService(context.Background(), 1, 42)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProviderExists(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("FROM providers").
		WithArgs(int64(3)).
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.ProviderExists(context.Background(), 3)
	if err != nil || !ok {
		t.Fatalf("expected provider to exist, got %v err=%v", ok, err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{&pgconn.PgError{Code: "23505"}, apperr.ErrValidation},
		{&pgconn.PgError{Code: "23503"}, apperr.ErrNotFound},
		{&pgconn.PgError{Code: "23514", ConstraintName: "availability_windows_range"}, apperr.ErrValidation},
		{&pgconn.PgError{Code: "40001"}, apperr.ErrDataUnavailable},
		{context.Canceled, apperr.ErrDataUnavailable},
		{apperr.NotFound("x"), apperr.ErrNotFound},
	}
	for _, c := range cases {
		if got := classify(c.err, "op"); !errors.Is(got, c.want) {
			t.Fatalf("classify(%v) = %v, want kind %v", c.err, got, c.want)
		}
	}
}
