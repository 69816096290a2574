package scheduling

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/agendoai/agendo/services/scheduling-service/internal/apperr"
	"github.com/agendoai/agendo/services/scheduling-service/internal/memstore"
	"github.com/agendoai/agendo/services/scheduling-service/internal/model"
	"github.com/agendoai/agendo/services/scheduling-service/internal/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int       { return &v }
func int64p(v int64) *int64 { return &v }

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	require.NoError(t, err)
	return d
}

// newFixture seeds provider 1 with a Monday 09:00-12:00 window, a 30 minute
// service (10) and a 45 minute service (11).
func newFixture(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	store.AddProvider(1)
	store.AddService(model.Service{ID: 10, ProviderID: 1, Duration: 30})
	store.AddService(model.Service{ID: 11, ProviderID: 1, Duration: 45})
	store.AddService(model.Service{ID: 12, ProviderID: 2, Duration: 30})

	svc := NewService(store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{DefaultIntervalMinutes: 30})
	_, err := svc.AddRecurringWindow(context.Background(), model.AvailabilityWindow{
		ProviderID: 1, DayOfWeek: intp(1), StartTime: 540, EndTime: 720, IsAvailable: true, IntervalMinutes: intp(30),
	})
	require.NoError(t, err)
	return svc, store
}

func TestGetAvailableSlots(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()
	monday := mustDate(t, "2024-06-03")

	slots, err := svc.GetAvailableSlots(ctx, 1, monday, int64p(10))
	require.NoError(t, err)
	require.Len(t, slots, 6)

	store.PutAppointment(model.Appointment{ProviderID: 1, Date: monday, StartTime: 600, EndTime: 630, Status: model.StatusConfirmed})
	store.PutAppointment(model.Appointment{ProviderID: 1, Date: monday, StartTime: 660, EndTime: 690, Status: model.StatusCanceled})

	slots, err = svc.GetAvailableSlots(ctx, 1, monday, int64p(10))
	require.NoError(t, err)
	for _, s := range slots {
		assert.Equal(t, s.StartTime != 600, s.IsAvailable, "slot %s", s.StartTime)
	}

	again, err := svc.GetAvailableSlots(ctx, 1, monday, int64p(10))
	require.NoError(t, err)
	assert.Equal(t, slots, again)
}

func TestGetAvailableSlotsWithoutServiceUsesInterval(t *testing.T) {
	svc, _ := newFixture(t)
	slots, err := svc.GetAvailableSlots(context.Background(), 1, mustDate(t, "2024-06-03"), nil)
	require.NoError(t, err)
	require.Len(t, slots, 6)
	assert.Equal(t, model.TimeOfDay(570), slots[0].EndTime)
}

func TestGetAvailableSlotsNoAvailabilityIsEmpty(t *testing.T) {
	svc, _ := newFixture(t)
	slots, err := svc.GetAvailableSlots(context.Background(), 1, mustDate(t, "2024-06-04"), int64p(10))
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestGetAvailableSlotsErrors(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()
	monday := mustDate(t, "2024-06-03")

	_, err := svc.GetAvailableSlots(ctx, 99, monday, int64p(10))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.GetAvailableSlots(ctx, 1, monday, int64p(12))
	assert.ErrorIs(t, err, apperr.ErrNotFound, "service of another provider")

	_, err = svc.GetAvailableSlots(ctx, 0, monday, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	store.FailReads = errors.New("connection refused")
	slots, err := svc.GetAvailableSlots(ctx, 1, monday, int64p(10))
	assert.ErrorIs(t, err, apperr.ErrDataUnavailable)
	assert.Nil(t, slots)
}

func TestGetAvailableSlotsHonoursCancellation(t *testing.T) {
	svc, _ := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.GetAvailableSlots(ctx, 1, mustDate(t, "2024-06-03"), int64p(10))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDayOffOverride(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	monday := mustDate(t, "2024-06-03")

	_, err := svc.AddAvailabilityWindows(ctx, 1, monday, []model.TimeRange{{StartTime: 0, EndTime: 1439}}, false)
	require.NoError(t, err)

	slots, err := svc.GetAvailableSlots(ctx, 1, monday, int64p(10))
	require.NoError(t, err)
	assert.Empty(t, slots)

	// The following Monday still uses the recurring window.
	slots, err = svc.GetAvailableSlots(ctx, 1, mustDate(t, "2024-06-10"), int64p(10))
	require.NoError(t, err)
	assert.Len(t, slots, 6)
}

func TestAddListRemoveWindows(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()
	d := mustDate(t, "2024-06-05")

	added, err := svc.AddAvailabilityWindows(ctx, 1, d, []model.TimeRange{
		{StartTime: 840, EndTime: 900},
		{StartTime: 600, EndTime: 660},
	}, true)
	require.NoError(t, err)
	require.Len(t, added, 2)

	listed, err := svc.ListAvailabilityWindows(ctx, 1, d)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, model.TimeOfDay(600), listed[0].StartTime)

	_, err = svc.AddAvailabilityWindows(ctx, 1, d, []model.TimeRange{{StartTime: 600, EndTime: 660}}, true)
	assert.ErrorIs(t, err, apperr.ErrValidation, "exact duplicate")

	_, err = svc.AddAvailabilityWindows(ctx, 1, d, []model.TimeRange{{StartTime: 700, EndTime: 700}}, true)
	assert.ErrorIs(t, err, apperr.ErrValidation, "empty range")

	_, err = svc.AddAvailabilityWindows(ctx, 99, d, []model.TimeRange{{StartTime: 600, EndTime: 660}}, true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, svc.RemoveAvailabilityWindow(ctx, 1, added[0].ID))
	assert.ErrorIs(t, svc.RemoveAvailabilityWindow(ctx, 1, added[0].ID), apperr.ErrNotFound)

	listed, err = svc.ListAvailabilityWindows(ctx, 1, d)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	var types []string
	for _, e := range store.Events() {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{
		outbox.EventWindowAdded, outbox.EventWindowAdded, outbox.EventWindowAdded, outbox.EventWindowRemoved,
	}, types)
}

func TestBlockOverAvailableRangeIsNotDuplicate(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	d := mustDate(t, "2024-06-05")

	_, err := svc.AddAvailabilityWindows(ctx, 1, d, []model.TimeRange{{StartTime: 600, EndTime: 660}}, true)
	require.NoError(t, err)
	_, err = svc.AddAvailabilityWindows(ctx, 1, d, []model.TimeRange{{StartTime: 600, EndTime: 660}}, false)
	require.NoError(t, err, "block with the same range")

	slots, err := svc.GetAvailableSlots(ctx, 1, d, nil)
	require.NoError(t, err)
	assert.Empty(t, slots)

	_, err = svc.AddAvailabilityWindows(ctx, 1, d, []model.TimeRange{{StartTime: 600, EndTime: 660}}, false)
	assert.ErrorIs(t, err, apperr.ErrValidation, "same block twice")
}

func TestAddRecurringWindowValidation(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	_, err := svc.AddRecurringWindow(ctx, model.AvailabilityWindow{ProviderID: 1, DayOfWeek: intp(7), StartTime: 540, EndTime: 600, IsAvailable: true})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.AddRecurringWindow(ctx, model.AvailabilityWindow{ProviderID: 1, DayOfWeek: intp(2), StartTime: 540, EndTime: 600, IntervalMinutes: intp(0)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRemovingWindowKeepsAppointments(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()
	d := mustDate(t, "2024-06-05")

	added, err := svc.AddAvailabilityWindows(ctx, 1, d, []model.TimeRange{{StartTime: 600, EndTime: 660}}, true)
	require.NoError(t, err)
	appt, err := svc.BookAppointment(ctx, BookingRequest{ProviderID: 1, ClientID: 5, ServiceID: 10, Date: d, StartTime: 600})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveAvailabilityWindow(ctx, 1, added[0].ID))
	appts, err := store.ListAppointments(ctx, 1, d)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, appt.ID, appts[0].ID)
	assert.Equal(t, model.StatusPending, appts[0].Status)
}

func TestBookAppointment(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	monday := mustDate(t, "2024-06-03")

	appt, err := svc.BookAppointment(ctx, BookingRequest{ProviderID: 1, ClientID: 5, ServiceID: 11, Date: monday, StartTime: 540})
	require.NoError(t, err)
	assert.Equal(t, model.TimeOfDay(585), appt.EndTime)

	_, err = svc.BookAppointment(ctx, BookingRequest{ProviderID: 1, ClientID: 6, ServiceID: 10, Date: monday, StartTime: 570})
	assert.ErrorIs(t, err, apperr.ErrSlotConflict, "09:30 overlaps the 09:00-09:45 booking")

	_, err = svc.BookAppointment(ctx, BookingRequest{ProviderID: 1, ClientID: 6, ServiceID: 10, Date: monday, StartTime: 555})
	assert.ErrorIs(t, err, apperr.ErrValidation, "off-grid start")

	_, err = svc.BookAppointment(ctx, BookingRequest{ProviderID: 1, ClientID: 6, ServiceID: 10, Date: mustDate(t, "2024-06-04"), StartTime: 540})
	assert.ErrorIs(t, err, apperr.ErrValidation, "no availability on Tuesday")

	canceled, err := svc.CancelAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, canceled.Status)

	_, err = svc.BookAppointment(ctx, BookingRequest{ProviderID: 1, ClientID: 6, ServiceID: 10, Date: monday, StartTime: 570})
	assert.NoError(t, err, "slot freed by cancellation")

	_, err = svc.CancelAppointment(ctx, 12345)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConcurrentBookingSameSlot(t *testing.T) {
	svc, _ := newFixture(t)
	monday := mustDate(t, "2024-06-03")

	const clients = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		booked    int
		conflicts int
	)
	for i := 1; i <= clients; i++ {
		wg.Add(1)
		go func(client int64) {
			defer wg.Done()
			_, err := svc.BookAppointment(context.Background(), BookingRequest{
				ProviderID: 1, ClientID: client, ServiceID: 10, Date: monday, StartTime: 600,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked++
			case errors.Is(err, apperr.ErrSlotConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 1, booked)
	assert.Equal(t, clients-1, conflicts)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "conflict", Outcome(apperr.SlotConflict("x")))
	assert.Equal(t, "unavailable", Outcome(apperr.Unavailable(errors.New("x"), "y")))
	assert.Equal(t, "error", Outcome(errors.New("x")))
}
