// Package scheduling implements the slot query, availability editing and
// booking operations on top of a Store.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agendoai/agendo/services/scheduling-service/internal/apperr"
	"github.com/agendoai/agendo/services/scheduling-service/internal/availability"
	"github.com/agendoai/agendo/services/scheduling-service/internal/metrics"
	"github.com/agendoai/agendo/services/scheduling-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Store is implemented by storage.Store (Postgres) and memstore.Store.
type Store interface {
	ProviderExists(ctx context.Context, providerID int64) (bool, error)
	ListWindows(ctx context.Context, providerID int64, date model.Date) ([]model.AvailabilityWindow, error)
	ListDateWindows(ctx context.Context, providerID int64, date model.Date) ([]model.AvailabilityWindow, error)
	ListAppointments(ctx context.Context, providerID int64, date model.Date) ([]model.Appointment, error)
	GetService(ctx context.Context, providerID, serviceID int64) (model.Service, error)

	AddDateWindows(ctx context.Context, providerID int64, date model.Date, ranges []model.TimeRange, isAvailable bool) ([]model.AvailabilityWindow, error)
	AddRecurringWindow(ctx context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error)
	RemoveWindow(ctx context.Context, providerID, windowID int64) (model.AvailabilityWindow, error)
	CreateAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error)
	CancelAppointment(ctx context.Context, appointmentID int64) (model.Appointment, error)
}

type Config struct {
	// DefaultIntervalMinutes applies to windows without their own interval.
	DefaultIntervalMinutes int
}

type Service struct {
	store           Store
	metrics         *metrics.SchedulingMetrics
	logger          *slog.Logger
	tracer          trace.Tracer
	defaultInterval int
}

func NewService(store Store, m *metrics.SchedulingMetrics, logger *slog.Logger, cfg Config) *Service {
	if cfg.DefaultIntervalMinutes <= 0 {
		cfg.DefaultIntervalMinutes = 30
	}
	return &Service{
		store:           store,
		metrics:         m,
		logger:          logger,
		tracer:          otel.Tracer("scheduling-service/scheduling"),
		defaultInterval: cfg.DefaultIntervalMinutes,
	}
}

// GetAvailableSlots returns every candidate slot for the provider on date, marking
// the ones that overlap a blocking appointment. With serviceID nil the slot length
// is the window interval. The three store reads run concurrently; any failure
// fails the query.
func (s *Service) GetAvailableSlots(ctx context.Context, providerID int64, date model.Date, serviceID *int64) (slots []model.TimeSlot, err error) {
	ctx, done := s.start(ctx, "get_available_slots",
		attribute.Int64("provider.id", providerID),
		attribute.String("date", date.String()),
	)
	defer func() { done(err) }()

	if err := validateIDs(providerID); err != nil {
		return nil, err
	}
	if serviceID != nil {
		if err := validateIDs(*serviceID); err != nil {
			return nil, err
		}
	}

	var (
		exists  bool
		windows []model.AvailabilityWindow
		appts   []model.Appointment
		svc     model.Service
		svcErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		exists, err = s.store.ProviderExists(gctx, providerID)
		return err
	})
	g.Go(func() (err error) {
		windows, err = s.store.ListWindows(gctx, providerID, date)
		return err
	})
	g.Go(func() (err error) {
		appts, err = s.store.ListAppointments(gctx, providerID, date)
		return err
	})
	if serviceID != nil {
		g.Go(func() error {
			svc, svcErr = s.store.GetService(gctx, providerID, *serviceID)
			if errors.Is(svcErr, apperr.ErrNotFound) {
				// Reported after the provider check so an unknown provider wins.
				return nil
			}
			return svcErr
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("get available slots: %w", err)
	}
	if !exists {
		return nil, apperr.NotFound("provider %d", providerID)
	}
	if svcErr != nil {
		return nil, svcErr
	}

	duration := 0
	if serviceID != nil {
		if svc.Duration <= 0 {
			return nil, apperr.Validation("service %d has non-positive duration %d", svc.ID, svc.Duration)
		}
		duration = svc.Duration
	}

	slots, err = availability.Slots(windows, appts, date, duration, s.defaultInterval)
	if err != nil {
		return nil, err
	}

	free := 0
	for _, sl := range slots {
		if sl.IsAvailable {
			free++
		}
	}
	s.metrics.ObserveSlots(free, len(slots)-free)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("slots.total", len(slots)), attribute.Int("slots.available", free))
	return slots, nil
}

// ListAvailabilityWindows returns the date-specific windows of date.
func (s *Service) ListAvailabilityWindows(ctx context.Context, providerID int64, date model.Date) (windows []model.AvailabilityWindow, err error) {
	ctx, done := s.start(ctx, "list_availability_windows",
		attribute.Int64("provider.id", providerID),
		attribute.String("date", date.String()),
	)
	defer func() { done(err) }()

	if err := validateIDs(providerID); err != nil {
		return nil, err
	}

	var exists bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		exists, err = s.store.ProviderExists(gctx, providerID)
		return err
	})
	g.Go(func() (err error) {
		windows, err = s.store.ListDateWindows(gctx, providerID, date)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	if !exists {
		return nil, apperr.NotFound("provider %d", providerID)
	}
	if windows == nil {
		windows = []model.AvailabilityWindow{}
	}
	return windows, nil
}

// AddAvailabilityWindows adds date-specific windows as one atomic batch. An exact
// duplicate of an existing window (same range and isAvailable) or of another range in
// the batch is rejected. A block over an available range is not a duplicate.
func (s *Service) AddAvailabilityWindows(ctx context.Context, providerID int64, date model.Date, ranges []model.TimeRange, isAvailable bool) (windows []model.AvailabilityWindow, err error) {
	ctx, done := s.start(ctx, "add_availability_windows",
		attribute.Int64("provider.id", providerID),
		attribute.String("date", date.String()),
		attribute.Int("ranges", len(ranges)),
	)
	defer func() { done(err) }()

	if err := validateIDs(providerID); err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, apperr.Validation("date is required")
	}
	if len(ranges) == 0 {
		return nil, apperr.Validation("at least one time range is required")
	}
	seen := make(map[model.TimeRange]struct{}, len(ranges))
	for _, r := range ranges {
		if err := validateRange(r.StartTime, r.EndTime); err != nil {
			return nil, err
		}
		if _, dup := seen[r]; dup {
			return nil, apperr.Validation("window %s-%s is listed twice", r.StartTime, r.EndTime)
		}
		seen[r] = struct{}{}
	}
	if err := s.requireProvider(ctx, providerID); err != nil {
		return nil, err
	}

	windows, err = s.store.AddDateWindows(ctx, providerID, date, ranges, isAvailable)
	if err != nil {
		return nil, err
	}
	s.logger.Info("availability windows added", "provider_id", providerID, "date", date.String(), "count", len(windows), "is_available", isAvailable)
	return windows, nil
}

// AddRecurringWindow adds a weekly window (or weekly block when IsAvailable is false).
func (s *Service) AddRecurringWindow(ctx context.Context, w model.AvailabilityWindow) (created model.AvailabilityWindow, err error) {
	ctx, done := s.start(ctx, "add_recurring_window", attribute.Int64("provider.id", w.ProviderID))
	defer func() { done(err) }()

	if err := validateIDs(w.ProviderID); err != nil {
		return model.AvailabilityWindow{}, err
	}
	if w.DayOfWeek == nil || *w.DayOfWeek < 0 || *w.DayOfWeek > 6 {
		return model.AvailabilityWindow{}, apperr.Validation("dayOfWeek must be between 0 (Sunday) and 6")
	}
	if w.Date != nil {
		return model.AvailabilityWindow{}, apperr.Validation("recurring windows cannot have a date")
	}
	if err := validateRange(w.StartTime, w.EndTime); err != nil {
		return model.AvailabilityWindow{}, err
	}
	if w.IntervalMinutes != nil && (*w.IntervalMinutes <= 0 || *w.IntervalMinutes > model.MinutesPerDay) {
		return model.AvailabilityWindow{}, apperr.Validation("intervalMinutes must be between 1 and %d", model.MinutesPerDay)
	}
	if err := s.requireProvider(ctx, w.ProviderID); err != nil {
		return model.AvailabilityWindow{}, err
	}

	created, err = s.store.AddRecurringWindow(ctx, w)
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	s.logger.Info("recurring window added", "provider_id", w.ProviderID, "window_id", created.ID, "day_of_week", *created.DayOfWeek)
	return created, nil
}

// RemoveAvailabilityWindow deletes a window. Existing appointments are not touched.
func (s *Service) RemoveAvailabilityWindow(ctx context.Context, providerID, windowID int64) (err error) {
	ctx, done := s.start(ctx, "remove_availability_window",
		attribute.Int64("provider.id", providerID),
		attribute.Int64("window.id", windowID),
	)
	defer func() { done(err) }()

	if err := validateIDs(providerID, windowID); err != nil {
		return err
	}
	if _, err := s.store.RemoveWindow(ctx, providerID, windowID); err != nil {
		return err
	}
	s.logger.Info("availability window removed", "provider_id", providerID, "window_id", windowID)
	return nil
}

type BookingRequest struct {
	ProviderID int64
	ClientID   int64
	ServiceID  int64
	Date       model.Date
	StartTime  model.TimeOfDay
}

// BookAppointment books [StartTime, StartTime+duration). The slot must lie inside the
// provider's availability for the date; the store's conditional insert rejects a
// concurrent writer for an overlapping range with ErrSlotConflict.
func (s *Service) BookAppointment(ctx context.Context, req BookingRequest) (appt model.Appointment, err error) {
	ctx, done := s.start(ctx, "book_appointment",
		attribute.Int64("provider.id", req.ProviderID),
		attribute.Int64("service.id", req.ServiceID),
		attribute.String("date", req.Date.String()),
	)
	defer func() {
		s.metrics.ObserveBooking(bookingResult(err))
		done(err)
	}()

	if err := validateIDs(req.ProviderID, req.ClientID, req.ServiceID); err != nil {
		return model.Appointment{}, err
	}
	if !req.StartTime.Valid() {
		return model.Appointment{}, apperr.Validation("startTime out of range")
	}

	serviceID := req.ServiceID
	slots, err := s.GetAvailableSlots(ctx, req.ProviderID, req.Date, &serviceID)
	if err != nil {
		return model.Appointment{}, err
	}
	var slot *model.TimeSlot
	for i := range slots {
		if slots[i].StartTime == req.StartTime {
			slot = &slots[i]
			break
		}
	}
	if slot == nil {
		return model.Appointment{}, apperr.Validation("%s at %s is not an offered slot", req.Date, req.StartTime)
	}
	if !slot.IsAvailable {
		return model.Appointment{}, apperr.SlotConflict("slot %s %s-%s is already booked", req.Date, slot.StartTime, slot.EndTime)
	}

	appt, err = s.store.CreateAppointment(ctx, model.Appointment{
		ProviderID: req.ProviderID,
		ClientID:   req.ClientID,
		ServiceID:  req.ServiceID,
		Date:       req.Date,
		StartTime:  slot.StartTime,
		EndTime:    slot.EndTime,
		Status:     model.StatusPending,
	})
	if err != nil {
		return model.Appointment{}, err
	}
	s.logger.Info("appointment booked", "appointment_id", appt.ID, "provider_id", appt.ProviderID, "date", appt.Date.String(), "start", appt.StartTime.String())
	return appt, nil
}

func (s *Service) CancelAppointment(ctx context.Context, appointmentID int64) (appt model.Appointment, err error) {
	ctx, done := s.start(ctx, "cancel_appointment", attribute.Int64("appointment.id", appointmentID))
	defer func() { done(err) }()

	if err := validateIDs(appointmentID); err != nil {
		return model.Appointment{}, err
	}
	appt, err = s.store.CancelAppointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	s.logger.Info("appointment canceled", "appointment_id", appt.ID, "provider_id", appt.ProviderID)
	return appt, nil
}

func (s *Service) requireProvider(ctx context.Context, providerID int64) error {
	ok, err := s.store.ProviderExists(ctx, providerID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("provider %d", providerID)
	}
	return nil
}

// start opens a span and returns a func that records the outcome on it and in metrics.
func (s *Service) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	began := time.Now()
	ctx, span := s.tracer.Start(ctx, "scheduling."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		outcome := Outcome(err)
		if err != nil {
			span.SetAttributes(attribute.String("error.kind", outcome))
			if outcome == "unavailable" || outcome == "error" {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
		}
		span.End()
		s.metrics.ObserveOperation(op, outcome, time.Since(began).Seconds())
	}
}

// Outcome labels err by kind for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrValidation):
		return "validation"
	case errors.Is(err, apperr.ErrSlotConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrDataUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func bookingResult(err error) string {
	switch Outcome(err) {
	case "ok":
		return "booked"
	case "conflict":
		return "conflict"
	case "validation", "not_found":
		return "rejected"
	default:
		return "error"
	}
}

func validateIDs(ids ...int64) error {
	for _, id := range ids {
		if id <= 0 {
			return apperr.Validation("ids must be positive (got %d)", id)
		}
	}
	return nil
}

func validateRange(start, end model.TimeOfDay) error {
	if !start.Valid() || !end.Valid() {
		return apperr.Validation("time out of range")
	}
	if start >= end {
		return apperr.Validation("startTime %s must be before endTime %s", start, end)
	}
	return nil
}
