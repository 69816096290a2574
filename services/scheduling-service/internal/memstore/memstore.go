// Package memstore is an in-memory Store used by tests and local runs without
// Postgres. It enforces the same constraints as the SQL schema.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agendoai/agendo/services/scheduling-service/internal/apperr"
	"github.com/agendoai/agendo/services/scheduling-service/internal/model"
	"github.com/agendoai/agendo/services/scheduling-service/internal/outbox"
)

type Store struct {
	mu           sync.RWMutex
	providers    map[int64]bool
	services     map[int64]model.Service
	windows      map[int64]model.AvailabilityWindow
	appointments map[int64]model.Appointment
	events       []outbox.Event
	nextID       int64

	// FailReads makes every read return ErrDataUnavailable.
	FailReads error
}

func New() *Store {
	return &Store{
		providers:    map[int64]bool{},
		services:     map[int64]model.Service{},
		windows:      map[int64]model.AvailabilityWindow{},
		appointments: map[int64]model.Appointment{},
	}
}

func (s *Store) AddProvider(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[id] = true
}

func (s *Store) AddService(svc model.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

// PutAppointment stores a as-is, bypassing overlap checks. Used to seed fixtures.
func (s *Store) PutAppointment(a model.Appointment) model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.id()
	}
	s.appointments[a.ID] = a
	return a
}

// Events returns the outbox events recorded so far.
func (s *Store) Events() []outbox.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]outbox.Event(nil), s.events...)
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) readErr(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return apperr.Unavailable(err, "%s", op)
	}
	if s.FailReads != nil {
		return apperr.Unavailable(s.FailReads, "%s", op)
	}
	return nil
}

func (s *Store) ProviderExists(ctx context.Context, providerID int64) (bool, error) {
	if err := s.readErr(ctx, "check provider"); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.providers[providerID], nil
}

func (s *Store) ListWindows(ctx context.Context, providerID int64, date model.Date) ([]model.AvailabilityWindow, error) {
	if err := s.readErr(ctx, "list windows"); err != nil {
		return nil, err
	}
	weekday := date.Weekday()
	return s.filterWindows(func(w model.AvailabilityWindow) bool {
		if w.ProviderID != providerID {
			return false
		}
		if w.Date != nil {
			return *w.Date == date
		}
		return w.DayOfWeek != nil && *w.DayOfWeek == weekday
	}), nil
}

func (s *Store) ListDateWindows(ctx context.Context, providerID int64, date model.Date) ([]model.AvailabilityWindow, error) {
	if err := s.readErr(ctx, "list date windows"); err != nil {
		return nil, err
	}
	return s.filterWindows(func(w model.AvailabilityWindow) bool {
		return w.ProviderID == providerID && w.Date != nil && *w.Date == date
	}), nil
}

func (s *Store) filterWindows(keep func(model.AvailabilityWindow) bool) []model.AvailabilityWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.AvailabilityWindow
	for _, w := range s.windows {
		if keep(w) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) ListAppointments(ctx context.Context, providerID int64, date model.Date) ([]model.Appointment, error) {
	if err := s.readErr(ctx, "list appointments"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Appointment
	for _, a := range s.appointments {
		if a.ProviderID == providerID && a.Date == date {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetService(ctx context.Context, providerID, serviceID int64) (model.Service, error) {
	if err := s.readErr(ctx, "get service"); err != nil {
		return model.Service{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[serviceID]
	if !ok || svc.ProviderID != providerID {
		return model.Service{}, apperr.NotFound("service %d for provider %d", serviceID, providerID)
	}
	return svc, nil
}

func (s *Store) AddDateWindows(ctx context.Context, providerID int64, date model.Date, ranges []model.TimeRange, isAvailable bool) ([]model.AvailabilityWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.providers[providerID] {
		return nil, apperr.NotFound("provider %d", providerID)
	}
	for i, r := range ranges {
		for _, w := range s.windows {
			if w.ProviderID == providerID && w.Date != nil && *w.Date == date &&
				w.StartTime == r.StartTime && w.EndTime == r.EndTime && w.IsAvailable == isAvailable {
				return nil, apperr.Validation("window %s-%s already exists on %s", r.StartTime, r.EndTime, date)
			}
		}
		for _, prev := range ranges[:i] {
			if prev == r {
				return nil, apperr.Validation("window %s-%s already exists on %s", r.StartTime, r.EndTime, date)
			}
		}
	}

	out := make([]model.AvailabilityWindow, 0, len(ranges))
	var events []outbox.Event
	for _, r := range ranges {
		d := date
		w := model.AvailabilityWindow{
			ID: s.id(), ProviderID: providerID, Date: &d,
			StartTime: r.StartTime, EndTime: r.EndTime, IsAvailable: isAvailable,
		}
		evt, err := outbox.WindowEvent(outbox.EventWindowAdded, w, time.Now())
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
		out = append(out, w)
	}
	for _, w := range out {
		s.windows[w.ID] = w
	}
	s.events = append(s.events, events...)
	return out, nil
}

func (s *Store) AddRecurringWindow(ctx context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.providers[w.ProviderID] {
		return model.AvailabilityWindow{}, apperr.NotFound("provider %d", w.ProviderID)
	}
	w.ID = s.id()
	w.Date = nil
	evt, err := outbox.WindowEvent(outbox.EventWindowAdded, w, time.Now())
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	s.windows[w.ID] = w
	s.events = append(s.events, evt)
	return w, nil
}

func (s *Store) RemoveWindow(ctx context.Context, providerID, windowID int64) (model.AvailabilityWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[windowID]
	if !ok || w.ProviderID != providerID {
		return model.AvailabilityWindow{}, apperr.NotFound("availability window %d", windowID)
	}
	evt, err := outbox.WindowEvent(outbox.EventWindowRemoved, w, time.Now())
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	delete(s.windows, windowID)
	s.events = append(s.events, evt)
	return w, nil
}

// CreateAppointment checks for overlap and inserts under one lock, mirroring the
// exclusion constraint of the SQL schema.
func (s *Store) CreateAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.providers[a.ProviderID] {
		return model.Appointment{}, apperr.NotFound("provider %d", a.ProviderID)
	}
	if a.Status.Blocking() {
		for _, other := range s.appointments {
			if other.ProviderID != a.ProviderID || other.Date != a.Date || !other.Status.Blocking() {
				continue
			}
			if a.StartTime < other.EndTime && other.StartTime < a.EndTime {
				return model.Appointment{}, apperr.SlotConflict("slot %s %s-%s is already booked", a.Date, a.StartTime, a.EndTime)
			}
		}
	}
	a.ID = s.id()
	evt, err := outbox.AppointmentEvent(outbox.EventAppointmentBooked, a, time.Now())
	if err != nil {
		return model.Appointment{}, err
	}
	s.appointments[a.ID] = a
	s.events = append(s.events, evt)
	return a, nil
}

func (s *Store) CancelAppointment(ctx context.Context, appointmentID int64) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[appointmentID]
	if !ok {
		return model.Appointment{}, apperr.NotFound("appointment %d", appointmentID)
	}
	if !a.Status.Blocking() || a.Status == model.StatusCompleted {
		return model.Appointment{}, apperr.Validation("appointment %d cannot be canceled from status %s", appointmentID, a.Status)
	}
	a.Status = model.StatusCanceled
	evt, err := outbox.AppointmentEvent(outbox.EventAppointmentCanceled, a, time.Now())
	if err != nil {
		return model.Appointment{}, err
	}
	s.appointments[a.ID] = a
	s.events = append(s.events, evt)
	return a, nil
}
