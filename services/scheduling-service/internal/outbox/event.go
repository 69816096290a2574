package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/agendoai/agendo/services/scheduling-service/internal/model"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (one topic per event type).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AggregateAvailabilityWindow = "availability_window"
	AggregateAppointment        = "appointment"

	EventWindowAdded         = "availability.window.added.v1"
	EventWindowRemoved       = "availability.window.removed.v1"
	EventAppointmentBooked   = "booking.appointment.booked.v1"
	EventAppointmentCanceled = "booking.appointment.canceled.v1"
)

type WindowPayload struct {
	WindowID    int64           `json:"windowId"`
	ProviderID  int64           `json:"providerId"`
	Date        *model.Date     `json:"date,omitempty"`
	DayOfWeek   *int            `json:"dayOfWeek,omitempty"`
	StartTime   model.TimeOfDay `json:"startTime"`
	EndTime     model.TimeOfDay `json:"endTime"`
	IsAvailable bool            `json:"isAvailable"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

type AppointmentPayload struct {
	AppointmentID int64           `json:"appointmentId"`
	ProviderID    int64           `json:"providerId"`
	ClientID      int64           `json:"clientId"`
	ServiceID     int64           `json:"serviceId"`
	Date          model.Date      `json:"date"`
	StartTime     model.TimeOfDay `json:"startTime"`
	EndTime       model.TimeOfDay `json:"endTime"`
	Status        model.Status    `json:"status"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

func WindowEvent(eventType string, w model.AvailabilityWindow, at time.Time) (Event, error) {
	return newEvent(AggregateAvailabilityWindow, w.ID, eventType, WindowPayload{
		WindowID:    w.ID,
		ProviderID:  w.ProviderID,
		Date:        w.Date,
		DayOfWeek:   w.DayOfWeek,
		StartTime:   w.StartTime,
		EndTime:     w.EndTime,
		IsAvailable: w.IsAvailable,
		OccurredAt:  at.UTC(),
	})
}

func AppointmentEvent(eventType string, a model.Appointment, at time.Time) (Event, error) {
	return newEvent(AggregateAppointment, a.ID, eventType, AppointmentPayload{
		AppointmentID: a.ID,
		ProviderID:    a.ProviderID,
		ClientID:      a.ClientID,
		ServiceID:     a.ServiceID,
		Date:          a.Date,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Status:        a.Status,
		OccurredAt:    at.UTC(),
	})
}

func newEvent(aggregateType string, id int64, eventType string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   fmt.Sprint(id),
		EventType:     eventType,
		Payload:       b,
	}, nil
}
