package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/agendoai/agendo/services/scheduling-service/internal/apperr"
	"github.com/agendoai/agendo/services/scheduling-service/internal/model"
	"github.com/agendoai/agendo/services/scheduling-service/internal/scheduling"
	"github.com/go-playground/validator/v10"
)

type SchedulingService interface {
	GetAvailableSlots(ctx context.Context, providerID int64, date model.Date, serviceID *int64) ([]model.TimeSlot, error)
	ListAvailabilityWindows(ctx context.Context, providerID int64, date model.Date) ([]model.AvailabilityWindow, error)
	AddAvailabilityWindows(ctx context.Context, providerID int64, date model.Date, ranges []model.TimeRange, isAvailable bool) ([]model.AvailabilityWindow, error)
	AddRecurringWindow(ctx context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error)
	RemoveAvailabilityWindow(ctx context.Context, providerID, windowID int64) error
	BookAppointment(ctx context.Context, req scheduling.BookingRequest) (model.Appointment, error)
	CancelAppointment(ctx context.Context, appointmentID int64) (model.Appointment, error)
}

type SchedulingHandler struct {
	svc      SchedulingService
	logger   *slog.Logger
	validate *validator.Validate
}

func NewSchedulingHandler(svc SchedulingService, logger *slog.Logger) *SchedulingHandler {
	return &SchedulingHandler{svc: svc, logger: logger, validate: newValidator()}
}

type slotItem struct {
	StartTime      model.TimeOfDay `json:"startTime"`
	EndTime        model.TimeOfDay `json:"endTime"`
	IsAvailable    bool            `json:"isAvailable"`
	AvailabilityID *int64          `json:"availabilityId,omitempty"`
}

type windowItem struct {
	ID              int64           `json:"id"`
	StartTime       model.TimeOfDay `json:"startTime"`
	EndTime         model.TimeOfDay `json:"endTime"`
	IsAvailable     bool            `json:"isAvailable"`
	Date            *model.Date     `json:"date,omitempty"`
	DayOfWeek       *int            `json:"dayOfWeek,omitempty"`
	IntervalMinutes *int            `json:"intervalMinutes,omitempty"`
}

type timeRangeRequest struct {
	StartTime string `json:"startTime" validate:"required,hhmm"`
	EndTime   string `json:"endTime" validate:"required,hhmm"`
}

type addWindowsRequest struct {
	Date  string             `json:"date" validate:"required,isodate"`
	Slots []timeRangeRequest `json:"slots" validate:"required,min=1,max=96,dive"`
	// IsAvailable defaults to true; false records a block (day off, vacation).
	IsAvailable *bool `json:"isAvailable"`
}

type addRecurringRequest struct {
	DayOfWeek       *int   `json:"dayOfWeek" validate:"required,gte=0,lte=6"`
	StartTime       string `json:"startTime" validate:"required,hhmm"`
	EndTime         string `json:"endTime" validate:"required,hhmm"`
	IsAvailable     *bool  `json:"isAvailable"`
	IntervalMinutes *int   `json:"intervalMinutes" validate:"omitempty,gte=1,lte=1440"`
}

type bookRequest struct {
	ClientID  int64  `json:"clientId" validate:"required,gte=1"`
	ServiceID int64  `json:"serviceId" validate:"required,gte=1"`
	Date      string `json:"date" validate:"required,isodate"`
	StartTime string `json:"startTime" validate:"required,hhmm"`
}

type appointmentItem struct {
	ID         int64           `json:"id"`
	ProviderID int64           `json:"providerId"`
	ClientID   int64           `json:"clientId"`
	ServiceID  int64           `json:"serviceId"`
	Date       model.Date      `json:"date"`
	StartTime  model.TimeOfDay `json:"startTime"`
	EndTime    model.TimeOfDay `json:"endTime"`
	Status     model.Status    `json:"status"`
}

func toWindowItems(ws []model.AvailabilityWindow) []windowItem {
	out := make([]windowItem, 0, len(ws))
	for _, w := range ws {
		out = append(out, toWindowItem(w))
	}
	return out
}

func toWindowItem(w model.AvailabilityWindow) windowItem {
	return windowItem{
		ID:              w.ID,
		StartTime:       w.StartTime,
		EndTime:         w.EndTime,
		IsAvailable:     w.IsAvailable,
		Date:            w.Date,
		DayOfWeek:       w.DayOfWeek,
		IntervalMinutes: w.IntervalMinutes,
	}
}

func toAppointmentItem(a model.Appointment) appointmentItem {
	return appointmentItem{
		ID:         a.ID,
		ProviderID: a.ProviderID,
		ClientID:   a.ClientID,
		ServiceID:  a.ServiceID,
		Date:       a.Date,
		StartTime:  a.StartTime,
		EndTime:    a.EndTime,
		Status:     a.Status,
	}
}

func queryDate(r *http.Request) (model.Date, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return model.Date{}, apperr.Validation("date query parameter is required")
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return model.Date{}, apperr.Validation("%s", err.Error())
	}
	return d, nil
}

// TimeSlots handles GET /providers/{providerID}/time-slots?date=YYYY-MM-DD[&serviceId=N].
func (h *SchedulingHandler) TimeSlots(w http.ResponseWriter, r *http.Request) {
	providerID, err := pathID(r, "providerID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	date, err := queryDate(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var serviceID *int64
	if raw := r.URL.Query().Get("serviceId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			badRequest(w, r, "serviceId must be a positive integer")
			return
		}
		serviceID = &id
	}

	slots, err := h.svc.GetAvailableSlots(r.Context(), providerID, date, serviceID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotItem{
			StartTime:      s.StartTime,
			EndTime:        s.EndTime,
			IsAvailable:    s.IsAvailable,
			AvailabilityID: s.AvailabilityID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// ListWindows handles GET /provider/{providerID}/availability?date=YYYY-MM-DD.
func (h *SchedulingHandler) ListWindows(w http.ResponseWriter, r *http.Request) {
	providerID, err := pathID(r, "providerID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	date, err := queryDate(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	windows, err := h.svc.ListAvailabilityWindows(r.Context(), providerID, date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toWindowItems(windows))
}

// AddWindows handles POST /provider/{providerID}/availability.
func (h *SchedulingHandler) AddWindows(w http.ResponseWriter, r *http.Request) {
	providerID, err := pathID(r, "providerID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req addWindowsRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	date, _ := model.ParseDate(req.Date)
	ranges := make([]model.TimeRange, 0, len(req.Slots))
	for _, s := range req.Slots {
		start, _ := model.ParseTimeOfDay(s.StartTime)
		end, _ := model.ParseTimeOfDay(s.EndTime)
		ranges = append(ranges, model.TimeRange{StartTime: start, EndTime: end})
	}
	isAvailable := req.IsAvailable == nil || *req.IsAvailable

	windows, err := h.svc.AddAvailabilityWindows(r.Context(), providerID, date, ranges, isAvailable)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWindowItems(windows))
}

// AddRecurring handles POST /provider/{providerID}/availability/recurring.
func (h *SchedulingHandler) AddRecurring(w http.ResponseWriter, r *http.Request) {
	providerID, err := pathID(r, "providerID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req addRecurringRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	start, _ := model.ParseTimeOfDay(req.StartTime)
	end, _ := model.ParseTimeOfDay(req.EndTime)

	created, err := h.svc.AddRecurringWindow(r.Context(), model.AvailabilityWindow{
		ProviderID:      providerID,
		DayOfWeek:       req.DayOfWeek,
		StartTime:       start,
		EndTime:         end,
		IsAvailable:     req.IsAvailable == nil || *req.IsAvailable,
		IntervalMinutes: req.IntervalMinutes,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWindowItem(created))
}

// RemoveWindow handles DELETE /provider/{providerID}/availability/{availabilityID}.
func (h *SchedulingHandler) RemoveWindow(w http.ResponseWriter, r *http.Request) {
	providerID, err := pathID(r, "providerID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	windowID, err := pathID(r, "availabilityID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.RemoveAvailabilityWindow(r.Context(), providerID, windowID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Book handles POST /providers/{providerID}/appointments.
func (h *SchedulingHandler) Book(w http.ResponseWriter, r *http.Request) {
	providerID, err := pathID(r, "providerID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req bookRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	date, _ := model.ParseDate(req.Date)
	start, _ := model.ParseTimeOfDay(req.StartTime)

	appt, err := h.svc.BookAppointment(r.Context(), scheduling.BookingRequest{
		ProviderID: providerID,
		ClientID:   req.ClientID,
		ServiceID:  req.ServiceID,
		Date:       date,
		StartTime:  start,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentItem(appt))
}

// Cancel handles POST /appointments/{appointmentID}/cancel.
func (h *SchedulingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := pathID(r, "appointmentID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	appt, err := h.svc.CancelAppointment(r.Context(), appointmentID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}
