package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/agendoai/agendo/libs/httpx"
	"github.com/agendoai/agendo/services/scheduling-service/internal/apperr"
	"github.com/agendoai/agendo/services/scheduling-service/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperr.ErrSlotConflict):
		return http.StatusConflict, "slot_conflict"
	case errors.Is(err, apperr.ErrDataUnavailable):
		return http.StatusServiceUnavailable, "data_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := StatusFor(err)
	msg := apperr.Message(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"err", err,
		)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		} else {
			msg = "temporarily unavailable, try again"
			w.Header().Set("Retry-After", "1")
		}
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code, RequestID: httpx.RequestIDFromContext(r.Context())})
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error: msg, Code: "validation_error", RequestID: httpx.RequestIDFromContext(r.Context()),
	})
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("%s must be a positive integer (got %q)", name, raw)
	}
	return id, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := model.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := model.ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

var validationMessages = map[string]string{
	"required": "is required",
	"min":      "must be at least %s",
	"max":      "must be at most %s",
	"gte":      "must be greater than or equal to %s",
	"lte":      "must be less than or equal to %s",
	"hhmm":     "must be a time in HH:MM format",
	"isodate":  "must be a date in YYYY-MM-DD format",
}

// firstValidationError renders the first failing field as "<field> <message>".
func firstValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	msg, ok := validationMessages[fe.Tag()]
	if !ok {
		msg = "is invalid"
	}
	if strings.Contains(msg, "%s") {
		msg = strings.Replace(msg, "%s", fe.Param(), 1)
	}
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	return field + " " + msg
}

// decode reads a JSON body into dst and runs struct validation.
func decode(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large", Code: "too_large"})
			return false
		}
		badRequest(w, r, "invalid json body")
		return false
	}
	if err := v.Struct(dst); err != nil {
		badRequest(w, r, firstValidationError(err))
		return false
	}
	return true
}
