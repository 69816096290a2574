package model

import (
	"fmt"
	"strings"
)

// Status is the closed set of appointment states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusNoShow    Status = "no_show"
)

// Statuses lists the canonical values, the only ones ever written to storage.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusExecuting, StatusCompleted, StatusCanceled, StatusNoShow}

// statusAliases maps normalized spellings (lowercase, '-' and ' ' folded to '_')
// seen in stored rows and client payloads.
var statusAliases = map[string]Status{
	"pending":   StatusPending,
	"pendente":  StatusPending,
	"scheduled": StatusPending,
	"agendado":  StatusPending,

	"confirmed":  StatusConfirmed,
	"confirmado": StatusConfirmed,
	"booked":     StatusConfirmed,

	"executing":    StatusExecuting,
	"in_progress":  StatusExecuting,
	"em_andamento": StatusExecuting,
	"executando":   StatusExecuting,
	"em_execucao":  StatusExecuting,
	"em_execução":  StatusExecuting,

	"completed":  StatusCompleted,
	"concluido":  StatusCompleted,
	"concluído":  StatusCompleted,
	"finalizado": StatusCompleted,

	"canceled":  StatusCanceled,
	"cancelled": StatusCanceled,
	"cancelado": StatusCanceled,

	"no_show":        StatusNoShow,
	"noshow":         StatusNoShow,
	"nao_compareceu": StatusNoShow,
	"não_compareceu": StatusNoShow,
	"ausente":        StatusNoShow,
}

// ParseStatus normalizes an English or Portuguese status string. Unknown values are
// rejected so they can never be treated as non-blocking by accident.
func ParseStatus(s string) (Status, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if st, ok := statusAliases[key]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

// Blocking reports whether an appointment in this state occupies its time range.
func (s Status) Blocking() bool {
	return s != StatusCanceled && s != StatusNoShow
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
