package model

import (
	"encoding/json"
	"testing"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := map[string]TimeOfDay{
		"00:00":    0,
		"09:30":    570,
		"23:59":    1439,
		"24:00":    1440,
		"10:15:00": 615,
	}
	for in, want := range cases {
		got, err := ParseTimeOfDay(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: expected %d, got %d", in, want, got)
		}
	}
	for _, bad := range []string{"", "9:30", "24:01", "12:60", "10:15:30", "ab:cd", "10-15"} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestTimeOfDayJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		At TimeOfDay `json:"at"`
	}{At: NewTimeOfDay(9, 5)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"at":"09:05"}` {
		t.Fatalf("unexpected json %s", b)
	}
	var out struct {
		At TimeOfDay `json:"at"`
	}
	if err := json.Unmarshal([]byte(`{"at":"17:45"}`), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.At != NewTimeOfDay(17, 45) {
		t.Fatalf("unexpected value %s", out.At)
	}
}

func TestDateWeekday(t *testing.T) {
	d, err := ParseDate("2024-06-03")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Weekday() != 1 {
		t.Fatalf("expected Monday (1), got %d", d.Weekday())
	}
	if d.String() != "2024-06-03" {
		t.Fatalf("unexpected string %s", d)
	}
	if _, err := ParseDate("2024-02-30"); err == nil {
		t.Fatal("expected invalid calendar date to fail")
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"confirmado":     StatusConfirmed,
		"Confirmed":      StatusConfirmed,
		"cancelado":      StatusCanceled,
		"cancelled":      StatusCanceled,
		"no-show":        StatusNoShow,
		"não compareceu": StatusNoShow,
		"em_andamento":   StatusExecuting,
		"concluído":      StatusCompleted,
		" pending ":      StatusPending,
	}
	for in, want := range cases {
		got, err := ParseStatus(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: expected %s, got %s", in, want, got)
		}
	}
	if _, err := ParseStatus("archived"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestStatusBlocking(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusExecuting, StatusCompleted} {
		if !s.Blocking() {
			t.Fatalf("%s should block", s)
		}
	}
	for _, s := range []Status{StatusCanceled, StatusNoShow} {
		if s.Blocking() {
			t.Fatalf("%s should not block", s)
		}
	}
}
