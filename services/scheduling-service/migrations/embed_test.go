package migrations

import (
	"regexp"
	"slices"
	"testing"

	"github.com/agendoai/agendo/services/scheduling-service/internal/model"
)

var quoted = regexp.MustCompile(`'([a-z_]+)'`)

func quotedValues(t *testing.T, schema string, pattern string) []string {
	t.Helper()
	m := regexp.MustCompile(pattern).FindStringSubmatch(schema)
	if m == nil {
		t.Fatalf("pattern %q not found in schema", pattern)
	}
	var out []string
	for _, q := range quoted.FindAllStringSubmatch(m[1], -1) {
		out = append(out, q[1])
	}
	slices.Sort(out)
	return out
}

func TestAppointmentStatusConstraintsMatchModel(t *testing.T) {
	b, err := FS.ReadFile("000001_scheduling_schema.up.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	schema := string(b)

	var all, nonBlocking []string
	for _, st := range model.Statuses {
		all = append(all, string(st))
		if !st.Blocking() {
			nonBlocking = append(nonBlocking, string(st))
		}
	}
	slices.Sort(all)
	slices.Sort(nonBlocking)

	if got := quotedValues(t, schema, `appointments_status CHECK \(status IN \(([^)]*)\)\)`); !slices.Equal(got, all) {
		t.Fatalf("status CHECK allows %v, model has %v", got, all)
	}
	if got := quotedValues(t, schema, `WHERE \(status NOT IN \(([^)]*)\)\)`); !slices.Equal(got, nonBlocking) {
		t.Fatalf("exclusion predicate skips %v, model non-blocking is %v", got, nonBlocking)
	}
}

func TestDateWindowUniqueIndexIncludesAvailability(t *testing.T) {
	b, err := FS.ReadFile("000001_scheduling_schema.up.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	re := regexp.MustCompile(`availability_windows_date_unique\s+ON availability_windows \(([^)]*)\)`)
	m := re.FindSubmatch(b)
	if m == nil || !regexp.MustCompile(`\bis_available\b`).Match(m[1]) {
		t.Fatalf("unique date index must include is_available, got %q", m)
	}
}
