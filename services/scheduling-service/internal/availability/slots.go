// Package availability turns provider availability windows and existing
// appointments into the ordered slot list shown to clients. Everything here is
// pure: callers load the inputs and handle persistence.
package availability

import (
	"sort"

	"github.com/agendoai/agendo/services/scheduling-service/internal/apperr"
	"github.com/agendoai/agendo/services/scheduling-service/internal/model"
)

// Window is a merged, bookable interval of one day. Every part of it shares one
// slot interval.
type Window struct {
	Start model.TimeOfDay
	End   model.TimeOfDay
	// AvailabilityID is the stored window covering Start.
	AvailabilityID  *int64
	IntervalMinutes int

	// spans records which stored window supplied each part of [Start, End).
	spans []span
}

type span struct {
	start, end model.TimeOfDay
	id         *int64
}

// idAt returns the stored window covering minute t, falling back to AvailabilityID
// for windows built by hand.
func (w Window) idAt(t model.TimeOfDay) *int64 {
	for _, sp := range w.spans {
		if t >= sp.start && t < sp.end {
			return sp.id
		}
	}
	return w.AvailabilityID
}

func (w Window) trimmed(start, end model.TimeOfDay) Window {
	w.Start, w.End = start, end
	w.AvailabilityID = w.idAt(start)
	return w
}

// Resolve selects the windows that apply to date. Any date-specific window for the
// date, including a block, hides every recurring window for that weekday.
func Resolve(windows []model.AvailabilityWindow, date model.Date) []model.AvailabilityWindow {
	var overrides, recurring []model.AvailabilityWindow
	weekday := date.Weekday()
	for _, w := range windows {
		switch {
		case w.Date != nil:
			if *w.Date == date {
				overrides = append(overrides, w)
			}
		case w.DayOfWeek != nil && *w.DayOfWeek == weekday:
			recurring = append(recurring, w)
		}
	}
	out := recurring
	if len(overrides) > 0 {
		out = overrides
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Merge joins available windows that overlap or touch and subtracts blocked ones.
// Where available windows overlap, the earlier-starting one (then the lower id) owns
// the shared minutes. Neighboring runs with different intervals stay separate so each
// keeps its own grid. Windows with an empty or inverted range are ignored.
func Merge(windows []model.AvailabilityWindow) []Window {
	var open []model.AvailabilityWindow
	var blocks []Window
	for _, w := range windows {
		if w.StartTime >= w.EndTime {
			continue
		}
		if !w.IsAvailable {
			blocks = append(blocks, Window{Start: w.StartTime, End: w.EndTime})
			continue
		}
		open = append(open, w)
	}
	sort.SliceStable(open, func(i, j int) bool {
		if open[i].StartTime != open[j].StartTime {
			return open[i].StartTime < open[j].StartTime
		}
		return open[i].ID < open[j].ID
	})

	var claimed, covered []Window
	for _, w := range open {
		base := Window{Start: w.StartTime, End: w.EndTime}
		if w.ID != 0 {
			id := w.ID
			base.AvailabilityID = &id
		}
		if w.IntervalMinutes != nil {
			base.IntervalMinutes = *w.IntervalMinutes
		}
		base.spans = []span{{start: base.Start, end: base.End, id: base.AvailabilityID}}
		pieces := subtract(base, covered)
		if len(pieces) == 0 {
			continue
		}
		claimed = append(claimed, pieces...)
		covered = union(append(covered, pieces...))
	}

	blocked := union(blocks)
	var out []Window
	for _, run := range join(claimed) {
		out = append(out, subtract(run, blocked)...)
	}
	return out
}

// join concatenates disjoint pieces that touch and share an interval.
func join(pieces []Window) []Window {
	sorted := append([]Window(nil), pieces...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var runs []Window
	for _, p := range sorted {
		p.spans = []span{{start: p.Start, end: p.End, id: p.AvailabilityID}}
		if n := len(runs); n > 0 && runs[n-1].End == p.Start && runs[n-1].IntervalMinutes == p.IntervalMinutes {
			last := &runs[n-1]
			last.End = p.End
			last.spans = append(last.spans, p.spans...)
			continue
		}
		runs = append(runs, p)
	}
	return runs
}

// union collapses overlapping or touching ranges. Only Start and End are meaningful
// in the result.
func union(ws []Window) []Window {
	if len(ws) == 0 {
		return nil
	}
	sorted := append([]Window(nil), ws...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := make([]Window, 0, len(sorted))
	for _, cur := range sorted {
		if len(merged) == 0 {
			merged = append(merged, cur)
			continue
		}
		last := &merged[len(merged)-1]
		if cur.Start > last.End {
			merged = append(merged, cur)
			continue
		}
		if cur.End > last.End {
			last.End = cur.End
		}
	}
	return merged
}

// subtract removes sorted, non-overlapping blocks from base.
func subtract(base Window, blocks []Window) []Window {
	var out []Window
	cursor := base.Start
	for _, b := range blocks {
		if b.End <= cursor || b.Start >= base.End {
			continue
		}
		if b.Start > cursor {
			out = append(out, base.trimmed(cursor, b.Start))
		}
		if b.End > cursor {
			cursor = b.End
		}
		if cursor >= base.End {
			return out
		}
	}
	return append(out, base.trimmed(cursor, base.End))
}

// Generate emits fixed-length candidates of duration minutes, stepping by the
// window interval (or defaultInterval). Candidates never cross midnight. When
// interval < duration consecutive candidates overlap; conflict marking decides
// which ones are bookable.
func Generate(windows []Window, duration, defaultInterval int) ([]model.TimeSlot, error) {
	if duration <= 0 {
		return nil, apperr.Validation("service duration must be positive (got %d)", duration)
	}
	return generate(windows, defaultInterval, func(int) int { return duration })
}

// GenerateByInterval is Generate with the slot length equal to each window's interval,
// used when no service is selected.
func GenerateByInterval(windows []Window, defaultInterval int) ([]model.TimeSlot, error) {
	return generate(windows, defaultInterval, func(interval int) int { return interval })
}

func generate(windows []Window, defaultInterval int, length func(interval int) int) ([]model.TimeSlot, error) {
	if defaultInterval <= 0 {
		return nil, apperr.Validation("slot interval must be positive (got %d)", defaultInterval)
	}
	slots := make([]model.TimeSlot, 0)
	for _, w := range windows {
		interval := w.IntervalMinutes
		if interval <= 0 {
			interval = defaultInterval
		}
		dur := model.TimeOfDay(length(interval))
		end := min(w.End, model.TimeOfDay(model.MinutesPerDay))
		for cursor := w.Start; cursor+dur <= end; cursor += model.TimeOfDay(interval) {
			slots = append(slots, model.TimeSlot{
				StartTime:      cursor,
				EndTime:        cursor + dur,
				IsAvailable:    true,
				AvailabilityID: w.idAt(cursor),
			})
		}
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].StartTime < slots[j].StartTime })
	return slots, nil
}

// MarkConflicts flags every slot that overlaps a blocking appointment. All slots are kept.
func MarkConflicts(slots []model.TimeSlot, appointments []model.Appointment) []model.TimeSlot {
	out := make([]model.TimeSlot, len(slots))
	for i, s := range slots {
		s.IsAvailable = !overlapsAny(s.StartTime, s.EndTime, appointments)
		out[i] = s
	}
	return out
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect. Touching ends do not.
func Overlaps(aStart, aEnd, bStart, bEnd model.TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

func overlapsAny(start, end model.TimeOfDay, appointments []model.Appointment) bool {
	for _, a := range appointments {
		if !a.Status.Blocking() {
			continue
		}
		if Overlaps(start, end, a.StartTime, a.EndTime) {
			return true
		}
	}
	return false
}

// Slots runs the whole pipeline for one provider and date.
// duration 0 selects interval-length slots.
func Slots(windows []model.AvailabilityWindow, appointments []model.Appointment, date model.Date, duration, defaultInterval int) ([]model.TimeSlot, error) {
	merged := Merge(Resolve(windows, date))
	var (
		candidates []model.TimeSlot
		err        error
	)
	if duration != 0 {
		candidates, err = Generate(merged, duration, defaultInterval)
	} else {
		candidates, err = GenerateByInterval(merged, defaultInterval)
	}
	if err != nil {
		return nil, err
	}
	return MarkConflicts(candidates, appointments), nil
}
