package feed

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "resvwatch/internal/log"
	"resvwatch/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// expandConfig controls how recurrence expansion is performed.
type expandConfig struct {
	// Location is the timezone every occurrence is converted to.
	Location *time.Location

	// RangeStart / RangeEnd bound the occurrences returned.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap on RRULE expansion.
	MaxOccurrencesPerEvent int
}

// expandEvents turns parsed VEVENTs into concrete reservations within the
// range. It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides
//   - All-day semantics
//
// A recurring instance gets the ID "<UID>_<original start>", so an
// override of that instance keeps the same ID.
func expandEvents(events []icsEvent, cfg expandConfig) ([]model.Reservation, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID. UID order is kept so the
	// output does not depend on map iteration.
	var uids []string
	baseByUID := make(map[string][]icsEvent)
	overridesByUID := make(map[string][]icsEvent)

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	out := make([]model.Reservation, 0)
	for _, uid := range uids {
		ov := overridesByUID[uid]
		for _, ev := range baseByUID[uid] {
			if ev.RawRRule == "" {
				out = append(out, expandSingleEvent(ev, ov, cfg)...)
				continue
			}
			occ, hitCap := expandRecurringEvent(ev, ov, cfg)
			if hitCap {
				appLog.Warn("expand: truncated occurrences for UID due to cap",
					"uid", uid,
					"cap", cfg.MaxOccurrencesPerEvent,
				)
			}
			out = append(out, occ...)
		}
	}
	return out, nil
}

func expandSingleEvent(ev icsEvent, overrides []icsEvent, cfg expandConfig) []model.Reservation {
	start, end := ev.Start, ev.End
	if o, ok := findOverrideForStart(overrides, start); ok {
		start, end = o.Start, o.End
		o.UID = ev.UID
		ev = o
	}
	if !timeRangesOverlap(start, end, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	return []model.Reservation{makeReservation(ev, ev.UID, start, end, cfg.Location)}
}

func expandRecurringEvent(ev icsEvent, overrides []icsEvent, cfg expandConfig) ([]model.Reservation, bool) {
	out := make([]model.Reservation, 0)
	hitCap := false

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// An instance that started before RangeStart may still be running.
	dur := ev.End.Sub(ev.Start)
	rangeStart := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())

	occTimes := set.Between(rangeStart, rangeEnd, true)
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, occStart := range occTimes {
		occEnd := occStart.Add(dur)
		id := instanceID(ev, occStart)

		start, end, src := occStart, occEnd, ev
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			start, end, src = o.Start, o.End, o
		}
		if !timeRangesOverlap(start, end, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, makeReservation(src, id, start, end, cfg.Location))
	}

	return out, hitCap
}

func instanceID(ev icsEvent, occStart time.Time) string {
	if ev.AllDay {
		return ev.UID + "_" + occStart.Format("20060102")
	}
	return ev.UID + "_" + occStart.UTC().Format("20060102T150405Z")
}

// findOverrideForStart finds an override whose RECURRENCE-ID is the same
// instant as baseStart.
func findOverrideForStart(overrides []icsEvent, baseStart time.Time) (icsEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(baseStart) {
			return ov, true
		}
	}
	return icsEvent{}, false
}

// makeReservation converts an event instance into loc. All-day instances
// become midnight-to-midnight in loc on the same calendar dates.
func makeReservation(ev icsEvent, id string, start, end time.Time, loc *time.Location) model.Reservation {
	if ev.AllDay {
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
	} else {
		start = start.In(loc)
		end = end.In(loc)
	}

	r := model.Reservation{
		ID:      id,
		Summary: ev.Summary,
		Start:   start,
		End:     end,
	}
	if !ev.Created.IsZero() {
		r.Created = ev.Created.In(loc)
	}
	if !ev.Updated.IsZero() {
		r.Updated = ev.Updated.In(loc)
	}
	return r
}

// timeRangesOverlap reports whether [aStart, aEnd) meets [bStart, bEnd).
// Zero-length events count at their start instant.
func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Equal(aStart) {
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
