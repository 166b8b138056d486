package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "resvwatch/internal/log"
	"resvwatch/internal/model"
)

// ICS fetches a raw iCalendar subscription URL and expands it locally.
// Feeds that already publish expanded instances should use Google instead.
type ICS struct {
	URL    string
	Client *http.Client
	// MaxOccurrencesPerEvent caps RRULE expansion. Zero means
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// NewICS constructs an ICS fetcher. A nil client gets DefaultTimeout.
func NewICS(feedURL string, client *http.Client) *ICS {
	return &ICS{
		URL:    feedURL,
		Client: newClient(client),
	}
}

// Fetch downloads, parses and expands the feed into reservations within w.
func (f *ICS) Fetch(ctx context.Context, w Window) ([]model.Reservation, error) {
	body, err := get(ctx, newClient(f.Client), f.URL, http.Header{"Accept": {"text/calendar"}})
	if err != nil {
		return nil, err
	}

	events, err := parseICS(body, w.Location())
	if err != nil {
		return nil, fmt.Errorf("feed: ics: %w", err)
	}

	res, err := expandEvents(events, expandConfig{
		Location:               w.Location(),
		RangeStart:             w.Start,
		RangeEnd:               w.End,
		MaxOccurrencesPerEvent: f.MaxOccurrencesPerEvent,
	})
	if err != nil {
		return nil, fmt.Errorf("feed: ics: %w", err)
	}

	appLog.Info("ics feed fetched", "url", redactURL(f.URL), "events", len(events), "reservations", len(res))
	return res, nil
}

// icsEvent is a VEVENT before recurrence expansion.
type icsEvent struct {
	UID     string
	Summary string

	Created time.Time
	Updated time.Time

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present)
	IsOverride bool
}

// parseICS parses a single ICS payload. Floating and date-only values are
// read in loc. Events that fail to parse are logged and skipped; a payload
// that is not iCalendar at all is an error.
func parseICS(body []byte, loc *time.Location) ([]icsEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	events := make([]icsEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp, loc)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "err", perr)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (icsEvent, error) {
	var out icsEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	// DTSTAMP is ignored: feeds regenerate it on every request.
	out.Created = propTime(ve, ical.ComponentPropertyCreated, loc)
	out.Updated = propTime(ve, ical.ComponentPropertyLastModified, loc)

	start, err := propTimeValue(ve, ical.ComponentPropertyDtStart, loc)
	if err != nil {
		return out, fmt.Errorf("uid %s: DTSTART: %w", out.UID, err)
	}
	end, err := propTimeValue(ve, ical.ComponentPropertyDtEnd, loc)
	if err != nil {
		// DTEND is optional; a missing one means a zero-length event.
		end = start
	}
	out.Start = start
	out.End = end

	// VALUE=DATE or no 'T' in the value -> all-day
	if dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart); dtStartProp != nil {
		if vs, ok := dtStartProp.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.AllDay = true
		}
		if !strings.Contains(dtStartProp.Value, "T") {
			out.AllDay = true
		}
	}
	if out.AllDay && !end.After(start) {
		out.End = start.AddDate(0, 0, 1)
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, propLocation(p, loc)); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty("RECURRENCE-ID"); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value, propLocation(ridProp, loc)); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// propTime is propTimeValue with errors mapped to the zero time.
func propTime(ve *ical.VEvent, name ical.ComponentProperty, loc *time.Location) time.Time {
	t, err := propTimeValue(ve, name, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func propTimeValue(ve *ical.VEvent, name ical.ComponentProperty, loc *time.Location) (time.Time, error) {
	p := ve.GetProperty(name)
	if p == nil {
		return time.Time{}, fmt.Errorf("%s not set", name)
	}
	return parseICSTime(p.Value, propLocation(p, loc))
}

// propLocation resolves a TZID parameter, falling back to fallback for
// floating values and unknown zone names.
func propLocation(p *ical.IANAProperty, fallback *time.Location) *time.Location {
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		if loc, err := time.LoadLocation(tzs[0]); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.UTC
	}
	return fallback
}

// parseICSTime parses a basic ICS date/date-time string. Floating and
// date-only values are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
