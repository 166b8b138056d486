package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	appLog "resvwatch/internal/log"
	"resvwatch/internal/model"
)

// googleMaxResults is the largest page the Calendar API will serve.
const googleMaxResults = 2500

// maxPages guards against a server that never stops returning page tokens.
const maxPages = 100

var errTooManyPages = fmt.Errorf("more than %d pages", maxPages)

// Google fetches from a Google Calendar v3 events endpoint, e.g.
// https://www.googleapis.com/calendar/v3/calendars/<id>/events, using a
// static API key. The host and path prefix before "calendars/" become the
// client endpoint, so test servers and proxies work unchanged.
type Google struct {
	URL    string
	APIKey string
	// TimeZone is sent as the timeZone query parameter. When empty the
	// window's location name is used.
	TimeZone string
	Client   *http.Client
}

// NewGoogle constructs a Google fetcher. A nil client gets DefaultTimeout.
func NewGoogle(eventsURL, apiKey string, client *http.Client) *Google {
	return &Google{
		URL:    eventsURL,
		APIKey: apiKey,
		Client: newClient(client),
	}
}

// Fetch lists single (recurrence-expanded) events in w, following
// nextPageToken until exhausted.
func (g *Google) Fetch(ctx context.Context, w Window) ([]model.Reservation, error) {
	if g.APIKey == "" {
		return nil, errors.New("feed: google api key is empty")
	}
	endpoint, calendarID, err := splitEventsURL(g.URL)
	if err != nil {
		return nil, fmt.Errorf("feed: google: %w", err)
	}

	srv, err := calendar.NewService(ctx,
		option.WithHTTPClient(withAPIKey(newClient(g.Client), g.APIKey)),
		option.WithEndpoint(endpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("feed: google: new service: %w", err)
	}

	loc := w.Location()
	tz := g.TimeZone
	if tz == "" {
		tz = loc.String()
	}

	call := srv.Events.List(calendarID).
		TimeMin(w.Start.Format(time.RFC3339)).
		TimeMax(w.End.Format(time.RFC3339)).
		SingleEvents(true).
		MaxResults(googleMaxResults).
		TimeZone(tz)

	appLog.Debug("feed fetch start", "url", redactURL(g.URL))

	var out []model.Reservation
	pages := 0
	err = call.Pages(ctx, func(events *calendar.Events) error {
		pages++
		if pages > maxPages {
			return errTooManyPages
		}
		for _, ev := range events.Items {
			if ev == nil || ev.Status == "cancelled" {
				continue
			}
			r, err := googleReservation(ev, loc)
			if err != nil {
				return fmt.Errorf("event %q: %w", ev.Id, err)
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return nil, &StatusError{
				URL:        redactURL(g.URL),
				StatusCode: apiErr.Code,
				Body:       snippet([]byte(apiErr.Body)),
			}
		}
		return nil, fmt.Errorf("feed: google: %w", err)
	}

	appLog.Info("google feed fetched", "url", redactURL(g.URL), "pages", pages, "reservations", len(out))
	return out, nil
}

// splitEventsURL turns .../calendars/<id>/events into the client endpoint
// (everything before "calendars/") and the calendar id.
func splitEventsURL(raw string) (endpoint, calendarID string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("url %s has no scheme or host", redactURL(raw))
	}

	const marker = "/calendars/"
	path := strings.TrimSuffix(u.Path, "/")
	i := strings.LastIndex(path, marker)
	if i < 0 || !strings.HasSuffix(path, "/events") {
		return "", "", fmt.Errorf("url %s is not a .../calendars/<id>/events endpoint", redactURL(raw))
	}
	calendarID = strings.TrimSuffix(path[i+len(marker):], "/events")
	if calendarID == "" || strings.Contains(calendarID, "/") {
		return "", "", fmt.Errorf("url %s has no calendar id", redactURL(raw))
	}
	return u.Scheme + "://" + u.Host + path[:i+1], calendarID, nil
}

// apiKeyTransport adds the key query parameter to every request.
// option.WithAPIKey is ignored once a custom HTTP client is supplied.
type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	q := r.URL.Query()
	q.Set("key", t.key)
	r.URL.RawQuery = q.Encode()
	return t.base.RoundTrip(r)
}

func withAPIKey(c *http.Client, key string) *http.Client {
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	keyed := *c
	keyed.Transport = apiKeyTransport{key: key, base: base}
	return &keyed
}

func googleReservation(ev *calendar.Event, loc *time.Location) (model.Reservation, error) {
	created, err := parseRFC3339(ev.Created, loc)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("created: %w", err)
	}
	updated, err := parseRFC3339(ev.Updated, loc)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("updated: %w", err)
	}
	start, err := parseEventTime(ev.Start, loc)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("start: %w", err)
	}
	end, err := parseEventTime(ev.End, loc)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("end: %w", err)
	}

	return model.Reservation{
		ID:      ev.Id,
		Summary: ev.Summary,
		Created: created,
		Updated: updated,
		Start:   start,
		End:     end,
	}, nil
}

func parseRFC3339(v string, loc *time.Location) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

// parseEventTime reads dateTime, or for all-day events date, which is taken
// as midnight in loc.
func parseEventTime(dt *calendar.EventDateTime, loc *time.Location) (time.Time, error) {
	if dt == nil {
		return time.Time{}, errors.New("missing time")
	}
	if dt.DateTime != "" {
		return parseRFC3339(dt.DateTime, loc)
	}
	if dt.Date != "" {
		return time.ParseInLocation("2006-01-02", dt.Date, loc)
	}
	return time.Time{}, errors.New("neither dateTime nor date set")
}
