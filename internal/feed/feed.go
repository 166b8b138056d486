package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appLog "resvwatch/internal/log"
	"resvwatch/internal/model"
)

// DefaultTimeout bounds each HTTP request when the caller passes no client.
const DefaultTimeout = 30 * time.Second

// maxBody caps how much of a response is read into memory.
const maxBody = 32 << 20

// Fetcher returns the reservations overlapping a window. Any error is
// fatal to the run.
type Fetcher interface {
	Fetch(ctx context.Context, w Window) ([]model.Reservation, error)
}

// Window is the fetch range. Start and End carry the target location, and
// fetchers convert every returned timestamp into Start.Location().
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns [now, now+days) in loc.
func NewWindow(now time.Time, loc *time.Location, days int) Window {
	if loc == nil {
		loc = time.Local
	}
	start := now.In(loc)
	return Window{
		Start: start,
		End:   start.AddDate(0, 0, days),
	}
}

// Location returns the window's target location.
func (w Window) Location() *time.Location {
	return w.Start.Location()
}

// StatusError is a non-2xx response from the feed.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("feed: %s returned %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("feed: %s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

func newClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: DefaultTimeout}
}

// get issues a GET and returns the body of a 2xx response.
func get(ctx context.Context, client *http.Client, rawURL string, header http.Header) ([]byte, error) {
	if rawURL == "" {
		return nil, errors.New("feed: URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	appLog.Debug("feed fetch start", "url", redactURL(rawURL))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: request %s: %w", redactURL(rawURL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("feed: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			URL:        redactURL(rawURL),
			StatusCode: resp.StatusCode,
			Body:       snippet(body),
		}
	}

	appLog.Debug("feed fetch success", "url", redactURL(rawURL), "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

func snippet(b []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}

// redactURL hides sensitive parts of a feed URL for logging purposes.
// Calendar URLs carry the calendar id in the path and the API key in the
// query, so only scheme and host are kept:
//
//	https://www.googleapis.com/calendar/v3/calendars/x/events?key=abcd
//	-> https://www.googleapis.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "feed://...(redacted)"
	}
	i += 3

	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}
	return u[:j] + redactedSuffix
}
