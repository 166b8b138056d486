package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var jst = time.FixedZone("JST", 9*3600)

func TestNewWindow(t *testing.T) {
	now := time.Date(2026, 4, 5, 15, 0, 0, 0, time.UTC)
	w := NewWindow(now, jst, 14)

	if !w.Start.Equal(now) {
		t.Fatalf("start = %v, want %v", w.Start, now)
	}
	if _, off := w.Start.Zone(); off != 9*3600 {
		t.Fatalf("start offset = %d, want +9h", off)
	}
	if got := w.End.Sub(w.Start); got != 14*24*time.Hour {
		t.Fatalf("window length = %v, want 336h", got)
	}
}

func TestGoogleFetch_QueryAndConversion(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calendar/v3/calendars/room/events" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		gotQuery = map[string]string{}
		for k := range q {
			gotQuery[k] = q.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"items": [
				{
					"id": "ev1",
					"summary": "Studio A",
					"created": "2026-03-01T00:00:00.000Z",
					"updated": "2026-03-02T01:02:03.000Z",
					"start": {"dateTime": "2026-04-06T10:00:00+09:00"},
					"end":   {"dateTime": "2026-04-06T02:00:00Z"}
				},
				{
					"id": "ev2",
					"summary": "Closed",
					"created": "2026-03-01T00:00:00Z",
					"updated": "2026-03-01T00:00:00Z",
					"start": {"date": "2026-04-07"},
					"end":   {"date": "2026-04-08"}
				},
				{
					"id": "gone",
					"status": "cancelled"
				}
			]
		}`))
	}))
	defer srv.Close()

	g := NewGoogle(srv.URL+"/calendar/v3/calendars/room/events", "secret", srv.Client())
	g.TimeZone = "Asia/Tokyo"
	win := NewWindow(time.Date(2026, 4, 5, 15, 0, 0, 0, time.UTC), jst, 14)

	got, err := g.Fetch(context.Background(), win)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	want := map[string]string{
		"key":          "secret",
		"timeMin":      "2026-04-06T00:00:00+09:00",
		"timeMax":      "2026-04-20T00:00:00+09:00",
		"singleEvents": "true",
		"maxResults":   "2500",
		"timeZone":     "Asia/Tokyo",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Fatalf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
	if _, ok := gotQuery["pageToken"]; ok {
		t.Fatalf("first page must not send pageToken")
	}

	if len(got) != 2 {
		t.Fatalf("reservations = %d, want 2 (cancelled skipped)", len(got))
	}

	r := got[0]
	if r.ID != "ev1" || r.Summary != "Studio A" {
		t.Fatalf("r = %+v", r)
	}
	for name, ts := range map[string]time.Time{"created": r.Created, "updated": r.Updated, "start": r.Start, "end": r.End} {
		if _, off := ts.Zone(); off != 9*3600 {
			t.Fatalf("%s offset = %d, want +9h", name, off)
		}
	}
	if r.End.Format(time.RFC3339) != "2026-04-06T11:00:00+09:00" {
		t.Fatalf("end = %s", r.End.Format(time.RFC3339))
	}
	if r.Updated.Format(time.RFC3339) != "2026-03-02T10:02:03+09:00" {
		t.Fatalf("updated = %s", r.Updated.Format(time.RFC3339))
	}

	allDay := got[1]
	if allDay.Start.Format(time.RFC3339) != "2026-04-07T00:00:00+09:00" {
		t.Fatalf("all-day start = %s", allDay.Start.Format(time.RFC3339))
	}
}

func TestGoogleFetch_FollowsPages(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		item := `{"id":"%s","summary":"s","created":"2026-03-01T00:00:00Z","updated":"2026-03-01T00:00:00Z",` +
			`"start":{"dateTime":"2026-04-06T10:00:00+09:00"},"end":{"dateTime":"2026-04-06T11:00:00+09:00"}}`
		switch r.URL.Query().Get("pageToken") {
		case "":
			_, _ = w.Write([]byte(`{"items":[` + strings.Replace(item, "%s", "p1", 1) + `],"nextPageToken":"next"}`))
		case "next":
			_, _ = w.Write([]byte(`{"items":[` + strings.Replace(item, "%s", "p2", 1) + `]}`))
		default:
			t.Errorf("unexpected pageToken %q", r.URL.Query().Get("pageToken"))
		}
	}))
	defer srv.Close()

	g := NewGoogle(srv.URL+"/calendars/room/events", "k", srv.Client())
	got, err := g.Fetch(context.Background(), NewWindow(time.Now(), jst, 14))
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if len(got) != 2 || got[0].ID != "p1" || got[1].ID != "p2" {
		t.Fatalf("got = %+v", got)
	}
}

func TestGoogleFetch_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"API key not valid"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewGoogle(srv.URL+"/calendars/room/events", "bad", srv.Client()).Fetch(context.Background(), NewWindow(time.Now(), jst, 14))
	if err == nil {
		t.Fatalf("expected error")
	}
	var sErr *StatusError
	if !errors.As(err, &sErr) {
		t.Fatalf("error type = %T, want *StatusError", err)
	}
	if sErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", sErr.StatusCode)
	}
	if strings.Contains(sErr.Error(), "key=bad") {
		t.Fatalf("error leaks api key: %v", sErr)
	}
}

func TestGoogleFetch_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	if _, err := NewGoogle(srv.URL+"/calendars/room/events", "k", srv.Client()).Fetch(context.Background(), NewWindow(time.Now(), jst, 14)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestGoogleFetch_BadTimestampIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"id":"x","created":"yesterday","updated":"2026-03-01T00:00:00Z",` +
			`"start":{"dateTime":"2026-04-06T10:00:00+09:00"},"end":{"dateTime":"2026-04-06T11:00:00+09:00"}}]}`))
	}))
	defer srv.Close()

	if _, err := NewGoogle(srv.URL+"/calendars/room/events", "k", srv.Client()).Fetch(context.Background(), NewWindow(time.Now(), jst, 14)); err == nil {
		t.Fatalf("expected error for unparsable created")
	}
}

func TestGoogleFetch_MissingKey(t *testing.T) {
	if _, err := NewGoogle("http://example.invalid", "", nil).Fetch(context.Background(), NewWindow(time.Now(), jst, 14)); err == nil {
		t.Fatalf("expected error for empty api key")
	}
}

func TestGoogleFetch_NotAnEventsURL(t *testing.T) {
	if _, err := NewGoogle("http://example.invalid/feed.json", "k", nil).Fetch(context.Background(), NewWindow(time.Now(), jst, 14)); err == nil {
		t.Fatalf("expected error for a URL without /calendars/<id>/events")
	}
}

func TestSplitEventsURL(t *testing.T) {
	cases := []struct {
		in           string
		wantEndpoint string
		wantID       string
	}{
		{"https://www.googleapis.com/calendar/v3/calendars/abc@group.calendar.google.com/events", "https://www.googleapis.com/calendar/v3/", "abc@group.calendar.google.com"},
		{"http://127.0.0.1:8080/calendars/room/events/?key=x", "http://127.0.0.1:8080/", "room"},
		{"https://proxy.local/cal/calendars/ja.japanese%23holiday/events", "https://proxy.local/cal/", "ja.japanese#holiday"},
	}
	for _, tc := range cases {
		endpoint, id, err := splitEventsURL(tc.in)
		if err != nil {
			t.Fatalf("splitEventsURL(%q) error: %v", tc.in, err)
		}
		if endpoint != tc.wantEndpoint || id != tc.wantID {
			t.Fatalf("splitEventsURL(%q) = %q, %q, want %q, %q", tc.in, endpoint, id, tc.wantEndpoint, tc.wantID)
		}
	}

	for _, bad := range []string{"", "not a url", "https://host/events", "https://host/calendars//events", "https://host/calendars/x/list"} {
		if _, _, err := splitEventsURL(bad); err == nil {
			t.Fatalf("splitEventsURL(%q) expected error", bad)
		}
	}
}

func TestRedactURL(t *testing.T) {
	cases := map[string]string{
		"https://www.googleapis.com/calendar/v3/calendars/x/events?key=abc": "https://www.googleapis.com/...(redacted)",
		"http://host:8080?key=abc": "http://host:8080/...(redacted)",
		"not a url":                "feed://...(redacted)",
	}
	for in, want := range cases {
		if got := redactURL(in); got != want {
			t.Fatalf("redactURL(%q) = %q, want %q", in, got, want)
		}
	}
}
