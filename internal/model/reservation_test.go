package model

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestReservationEqual_AllFieldsParticipate(t *testing.T) {
	base := Reservation{
		ID:      "a",
		Summary: "X",
		Created: mustParse(t, "2026-01-01T09:00:00+09:00"),
		Updated: mustParse(t, "2026-01-02T09:00:00+09:00"),
		Start:   mustParse(t, "2026-01-10T10:00:00+09:00"),
		End:     mustParse(t, "2026-01-10T11:00:00+09:00"),
	}
	if !base.Equal(base) {
		t.Fatalf("value must equal itself")
	}

	edits := map[string]func(r *Reservation){
		"id":      func(r *Reservation) { r.ID = "b" },
		"summary": func(r *Reservation) { r.Summary = "Y" },
		"created": func(r *Reservation) { r.Created = r.Created.Add(time.Second) },
		"updated": func(r *Reservation) { r.Updated = r.Updated.Add(time.Second) },
		"start":   func(r *Reservation) { r.Start = r.Start.Add(time.Minute) },
		"end":     func(r *Reservation) { r.End = r.End.Add(time.Minute) },
	}
	for name, edit := range edits {
		other := base
		edit(&other)
		if base.Equal(other) {
			t.Fatalf("%s change: values compared equal", name)
		}
		if base.Key() == other.Key() {
			t.Fatalf("%s change: keys collided", name)
		}
	}
}

func TestReservationEqual_OffsetMatters(t *testing.T) {
	a := Reservation{ID: "a", Start: mustParse(t, "2026-01-10T10:00:00+09:00")}
	b := a
	b.Start = a.Start.UTC()
	if !a.Start.Equal(b.Start) {
		t.Fatalf("fixture: instants should match")
	}
	if a.Equal(b) {
		t.Fatalf("same instant with different offset must not be equal")
	}
}

func TestReservationEqual_ZoneNameIgnored(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	a := Reservation{ID: "a", Start: time.Date(2026, 1, 10, 10, 0, 0, 0, tokyo)}
	b := Reservation{ID: "a", Start: time.Date(2026, 1, 10, 10, 0, 0, 0, time.FixedZone("", 9*3600))}
	if !a.Equal(b) {
		t.Fatalf("named zone and fixed offset with same offset should be equal")
	}
}

func TestSortByStart(t *testing.T) {
	t10 := mustParse(t, "2026-01-10T10:00:00+09:00")
	rs := []Reservation{
		{ID: "c", Start: t10.Add(2 * time.Hour), End: t10.Add(3 * time.Hour)},
		{ID: "b", Start: t10, End: t10.Add(time.Hour)},
		{ID: "a", Start: t10, End: t10.Add(time.Hour)},
		{ID: "d", Start: t10.Add(-time.Hour), End: t10},
	}
	SortByStart(rs)

	want := []string{"d", "a", "b", "c"}
	for i, id := range want {
		if rs[i].ID != id {
			t.Fatalf("rs[%d].ID = %q, want %q", i, rs[i].ID, id)
		}
	}
}

func TestSortByStart_TiesOnCreatedAndUpdated(t *testing.T) {
	t10 := mustParse(t, "2026-01-10T10:00:00+09:00")
	base := Reservation{ID: "r", Summary: "Room", Start: t10, End: t10.Add(time.Hour)}

	newer := base
	newer.Created = t10.Add(-24 * time.Hour)
	newer.Updated = t10.Add(-time.Hour)

	older := base
	older.Created = t10.Add(-24 * time.Hour)
	older.Updated = t10.Add(-2 * time.Hour)

	first := base
	first.Created = t10.Add(-48 * time.Hour)
	first.Updated = t10

	utc := older
	utc.Updated = older.Updated.UTC()

	// utc renders as 2026-01-09T23:00:00Z, which sorts before the +09:00 form.
	want := []Reservation{first, utc, older, newer}

	inputs := [][]Reservation{
		{newer, older, utc, first},
		{utc, first, newer, older},
		{first, newer, utc, older},
	}
	for n, rs := range inputs {
		SortByStart(rs)
		for i := range want {
			if !rs[i].Equal(want[i]) {
				t.Fatalf("input %d: rs[%d] = %+v, want %+v", n, i, rs[i], want[i])
			}
		}
	}

	if Less(older, utc) == Less(utc, older) {
		t.Fatalf("same instant in different offsets must still be ordered")
	}
}
