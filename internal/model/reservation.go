package model

import (
	"sort"
	"time"
)

// Reservation is a single calendar entry as seen by one fetch.
//
// Two Reservations are the same value only if all six fields match,
// including the UTC offset of every timestamp. An upstream edit that keeps
// the ID but bumps Updated or changes Summary is a different value.
type Reservation struct {
	ID      string    `toml:"id" yaml:"id" json:"id"`
	Summary string    `toml:"summary" yaml:"summary" json:"summary"`
	Created time.Time `toml:"created" yaml:"created" json:"created"`
	Updated time.Time `toml:"updated" yaml:"updated" json:"updated"`
	Start   time.Time `toml:"start" yaml:"start" json:"start"`
	End     time.Time `toml:"end" yaml:"end" json:"end"`
}

// Key is the comparable identity of a Reservation value. Timestamps are
// rendered with their offset so 10:00+09:00 and 01:00Z differ.
type Key struct {
	ID      string
	Summary string
	Created string
	Updated string
	Start   string
	End     string
}

// Key returns the set key for r.
func (r Reservation) Key() Key {
	return Key{
		ID:      r.ID,
		Summary: r.Summary,
		Created: stamp(r.Created),
		Updated: stamp(r.Updated),
		Start:   stamp(r.Start),
		End:     stamp(r.End),
	}
}

// Equal reports whether r and o are the same value.
func (r Reservation) Equal(o Reservation) bool {
	return r.Key() == o.Key()
}

func stamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// SortByStart orders rs by Start ascending. Ties fall back to End, ID,
// Summary, Created and Updated, and finally to the rendered offsets, so
// distinct values never compare equal and the result does not depend on
// input order.
func SortByStart(rs []Reservation) {
	sort.SliceStable(rs, func(i, j int) bool {
		return Less(rs[i], rs[j])
	})
}

// Less is the ordering used by SortByStart.
func Less(a, b Reservation) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	if !a.End.Equal(b.End) {
		return a.End.Before(b.End)
	}
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	if a.Summary != b.Summary {
		return a.Summary < b.Summary
	}
	if !a.Created.Equal(b.Created) {
		return a.Created.Before(b.Created)
	}
	if !a.Updated.Equal(b.Updated) {
		return a.Updated.Before(b.Updated)
	}

	// Same instants, possibly written with different offsets.
	ka, kb := a.Key(), b.Key()
	for _, p := range [][2]string{
		{ka.Start, kb.Start},
		{ka.End, kb.End},
		{ka.Created, kb.Created},
		{ka.Updated, kb.Updated},
	} {
		if p[0] != p[1] {
			return p[0] < p[1]
		}
	}
	return false
}
