package reconcile

import "resvwatch/internal/model"

// Result is the change between two snapshots. Added and Removed are sorted
// with model.SortByStart and never share a value.
type Result struct {
	Added   []model.Reservation
	Removed []model.Reservation
}

// Empty reports whether nothing changed.
func (r Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0
}

// Diff computes Added = next \ prev and Removed = prev \ next under full
// value equality (model.Reservation.Key). Inputs are treated as sets:
// order is ignored and duplicates collapse.
//
// An edit that keeps the ID but changes any other field shows up once in
// Removed (old version) and once in Added (new version).
func Diff(prev, next []model.Reservation) Result {
	prevSet := toSet(prev)
	nextSet := toSet(next)

	return Result{
		Added:   difference(nextSet, prevSet),
		Removed: difference(prevSet, nextSet),
	}
}

func toSet(rs []model.Reservation) map[model.Key]model.Reservation {
	set := make(map[model.Key]model.Reservation, len(rs))
	for _, r := range rs {
		k := r.Key()
		if _, ok := set[k]; !ok {
			set[k] = r
		}
	}
	return set
}

// difference returns a \ b, sorted.
func difference(a, b map[model.Key]model.Reservation) []model.Reservation {
	var out []model.Reservation
	for k, r := range a {
		if _, ok := b[k]; ok {
			continue
		}
		out = append(out, r)
	}
	model.SortByStart(out)
	return out
}
