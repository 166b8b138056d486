package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"resvwatch/internal/feed"
	appLog "resvwatch/internal/log"
	"resvwatch/internal/notify"
	"resvwatch/internal/reconcile"
	"resvwatch/internal/report"
	"resvwatch/internal/snapshot"
)

// State is a step of a run.
type State string

const (
	StateSeeding         State = "seeding"
	StateComparing       State = "comparing"
	StateNotifyIfChanged State = "notify_if_changed"
	StateSaved           State = "saved"
)

// DefaultHorizonDays is the forward-looking fetch window.
const DefaultHorizonDays = 14

// SnapshotStore is the persistence the job needs; *snapshot.Store
// implements it.
type SnapshotStore interface {
	Load() (snapshot.Snapshot, bool, error)
	Save(snapshot.Snapshot) error
}

// Job wires the collaborators for one fetch → reconcile → notify → persist
// run. Runs must not overlap: the snapshot has no lock.
type Job struct {
	Fetcher   feed.Fetcher
	Store     SnapshotStore
	Notifier  notify.Notifier
	Formatter report.Formatter

	// Location is the target timezone of the fetch window.
	Location    *time.Location
	HorizonDays int

	// Now defaults to time.Now.
	Now func() time.Time
}

// Outcome summarizes a finished run.
type Outcome struct {
	RunID    string
	States   []State
	Fetched  int
	Added    int
	Removed  int
	Notified bool
}

// Final returns the last state reached.
func (o Outcome) Final() State {
	if len(o.States) == 0 {
		return ""
	}
	return o.States[len(o.States)-1]
}

// Run executes one job.
//
// Flow:
//   - fetch the window [now, now+HorizonDays) in Location
//   - no prior snapshot: save the fetched set and stop (Seeding)
//   - otherwise diff; if anything changed, format and send a report
//   - save the fetched set, sorted by start (Saved)
//
// An error at any step returns before Save, so the previous snapshot
// stays in place. In particular a failed notification is recomputed and
// resent by the next run.
func (j *Job) Run(ctx context.Context) (Outcome, error) {
	if err := j.validate(); err != nil {
		return Outcome{}, err
	}

	out := Outcome{RunID: uuid.NewString()}
	lg := appLog.With("run_id", out.RunID)

	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	days := j.HorizonDays
	if days <= 0 {
		days = DefaultHorizonDays
	}
	win := feed.NewWindow(now(), j.Location, days)

	lg.Info("run start",
		"window_start", win.Start.Format(time.RFC3339),
		"window_end", win.End.Format(time.RFC3339),
	)

	current, err := j.Fetcher.Fetch(ctx, win)
	if err != nil {
		return out, fmt.Errorf("fetch: %w", err)
	}
	out.Fetched = len(current)

	prev, ok, err := j.Store.Load()
	if err != nil {
		return out, fmt.Errorf("load snapshot: %w", err)
	}

	next := snapshot.Snapshot{Reservations: current}

	if !ok {
		out.States = append(out.States, StateSeeding)
		if err := j.Store.Save(next); err != nil {
			return out, fmt.Errorf("save snapshot: %w", err)
		}
		out.States = append(out.States, StateSaved)
		lg.Info("run seeded snapshot", "reservations", out.Fetched)
		return out, nil
	}

	out.States = append(out.States, StateComparing)
	diff := reconcile.Diff(prev.Reservations, current)
	out.Added = len(diff.Added)
	out.Removed = len(diff.Removed)

	if !diff.Empty() {
		out.States = append(out.States, StateNotifyIfChanged)
		content := j.Formatter.Format(diff)
		lg.Info("changes detected", "added", out.Added, "removed", out.Removed)
		if err := j.Notifier.Send(ctx, content); err != nil {
			return out, fmt.Errorf("notify: %w", err)
		}
		out.Notified = true
	}

	if err := j.Store.Save(next); err != nil {
		return out, fmt.Errorf("save snapshot: %w", err)
	}
	out.States = append(out.States, StateSaved)

	lg.Info("run complete",
		"reservations", out.Fetched,
		"added", out.Added,
		"removed", out.Removed,
		"notified", out.Notified,
	)
	return out, nil
}

func (j *Job) validate() error {
	switch {
	case j.Fetcher == nil:
		return errors.New("job: fetcher is nil")
	case j.Store == nil:
		return errors.New("job: store is nil")
	case j.Notifier == nil:
		return errors.New("job: notifier is nil")
	case j.Location == nil:
		return errors.New("job: location is nil")
	}
	return nil
}
