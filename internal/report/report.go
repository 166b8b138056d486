package report

import (
	"strings"

	"resvwatch/internal/model"
	"resvwatch/internal/reconcile"
)

const (
	DefaultAddedTitle   = "**✨ 追加された予約**"
	DefaultRemovedTitle = "**🗑️ 削除された予約**"
	DefaultLayout       = "2006-01-02 15:04"
)

// Formatter renders a reconcile.Result as a chat message.
type Formatter struct {
	AddedTitle   string
	RemovedTitle string
	// Layout is a time.Format layout for start and end.
	Layout string
}

// DefaultFormatter returns a Formatter with the stock titles and layout.
func DefaultFormatter() Formatter {
	return Formatter{
		AddedTitle:   DefaultAddedTitle,
		RemovedTitle: DefaultRemovedTitle,
		Layout:       DefaultLayout,
	}
}

// Format returns the message body, or "" if res is empty. Sections with no
// entries are omitted. Times are printed in the offset they carry.
func (f Formatter) Format(res reconcile.Result) string {
	if res.Empty() {
		return ""
	}
	f.normalize()

	var b strings.Builder
	f.section(&b, f.AddedTitle, res.Added)
	f.section(&b, f.RemovedTitle, res.Removed)
	return b.String()
}

func (f *Formatter) normalize() {
	if f.AddedTitle == "" {
		f.AddedTitle = DefaultAddedTitle
	}
	if f.RemovedTitle == "" {
		f.RemovedTitle = DefaultRemovedTitle
	}
	if f.Layout == "" {
		f.Layout = DefaultLayout
	}
}

func (f Formatter) section(b *strings.Builder, title string, rs []model.Reservation) {
	if len(rs) == 0 {
		return
	}
	b.WriteString(title)
	b.WriteByte('\n')
	for _, r := range rs {
		b.WriteString(f.Line(r))
		b.WriteByte('\n')
	}
}

// Line renders one reservation as "- start → end (summary)".
func (f Formatter) Line(r model.Reservation) string {
	f.normalize()
	return "- " + r.Start.Format(f.Layout) + " → " + r.End.Format(f.Layout) + " (" + r.Summary + ")"
}
