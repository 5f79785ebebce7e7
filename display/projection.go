package display

import (
	"math/rand"
	"strings"
	"time"

	"canvastrmnl/triage"
)

// UnknownCourse is shown when an assignment's course has no usable name.
const UnknownCourse = "Unknown Course"

// Shown when there is nothing to do.
var caughtUpGlyphs = []string{
	":D", ":-D", "xD", "8D", ":)", ":O", ":]", ":3", "^_^", "(>_<)",
	"(^_^)", `\(^_^)/`, "(^o^)", `\(^o^)/`, "(^-^)", "(o_o)", ":-)", ":-]",
	":-3", ":>", ":->", "=]", "=D", ":-P", ":P", ":-p", ":p", ";-)", ";)",
	":-|", ":|", ":-/", ":/", `:-\`, `:\`, ":-S", ":S", ":-$", ":$", ":-*",
	":*", ":-X", ":X", ":-#", ":#", ":-@", ":@", "O:)", "O:-)", ">:-)",
	">:)", ":-}", ":}",
}

// Picker returns an index in [0, n). Implementations must be safe for
// concurrent use.
type Picker func(n int) int

// RandomPicker picks uniformly using the shared math/rand source.
func RandomPicker(n int) int {
	return rand.Intn(n)
}

var sectionClasses = [...]string{
	triage.Overdue:  "bg--gray-2",
	triage.DueSoon:  "bg--gray-4",
	triage.Upcoming: "bg--gray-6",
}

// Item is one assignment as it appears on screen.
type Item struct {
	ID      int64
	Title   string
	Course  string
	Due     string
	Overdue bool
}

// Section is a titled group of items.
type Section struct {
	Name  string
	Class string
	Items []Item
}

// Summary is a per-bucket total shown beside the sections.
type Summary struct {
	Label string
	Class string
	Count int
}

// Projection is everything a layout needs to render.
type Projection struct {
	Layout      triage.Layout
	Sections    []Section
	Summary     []Summary
	AllCaughtUp bool
	Glyph       string
}

// Columns reports whether sections sit side by side.
func (p Projection) Columns() bool {
	return p.Layout == triage.HalfHorizontal
}

// Vertical reports whether the summary sits above the sections.
func (p Projection) Vertical() bool {
	return p.Layout == triage.HalfVertical
}

// Sanitize keeps only printable ASCII characters.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 0x20 && c <= 0x7e {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func projectItem(it triage.Item, now time.Time, tz *time.Location) Item {
	course := Sanitize(it.Course.Name)
	if course == "" {
		course = UnknownCourse
	}
	due := it.Due()
	return Item{
		ID:      it.Assignment.ID,
		Title:   Sanitize(it.Assignment.Name),
		Course:  course,
		Due:     dueString(due, now, tz),
		Overdue: due.Before(now),
	}
}

// Project turns packed buckets into the view model for one layout. counts
// are the bucket sizes before packing. When every section is empty the
// projection is the caught-up sentinel with a glyph chosen by pick.
func Project(layout triage.Layout, packed triage.Buckets, counts triage.Counts, now time.Time, tz *time.Location, pick Picker) Projection {
	if tz == nil {
		tz = time.UTC
	}
	p := Projection{Layout: layout}

	for _, bucket := range triage.Order {
		items := packed[bucket]
		if layout.ShowsSummary() {
			p.Summary = append(p.Summary, Summary{
				Label: bucket.String(),
				Class: sectionClasses[bucket],
				Count: counts[bucket],
			})
		}
		if len(items) == 0 {
			continue
		}
		s := Section{Name: bucket.String(), Class: sectionClasses[bucket]}
		for _, it := range items {
			s.Items = append(s.Items, projectItem(it, now, tz))
		}
		p.Sections = append(p.Sections, s)
	}

	if len(p.Sections) == 0 {
		p.AllCaughtUp = true
		p.Glyph = caughtUpGlyphs[pick(len(caughtUpGlyphs))]
	}
	return p
}
