package display

import (
	"bytes"
	"image/png"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvastrmnl/lms"
	"canvastrmnl/triage"
)

var now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func first(int) int { return 0 }

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func sample() lms.Data {
	return lms.Data{
		Courses: map[int64]lms.Course{
			1: {ID: 1, Name: "Biology 101"},
			2: {ID: 2, Name: "Histoire éè"},
			3: {ID: 3, Name: "☃"},
		},
		Assignments: map[int64]lms.Assignment{
			10: {ID: 10, CourseID: 1, Name: "Lab report \U0001F52C", DueAt: at(-3 * time.Hour)},
			11: {ID: 11, CourseID: 2, Name: "Essay", DueAt: at(2 * time.Hour)},
			12: {ID: 12, CourseID: 3, Name: "Snow", DueAt: at(72 * time.Hour)},
			13: {ID: 13, CourseID: 9, Name: "Orphaned", DueAt: at(time.Hour)},
			14: {ID: 14, CourseID: 1, Name: "Undated"},
		},
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Lab report ", Sanitize("Lab report \U0001F52C"))
	assert.Equal(t, "Histoire ", Sanitize("Histoire éè"))
	assert.Equal(t, "tab", Sanitize("t\tab\n"))
	assert.Equal(t, "~ !", Sanitize("~ !"))
}

func TestProjectSections(t *testing.T) {
	r := NewRenderer(first)
	p := r.Project(sample(), triage.Full, now, time.UTC)

	require.False(t, p.AllCaughtUp)
	require.Len(t, p.Sections, 3)
	assert.Equal(t, []string{"Overdue", "Today", "Todo"},
		[]string{p.Sections[0].Name, p.Sections[1].Name, p.Sections[2].Name})

	lab := p.Sections[0].Items[0]
	assert.Equal(t, "Lab report ", lab.Title)
	assert.Equal(t, "Biology 101", lab.Course)
	assert.True(t, lab.Overdue)
	assert.Equal(t, "today, 09:00", lab.Due)

	essay := p.Sections[1].Items[0]
	assert.False(t, essay.Overdue)
	assert.Equal(t, "Histoire ", essay.Course)

	snow := p.Sections[2].Items[0]
	assert.Equal(t, UnknownCourse, snow.Course)

	for _, s := range p.Sections {
		for _, it := range s.Items {
			assert.NotEqual(t, int64(13), it.ID, "orphan must not be shown")
			assert.NotEqual(t, int64(14), it.ID, "undated must not be shown")
		}
	}
}

func TestProjectFiltersEmptySections(t *testing.T) {
	data := sample()
	delete(data.Assignments, 10)

	p := NewRenderer(first).Project(data, triage.Quadrant, now, time.UTC)
	require.Len(t, p.Sections, 2)
	assert.Equal(t, "Today", p.Sections[0].Name)
	assert.Empty(t, p.Summary)
}

func TestProjectSummaryUsesUnpackedCounts(t *testing.T) {
	data := lms.Data{Courses: map[int64]lms.Course{1: {ID: 1, Name: "Math"}}, Assignments: map[int64]lms.Assignment{}}
	for i := int64(1); i <= 12; i++ {
		data.Assignments[i] = lms.Assignment{ID: i, CourseID: 1, Name: "Problem set", DueAt: at(time.Duration(i) * 48 * time.Hour)}
	}

	for _, layout := range triage.Layouts {
		p := NewRenderer(first).Project(data, layout, now, time.UTC)
		if !layout.ShowsSummary() {
			assert.Empty(t, p.Summary, layout)
			continue
		}
		require.Len(t, p.Summary, 3, layout)
		assert.Equal(t, 12, p.Summary[2].Count, layout)
		assert.Less(t, len(p.Sections[0].Items), 12, layout)
	}
}

func TestProjectCaughtUp(t *testing.T) {
	var picked []int
	pick := func(n int) int {
		picked = append(picked, n)
		return n - 1
	}
	p := Project(triage.Full, triage.Buckets{}, triage.Counts{}, now, time.UTC, pick)
	assert.True(t, p.AllCaughtUp)
	assert.Empty(t, p.Sections)
	assert.Equal(t, caughtUpGlyphs[len(caughtUpGlyphs)-1], p.Glyph)
	assert.Equal(t, []int{len(caughtUpGlyphs)}, picked)

	for i := 0; i < 50; i++ {
		p := Project(triage.Quadrant, triage.Buckets{}, triage.Counts{}, now, time.UTC, RandomPicker)
		assert.Contains(t, caughtUpGlyphs, p.Glyph)
	}
}

func TestProjectIdempotent(t *testing.T) {
	r := NewRenderer(first)
	for _, layout := range triage.Layouts {
		a := r.Project(sample(), layout, now, time.UTC)
		b := r.Project(sample(), layout, now, time.UTC)
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("%s projection changed between runs (-first +second):\n%s", layout, diff)
		}
	}
}

func TestDueString(t *testing.T) {
	adelaide, err := time.LoadLocation("Australia/Adelaide")
	require.NoError(t, err)
	ref := time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC) // Wednesday

	tests := []struct {
		due  time.Time
		tz   *time.Location
		want string
	}{
		{time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), time.UTC, "today"},
		{time.Date(2025, 3, 12, 23, 59, 0, 0, time.UTC), time.UTC, "today, 23:59"},
		{time.Date(2025, 3, 13, 9, 30, 0, 0, time.UTC), time.UTC, "tomorrow, 09:30"},
		{time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), time.UTC, "yesterday"},
		{time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), time.UTC, "Saturday"},
		{time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), time.UTC, "last Sunday"},
		{time.Date(2025, 3, 19, 0, 0, 0, 0, time.UTC), time.UTC, "19 Mar 2025"},
		{time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), time.UTC, "1 Mar 2025"},
		// 14:00 UTC is 00:30 the next day in Adelaide.
		{time.Date(2025, 3, 12, 14, 0, 0, 0, time.UTC), adelaide, "tomorrow, 00:30"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dueString(tt.due, ref, tt.tz), tt.due.String())
	}
}

func TestRenderAll(t *testing.T) {
	m, err := NewRenderer(first).RenderAll(sample(), now, time.UTC)
	require.NoError(t, err)

	for _, layout := range triage.Layouts {
		markup := m.Get(layout)
		require.NotEmpty(t, markup, layout)
		assert.Contains(t, markup, "Canvas LMS")
		assert.Contains(t, markup, "Lab report")
		assert.NotContains(t, markup, "Orphaned")
		assert.NotContains(t, markup, "Undated")
	}
	assert.Contains(t, m.Full, `<p class="title title--small text-stroke">1</p>`)
	assert.Contains(t, m.HalfVertical, `<p class="label text-stroke">1</p>`)
	assert.Contains(t, m.HalfHorizontal, "grid--cols-3")
	assert.NotContains(t, m.Quadrant, "rounded-small p--2")
}

func TestRenderAllCaughtUpEverywhere(t *testing.T) {
	m, err := NewRenderer(first).RenderAll(lms.NewData(), now, time.UTC)
	require.NoError(t, err)
	for _, layout := range triage.Layouts {
		markup := m.Get(layout)
		assert.Contains(t, markup, "All caught up!", layout)
		assert.Contains(t, markup, caughtUpGlyphs[0], layout)
	}
}

func TestRenderEscapes(t *testing.T) {
	data := lms.Data{
		Courses:     map[int64]lms.Course{1: {ID: 1, Name: "<b>Art</b>"}},
		Assignments: map[int64]lms.Assignment{1: {ID: 1, CourseID: 1, Name: "<script>x</script>", DueAt: at(time.Hour)}},
	}
	m, err := NewRenderer(first).RenderAll(data, now, time.UTC)
	require.NoError(t, err)
	assert.NotContains(t, m.Full, "<script>")
	assert.Contains(t, m.Full, "&lt;script&gt;")
}

func TestRenderError(t *testing.T) {
	m, err := NewRenderer(first).RenderError("Add a Canvas token and domain to see your assignments.")
	require.NoError(t, err)
	for _, layout := range triage.Layouts {
		assert.Contains(t, m.Get(layout), "Add a Canvas token and domain to see your assignments.")
	}
}

func TestPreviewPNG(t *testing.T) {
	r := NewRenderer(first)
	for _, layout := range triage.Layouts {
		var buf bytes.Buffer
		require.NoError(t, PreviewPNG(&buf, r.Project(sample(), layout, now, time.UTC)))

		img, err := png.Decode(&buf)
		require.NoError(t, err)
		assert.Equal(t, screenSizes[layout], img.Bounds().Size(), layout)
	}

	var buf bytes.Buffer
	require.NoError(t, PreviewPNG(&buf, r.Project(lms.NewData(), triage.Full, now, time.UTC)))
	assert.Error(t, PreviewPNG(&buf, Projection{Layout: "wide"}))
}

func TestMarkupsGet(t *testing.T) {
	var m Markups
	m.set(triage.Quadrant, "q")
	assert.Equal(t, "q", m.Get(triage.Quadrant))
	assert.Equal(t, "", m.Get(triage.Layout("wide")))
}
