// Package display turns triaged assignments into TRMNL plugin markup for each
// screen layout, plus a PNG approximation used for local previews.
package display

import (
	"bytes"
	"embed"
	"html/template"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"canvastrmnl/errors"
	"canvastrmnl/lms"
	"canvastrmnl/triage"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").ParseFS(templateFS, "templates/*.tmpl"))

// Markups holds the rendered markup for every layout, keyed the way the
// TRMNL plugin API expects.
type Markups struct {
	Full           string `json:"markup"`
	HalfHorizontal string `json:"markup_half_horizontal"`
	HalfVertical   string `json:"markup_half_vertical"`
	Quadrant       string `json:"markup_quadrant"`
}

func (m *Markups) set(layout triage.Layout, markup string) {
	switch layout {
	case triage.Full:
		m.Full = markup
	case triage.HalfHorizontal:
		m.HalfHorizontal = markup
	case triage.HalfVertical:
		m.HalfVertical = markup
	case triage.Quadrant:
		m.Quadrant = markup
	}
}

// Get returns the markup for one layout.
func (m Markups) Get(layout triage.Layout) string {
	switch layout {
	case triage.Full:
		return m.Full
	case triage.HalfHorizontal:
		return m.HalfHorizontal
	case triage.HalfVertical:
		return m.HalfVertical
	case triage.Quadrant:
		return m.Quadrant
	}
	return ""
}

type Renderer struct {
	Pick Picker
}

func NewRenderer(pick Picker) *Renderer {
	if pick == nil {
		pick = RandomPicker
	}
	return &Renderer{Pick: pick}
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", errors.NewError("display", "template execution failed", err)
	}
	return buf.String(), nil
}

// Project triages data and returns the view model for one layout.
func (r *Renderer) Project(data lms.Data, layout triage.Layout, now time.Time, tz *time.Location) Projection {
	buckets := triage.Triage(data.Assignments, data.Courses, now)
	return Project(layout, triage.Pack(buckets, layout), buckets.Counts(), now, tz, r.Pick)
}

// RenderAll triages data once and renders it in every layout.
func (r *Renderer) RenderAll(data lms.Data, now time.Time, tz *time.Location) (Markups, error) {
	buckets := triage.Triage(data.Assignments, data.Courses, now)
	counts := buckets.Counts()

	return r.each(func(layout triage.Layout) (string, error) {
		p := Project(layout, triage.Pack(buckets, layout), counts, now, tz, r.Pick)
		return execute("todo", p)
	})
}

// RenderError renders msg in place of the assignment list in every layout.
func (r *Renderer) RenderError(msg string) (Markups, error) {
	return r.each(func(triage.Layout) (string, error) {
		return execute("error", msg)
	})
}

func (r *Renderer) each(render func(triage.Layout) (string, error)) (Markups, error) {
	var (
		out Markups
		mu  sync.Mutex
		g   errgroup.Group
	)
	for _, layout := range triage.Layouts {
		g.Go(func() error {
			markup, err := render(layout)
			if err != nil {
				return err
			}
			mu.Lock()
			out.set(layout, markup)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Markups{}, err
	}
	return out, nil
}
