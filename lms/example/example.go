// Package example provides a fixed set of courses and assignments, placed
// around a reference time, for previews and local development.
package example

import (
	"time"

	"canvastrmnl/lms"
)

var courses = []lms.Course{
	{ID: 101, Name: "Biology"},
	{ID: 102, Name: "Chemistry"},
	{ID: 103, Name: "English"},
	{ID: 104, Name: "Mathematics Methods"},
	{ID: 105, Name: "Modern History"},
}

type entry struct {
	id      int64
	course  int64
	name    string
	desc    string
	due     time.Duration
	undated bool
}

var entries = []entry{
	{id: 783663248, course: 101, name: "Genetic inheritance worksheet", due: -26 * time.Hour},
	{id: 873468673, course: 101, name: "Cell structure: in-class questions", due: -3 * time.Hour},
	{id: 127391235, course: 102, name: "Organic chemistry practice questions", due: 2 * time.Hour},
	{id: 234972234, course: 102, name: "Titration lab report", due: 20 * time.Hour},
	{id: 347898231, course: 103, name: "Persuasive essay draft", desc: "Upload a .docx", due: 6 * time.Hour},
	{id: 457823412, course: 103, name: "Poetry analysis", due: 50 * time.Hour},
	{id: 568923412, course: 104, name: "Calculus investigation", due: 4 * 24 * time.Hour},
	{id: 679234123, course: 104, name: "Problem set 7", due: 6 * 24 * time.Hour},
	{id: 780345234, course: 105, name: "Source analysis: Treaty of Versailles", due: 9 * 24 * time.Hour},
	{id: 891456345, course: 105, name: "Reading journal", undated: true},
	{id: 902567456, course: 101, name: "Ecology field notes", due: -60 * 24 * time.Hour},
}

// Data returns the example courses and assignments with due dates placed
// relative to now.
func Data(now time.Time) lms.Data {
	data := lms.NewData()
	for _, c := range courses {
		data.Courses[c.ID] = c
	}
	for _, e := range entries {
		a := lms.Assignment{
			ID:          e.id,
			CourseID:    e.course,
			Name:        e.name,
			Description: e.desc,
		}
		if !e.undated {
			due := now.Add(e.due)
			a.DueAt = &due
		}
		data.Assignments[a.ID] = a
	}
	return data
}
