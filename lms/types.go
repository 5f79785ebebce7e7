// Package lms holds the course and assignment data fetched from a learning
// management system, independent of how it is displayed.
package lms

import (
	"sort"
	"time"
)

// Course represents a course into which the user is enrolled.
type Course struct {
	ID   int64
	Name string
}

// Assignment represents an unsubmitted assignment for a course. A nil DueAt
// means the assignment is undated.
type Assignment struct {
	ID          int64
	CourseID    int64
	Name        string
	Description string
	DueAt       *time.Time
}

// Data is the result of a single fetch, keyed by id.
type Data struct {
	Courses     map[int64]Course
	Assignments map[int64]Assignment
}

// NewData returns an empty Data ready to be filled.
func NewData() Data {
	return Data{
		Courses:     make(map[int64]Course),
		Assignments: make(map[int64]Assignment),
	}
}

// AssignmentIDs returns the assignment ids in ascending order.
func (d Data) AssignmentIDs() []int64 {
	ids := make([]int64, 0, len(d.Assignments))
	for id := range d.Assignments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CourseIDs returns the course ids in ascending order.
func (d Data) CourseIDs() []int64 {
	ids := make([]int64, 0, len(d.Courses))
	for id := range d.Courses {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
