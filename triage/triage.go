// Package triage sorts assignments into urgency buckets and trims them to fit
// the fixed display layouts.
package triage

import (
	"sort"
	"time"

	"canvastrmnl/lms"
)

// Overdue assignments due longer ago than this are dropped from the display.
const TooOldThreshold = 40 * 24 * time.Hour

// Assignments due within this window from now are due soon.
const DueSoonWindow = 24 * time.Hour

type Bucket int

const (
	Overdue Bucket = iota
	DueSoon
	Upcoming
)

// Order is the display order of the buckets.
var Order = [...]Bucket{Overdue, DueSoon, Upcoming}

func (b Bucket) String() string {
	switch b {
	case Overdue:
		return "Overdue"
	case DueSoon:
		return "Today"
	case Upcoming:
		return "Todo"
	}
	return "Unknown"
}

// Item is an assignment joined to the course it belongs to.
type Item struct {
	Assignment lms.Assignment
	Course     lms.Course
}

// Due returns the item's due date. Only dated assignments become Items.
func (i Item) Due() time.Time {
	return *i.Assignment.DueAt
}

// Buckets holds the triaged items, indexed by Bucket.
type Buckets [3][]Item

// Counts is the number of items per bucket.
type Counts [3]int

func (b Buckets) Counts() Counts {
	var c Counts
	for i := range b {
		c[i] = len(b[i])
	}
	return c
}

// Empty reports whether no bucket holds an item.
func (b Buckets) Empty() bool {
	for i := range b {
		if len(b[i]) > 0 {
			return false
		}
	}
	return true
}

func classify(due, now time.Time) (Bucket, bool) {
	switch {
	case due.Before(now):
		if now.Sub(due) > TooOldThreshold {
			return 0, false
		}
		return Overdue, true
	case due.Before(now.Add(DueSoonWindow)):
		return DueSoon, true
	default:
		return Upcoming, true
	}
}

// Triage joins every assignment to its course and places it in the bucket
// matching its due date relative to now. Orphaned and undated assignments
// are dropped, as are overdue assignments older than TooOldThreshold.
// Each bucket is ordered by due date; ties keep ascending assignment id order.
func Triage(assignments map[int64]lms.Assignment, courses map[int64]lms.Course, now time.Time) Buckets {
	var b Buckets

	data := lms.Data{Assignments: assignments}
	for _, id := range data.AssignmentIDs() {
		a := assignments[id]
		if a.DueAt == nil {
			continue
		}
		course, ok := courses[a.CourseID]
		if !ok {
			continue
		}
		bucket, ok := classify(*a.DueAt, now)
		if !ok {
			continue
		}
		b[bucket] = append(b[bucket], Item{Assignment: a, Course: course})
	}

	for i := range b {
		items := b[i]
		sort.SliceStable(items, func(x, y int) bool {
			return items[x].Due().Before(items[y].Due())
		})
	}
	return b
}
