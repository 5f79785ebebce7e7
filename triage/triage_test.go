package triage

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvastrmnl/lms"
)

var now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func course(id int64) lms.Course {
	return lms.Course{ID: id, Name: "Course"}
}

func ids(items []Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.Assignment.ID)
	}
	return out
}

func TestTriageBuckets(t *testing.T) {
	courses := map[int64]lms.Course{1: course(1)}
	assignments := map[int64]lms.Assignment{
		1: {ID: 1, CourseID: 1, Name: "old", DueAt: at(-41 * 24 * time.Hour)},
		2: {ID: 2, CourseID: 1, Name: "late", DueAt: at(-2 * time.Hour)},
		3: {ID: 3, CourseID: 1, Name: "edge of window", DueAt: at(-TooOldThreshold)},
		4: {ID: 4, CourseID: 1, Name: "now", DueAt: at(0)},
		5: {ID: 5, CourseID: 1, Name: "tonight", DueAt: at(23 * time.Hour)},
		6: {ID: 6, CourseID: 1, Name: "tomorrow", DueAt: at(24 * time.Hour)},
		7: {ID: 7, CourseID: 1, Name: "undated"},
		8: {ID: 8, CourseID: 99, Name: "orphan", DueAt: at(time.Hour)},
	}

	b := Triage(assignments, courses, now)
	assert.Equal(t, []int64{3, 2}, ids(b[Overdue]))
	assert.Equal(t, []int64{4, 5}, ids(b[DueSoon]))
	assert.Equal(t, []int64{6}, ids(b[Upcoming]))
}

func TestTriageDueAtNowIsDueSoon(t *testing.T) {
	courses := map[int64]lms.Course{1: course(1)}
	assignments := map[int64]lms.Assignment{
		1: {ID: 1, CourseID: 1, DueAt: at(0)},
	}
	b := Triage(assignments, courses, now)
	assert.Empty(t, b[Overdue])
	assert.Equal(t, []int64{1}, ids(b[DueSoon]))
}

func TestTriageTiesKeepIDOrder(t *testing.T) {
	courses := map[int64]lms.Course{1: course(1), 2: course(2)}
	assignments := map[int64]lms.Assignment{
		30: {ID: 30, CourseID: 2, DueAt: at(48 * time.Hour)},
		10: {ID: 10, CourseID: 1, DueAt: at(48 * time.Hour)},
		20: {ID: 20, CourseID: 1, DueAt: at(36 * time.Hour)},
	}
	for i := 0; i < 10; i++ {
		b := Triage(assignments, courses, now)
		assert.Equal(t, []int64{20, 10, 30}, ids(b[Upcoming]))
	}
}

func TestTriageAllEmpty(t *testing.T) {
	b := Triage(nil, nil, now)
	assert.True(t, b.Empty())
	assert.Equal(t, Counts{}, b.Counts())
}

func randomData(r *rand.Rand) (map[int64]lms.Assignment, map[int64]lms.Course) {
	courses := make(map[int64]lms.Course)
	n := int64(r.Intn(5) + 1)
	for id := int64(1); id <= n; id++ {
		courses[id] = course(id)
	}
	assignments := make(map[int64]lms.Assignment)
	count := r.Intn(30)
	for i := 0; i < count; i++ {
		id := int64(r.Intn(1000))
		a := lms.Assignment{ID: id, CourseID: int64(r.Intn(7))}
		if r.Intn(5) > 0 {
			// Spread due dates from 50 days ago to 10 days ahead.
			a.DueAt = at(time.Duration(r.Int63n(int64(60*24*time.Hour))) - 50*24*time.Hour)
		}
		assignments[id] = a
	}
	return assignments, courses
}

func TestTriageProperties(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for round := 0; round < 200; round++ {
		assignments, courses := randomData(r)
		b := Triage(assignments, courses, now)

		seen := make(map[int64]Bucket)
		for _, bucket := range Order {
			items := b[bucket]
			for i, it := range items {
				_, dup := seen[it.Assignment.ID]
				require.False(t, dup, "assignment %d in two buckets", it.Assignment.ID)
				seen[it.Assignment.ID] = bucket

				require.NotNil(t, it.Assignment.DueAt)
				_, ok := courses[it.Assignment.CourseID]
				require.True(t, ok)

				due := it.Due()
				switch bucket {
				case Overdue:
					require.True(t, due.Before(now) && now.Sub(due) <= TooOldThreshold)
				case DueSoon:
					require.True(t, !due.Before(now) && due.Before(now.Add(DueSoonWindow)))
				case Upcoming:
					require.False(t, due.Before(now.Add(DueSoonWindow)))
				}
				if i > 0 {
					require.False(t, due.Before(items[i-1].Due()), "bucket %v out of order", bucket)
				}
			}
		}

		for id, a := range assignments {
			_, hasCourse := courses[a.CourseID]
			if a.DueAt == nil || !hasCourse {
				require.NotContains(t, seen, id)
				continue
			}
			if now.Sub(*a.DueAt) > TooOldThreshold {
				require.NotContains(t, seen, id)
				continue
			}
			require.Contains(t, seen, id)
		}
	}
}
