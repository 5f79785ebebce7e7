package example

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"canvastrmnl/triage"
)

func TestDataFillsEveryBucket(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	data := Data(now)

	for _, a := range data.Assignments {
		_, ok := data.Courses[a.CourseID]
		assert.True(t, ok, a.Name)
	}

	b := triage.Triage(data.Assignments, data.Courses, now)
	counts := b.Counts()
	assert.Equal(t, 2, counts[triage.Overdue])
	assert.Equal(t, 3, counts[triage.DueSoon])
	assert.Equal(t, 4, counts[triage.Upcoming])
}
