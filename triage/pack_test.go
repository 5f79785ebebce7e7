package triage

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvastrmnl/lms"
)

func items(n int, start int64) []Item {
	out := make([]Item, n)
	for i := range out {
		id := start + int64(i)
		out[i] = Item{
			Assignment: lms.Assignment{ID: id, CourseID: 1, DueAt: at(time.Duration(id) * time.Minute)},
			Course:     course(1),
		}
	}
	return out
}

func buckets(overdue, soon, upcoming int) Buckets {
	return Buckets{items(overdue, 100), items(soon, 200), items(upcoming, 300)}
}

func TestPackHeaderAccounting(t *testing.T) {
	tests := []struct {
		name   string
		layout Layout
		in     Buckets
		want   Counts
	}{
		{"quadrant with two per bucket", Quadrant, buckets(2, 2, 2), Counts{2, 0, 0}},
		{"quadrant skips empty overdue header", Quadrant, buckets(0, 2, 2), Counts{0, 2, 0}},
		{"quadrant only upcoming", Quadrant, buckets(0, 0, 5), Counts{0, 0, 3}},
		{"full fits two per bucket", Full, buckets(2, 2, 2), Counts{2, 2, 2}},
		{"full with three per bucket", Full, buckets(3, 3, 3), Counts{3, 3, 0}},
		{"full overdue fills budget", Full, buckets(10, 1, 1), Counts{8, 0, 0}},
		{"half vertical", HalfVertical, buckets(1, 1, 5), Counts{1, 1, 3}},
		{"half vertical all upcoming", HalfVertical, buckets(0, 0, 9), Counts{0, 0, 7}},
		{"half horizontal caps each", HalfHorizontal, buckets(5, 1, 4), Counts{3, 1, 3}},
		{"empty", Full, Buckets{}, Counts{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Pack(tt.in, tt.layout).Counts())
		})
	}
}

func TestPackKeepsPrefix(t *testing.T) {
	in := buckets(4, 4, 4)
	for _, layout := range Layouts {
		out := Pack(in, layout)
		for _, bucket := range Order {
			assert.Equal(t, ids(in[bucket][:len(out[bucket])]), ids(out[bucket]), "%s %v", layout, bucket)
		}
	}
}

func TestPackUnknownLayout(t *testing.T) {
	assert.Panics(t, func() { Pack(buckets(1, 1, 1), Layout("wide")) })
	assert.False(t, Layout("wide").Valid())
	assert.True(t, HalfHorizontal.Valid())
}

func TestPackCapacityProperty(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 500; round++ {
		in := buckets(r.Intn(12), r.Intn(12), r.Intn(12))
		for _, layout := range Layouts {
			out := Pack(in, layout)
			c := out.Counts()

			if layout == HalfHorizontal {
				for _, bucket := range Order {
					require.Equal(t, min(len(in[bucket]), 3), c[bucket])
				}
				continue
			}

			require.LessOrEqual(t, c[Overdue]+c[DueSoon]+c[Upcoming], quotas[layout])

			// Overdue items that fill the budget crowd out everything else.
			if len(in[Overdue]) >= quotas[layout] {
				require.Zero(t, c[DueSoon]+c[Upcoming], "%s %v", layout, c)
			}

			// Rows used up to the last bucket that shows items, counting the
			// headers of earlier non-empty buckets, never exceed the budget.
			used := 0
			for _, bucket := range Order {
				used += c[bucket]
				if c[bucket] > 0 {
					require.LessOrEqual(t, used, quotas[layout], "%s %v", layout, c)
				}
				if len(in[bucket]) > 0 {
					used += headerCost
				}
			}
		}
	}
}
