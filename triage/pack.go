package triage

import "fmt"

type Layout string

const (
	Full           Layout = "full"
	HalfVertical   Layout = "halfVertical"
	HalfHorizontal Layout = "halfHorizontal"
	Quadrant       Layout = "quadrant"
)

// Layouts lists every layout a plugin screen is rendered in.
var Layouts = []Layout{Full, HalfHorizontal, HalfVertical, Quadrant}

// Rows available to sections in the shared-budget layouts. A section header
// costs one row.
var quotas = map[Layout]int{
	Full:         8,
	HalfVertical: 7,
	Quadrant:     3,
}

// Items per section in the column layout.
const columnCap = 3

const headerCost = 1

// ShowsSummary reports whether the layout has room for the per-bucket totals.
func (l Layout) ShowsSummary() bool {
	return l == Full || l == HalfVertical
}

func (l Layout) Valid() bool {
	if l == HalfHorizontal {
		return true
	}
	_, ok := quotas[l]
	return ok
}

// Pack trims each bucket to a prefix that fits the layout. HalfHorizontal
// shows buckets side by side and caps each one independently. The other
// layouts stack buckets and share one row budget: every item costs a row,
// and every bucket that had items costs a header row after it, even if none
// of its items fit. Pack panics on an unknown layout.
func Pack(b Buckets, layout Layout) Buckets {
	var out Buckets

	if layout == HalfHorizontal {
		for i := range b {
			out[i] = b[i][:min(len(b[i]), columnCap)]
		}
		return out
	}

	quota, ok := quotas[layout]
	if !ok {
		panic(fmt.Sprintf("triage: unknown layout %q", layout))
	}

	for _, bucket := range Order {
		items := b[bucket]
		n := 0
		for range items {
			quota--
			if quota < 0 {
				break
			}
			n++
		}
		out[bucket] = items[:n]
		if len(items) > 0 {
			quota -= headerCost
		}
	}
	return out
}
