package display

import "time"

// Calendar days from day1 to day2, in day2's location.
func since(day1, day2 time.Time) int {
	y, m, d := day2.Date()
	u2 := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	y, m, d = day1.In(day2.Location()).Date()
	u1 := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(u2.Sub(u1) / (24 * time.Hour))
}

// dueString describes a due date relative to now, in the display's timezone.
// Dates within a week either side get a relative name; anything further
// out gets a full date. A time is appended unless the due date is midnight.
func dueString(due, now time.Time, tz *time.Location) string {
	local := due.In(tz)
	days := since(now.In(tz), local)

	var s string
	switch {
	case days == 0:
		s = "today"
	case days == 1:
		s = "tomorrow"
	case days == -1:
		s = "yesterday"
	case days > 1 && days < 7:
		s = local.Weekday().String()
	case days < -1 && days > -7:
		s = "last " + local.Weekday().String()
	default:
		s = local.Format("2 Jan 2006")
	}

	if local.Hour() != 0 || local.Minute() != 0 {
		s += local.Format(", 15:04")
	}
	return s
}
