package util

import "time"

var newYork = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// InRegularSession reports whether t falls inside the regular US equity
// session, 09:30-16:00 Eastern on a weekday. Exchange holidays are not
// modelled here; callers that need them should consult the broker calendar.
func InRegularSession(t time.Time) bool {
	et := t.In(newYork)
	switch et.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minutes := et.Hour()*60 + et.Minute()
	return minutes >= 9*60+30 && minutes < 16*60
}
