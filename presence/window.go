package presence

import "time"

// Window is a daily wall-clock interval [Start, End) evaluated in Location.
// When End is before Start the window wraps midnight.
type Window struct {
	Start    time.Duration
	End      time.Duration
	Location *time.Location
}

// DefaultWindow is 08:00-18:00 host-local time.
func DefaultWindow() Window {
	return Window{Start: 8 * time.Hour, End: 18 * time.Hour, Location: time.Local}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	loc := w.Location
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	sinceMidnight := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())

	switch {
	case w.Start == w.End:
		// degenerate window: always open
		return true
	case w.Start < w.End:
		return sinceMidnight >= w.Start && sinceMidnight < w.End
	default:
		return sinceMidnight >= w.Start || sinceMidnight < w.End
	}
}
