package shift

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTimeOfDay = errors.New("time of day must be HH:MM or HH:MM:SS")
	ErrEmptyWindow      = errors.New("window start and end must differ")
)

// TimeOfDay is a local wall-clock time with second resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay accepts "15:04" or "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
}

// UnmarshalText lets TimeOfDay be read straight from env vars.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimeOfDayOf returns the wall-clock time of t in t's location, sub-second truncated.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

func (t TimeOfDay) seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

func (t TimeOfDay) String() string {
	if t.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// NextOccurrence returns the first instant strictly after `after` whose
// wall-clock time in loc is `at`.
func NextOccurrence(after time.Time, at TimeOfDay, loc *time.Location) time.Time {
	local := after.In(loc)
	candidate := DateOf(local).At(at, loc)
	if !candidate.After(after) {
		candidate = DateOf(local).AddDays(1).At(at, loc)
	}
	return candidate
}

// Window is the nightly interval in which attendance actions are allowed.
// Start > End means the window crosses midnight.
type Window struct {
	Start    TimeOfDay
	End      TimeOfDay
	Location *time.Location
}

func NewWindow(start, end TimeOfDay, loc *time.Location) (*Window, error) {
	if loc == nil {
		return nil, errors.New("window location is required")
	}
	if start.seconds() == end.seconds() {
		return nil, ErrEmptyWindow
	}
	return &Window{Start: start, End: end, Location: loc}, nil
}

// Wraps reports whether the window crosses local midnight.
func (w *Window) Wraps() bool {
	return w.Start.seconds() > w.End.seconds()
}

// Contains reports whether t falls inside the window. Both bounds are inclusive.
func (w *Window) Contains(t time.Time) bool {
	tau := TimeOfDayOf(t.In(w.Location)).seconds()
	if w.Wraps() {
		return tau >= w.Start.seconds() || tau <= w.End.seconds()
	}
	return tau >= w.Start.seconds() && tau <= w.End.seconds()
}

// NextOpen returns t when the window is open, otherwise the next local Start.
func (w *Window) NextOpen(t time.Time) time.Time {
	if w.Contains(t) {
		return t
	}
	local := t.In(w.Location)
	today := DateOf(local).At(w.Start, w.Location)
	if !today.Before(local.Truncate(time.Second)) {
		return today
	}
	return DateOf(local).AddDays(1).At(w.Start, w.Location)
}

func (w *Window) String() string {
	return fmt.Sprintf("%s - %s (%s)", w.Start, w.End, w.Location)
}
