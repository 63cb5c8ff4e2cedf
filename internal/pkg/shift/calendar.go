package shift

import "time"

// ShiftDateOf maps t to the day that owns the shift containing it. A shift
// opening at Start on day D and closing at End on D+1 is keyed by D. Instants
// in the daytime gap belong to no shift and report false.
func (w *Window) ShiftDateOf(t time.Time) (Date, bool) {
	local := t.In(w.Location)
	tau := TimeOfDayOf(local).seconds()

	if !w.Wraps() {
		if tau >= w.Start.seconds() && tau <= w.End.seconds() {
			return DateOf(local), true
		}
		return Date{}, false
	}

	switch {
	case tau >= w.Start.seconds():
		return DateOf(local), true
	case tau <= w.End.seconds():
		return DateOf(local).AddDays(-1), true
	default:
		return Date{}, false
	}
}

// OpeningShiftDate is the shift that begins at trigger, used by seeding.
func (w *Window) OpeningShiftDate(trigger time.Time) Date {
	return DateOf(trigger.In(w.Location))
}

// ClosingShiftDate is the shift whose close precedes trigger on the same
// local morning, used by finalization.
func (w *Window) ClosingShiftDate(trigger time.Time) Date {
	d := DateOf(trigger.In(w.Location))
	if w.Wraps() {
		return d.AddDays(-1)
	}
	return d
}

// CurrentOrLastShiftDate returns the running shift, or the most recently
// closed one when t is in the gap.
func (w *Window) CurrentOrLastShiftDate(t time.Time) Date {
	if d, ok := w.ShiftDateOf(t); ok {
		return d
	}
	local := t.In(w.Location)
	if !w.Wraps() && TimeOfDayOf(local).seconds() < w.Start.seconds() {
		return DateOf(local).AddDays(-1)
	}
	return w.ClosingShiftDate(local)
}

// OpensAt is the canonical open instant of shift d.
func (w *Window) OpensAt(d Date) time.Time {
	return d.At(w.Start, w.Location)
}

// ClosesAt is the canonical close instant of shift d.
func (w *Window) ClosesAt(d Date) time.Time {
	if w.Wraps() {
		return d.AddDays(1).At(w.End, w.Location)
	}
	return d.At(w.End, w.Location)
}
