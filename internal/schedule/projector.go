package schedule

// NextDate projects the next due day. It reports false when there is no
// last date or the interval is negative.
func NextDate(last *Date, intervalDays int) (Date, bool) {
	if last == nil || last.IsZero() || intervalDays < 0 {
		return Date{}, false
	}
	return last.AddDays(intervalDays), true
}

// RemainingDays is the number of days from today until projected, never
// negative: an overdue projection counts as zero.
func RemainingDays(projected, today Date) int {
	return max(0, today.DaysUntil(projected))
}
