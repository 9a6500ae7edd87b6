package pipeline

import "time"

// targetYears returns every calendar year the closed date range touches.
func targetYears(start, end time.Time) []int {
	var years []int
	for y := start.Year(); y <= end.Year(); y++ {
		years = append(years, y)
	}
	return years
}

// targetMonths returns the months of the given year that overlap the
// closed date range, in calendar order.
func targetMonths(start, end time.Time, year int) []time.Month {
	var months []time.Month
	for m := time.January; m <= time.December; m++ {
		first := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
		last := first.AddDate(0, 1, -1)
		if last.Before(start) || first.After(end) {
			continue
		}
		months = append(months, m)
	}
	return months
}
