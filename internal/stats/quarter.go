package stats

import "time"

// CurrentQuarter maps a timestamp to its fiscal (year, quarter) pair.
// Months 1-3 are Q1, 10-12 are Q4. The year is never shifted: January of
// a new year reports Q1 of that year.
func CurrentQuarter(now time.Time) (year, quarter int) {
	return now.Year(), (int(now.Month())-1)/3 + 1
}

// PreviousQuarter returns the quarter immediately before the one
// containing now, crossing the year boundary when needed.
func PreviousQuarter(now time.Time) (year, quarter int) {
	year, quarter = CurrentQuarter(now)
	quarter--
	if quarter == 0 {
		quarter = 4
		year--
	}
	return year, quarter
}

// QuarterStart returns the first instant of the given quarter in UTC.
func QuarterStart(year, quarter int) time.Time {
	month := time.Month((quarter-1)*3 + 1)
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}
