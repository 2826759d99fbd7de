package core

import "time"

// DefaultCutoverDay is the first day of the month on which the salary counts
// as received.
const DefaultCutoverDay = 8

// CompetencyResolver maps calendar dates to the pay period they belong to.
type CompetencyResolver struct {
	CutoverDay int
}

func NewCompetencyResolver(cutoverDay int) CompetencyResolver {
	if cutoverDay < 1 || cutoverDay > 28 {
		cutoverDay = DefaultCutoverDay
	}
	return CompetencyResolver{CutoverDay: cutoverDay}
}

// Resolve returns the date's own month from the cutover day onwards and the
// previous month before it.
func (r CompetencyResolver) Resolve(t time.Time) Month {
	cutover := r.CutoverDay
	if cutover == 0 {
		cutover = DefaultCutoverDay
	}
	m := MonthOf(t)
	if t.Day() >= cutover {
		return m
	}
	return m.AddMonths(-1)
}
