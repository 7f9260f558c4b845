package tasks

import (
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// CalendarDay is the calendar view for one day.
type CalendarDay struct {
	Date string `json:"date"`
	// Tasks due on Date.
	Tasks []Task `json:"tasks"`
	// MarkedDays lists the days of Date's month that have a due task.
	MarkedDays []string `json:"marked_days"`
}

// Calendar groups tasks by the calendar day of their due date in day's
// location. Completed tasks are included.
func Calendar(list []Task, day time.Time) CalendarDay {
	loc := day.Location()
	y, m, d := day.Date()

	out := CalendarDay{
		Date:       day.Format(dateLayout),
		Tasks:      []Task{},
		MarkedDays: []string{},
	}

	marked := map[string]bool{}
	for _, t := range list {
		if t.DueDate == nil {
			continue
		}
		due := t.DueDate.In(loc)
		dy, dm, dd := due.Date()
		if dy != y || dm != m {
			continue
		}
		marked[due.Format(dateLayout)] = true
		if dd == d {
			out.Tasks = append(out.Tasks, t)
		}
	}

	for k := range marked {
		out.MarkedDays = append(out.MarkedDays, k)
	}
	sort.Strings(out.MarkedDays)
	return out
}

// ParseDay parses a YYYY-MM-DD date in the named IANA zone. Empty values
// mean today and UTC.
func ParseDay(date, tz string, now time.Time) (time.Time, error) {
	loc := time.UTC
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, inputError("unknown time zone " + tz)
		}
		loc = l
	}

	if date == "" {
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}

	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, inputError("date must be YYYY-MM-DD")
	}
	return day, nil
}
