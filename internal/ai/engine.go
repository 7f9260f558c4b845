package ai

import (
	"math"
	"time"

	"efficio-backend/internal/tasks"
)

const (
	ReasonDueSoon      = "Due date is approaching soon"
	ReasonDueThisWeek  = "Consider increasing priority - due within a week"
	ReasonOverdue      = "This task is overdue!"
	ReasonDailyRoutine = "Daily tasks should be prioritized to maintain routine"

	// MaxSuggestions caps the output of Generate.
	MaxSuggestions = 5

	maxDailySuggestions = 2
)

// Suggestion proposes a new priority for a task. It is advisory and never
// persisted.
type Suggestion struct {
	Task              *tasks.Task    `json:"task"`
	Reason            string         `json:"reason"`
	SuggestedPriority tasks.Priority `json:"suggested_priority"`
}

// Generate runs the priority rules over the incomplete tasks in list and
// returns at most MaxSuggestions suggestions, grouped by rule in this order:
// due soon, due this week, overdue, daily routine. A task may appear under
// more than one rule. now is the only clock Generate reads.
//
// Suggestions point into list; callers must not modify it while using them.
func Generate(list []tasks.Task, now time.Time) []Suggestion {
	out := make([]Suggestion, 0, MaxSuggestions)

	// due within two days, or at most a day and a bit overdue
	for i := range list {
		t := &list[i]
		if t.Completed || t.DueDate == nil || t.Priority == tasks.PriorityUrgent {
			continue
		}
		if d := daysUntil(*t.DueDate, now); d > -2 && d <= 2 {
			out = append(out, Suggestion{Task: t, Reason: ReasonDueSoon, SuggestedPriority: tasks.PriorityUrgent})
		}
	}

	for i := range list {
		t := &list[i]
		if t.Completed || t.DueDate == nil || t.Priority != tasks.PriorityLow {
			continue
		}
		if d := daysUntil(*t.DueDate, now); d > 2 && d <= 7 {
			out = append(out, Suggestion{Task: t, Reason: ReasonDueThisWeek, SuggestedPriority: tasks.PriorityHigh})
		}
	}

	for i := range list {
		t := &list[i]
		if t.Completed || t.DueDate == nil || t.Priority == tasks.PriorityUrgent {
			continue
		}
		if t.DueDate.Before(now) {
			out = append(out, Suggestion{Task: t, Reason: ReasonOverdue, SuggestedPriority: tasks.PriorityUrgent})
		}
	}

	daily := 0
	for i := range list {
		if daily == maxDailySuggestions {
			break
		}
		t := &list[i]
		if t.Completed || t.Frequency != tasks.FrequencyDaily || t.Priority != tasks.PriorityLow {
			continue
		}
		out = append(out, Suggestion{Task: t, Reason: ReasonDailyRoutine, SuggestedPriority: tasks.PriorityMedium})
		daily++
	}

	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out
}

// daysUntil rounds the distance from now to due up to whole days.
func daysUntil(due, now time.Time) int {
	return int(math.Ceil(float64(due.Sub(now)) / float64(24*time.Hour)))
}
