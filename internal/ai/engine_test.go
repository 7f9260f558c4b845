package ai

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"efficio-backend/internal/tasks"
)

var testNow = time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC)

func due(d time.Duration) *time.Time {
	t := testNow.Add(d)
	return &t
}

const day = 24 * time.Hour

func task(id string, p tasks.Priority, f tasks.Frequency, dueDate *time.Time) tasks.Task {
	return tasks.Task{ID: id, Title: id, Priority: p, Frequency: f, DueDate: dueDate}
}

func TestGenerate_Scenarios(t *testing.T) {
	tests := []struct {
		name   string
		list   []tasks.Task
		want   []string // task id + reason
		wantTo []tasks.Priority
	}{
		{
			name:   "due tomorrow",
			list:   []tasks.Task{task("a", tasks.PriorityLow, tasks.FrequencyOnce, due(day))},
			want:   []string{"a: " + ReasonDueSoon},
			wantTo: []tasks.Priority{tasks.PriorityUrgent},
		},
		{
			name:   "due in five days",
			list:   []tasks.Task{task("b", tasks.PriorityLow, tasks.FrequencyOnce, due(5*day))},
			want:   []string{"b: " + ReasonDueThisWeek},
			wantTo: []tasks.Priority{tasks.PriorityHigh},
		},
		{
			name:   "three days overdue",
			list:   []tasks.Task{task("c", tasks.PriorityHigh, tasks.FrequencyOnce, due(-3*day))},
			want:   []string{"c: " + ReasonOverdue},
			wantTo: []tasks.Priority{tasks.PriorityUrgent},
		},
		{
			name: "daily low tasks",
			list: []tasks.Task{
				task("d1", tasks.PriorityLow, tasks.FrequencyDaily, nil),
				task("d2", tasks.PriorityLow, tasks.FrequencyDaily, nil),
				task("d3", tasks.PriorityLow, tasks.FrequencyDaily, nil),
			},
			want:   []string{"d1: " + ReasonDailyRoutine, "d2: " + ReasonDailyRoutine},
			wantTo: []tasks.Priority{tasks.PriorityMedium, tasks.PriorityMedium},
		},
		{
			name: "medium task due in five days",
			list: []tasks.Task{task("m", tasks.PriorityMedium, tasks.FrequencyOnce, due(5*day))},
		},
		{
			name: "due in eight days",
			list: []tasks.Task{task("e", tasks.PriorityLow, tasks.FrequencyOnce, due(8*day))},
		},
		{
			name:   "an hour overdue gets both",
			list:   []tasks.Task{task("h", tasks.PriorityMedium, tasks.FrequencyOnce, due(-time.Hour))},
			want:   []string{"h: " + ReasonDueSoon, "h: " + ReasonOverdue},
			wantTo: []tasks.Priority{tasks.PriorityUrgent, tasks.PriorityUrgent},
		},
		{
			name:   "exactly two days out is due soon",
			list:   []tasks.Task{task("x", tasks.PriorityLow, tasks.FrequencyOnce, due(2*day))},
			want:   []string{"x: " + ReasonDueSoon},
			wantTo: []tasks.Priority{tasks.PriorityUrgent},
		},
		{
			name:   "just over two days rounds up to three",
			list:   []tasks.Task{task("y", tasks.PriorityLow, tasks.FrequencyOnce, due(2*day+time.Minute))},
			want:   []string{"y: " + ReasonDueThisWeek},
			wantTo: []tasks.Priority{tasks.PriorityHigh},
		},
		{
			name: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.list, testNow)
			require.NotNil(t, got)

			var gotDesc []string
			var gotTo []tasks.Priority
			for _, s := range got {
				gotDesc = append(gotDesc, s.Task.ID+": "+s.Reason)
				gotTo = append(gotTo, s.SuggestedPriority)
			}
			assert.Equal(t, tt.want, gotDesc)
			assert.Equal(t, tt.wantTo, gotTo)
		})
	}
}

func TestGenerate_CapKeepsOrder(t *testing.T) {
	var list []tasks.Task
	for i := 0; i < 6; i++ {
		list = append(list, task(fmt.Sprintf("t%d", i), tasks.PriorityMedium, tasks.FrequencyOnce, due(day)))
	}

	got := Generate(list, testNow)
	require.Len(t, got, MaxSuggestions)
	for i, s := range got {
		assert.Equal(t, fmt.Sprintf("t%d", i), s.Task.ID)
		assert.Equal(t, ReasonDueSoon, s.Reason)
	}
}

func TestGenerate_DailyStarvedByCap(t *testing.T) {
	list := []tasks.Task{
		task("d1", tasks.PriorityLow, tasks.FrequencyDaily, nil),
		task("a", tasks.PriorityHigh, tasks.FrequencyOnce, due(day)),
		task("b", tasks.PriorityHigh, tasks.FrequencyOnce, due(day)),
		task("c", tasks.PriorityHigh, tasks.FrequencyOnce, due(-3*day)),
		task("d", tasks.PriorityLow, tasks.FrequencyOnce, due(4*day)),
		task("d2", tasks.PriorityLow, tasks.FrequencyDaily, nil),
	}

	got := Generate(list, testNow)
	require.Len(t, got, 5)
	ids := make([]string, len(got))
	for i, s := range got {
		ids[i] = s.Task.ID
	}
	// due soon, this week, overdue, then the first daily task
	assert.Equal(t, []string{"a", "b", "d", "c", "d1"}, ids)
}

func TestGenerate_SkipsCompleted(t *testing.T) {
	list := []tasks.Task{
		task("a", tasks.PriorityLow, tasks.FrequencyDaily, due(day)),
		task("b", tasks.PriorityLow, tasks.FrequencyOnce, due(-5*day)),
		task("c", tasks.PriorityLow, tasks.FrequencyOnce, due(4*day)),
	}
	for i := range list {
		list[i].Completed = true
	}

	assert.Empty(t, Generate(list, testNow))
}

func TestGenerate_UrgentNotEscalated(t *testing.T) {
	list := []tasks.Task{
		task("a", tasks.PriorityUrgent, tasks.FrequencyOnce, due(day)),
		task("b", tasks.PriorityUrgent, tasks.FrequencyOnce, due(-time.Hour)),
		task("c", tasks.PriorityUrgent, tasks.FrequencyOnce, due(-10*day)),
	}

	assert.Empty(t, Generate(list, testNow))
}

func TestGenerate_Idempotent(t *testing.T) {
	list := []tasks.Task{
		task("a", tasks.PriorityLow, tasks.FrequencyDaily, due(day)),
		task("b", tasks.PriorityMedium, tasks.FrequencyOnce, due(-time.Hour)),
		task("c", tasks.PriorityLow, tasks.FrequencyOnce, due(6*day)),
		task("d", tasks.PriorityLow, tasks.FrequencyDaily, nil),
	}

	first := Generate(list, testNow)
	second := Generate(list, testNow)
	assert.Equal(t, first, second)

	for _, s := range first {
		assert.True(t, s.SuggestedPriority.Valid())
	}
	assert.Equal(t, tasks.PriorityLow, list[0].Priority)
}

func TestGenerate_DailyOnlyFirstTwoQualifying(t *testing.T) {
	list := []tasks.Task{
		task("d1", tasks.PriorityMedium, tasks.FrequencyDaily, nil),
		task("d2", tasks.PriorityLow, tasks.FrequencyDaily, nil),
		task("w", tasks.PriorityLow, tasks.FrequencyWeekly, nil),
		task("d3", tasks.PriorityLow, tasks.FrequencyDaily, nil),
		task("d4", tasks.PriorityLow, tasks.FrequencyDaily, nil),
	}
	list[3].Completed = true

	got := Generate(list, testNow)
	require.Len(t, got, 2)
	assert.Equal(t, "d2", got[0].Task.ID)
	assert.Equal(t, "d4", got[1].Task.ID)
}
