package query

import (
	"errors"
	"testing"
	"time"

	"github.com/amirbrooks/taskman/internal/task"
)

var clock = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func sampleTasks() []task.Task {
	old := clock.AddDate(0, 0, -30)
	return []task.Task{
		{ID: "A1", Title: "pay invoice", Status: task.StatusTodo, Priority: task.PriorityHigh, DueDate: "2026-03-08", Tags: []string{"finance"}, CreatedAt: old, UpdatedAt: old},
		{ID: "B2", Title: "review patch", Status: task.StatusInProgress, Priority: task.PriorityMedium, DueDate: "2026-03-10", Tags: []string{"work", "review"}, CreatedAt: clock.AddDate(0, 0, -2), UpdatedAt: clock},
		{ID: "C3", Title: "water plants", Status: task.StatusTodo, Priority: task.PriorityLow, CreatedAt: clock.AddDate(0, 0, -1), UpdatedAt: clock},
		{ID: "D4", Title: "old chore", Status: task.StatusDone, Priority: task.PriorityUrgent, DueDate: "2026-03-01", Tags: []string{"home"}, CreatedAt: old, UpdatedAt: old},
		{ID: "E5", Title: "plan trip", Status: task.StatusTodo, Priority: task.PriorityUrgent, DueDate: "2026-03-14", Tags: []string{"home"}, CreatedAt: clock, UpdatedAt: clock},
	}
}

func idsOf(tasks []task.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func wantIDs(t *testing.T, got []task.Task, want ...string) {
	t.Helper()
	gotIDs := idsOf(got)
	if len(gotIDs) != len(want) {
		t.Fatalf("expected ids %v, got %v", want, gotIDs)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("expected ids %v, got %v", want, gotIDs)
		}
	}
}

func TestFilterFieldsAreConjunctive(t *testing.T) {
	f := Filter{
		Statuses:   []task.Status{task.StatusTodo},
		Priorities: []task.Priority{task.PriorityHigh, task.PriorityUrgent},
	}
	wantIDs(t, Apply(sampleTasks(), f), "A1", "E5")
}

func TestFilterValuesWithinFieldAreDisjunctive(t *testing.T) {
	f := Filter{Statuses: []task.Status{task.StatusTodo, task.StatusDone}}
	wantIDs(t, Apply(sampleTasks(), f), "A1", "C3", "D4", "E5")
}

func TestFilterTagsMatchAny(t *testing.T) {
	f := Filter{Tags: []string{"finance", "review"}}
	wantIDs(t, Apply(sampleTasks(), f), "A1", "B2")
}

func TestFilterDueBoundsRequireDueDate(t *testing.T) {
	f := Filter{DueAfter: "2026-03-01", DueBefore: "2026-03-10"}
	got := Apply(sampleTasks(), f)
	for _, match := range got {
		if match.DueDate == "" {
			t.Fatalf("task %s without due date passed a due bound", match.ID)
		}
	}
	wantIDs(t, got, "A1", "B2", "D4")
}

func TestFilterUntagged(t *testing.T) {
	wantIDs(t, Apply(sampleTasks(), Filter{Untagged: true}), "C3")
}

func TestEmptyFilterMatchesEverything(t *testing.T) {
	got := Apply(sampleTasks(), Filter{})
	if len(got) != len(sampleTasks()) {
		t.Fatalf("expected all %d tasks, got %d", len(sampleTasks()), len(got))
	}
}

func TestPresetOverdueExcludesDoneAndToday(t *testing.T) {
	f, err := Preset(PresetOverdue, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A1 is past due and open; D4 is past due but done; B2 is due today.
	wantIDs(t, Apply(sampleTasks(), f), "A1")
}

func TestPresetToday(t *testing.T) {
	f, err := Preset(PresetToday, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIDs(t, Apply(sampleTasks(), f), "B2")
}

func TestPresetThisWeek(t *testing.T) {
	f, err := Preset(PresetThisWeek, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIDs(t, Apply(sampleTasks(), f), "B2", "E5")
}

func TestPresetRecent(t *testing.T) {
	f, err := Preset(PresetRecent, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIDs(t, Apply(sampleTasks(), f), "B2", "C3", "E5")
}

func TestPresetComposesWithExplicitFilter(t *testing.T) {
	active, err := Preset(PresetActive, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	explicit := Filter{Priorities: []task.Priority{task.PriorityUrgent}}
	wantIDs(t, Apply(sampleTasks(), explicit, active), "E5")
}

func TestPresetUnknownName(t *testing.T) {
	if _, err := Preset("tomorrow", clock); !errors.Is(err, task.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := sampleTasks()
	Apply(in, Filter{Statuses: []task.Status{task.StatusDone}})
	wantIDs(t, in, "A1", "B2", "C3", "D4", "E5")
}
