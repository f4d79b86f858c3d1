package query

import (
	"errors"
	"testing"
	"time"

	"github.com/amirbrooks/taskman/internal/task"
)

func sortTasks() []task.Task {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return []task.Task{
		{ID: "A1", Title: "zebra", Status: task.StatusDone, Priority: task.PriorityLow, DueDate: "2026-03-05", CreatedAt: base.Add(3 * time.Hour)},
		{ID: "B2", Title: "Apple", Status: task.StatusTodo, Priority: task.PriorityUrgent, CreatedAt: base.Add(1 * time.Hour)},
		{ID: "C3", Title: "mango", Status: task.StatusInProgress, Priority: task.PriorityHigh, DueDate: "2026-03-02", CreatedAt: base.Add(2 * time.Hour)},
	}
}

func TestParseSortField(t *testing.T) {
	got, err := ParseSortField("  Due_Date ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != SortDueDate {
		t.Fatalf("expected %q, got %q", SortDueDate, got)
	}
	if _, err := ParseSortField("urgency"); !errors.Is(err, task.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestSortMissingDueDateIsLastBothDirections(t *testing.T) {
	asc := Sort{Field: SortDueDate}.Apply(sortTasks())
	wantIDs(t, asc, "C3", "A1", "B2")

	desc := Sort{Field: SortDueDate, Desc: true}.Apply(sortTasks())
	wantIDs(t, desc, "A1", "C3", "B2")
}

func TestSortPriorityByRank(t *testing.T) {
	got := Sort{Field: SortPriority, Desc: true}.Apply(sortTasks())
	wantIDs(t, got, "B2", "C3", "A1")
}

func TestSortStatusByRank(t *testing.T) {
	got := Sort{Field: SortStatus}.Apply(sortTasks())
	wantIDs(t, got, "B2", "C3", "A1")
}

func TestSortTitleIgnoresCase(t *testing.T) {
	got := Sort{Field: SortTitle}.Apply(sortTasks())
	wantIDs(t, got, "B2", "C3", "A1")
}

func TestSortTiesBreakByIDAscending(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tasks := []task.Task{
		{ID: "Z9", Title: "same", Priority: task.PriorityMedium, CreatedAt: now},
		{ID: "A1", Title: "same", Priority: task.PriorityMedium, CreatedAt: now},
		{ID: "M5", Title: "same", Priority: task.PriorityMedium, CreatedAt: now},
	}
	got := Sort{Field: SortPriority}.Apply(tasks)
	wantIDs(t, got, "A1", "M5", "Z9")

	// The tie-break stays ascending even for descending sorts.
	got = Sort{Field: SortPriority, Desc: true}.Apply(tasks)
	wantIDs(t, got, "A1", "M5", "Z9")
}

func TestSortDoesNotMutateInput(t *testing.T) {
	in := sortTasks()
	Sort{Field: SortTitle}.Apply(in)
	wantIDs(t, in, "A1", "B2", "C3")
}

func TestSortUnknownFieldFallsBackToCreatedAt(t *testing.T) {
	got := Sort{}.Apply(sortTasks())
	wantIDs(t, got, "B2", "C3", "A1")
}
