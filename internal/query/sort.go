package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/amirbrooks/taskman/internal/task"
)

type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortUpdatedAt SortField = "updated_at"
	SortDueDate   SortField = "due_date"
	SortPriority  SortField = "priority"
	SortStatus    SortField = "status"
	SortTitle     SortField = "title"
)

func ParseSortField(s string) (SortField, error) {
	field := SortField(strings.TrimSpace(strings.ToLower(s)))
	switch field {
	case SortCreatedAt, SortUpdatedAt, SortDueDate, SortPriority, SortStatus, SortTitle:
		return field, nil
	default:
		return "", fmt.Errorf("%w: unknown sort field %q", task.ErrInvalid, s)
	}
}

// Sort produces a total order over a result set. Priority and status
// compare by enum rank, title case-insensitively, and dates
// chronologically. Tasks without a due date sort after all tasks that
// have one, in both directions. Ties break by id ascending.
type Sort struct {
	Field SortField
	Desc  bool
}

// Apply returns a sorted copy; the input slice is never mutated.
func (s Sort) Apply(tasks []task.Task) []task.Task {
	out := append([]task.Task(nil), tasks...)
	sort.SliceStable(out, func(i, j int) bool {
		c := s.compare(out[i], out[j])
		if c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s Sort) compare(a, b task.Task) int {
	// Missing due dates are always last, regardless of direction.
	if s.Field == SortDueDate {
		switch {
		case a.DueDate == "" && b.DueDate == "":
			return 0
		case a.DueDate == "":
			return 1
		case b.DueDate == "":
			return -1
		}
	}
	c := compareField(s.Field, a, b)
	if s.Desc {
		c = -c
	}
	return c
}

func compareField(field SortField, a, b task.Task) int {
	switch field {
	case SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case SortDueDate:
		return strings.Compare(a.DueDate, b.DueDate)
	case SortPriority:
		return a.Priority.Rank() - b.Priority.Rank()
	case SortStatus:
		return a.Status.Rank() - b.Status.Rank()
	case SortTitle:
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	default: // created_at
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}
