package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirbrooks/taskman/internal/task"
)

// Filter is a conjunction of independently-optional criteria: an omitted
// field imposes no constraint; a field with multiple values matches when
// the task matches any one of them.
type Filter struct {
	Statuses   []task.Status
	Priorities []task.Priority
	Tags       []string
	// DueBefore and DueAfter are inclusive date bounds (YYYY-MM-DD).
	// Either bound requires the task to have a due date at all.
	DueBefore string
	DueAfter  string
	// CreatedSince keeps tasks created at or after the instant.
	CreatedSince time.Time
	// Untagged keeps only tasks with no tags.
	Untagged bool
}

func (f Filter) Match(t task.Task) bool {
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, t.Priority) {
		return false
	}
	if len(f.Tags) > 0 && !hasAnyTag(t, f.Tags) {
		return false
	}
	if f.DueBefore != "" && (t.DueDate == "" || t.DueDate > f.DueBefore) {
		return false
	}
	if f.DueAfter != "" && (t.DueDate == "" || t.DueDate < f.DueAfter) {
		return false
	}
	if !f.CreatedSince.IsZero() && t.CreatedAt.Before(f.CreatedSince) {
		return false
	}
	if f.Untagged && len(t.Tags) > 0 {
		return false
	}
	return true
}

// Apply narrows tasks to those matching every filter. The input slice is
// never mutated.
func Apply(tasks []task.Task, filters ...Filter) []task.Task {
	out := make([]task.Task, 0, len(tasks))
next:
	for _, t := range tasks {
		for _, f := range filters {
			if !f.Match(t) {
				continue next
			}
		}
		out = append(out, t)
	}
	return out
}

// Preset names understood by Preset.
const (
	PresetActive       = "active"
	PresetOverdue      = "overdue"
	PresetHighPriority = "high_priority"
	PresetToday        = "today"
	PresetThisWeek     = "this_week"
	PresetUntagged     = "untagged"
	PresetRecent       = "recent"
)

func PresetNames() []string {
	return []string{
		PresetActive, PresetOverdue, PresetHighPriority, PresetToday,
		PresetThisWeek, PresetUntagged, PresetRecent,
	}
}

// Preset expands a named view into a plain Filter so it composes with
// explicit criteria instead of bypassing the engine.
func Preset(name string, now time.Time) (Filter, error) {
	today := now.UTC().Format("2006-01-02")
	switch strings.TrimSpace(strings.ToLower(name)) {
	case PresetActive:
		return Filter{Statuses: []task.Status{task.StatusTodo, task.StatusInProgress}}, nil
	case PresetOverdue:
		// due strictly before today and not done
		yesterday := now.UTC().AddDate(0, 0, -1).Format("2006-01-02")
		return Filter{
			Statuses:  []task.Status{task.StatusTodo, task.StatusInProgress},
			DueBefore: yesterday,
		}, nil
	case PresetHighPriority:
		return Filter{Priorities: []task.Priority{task.PriorityHigh, task.PriorityUrgent}}, nil
	case PresetToday:
		return Filter{DueAfter: today, DueBefore: today}, nil
	case PresetThisWeek:
		weekEnd := now.UTC().AddDate(0, 0, 6).Format("2006-01-02")
		return Filter{DueAfter: today, DueBefore: weekEnd}, nil
	case PresetUntagged:
		return Filter{Untagged: true}, nil
	case PresetRecent:
		return Filter{CreatedSince: now.UTC().AddDate(0, 0, -7)}, nil
	default:
		return Filter{}, fmt.Errorf("%w: unknown preset %q", task.ErrInvalid, name)
	}
}

func containsStatus(list []task.Status, s task.Status) bool {
	for _, have := range list {
		if have == s {
			return true
		}
	}
	return false
}

func containsPriority(list []task.Priority, p task.Priority) bool {
	for _, have := range list {
		if have == p {
			return true
		}
	}
	return false
}

func hasAnyTag(t task.Task, tags []string) bool {
	for _, tag := range tags {
		if t.HasTag(tag) {
			return true
		}
	}
	return false
}
