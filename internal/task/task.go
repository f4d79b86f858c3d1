package task

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var ErrInvalid = errors.New("invalid")

// ValidationError reports a rejected field value. It still satisfies
// errors.Is(err, ErrInvalid).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "invalid"
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

var statusRank = map[Status]int{
	StatusTodo:       0,
	StatusInProgress: 1,
	StatusDone:       2,
}

func Statuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusDone}
}

func ParseStatus(s string) (Status, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "todo", "t":
		return StatusTodo, nil
	case "in_progress", "in-progress", "inprogress", "doing", "p":
		return StatusInProgress, nil
	case "done", "d":
		return StatusDone, nil
	default:
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
	}
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank orders statuses todo < in_progress < done for sorting.
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return len(statusRank)
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityRank = map[Priority]int{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
}

func ParsePriority(p string) (Priority, error) {
	switch strings.TrimSpace(strings.ToLower(p)) {
	case "low", "l":
		return PriorityLow, nil
	case "medium", "med", "m", "":
		return PriorityMedium, nil
	case "high", "h":
		return PriorityHigh, nil
	case "urgent", "u", "p0":
		return PriorityUrgent, nil
	default:
		return "", &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", p)}
	}
}

func (p Priority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

// Rank orders priorities low < medium < high < urgent for sorting.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

// Task is the sole persisted entity. DueDate is a date-only string
// (YYYY-MM-DD); lexical order on it is chronological order. Identity is
// by ID, never by value.
type Task struct {
	ID          string     `json:"id" yaml:"id" toml:"id"`
	Title       string     `json:"title" yaml:"title" toml:"title"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Status      Status     `json:"status" yaml:"status" toml:"status"`
	Priority    Priority   `json:"priority" yaml:"priority" toml:"priority"`
	DueDate     string     `json:"due_date,omitempty" yaml:"due_date,omitempty" toml:"due_date,omitempty"`
	Tags        []string   `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at" toml:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at" toml:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty" toml:"completed_at,omitempty"`
	RemoteID    string     `json:"remote_id,omitempty" yaml:"remote_id,omitempty" toml:"remote_id,omitempty"`
}

// ShortID returns a display prefix of the full id.
func (t Task) ShortID() string {
	if len(t.ID) <= 8 {
		return t.ID
	}
	return t.ID[:8]
}

func (t Task) Clone() Task {
	out := t
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		out.CompletedAt = &at
	}
	return out
}

// HasTag reports whether the task carries the tag, case-insensitively.
func (t Task) HasTag(tag string) bool {
	tag = strings.TrimSpace(strings.ToLower(tag))
	for _, have := range t.Tags {
		if strings.ToLower(have) == tag {
			return true
		}
	}
	return false
}

func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !t.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", t.Status)}
	}
	if !t.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", t.Priority)}
	}
	if t.DueDate != "" {
		if _, err := time.Parse("2006-01-02", t.DueDate); err != nil {
			return &ValidationError{Field: "due_date", Reason: fmt.Sprintf("malformed date %q (want YYYY-MM-DD)", t.DueDate)}
		}
	}
	for _, tag := range t.Tags {
		if strings.TrimSpace(tag) == "" {
			return &ValidationError{Field: "tags", Reason: "tags must not be empty"}
		}
	}
	if !t.CreatedAt.IsZero() && t.UpdatedAt.Before(t.CreatedAt) {
		return &ValidationError{Field: "updated_at", Reason: "must not precede created_at"}
	}
	return nil
}

// NormalizeTags trims, lowercases, drops empties, and deduplicates.
// The result is sorted so tag order never depends on input order.
func NormalizeTags(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(strings.ToLower(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// NormalizeDueDate accepts YYYY-MM-DD or an RFC3339 timestamp and returns
// the date part. Empty stays empty.
func NormalizeDueDate(due string) (string, error) {
	due = strings.TrimSpace(due)
	if due == "" {
		return "", nil
	}
	if t, err := time.Parse("2006-01-02", due); err == nil {
		return t.Format("2006-01-02"), nil
	}
	if t, err := time.Parse(time.RFC3339, due); err == nil {
		return t.Format("2006-01-02"), nil
	}
	return "", &ValidationError{Field: "due_date", Reason: fmt.Sprintf("malformed date %q (want YYYY-MM-DD)", due)}
}

// Changes is a partial update; nil fields leave the task untouched.
type Changes struct {
	Title       *string
	Description *string
	Status      *Status
	Priority    *Priority
	DueDate     *string
	Tags        *[]string
	RemoteID    *string
}

func (c Changes) Empty() bool {
	return c.Title == nil && c.Description == nil && c.Status == nil &&
		c.Priority == nil && c.DueDate == nil && c.Tags == nil && c.RemoteID == nil
}

// Apply validates and applies the changes, refreshing UpdatedAt. A status
// change to done stamps CompletedAt; any other status clears it. The task
// is untouched when validation fails.
func (t *Task) Apply(c Changes, now time.Time) error {
	next := t.Clone()
	if c.Title != nil {
		next.Title = strings.TrimSpace(*c.Title)
	}
	if c.Description != nil {
		next.Description = strings.TrimSpace(*c.Description)
	}
	if c.Status != nil {
		next.Status = *c.Status
		if *c.Status == StatusDone {
			at := now
			next.CompletedAt = &at
		} else {
			next.CompletedAt = nil
		}
	}
	if c.Priority != nil {
		next.Priority = *c.Priority
	}
	if c.DueDate != nil {
		due, err := NormalizeDueDate(*c.DueDate)
		if err != nil {
			return err
		}
		next.DueDate = due
	}
	if c.Tags != nil {
		next.Tags = NormalizeTags(*c.Tags)
	}
	if c.RemoteID != nil {
		next.RemoteID = strings.TrimSpace(*c.RemoteID)
	}
	next.UpdatedAt = now
	if err := next.Validate(); err != nil {
		return err
	}
	*t = next
	return nil
}
