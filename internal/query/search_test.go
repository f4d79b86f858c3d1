package query

import (
	"errors"
	"testing"

	"github.com/amirbrooks/taskman/internal/task"
)

func searchTasks() []task.Task {
	return []task.Task{
		{ID: "A1", Title: "Deploy API gateway", Description: "staging first"},
		{ID: "B2", Title: "groceries", Description: "milk and eggs", Tags: []string{"errand"}},
		{ID: "C3", Title: "fix flaky test", Tags: []string{"api", "ci"}},
	}
}

func TestSearchLiteralIsCaseInsensitiveByDefault(t *testing.T) {
	got, err := Search{Query: "api"}.Apply(searchTasks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIDs(t, got, "A1", "C3")
}

func TestSearchCaseSensitive(t *testing.T) {
	got, err := Search{Query: "api", CaseSensitive: true}.Apply(searchTasks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIDs(t, got, "C3")
}

func TestSearchMatchesDescriptionAndTags(t *testing.T) {
	got, err := Search{Query: "milk"}.Apply(searchTasks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIDs(t, got, "B2")

	got, err = Search{Query: "errand"}.Apply(searchTasks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIDs(t, got, "B2")
}

func TestSearchRegex(t *testing.T) {
	got, err := Search{Query: `^fix\s+\w+`, Regex: true}.Apply(searchTasks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIDs(t, got, "C3")
}

func TestSearchRegexHonorsCaseSensitivity(t *testing.T) {
	got, err := Search{Query: "deploy", Regex: true}.Apply(searchTasks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIDs(t, got, "A1")

	got, err = Search{Query: "deploy", Regex: true, CaseSensitive: true}.Apply(searchTasks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIDs(t, got)
}

func TestSearchBadPattern(t *testing.T) {
	_, err := Search{Query: "(unterminated", Regex: true}.Apply(searchTasks())
	if !errors.Is(err, ErrPattern) {
		t.Fatalf("expected ErrPattern, got %v", err)
	}
	var perr *PatternError
	if !errors.As(err, &perr) || perr.Pattern != "(unterminated" {
		t.Fatalf("expected PatternError carrying the pattern, got %v", err)
	}
}

func TestSearchEmptyQueryReturnsAll(t *testing.T) {
	got, err := Search{}.Apply(searchTasks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIDs(t, got, "A1", "B2", "C3")
}
