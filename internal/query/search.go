package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/amirbrooks/taskman/internal/task"
)

var ErrPattern = errors.New("invalid pattern")

// PatternError reports a regular expression that failed to compile. It
// still satisfies errors.Is(err, ErrPattern).
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Is(target error) bool { return target == ErrPattern }

func (e *PatternError) Unwrap() error { return e.Err }

// Search matches tasks whose title, description, or any tag contains the
// query, either as a literal substring or as a regular expression.
type Search struct {
	Query         string
	Regex         bool
	CaseSensitive bool
}

// Apply narrows tasks to those matching the search. A regex that fails to
// compile returns a PatternError and never matches everything. An empty
// query matches everything.
func (s Search) Apply(tasks []task.Task) ([]task.Task, error) {
	if strings.TrimSpace(s.Query) == "" {
		return append([]task.Task(nil), tasks...), nil
	}
	match, err := s.matcher()
	if err != nil {
		return nil, err
	}
	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if matchesTask(t, match) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s Search) matcher() (func(string) bool, error) {
	if s.Regex {
		pattern := s.Query
		if !s.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &PatternError{Pattern: s.Query, Err: err}
		}
		return re.MatchString, nil
	}
	if s.CaseSensitive {
		q := s.Query
		return func(text string) bool { return strings.Contains(text, q) }, nil
	}
	q := strings.ToLower(s.Query)
	return func(text string) bool { return strings.Contains(strings.ToLower(text), q) }, nil
}

func matchesTask(t task.Task, match func(string) bool) bool {
	if match(t.Title) || match(t.Description) {
		return true
	}
	for _, tag := range t.Tags {
		if match(tag) {
			return true
		}
	}
	return false
}
