package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/amirbrooks/taskman/internal/query"
	"github.com/amirbrooks/taskman/internal/task"
)

type randReader struct{}

func (randReader) Read(p []byte) (int, error) { return rand.Read(p) }

var (
	ErrNotFound  = errors.New("not found")
	ErrAmbiguous = errors.New("ambiguous id")
	ErrCorrupt   = errors.New("corrupt store")
	ErrStorage   = errors.New("storage failure")
	timeNow      = func() time.Time { return time.Now().UTC() }
)

// AmbiguousIDError provides the candidates when an id prefix matches more
// than one task. It still satisfies errors.Is(err, ErrAmbiguous).
type AmbiguousIDError struct {
	Prefix  string
	Matches []task.Task
}

func (e *AmbiguousIDError) Error() string {
	return fmt.Sprintf("ambiguous id: %q matches %d tasks", e.Prefix, len(e.Matches))
}

func (e *AmbiguousIDError) Is(target error) bool {
	return target == ErrAmbiguous
}

const (
	storeVersion  = "1.0.0"
	tasksFileName = "tasks.json"
	backupDirName = "backups"

	DefaultBackupCount = 5
)

type envelope struct {
	Version  string      `json:"version" yaml:"version" toml:"version"`
	Tasks    []task.Task `json:"tasks" yaml:"tasks" toml:"tasks"`
	Metadata metadata    `json:"metadata" yaml:"metadata" toml:"metadata"`
}

type metadata struct {
	LastModified time.Time `json:"last_modified" yaml:"last_modified" toml:"last_modified"`
	TaskCount    int       `json:"task_count" yaml:"task_count" toml:"task_count"`
}

// migrate upgrades an envelope read from disk to the current version.
// Files written before versioning carry no tag and are treated as current.
func migrate(env *envelope) error {
	switch env.Version {
	case "", storeVersion:
		env.Version = storeVersion
		return nil
	default:
		return fmt.Errorf("%w: unsupported store version %q", ErrCorrupt, env.Version)
	}
}

// Repository owns the canonical in-memory collection for one process
// invocation: load once, mutate, save after every mutating operation.
type Repository struct {
	dir         string
	backupCount int
	tasks       []task.Task
	loaded      bool
}

// Open prepares a repository rooted at dir. It does not touch the disk
// until Load is called.
func Open(dir string, backupCount int) *Repository {
	if backupCount <= 0 {
		backupCount = DefaultBackupCount
	}
	return &Repository{dir: dir, backupCount: backupCount}
}

func (r *Repository) Dir() string { return r.dir }

func (r *Repository) Path() string { return filepath.Join(r.dir, tasksFileName) }

// Load reads the primary store. A missing file is an empty collection,
// not an error. A malformed file fails with ErrCorrupt and the data stays
// on disk untouched.
func (r *Repository) Load() error {
	data, err := os.ReadFile(r.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.tasks = nil
			r.loaded = true
			return nil
		}
		return fmt.Errorf("%w: read %s: %v", ErrStorage, r.Path(), err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, r.Path(), err)
	}
	if err := migrate(&env); err != nil {
		return err
	}
	if err := checkIDs(env.Tasks); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, r.Path(), err)
	}
	r.tasks = env.Tasks
	r.loaded = true
	return nil
}

func checkIDs(tasks []task.Task) error {
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if strings.TrimSpace(t.ID) == "" {
			return errors.New("task with empty id")
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate task id %s", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// Tasks returns a copy of the collection; callers never see the
// repository's backing slice.
func (r *Repository) Tasks() []task.Task {
	out := make([]task.Task, len(r.tasks))
	for i, t := range r.tasks {
		out[i] = t.Clone()
	}
	return out
}

func (r *Repository) Len() int { return len(r.tasks) }

// Save persists the collection: back up the current primary file, write
// the new content to a temporary file, then rename over the primary. A
// crash mid-write never leaves a half-written primary, and the previous
// snapshot stays recoverable from the backup directory.
func (r *Repository) Save() error {
	if !r.loaded {
		// Refuse to overwrite a store that was never successfully read.
		return fmt.Errorf("%w: save before load", ErrStorage)
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := r.backupPrimary(); err != nil {
		return err
	}
	env := envelope{
		Version: storeVersion,
		Tasks:   r.tasks,
		Metadata: metadata{
			LastModified: timeNow(),
			TaskCount:    len(r.tasks),
		},
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return atomicWriteFile(r.Path(), data, 0o644)
}

// AddInput carries the caller-supplied fields for a new task; id, status,
// and timestamps are assigned by Add.
type AddInput struct {
	Title       string
	Description string
	Priority    string
	DueDate     string
	Tags        []string
}

func (r *Repository) Add(in AddInput) (*task.Task, error) {
	priority, err := task.ParsePriority(in.Priority)
	if err != nil {
		return nil, err
	}
	due, err := task.NormalizeDueDate(in.DueDate)
	if err != nil {
		return nil, err
	}
	now := timeNow()
	t := task.Task{
		ID:          r.freshID(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Status:      task.StatusTodo,
		Priority:    priority,
		DueDate:     due,
		Tags:        task.NormalizeTags(in.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	r.tasks = append(r.tasks, t)
	if err := r.Save(); err != nil {
		r.tasks = r.tasks[:len(r.tasks)-1]
		return nil, err
	}
	out := t.Clone()
	return &out, nil
}

func (r *Repository) freshID() string {
	id := newULID()
	for r.indexOf(id) >= 0 {
		id = newULID()
	}
	return id
}

func (r *Repository) indexOf(id string) int {
	for i := range r.tasks {
		if r.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Resolve looks a task up by full id or unique prefix, case-insensitively.
// An exact id match always wins; otherwise zero prefix matches is
// ErrNotFound and more than one is an AmbiguousIDError carrying the
// candidates.
func (r *Repository) Resolve(idOrPrefix string) (*task.Task, error) {
	i, err := r.resolveIndex(idOrPrefix)
	if err != nil {
		return nil, err
	}
	t := r.tasks[i].Clone()
	return &t, nil
}

func (r *Repository) resolveIndex(idOrPrefix string) (int, error) {
	prefix := strings.ToUpper(strings.TrimSpace(idOrPrefix))
	if prefix == "" {
		return -1, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	var hits []int
	for i := range r.tasks {
		id := strings.ToUpper(r.tasks[i].ID)
		if id == prefix {
			return i, nil
		}
		if strings.HasPrefix(id, prefix) {
			hits = append(hits, i)
		}
	}
	switch len(hits) {
	case 0:
		return -1, fmt.Errorf("%w: %s", ErrNotFound, idOrPrefix)
	case 1:
		return hits[0], nil
	default:
		matches := make([]task.Task, 0, len(hits))
		for _, i := range hits {
			matches = append(matches, r.tasks[i].Clone())
		}
		return -1, &AmbiguousIDError{Prefix: idOrPrefix, Matches: matches}
	}
}

// Update resolves the task, applies the partial changes, refreshes
// updated_at, and saves. The store is untouched when validation fails.
func (r *Repository) Update(idOrPrefix string, c task.Changes) (*task.Task, error) {
	i, err := r.resolveIndex(idOrPrefix)
	if err != nil {
		return nil, err
	}
	prev := r.tasks[i].Clone()
	if err := r.tasks[i].Apply(c, timeNow()); err != nil {
		return nil, err
	}
	if err := r.Save(); err != nil {
		r.tasks[i] = prev
		return nil, err
	}
	out := r.tasks[i].Clone()
	return &out, nil
}

// Done marks a task complete, stamping completed_at.
func (r *Repository) Done(idOrPrefix string) (*task.Task, error) {
	status := task.StatusDone
	return r.Update(idOrPrefix, task.Changes{Status: &status})
}

// Undo reopens a completed task, clearing completed_at.
func (r *Repository) Undo(idOrPrefix string) (*task.Task, error) {
	status := task.StatusTodo
	return r.Update(idOrPrefix, task.Changes{Status: &status})
}

func (r *Repository) Delete(idOrPrefix string) (*task.Task, error) {
	i, err := r.resolveIndex(idOrPrefix)
	if err != nil {
		return nil, err
	}
	removed := r.tasks[i].Clone()
	prev := r.tasks
	r.tasks = append(append([]task.Task(nil), r.tasks[:i]...), r.tasks[i+1:]...)
	if err := r.Save(); err != nil {
		r.tasks = prev
		return nil, err
	}
	return &removed, nil
}

// Clear removes every task whose status is done and reports how many.
func (r *Repository) Clear() (int, error) {
	prev := r.tasks
	var kept []task.Task
	for _, t := range r.tasks {
		if t.Status != task.StatusDone {
			kept = append(kept, t)
		}
	}
	removed := len(r.tasks) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	r.tasks = kept
	if err := r.Save(); err != nil {
		r.tasks = prev
		return 0, err
	}
	return removed, nil
}

// Query runs the canonical pipeline: filter, then search, then sort.
func (r *Repository) Query(filters []query.Filter, search query.Search, sortSpec query.Sort) ([]task.Task, error) {
	out := query.Apply(r.Tasks(), filters...)
	out, err := search.Apply(out)
	if err != nil {
		return nil, err
	}
	if sortSpec.Field == "" {
		sortSpec.Field = query.SortCreatedAt
	}
	return sortSpec.Apply(out), nil
}

func newULID() string {
	t := ulid.Timestamp(timeNow())
	entropy := ulid.Monotonic(randReader{}, 0)
	id, err := ulid.New(t, entropy)
	if err != nil {
		// fallback
		return fmt.Sprintf("%d", timeNow().UnixNano())
	}
	return strings.ToUpper(id.String())
}

func atomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%d", timeNow().UnixNano()))
	if err := os.WriteFile(tmp, data, perm); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	// Rename is atomic on same filesystem.
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}
