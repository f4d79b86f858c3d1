// Package sync pushes and pulls tasks against an external tracker. It
// goes through the repository's add/update contract only, so remote data
// is validated and persisted atomically like any local mutation.
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirbrooks/taskman/internal/store"
	"github.com/amirbrooks/taskman/internal/task"
)

// RemoteTask is the tracker-neutral view of a remote record.
type RemoteTask struct {
	ID    string
	Title string
	Notes string
	// Due is a date-only string (YYYY-MM-DD), empty when unset.
	Due  string
	Done bool
}

// Remote is the minimal tracker surface the engine needs. Implementations
// must return stable ids from Insert.
type Remote interface {
	List(ctx context.Context) ([]RemoteTask, error)
	Insert(ctx context.Context, t RemoteTask) (string, error)
	Patch(ctx context.Context, id string, t RemoteTask) error
}

type Result struct {
	Pushed int
	Pulled int
	Linked int
}

// Push sends the local collection to the tracker: unlinked tasks are
// inserted and linked by remote id, linked ones are patched.
func Push(ctx context.Context, repo *store.Repository, remote Remote) (Result, error) {
	var res Result
	for _, t := range repo.Tasks() {
		out := toRemote(t)
		if t.RemoteID == "" {
			rid, err := remote.Insert(ctx, out)
			if err != nil {
				return res, fmt.Errorf("push %s: %w", t.ShortID(), err)
			}
			if _, err := repo.Update(t.ID, task.Changes{RemoteID: &rid}); err != nil {
				return res, fmt.Errorf("link %s: %w", t.ShortID(), err)
			}
			res.Linked++
		} else if err := remote.Patch(ctx, t.RemoteID, out); err != nil {
			return res, fmt.Errorf("push %s: %w", t.ShortID(), err)
		}
		res.Pushed++
	}
	return res, nil
}

// Pull brings remote records into the local collection: unknown remote
// ids become new tasks, known ones update title, notes, due date, and
// completion state.
func Pull(ctx context.Context, repo *store.Repository, remote Remote) (Result, error) {
	var res Result
	items, err := remote.List(ctx)
	if err != nil {
		return res, err
	}
	byRemote := map[string]task.Task{}
	for _, t := range repo.Tasks() {
		if t.RemoteID != "" {
			byRemote[t.RemoteID] = t
		}
	}
	for _, item := range items {
		if strings.TrimSpace(item.Title) == "" {
			continue
		}
		local, linked := byRemote[item.ID]
		if !linked {
			added, err := repo.Add(store.AddInput{
				Title:       item.Title,
				Description: item.Notes,
				DueDate:     item.Due,
			})
			if err != nil {
				return res, fmt.Errorf("pull %q: %w", item.Title, err)
			}
			changes := task.Changes{RemoteID: &item.ID}
			if item.Done {
				done := task.StatusDone
				changes.Status = &done
			}
			if _, err := repo.Update(added.ID, changes); err != nil {
				return res, fmt.Errorf("link %s: %w", added.ShortID(), err)
			}
			res.Pulled++
			res.Linked++
			continue
		}
		changes := remoteChanges(local, item)
		if changes.Empty() {
			continue
		}
		if _, err := repo.Update(local.ID, changes); err != nil {
			return res, fmt.Errorf("pull %s: %w", local.ShortID(), err)
		}
		res.Pulled++
	}
	return res, nil
}

func remoteChanges(local task.Task, item RemoteTask) task.Changes {
	var c task.Changes
	if title := strings.TrimSpace(item.Title); title != "" && title != local.Title {
		c.Title = &title
	}
	if notes := strings.TrimSpace(item.Notes); notes != local.Description {
		c.Description = &notes
	}
	if item.Due != local.DueDate {
		due := item.Due
		c.DueDate = &due
	}
	if item.Done && local.Status != task.StatusDone {
		done := task.StatusDone
		c.Status = &done
	}
	if !item.Done && local.Status == task.StatusDone {
		todo := task.StatusTodo
		c.Status = &todo
	}
	return c
}

func toRemote(t task.Task) RemoteTask {
	return RemoteTask{
		ID:    t.RemoteID,
		Title: t.Title,
		Notes: t.Description,
		Due:   t.DueDate,
		Done:  t.Status == task.StatusDone,
	}
}

// dateOnly trims an RFC3339 timestamp down to its date part.
func dateOnly(rfc3339 string) string {
	if rfc3339 == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, rfc3339); err == nil {
		return t.Format("2006-01-02")
	}
	if len(rfc3339) >= 10 {
		return rfc3339[:10]
	}
	return ""
}
