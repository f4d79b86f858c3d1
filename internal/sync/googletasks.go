package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	tasksapi "google.golang.org/api/tasks/v1"
	"google.golang.org/api/option"
)

// GoogleTasks is the Remote implementation backed by the Google Tasks
// API. Construction needs an OAuth client credentials file and a cached
// token (see OAuthConfig/SaveToken for the login flow).
type GoogleTasks struct {
	svc    *tasksapi.Service
	listID string
}

func NewGoogleTasks(ctx context.Context, credentialsFile, tokenFile, listName string) (*GoogleTasks, error) {
	cfg, err := OAuthConfig(credentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := readToken(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("no cached token at %s (run `taskman sync login` first): %w", tokenFile, err)
	}
	svc, err := tasksapi.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("tasks service: %w", err)
	}
	g := &GoogleTasks{svc: svc}
	g.listID, err = g.resolveList(listName)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// OAuthConfig reads a Google OAuth client credentials file.
func OAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", credentialsFile, err)
	}
	cfg, err := google.ConfigFromJSON(b, tasksapi.TasksScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", credentialsFile, err)
	}
	return cfg, nil
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// SaveToken caches an exchanged OAuth token for later invocations.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}

func (g *GoogleTasks) resolveList(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "@default" {
		return "@default", nil
	}
	lists, err := g.svc.Tasklists.List().Do()
	if err != nil {
		return "", fmt.Errorf("list tasklists: %w", err)
	}
	for _, l := range lists.Items {
		if strings.EqualFold(l.Title, name) {
			return l.Id, nil
		}
	}
	return "", fmt.Errorf("tasklist %q not found", name)
}

func (g *GoogleTasks) List(ctx context.Context) ([]RemoteTask, error) {
	var out []RemoteTask
	call := g.svc.Tasks.List(g.listID).ShowCompleted(true).ShowHidden(true).Context(ctx)
	err := call.Pages(ctx, func(page *tasksapi.Tasks) error {
		for _, item := range page.Items {
			out = append(out, RemoteTask{
				ID:    item.Id,
				Title: item.Title,
				Notes: item.Notes,
				Due:   dateOnly(item.Due),
				Done:  item.Status == "completed",
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list remote tasks: %w", err)
	}
	return out, nil
}

func (g *GoogleTasks) Insert(ctx context.Context, t RemoteTask) (string, error) {
	created, err := g.svc.Tasks.Insert(g.listID, apiTask(t)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert remote task: %w", err)
	}
	return created.Id, nil
}

func (g *GoogleTasks) Patch(ctx context.Context, id string, t RemoteTask) error {
	if _, err := g.svc.Tasks.Patch(g.listID, id, apiTask(t)).Context(ctx).Do(); err != nil {
		return fmt.Errorf("patch remote task %s: %w", id, err)
	}
	return nil
}

func apiTask(t RemoteTask) *tasksapi.Task {
	out := &tasksapi.Task{
		Title: t.Title,
		Notes: t.Notes,
	}
	if t.Due != "" {
		// The API wants a full RFC3339 stamp even though it only keeps
		// the date part.
		out.Due = t.Due + "T00:00:00.000Z"
	}
	if t.Done {
		out.Status = "completed"
	} else {
		out.Status = "needsAction"
	}
	return out
}
