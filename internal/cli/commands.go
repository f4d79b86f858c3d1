package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/amirbrooks/taskman/internal/config"
	"github.com/amirbrooks/taskman/internal/query"
	"github.com/amirbrooks/taskman/internal/render"
	"github.com/amirbrooks/taskman/internal/store"
	tracker "github.com/amirbrooks/taskman/internal/sync"
	"github.com/amirbrooks/taskman/internal/task"
)

func cmdAdd(gf GlobalFlags, args []string) int {
	args = reorderFlags(args, map[string]bool{
		"--desc":      true,
		"--priority":  true,
		"--due":       true,
		"--tag":       true,
		"--today":     false,
		"--tomorrow":  false,
		"--next-week": false,
	})
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	desc := fs.String("desc", "", "Description")
	priority := fs.String("priority", "medium", "Priority (low|medium|high|urgent)")
	due := fs.String("due", "", "Due date (YYYY-MM-DD)")
	dueToday := fs.Bool("today", false, "Shortcut: due today")
	dueTomorrow := fs.Bool("tomorrow", false, "Shortcut: due tomorrow")
	dueNextWeek := fs.Bool("next-week", false, "Shortcut: due in 7 days")
	tags := multiFlag{}
	fs.Var(&tags, "tag", "Tag (repeatable)")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: taskman add \"<title>\" [--desc <text>] [--priority <p>] [--due <date>] [--tag <t>...]")
		return ExitUsage
	}
	shortcuts := 0
	for _, set := range []bool{*dueToday, *dueTomorrow, *dueNextWeek} {
		if set {
			shortcuts++
		}
	}
	if shortcuts > 1 || (shortcuts == 1 && strings.TrimSpace(*due) != "") {
		fmt.Fprintln(os.Stderr, "Usage: choose only one of --due/--today/--tomorrow/--next-week")
		return ExitUsage
	}
	now := time.Now().UTC()
	if *dueToday {
		*due = now.Format("2006-01-02")
	}
	if *dueTomorrow {
		*due = now.AddDate(0, 0, 1).Format("2006-01-02")
	}
	if *dueNextWeek {
		*due = now.AddDate(0, 0, 7).Format("2006-01-02")
	}

	repo, _, err := openRepo(gf)
	if err != nil {
		return fail("add", err)
	}
	t, err := repo.Add(store.AddInput{
		Title:       strings.Join(rest, " "),
		Description: *desc,
		Priority:    *priority,
		DueDate:     *due,
		Tags:        tags.Values,
	})
	if err != nil {
		return fail("add", err)
	}
	if gf.JSON {
		return printJSON(map[string]any{"task": t})
	}
	if !gf.Quiet {
		fmt.Printf("%s %s\n", t.ShortID(), t.Title)
	}
	return ExitOK
}

func cmdList(gf GlobalFlags, args []string) int {
	args = reorderFlags(args, map[string]bool{
		"--status":         true,
		"--priority":       true,
		"--tag":            true,
		"--preset":         true,
		"--due-before":     true,
		"--due-after":      true,
		"--search":         true,
		"--sort":           true,
		"--order":          true,
		"--regex":          false,
		"--case-sensitive": false,
		"--markdown":       false,
	})
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	statuses := multiFlag{}
	priorities := multiFlag{}
	tags := multiFlag{}
	presets := multiFlag{}
	fs.Var(&statuses, "status", "Status filter (repeatable)")
	fs.Var(&priorities, "priority", "Priority filter (repeatable)")
	fs.Var(&tags, "tag", "Tag filter (repeatable)")
	fs.Var(&presets, "preset", "Named preset filter (repeatable)")
	dueBefore := fs.String("due-before", "", "Due on or before (YYYY-MM-DD)")
	dueAfter := fs.String("due-after", "", "Due on or after (YYYY-MM-DD)")
	search := fs.String("search", "", "Search query")
	regex := fs.Bool("regex", false, "Treat search query as a regular expression")
	caseSensitive := fs.Bool("case-sensitive", false, "Case-sensitive search")
	sortField := fs.String("sort", "", "Sort field")
	order := fs.String("order", "", "Sort order (asc|desc)")
	markdown := fs.Bool("markdown", false, "Markdown checklist output")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}

	repo, cfg, err := openRepo(gf)
	if err != nil {
		return fail("ls", err)
	}

	filters, err := buildFilters(statuses.Values, priorities.Values, tags.Values, presets.Values, *dueBefore, *dueAfter)
	if err != nil {
		return fail("ls", err)
	}
	sortSpec, err := buildSort(cfg, *sortField, *order)
	if err != nil {
		return fail("ls", err)
	}
	tasks, err := repo.Query(filters, query.Search{
		Query:         *search,
		Regex:         *regex,
		CaseSensitive: *caseSensitive,
	}, sortSpec)
	if err != nil {
		return fail("ls", err)
	}

	switch {
	case gf.JSON:
		return printJSON(map[string]any{"tasks": tasks})
	case *markdown:
		fmt.Print(render.Markdown(tasks))
	case gf.Plain:
		fmt.Println("ID\tSTATUS\tPRI\tDUE\tTAGS\tTITLE")
		for _, t := range tasks {
			due := "-"
			if t.DueDate != "" {
				due = t.DueDate
			}
			tagStr := "-"
			if len(t.Tags) > 0 {
				tagStr = strings.Join(t.Tags, ",")
			}
			fmt.Printf("%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, due, tagStr, t.Title)
		}
	default:
		render.Table(os.Stdout, tasks, render.Options{NoColor: gf.NoColor})
		if !gf.Quiet {
			fmt.Printf("\n%d tasks\n", len(tasks))
		}
	}
	return ExitOK
}

func buildFilters(statuses, priorities, tags, presets []string, dueBefore, dueAfter string) ([]query.Filter, error) {
	var f query.Filter
	for _, s := range statuses {
		status, err := task.ParseStatus(s)
		if err != nil {
			return nil, err
		}
		f.Statuses = append(f.Statuses, status)
	}
	for _, p := range priorities {
		priority, err := task.ParsePriority(p)
		if err != nil {
			return nil, err
		}
		f.Priorities = append(f.Priorities, priority)
	}
	f.Tags = tags
	var err error
	if f.DueBefore, err = task.NormalizeDueDate(dueBefore); err != nil {
		return nil, err
	}
	if f.DueAfter, err = task.NormalizeDueDate(dueAfter); err != nil {
		return nil, err
	}
	filters := []query.Filter{f}
	now := time.Now().UTC()
	for _, name := range presets {
		preset, err := query.Preset(name, now)
		if err != nil {
			return nil, err
		}
		filters = append(filters, preset)
	}
	return filters, nil
}

func buildSort(cfg config.Config, field, order string) (query.Sort, error) {
	if strings.TrimSpace(field) == "" {
		field = cfg.DefaultSort
	}
	if strings.TrimSpace(order) == "" {
		order = cfg.DefaultOrder
	}
	sortField, err := query.ParseSortField(field)
	if err != nil {
		return query.Sort{}, err
	}
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "asc":
		return query.Sort{Field: sortField}, nil
	case "desc":
		return query.Sort{Field: sortField, Desc: true}, nil
	default:
		return query.Sort{}, fmt.Errorf("%w: order must be asc or desc, got %q", task.ErrInvalid, order)
	}
}

func cmdShow(gf GlobalFlags, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: taskman show <id-or-prefix>")
		return ExitUsage
	}
	repo, _, err := openRepo(gf)
	if err != nil {
		return fail("show", err)
	}
	t, err := repo.Resolve(args[0])
	if err != nil {
		return fail("show", err)
	}
	if gf.JSON {
		return printJSON(map[string]any{"task": t})
	}
	render.Detail(os.Stdout, *t, render.Options{NoColor: gf.NoColor})
	return ExitOK
}

func cmdUpdate(gf GlobalFlags, args []string) int {
	args = reorderFlags(args, map[string]bool{
		"--title":      true,
		"--desc":       true,
		"--status":     true,
		"--priority":   true,
		"--due":        true,
		"--tag":        true,
		"--clear-due":  false,
		"--clear-tags": false,
	})
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	title := fs.String("title", "", "New title")
	desc := fs.String("desc", "", "New description")
	status := fs.String("status", "", "New status")
	priority := fs.String("priority", "", "New priority")
	due := fs.String("due", "", "New due date (YYYY-MM-DD)")
	clearDue := fs.Bool("clear-due", false, "Remove the due date")
	tags := multiFlag{}
	fs.Var(&tags, "tag", "Replacement tag (repeatable)")
	clearTags := fs.Bool("clear-tags", false, "Remove all tags")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: taskman update <id-or-prefix> [--title <t>] [--status <s>] ...")
		return ExitUsage
	}

	provided := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { provided[f.Name] = true })

	var changes task.Changes
	if provided["title"] {
		changes.Title = title
	}
	if provided["desc"] {
		changes.Description = desc
	}
	if provided["status"] {
		s, err := task.ParseStatus(*status)
		if err != nil {
			return fail("update", err)
		}
		changes.Status = &s
	}
	if provided["priority"] {
		p, err := task.ParsePriority(*priority)
		if err != nil {
			return fail("update", err)
		}
		changes.Priority = &p
	}
	if provided["due"] {
		changes.DueDate = due
	}
	if *clearDue {
		empty := ""
		changes.DueDate = &empty
	}
	if provided["tag"] {
		changes.Tags = &tags.Values
	}
	if *clearTags {
		none := []string{}
		changes.Tags = &none
	}
	if changes.Empty() {
		fmt.Fprintln(os.Stderr, "update: no changes provided")
		return ExitUsage
	}

	repo, _, err := openRepo(gf)
	if err != nil {
		return fail("update", err)
	}
	t, err := repo.Update(rest[0], changes)
	if err != nil {
		return fail("update", err)
	}
	if gf.JSON {
		return printJSON(map[string]any{"task": t})
	}
	if !gf.Quiet {
		fmt.Printf("Updated %s\n", t.ShortID())
	}
	return ExitOK
}

func cmdDone(gf GlobalFlags, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: taskman done <id-or-prefix>")
		return ExitUsage
	}
	repo, _, err := openRepo(gf)
	if err != nil {
		return fail("done", err)
	}
	t, err := repo.Done(args[0])
	if err != nil {
		return fail("done", err)
	}
	if gf.JSON {
		return printJSON(map[string]any{"task": t})
	}
	if !gf.Quiet {
		fmt.Printf("Done %s %s\n", t.ShortID(), t.Title)
	}
	return ExitOK
}

func cmdUndo(gf GlobalFlags, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: taskman undo <id-or-prefix>")
		return ExitUsage
	}
	repo, _, err := openRepo(gf)
	if err != nil {
		return fail("undo", err)
	}
	t, err := repo.Undo(args[0])
	if err != nil {
		return fail("undo", err)
	}
	if gf.JSON {
		return printJSON(map[string]any{"task": t})
	}
	if !gf.Quiet {
		fmt.Printf("Reopened %s %s\n", t.ShortID(), t.Title)
	}
	return ExitOK
}

func cmdDelete(gf GlobalFlags, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: taskman rm <id-or-prefix>")
		return ExitUsage
	}
	repo, _, err := openRepo(gf)
	if err != nil {
		return fail("rm", err)
	}
	t, err := repo.Delete(args[0])
	if err != nil {
		return fail("rm", err)
	}
	if gf.JSON {
		return printJSON(map[string]any{"task": t})
	}
	if !gf.Quiet {
		fmt.Printf("Deleted %s %s\n", t.ShortID(), t.Title)
	}
	return ExitOK
}

func cmdClear(gf GlobalFlags, args []string) int {
	repo, _, err := openRepo(gf)
	if err != nil {
		return fail("clear", err)
	}
	removed, err := repo.Clear()
	if err != nil {
		return fail("clear", err)
	}
	if gf.JSON {
		return printJSON(map[string]any{"removed": removed})
	}
	if !gf.Quiet {
		fmt.Printf("Removed %d done tasks\n", removed)
	}
	return ExitOK
}

func cmdSearch(gf GlobalFlags, args []string) int {
	args = reorderFlags(args, map[string]bool{
		"--regex":          false,
		"--case-sensitive": false,
	})
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	regex := fs.Bool("regex", false, "Treat query as a regular expression")
	caseSensitive := fs.Bool("case-sensitive", false, "Case-sensitive search")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: taskman search \"<query>\" [--regex] [--case-sensitive]")
		return ExitUsage
	}

	repo, cfg, err := openRepo(gf)
	if err != nil {
		return fail("search", err)
	}
	sortSpec, err := buildSort(cfg, "", "")
	if err != nil {
		return fail("search", err)
	}
	tasks, err := repo.Query(nil, query.Search{
		Query:         strings.Join(rest, " "),
		Regex:         *regex,
		CaseSensitive: *caseSensitive,
	}, sortSpec)
	if err != nil {
		return fail("search", err)
	}
	if gf.JSON {
		return printJSON(map[string]any{"tasks": tasks})
	}
	render.Table(os.Stdout, tasks, render.Options{NoColor: gf.NoColor})
	if !gf.Quiet {
		fmt.Printf("\n%d tasks\n", len(tasks))
	}
	return ExitOK
}

func cmdExport(gf GlobalFlags, args []string) int {
	args = reorderFlags(args, map[string]bool{"--format": true})
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	format := fs.String("format", "", "Export format (json|yaml|toml; default from extension)")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: taskman export <path> [--format json|yaml|toml]")
		return ExitUsage
	}
	path := rest[0]

	repo, _, err := openRepo(gf)
	if err != nil {
		return fail("export", err)
	}
	f := store.DetectFormat(path)
	if strings.TrimSpace(*format) != "" {
		if f, err = store.ParseFormat(*format); err != nil {
			return fail("export", err)
		}
	}
	if err := repo.Export(path, f); err != nil {
		return fail("export", err)
	}
	if !gf.Quiet {
		fmt.Printf("Exported %d tasks to %s\n", repo.Len(), path)
	}
	return ExitOK
}

func cmdImport(gf GlobalFlags, args []string) int {
	args = reorderFlags(args, map[string]bool{"--mode": true})
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	mode := fs.String("mode", "replace", "Import mode (replace|merge)")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: taskman import <path> [--mode replace|merge]")
		return ExitUsage
	}

	importMode, err := store.ParseImportMode(*mode)
	if err != nil {
		return fail("import", err)
	}
	repo, _, err := openRepo(gf)
	if err != nil {
		return fail("import", err)
	}
	count, err := repo.Import(rest[0], importMode)
	if err != nil {
		return fail("import", err)
	}
	if gf.JSON {
		return printJSON(map[string]any{"imported": count, "total": repo.Len()})
	}
	if !gf.Quiet {
		fmt.Printf("Imported %d tasks (%d total)\n", count, repo.Len())
	}
	return ExitOK
}

func cmdStats(gf GlobalFlags, args []string) int {
	repo, _, err := openRepo(gf)
	if err != nil {
		return fail("stats", err)
	}
	stats := render.Summarize(repo.Tasks(), time.Now().UTC())
	if gf.JSON {
		return printJSON(map[string]any{"stats": stats})
	}
	render.WriteStats(os.Stdout, stats, render.Options{NoColor: gf.NoColor})
	return ExitOK
}

func cmdConfig(gf GlobalFlags, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: taskman config <show|set> ...")
		return ExitUsage
	}
	dataDir := config.DataDir(gf.DataDir)
	cfg, err := config.Load(dataDir)
	if err != nil {
		return fail("config", err)
	}
	switch args[0] {
	case "show":
		if gf.JSON {
			return printJSON(map[string]any{"data_dir": dataDir, "config": cfg})
		}
		fmt.Println("Data dir:", dataDir)
		fmt.Println("backup_count:", cfg.BackupCount)
		fmt.Println("default_sort:", cfg.DefaultSort)
		fmt.Println("default_order:", cfg.DefaultOrder)
		fmt.Println("sync.provider:", cfg.Sync.Provider)
		fmt.Println("sync.task_list:", cfg.Sync.TaskList)
		fmt.Println("sync.credentials_file:", syncPath(dataDir, cfg.Sync.CredentialsFile, "credentials.json"))
		fmt.Println("sync.token_file:", syncPath(dataDir, cfg.Sync.TokenFile, "token.json"))
		return ExitOK
	case "set":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: taskman config set <key> <value>")
			return ExitUsage
		}
		if err := cfg.Set(args[1], strings.Join(args[2:], " ")); err != nil {
			return fail("config set", err)
		}
		if err := config.Save(dataDir, cfg); err != nil {
			return fail("config set", err)
		}
		if !gf.Quiet {
			fmt.Printf("Updated %s\n", args[1])
		}
		return ExitOK
	default:
		fmt.Fprintln(os.Stderr, "Usage: taskman config <show|set> ...")
		return ExitUsage
	}
}

func syncPath(dataDir, configured, fallback string) string {
	if strings.TrimSpace(configured) != "" {
		return configured
	}
	return filepath.Join(dataDir, fallback)
}

func cmdSync(gf GlobalFlags, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: taskman sync <login|push|pull>")
		return ExitUsage
	}
	dataDir := config.DataDir(gf.DataDir)
	cfg, err := config.Load(dataDir)
	if err != nil {
		return fail("sync", err)
	}
	credFile := syncPath(dataDir, cfg.Sync.CredentialsFile, "credentials.json")
	tokenFile := syncPath(dataDir, cfg.Sync.TokenFile, "token.json")
	ctx := context.Background()

	switch args[0] {
	case "login":
		oauthCfg, err := tracker.OAuthConfig(credFile)
		if err != nil {
			return fail("sync login", err)
		}
		url := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
		fmt.Println("Open the following URL, authorize, and paste the code:")
		fmt.Println(" ", url)
		fmt.Print("Code: ")
		code, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fail("sync login", err)
		}
		tok, err := oauthCfg.Exchange(ctx, strings.TrimSpace(code))
		if err != nil {
			return fail("sync login", err)
		}
		if err := tracker.SaveToken(tokenFile, tok); err != nil {
			return fail("sync login", err)
		}
		if !gf.Quiet {
			fmt.Println("Token saved to", tokenFile)
		}
		return ExitOK
	case "push", "pull":
		repo := store.Open(dataDir, cfg.BackupCount)
		if err := repo.Load(); err != nil {
			return fail("sync", err)
		}
		remote, err := tracker.NewGoogleTasks(ctx, credFile, tokenFile, cfg.Sync.TaskList)
		if err != nil {
			return fail("sync", err)
		}
		var res tracker.Result
		if args[0] == "push" {
			res, err = tracker.Push(ctx, repo, remote)
		} else {
			res, err = tracker.Pull(ctx, repo, remote)
		}
		if err != nil {
			return fail("sync "+args[0], err)
		}
		if gf.JSON {
			return printJSON(map[string]any{"result": res})
		}
		if !gf.Quiet {
			fmt.Printf("Pushed %d, pulled %d, linked %d\n", res.Pushed, res.Pulled, res.Linked)
		}
		return ExitOK
	default:
		fmt.Fprintln(os.Stderr, "Usage: taskman sync <login|push|pull>")
		return ExitUsage
	}
}

func printJSON(payload any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		fmt.Fprintln(os.Stderr, "json:", err)
		return ExitInternal
	}
	return ExitOK
}
