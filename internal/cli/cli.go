package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/amirbrooks/taskman/internal/config"
	"github.com/amirbrooks/taskman/internal/query"
	"github.com/amirbrooks/taskman/internal/store"
	"github.com/amirbrooks/taskman/internal/task"
)

// Exit codes
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitNotFound = 3
	ExitConflict = 4
	ExitInternal = 10
)

type GlobalFlags struct {
	DataDir string
	JSON    bool
	Plain   bool
	NoColor bool
	Quiet   bool
}

func Run(args []string) int {
	gf, rest, err := extractGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return ExitUsage
	}

	if len(rest) == 0 {
		printHelp()
		return ExitUsage
	}

	cmd := rest[0]
	cmdArgs := rest[1:]

	switch cmd {
	case "help", "--help", "-h":
		printHelp()
		return ExitOK
	case "add":
		return cmdAdd(gf, cmdArgs)
	case "ls", "list":
		return cmdList(gf, cmdArgs)
	case "show":
		return cmdShow(gf, cmdArgs)
	case "update":
		return cmdUpdate(gf, cmdArgs)
	case "done":
		return cmdDone(gf, cmdArgs)
	case "undo":
		return cmdUndo(gf, cmdArgs)
	case "rm", "delete":
		return cmdDelete(gf, cmdArgs)
	case "clear":
		return cmdClear(gf, cmdArgs)
	case "search":
		return cmdSearch(gf, cmdArgs)
	case "export":
		return cmdExport(gf, cmdArgs)
	case "import":
		return cmdImport(gf, cmdArgs)
	case "stats":
		return cmdStats(gf, cmdArgs)
	case "config", "cfg":
		return cmdConfig(gf, cmdArgs)
	case "sync":
		return cmdSync(gf, cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printHelp()
		return ExitUsage
	}
}

func printHelp() {
	fmt.Print(`taskman - personal task tracking (single JSON store)

Usage:
  taskman [global flags] <command> [args]

Global flags:
  --data-dir <path>  Store directory (default: ~/.taskman or TASKMAN_DATA_DIR)
  --json             JSON output
  --plain            TSV output (no alignment, no color)
  --no-color         Disable colorized output
  --quiet

Commands:
  add "<title>" [--desc <text>] [--priority <p>] [--due <date>|--today|--tomorrow|--next-week] [--tag <t>...]
  ls [--status <s>...] [--priority <p>...] [--tag <t>...] [--preset <name>...]
     [--due-before <date>] [--due-after <date>] [--search <q>] [--regex] [--case-sensitive]
     [--sort <field>] [--order asc|desc] [--markdown]
  show <id-or-prefix>
  update <id-or-prefix> [--title <t>] [--desc <text>] [--status <s>] [--priority <p>]
     [--due <date>] [--clear-due] [--tag <t>...] [--clear-tags]
  done <id-or-prefix>
  undo <id-or-prefix>
  rm <id-or-prefix>
  clear                       Remove all done tasks
  search "<query>" [--regex] [--case-sensitive]
  export <path> [--format json|yaml|toml]
  import <path> [--mode replace|merge]
  stats
  config show
  config set <key> <value>
  sync login|push|pull

Presets:
  active|overdue|high_priority|today|this_week|untagged|recent
Sort fields:
  created_at|updated_at|due_date|priority|status|title
`)
}

func extractGlobalFlags(args []string) (GlobalFlags, []string, error) {
	// Allow global flags anywhere by scanning and stripping known ones.
	gf := GlobalFlags{}

	out := make([]string, 0, len(args))
	skip := 0

	for i := 0; i < len(args); i++ {
		if skip > 0 {
			skip--
			continue
		}
		a := args[i]
		switch a {
		case "--data-dir":
			if i+1 >= len(args) {
				return gf, nil, errors.New("--data-dir requires a value")
			}
			gf.DataDir = args[i+1]
			skip = 1
		case "--json":
			gf.JSON = true
		case "--plain":
			gf.Plain = true
		case "--no-color":
			gf.NoColor = true
		case "--quiet":
			gf.Quiet = true
		default:
			out = append(out, a)
		}
	}

	if gf.JSON && gf.Plain {
		return gf, nil, errors.New("--json and --plain are mutually exclusive")
	}
	return gf, out, nil
}

func reorderFlags(args []string, takesValue map[string]bool) []string {
	if len(args) == 0 {
		return args
	}
	var flags []string
	var rest []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			if i+1 < len(args) {
				rest = append(rest, args[i+1:]...)
			}
			break
		}
		if strings.HasPrefix(a, "-") {
			flags = append(flags, a)
			if takesValue[a] && !strings.Contains(a, "=") {
				if i+1 < len(args) {
					flags = append(flags, args[i+1])
					i++
				}
			}
			continue
		}
		rest = append(rest, a)
	}
	return append(flags, rest...)
}

// openRepo loads the config and the full collection for one invocation.
func openRepo(gf GlobalFlags) (*store.Repository, config.Config, error) {
	dataDir := config.DataDir(gf.DataDir)
	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, cfg, err
	}
	repo := store.Open(dataDir, cfg.BackupCount)
	if err := repo.Load(); err != nil {
		return nil, cfg, err
	}
	return repo, cfg, nil
}

// fail prints the error the way the calling layer should see it and maps
// the core taxonomy onto exit codes.
func fail(cmd string, err error) int {
	fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, store.ErrAmbiguous):
		return ExitConflict
	case errors.Is(err, task.ErrInvalid), errors.Is(err, query.ErrPattern):
		return ExitUsage
	default:
		return ExitInternal
	}
}

// multiFlag supports repeated flags; comma-separated values also split.
type multiFlag struct{ Values []string }

func (m *multiFlag) String() string { return strings.Join(m.Values, ",") }
func (m *multiFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			m.Values = append(m.Values, part)
		}
	}
	return nil
}
