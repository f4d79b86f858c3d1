package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/amirbrooks/taskman/internal/task"
)

// Format selects the on-disk encoding for export and import files. The
// primary store is always JSON; exports may pick any supported format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func ParseFormat(s string) (Format, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q (want json, yaml, or toml)", task.ErrInvalid, s)
	}
}

// DetectFormat picks a format from the file extension, defaulting to JSON.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

type ImportMode string

const (
	// ModeReplace discards the current collection and loads the file's
	// tasks verbatim, ids and timestamps preserved.
	ModeReplace ImportMode = "replace"
	// ModeMerge adds incoming tasks whose ids are not already present;
	// colliding ids leave the existing task untouched (first write wins).
	ModeMerge ImportMode = "merge"
)

func ParseImportMode(s string) (ImportMode, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "replace", "":
		return ModeReplace, nil
	case "merge":
		return ModeMerge, nil
	default:
		return "", fmt.Errorf("%w: unsupported import mode %q (want replace or merge)", task.ErrInvalid, s)
	}
}

// Export serializes the full collection, all fields, to path. Export then
// import with ModeReplace reproduces the collection exactly.
func (r *Repository) Export(path string, format Format) error {
	env := envelope{
		Version: storeVersion,
		Tasks:   r.tasks,
		Metadata: metadata{
			LastModified: timeNow(),
			TaskCount:    len(r.tasks),
		},
	}
	data, err := marshalEnvelope(env, format)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return atomicWriteFile(path, data, 0o644)
}

// Import loads tasks from path in the given mode and saves. It returns
// the number of tasks taken from the file. Every incoming task is
// validated before anything is applied, so a bad file leaves both the
// collection and the on-disk store untouched.
func (r *Repository) Import(path string, mode ImportMode) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %v", ErrStorage, path, err)
	}
	env, err := unmarshalEnvelope(data, DetectFormat(path))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if err := checkIDs(env.Tasks); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	for i := range env.Tasks {
		if err := env.Tasks[i].Validate(); err != nil {
			return 0, fmt.Errorf("task %s: %w", env.Tasks[i].ID, err)
		}
	}

	prev := r.tasks
	count := 0
	switch mode {
	case ModeReplace:
		r.tasks = env.Tasks
		count = len(env.Tasks)
	case ModeMerge:
		merged := append([]task.Task(nil), r.tasks...)
		for _, in := range env.Tasks {
			if r.indexOf(in.ID) >= 0 {
				continue
			}
			merged = append(merged, in)
			count++
		}
		r.tasks = merged
	default:
		return 0, fmt.Errorf("%w: unsupported import mode %q", task.ErrInvalid, mode)
	}
	if err := r.Save(); err != nil {
		r.tasks = prev
		return 0, err
	}
	return count, nil
}

func marshalEnvelope(env envelope, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(env)
	case FormatTOML:
		var b strings.Builder
		if err := toml.NewEncoder(&b).Encode(env); err != nil {
			return nil, err
		}
		return []byte(b.String()), nil
	default:
		return json.MarshalIndent(env, "", "  ")
	}
}

func unmarshalEnvelope(data []byte, format Format) (envelope, error) {
	var env envelope
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &env)
	case FormatTOML:
		err = toml.Unmarshal(data, &env)
	default:
		err = json.Unmarshal(data, &env)
	}
	if err != nil {
		return envelope{}, err
	}
	if err := migrate(&env); err != nil {
		return envelope{}, err
	}
	return env, nil
}
