package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/amirbrooks/taskman/internal/store"
	"github.com/amirbrooks/taskman/internal/task"
)

const fileName = "config.yaml"

// Config holds the per-store settings kept in <data-dir>/config.yaml.
// A missing file yields the defaults.
type Config struct {
	BackupCount  int        `yaml:"backup_count"`
	DefaultSort  string     `yaml:"default_sort"`
	DefaultOrder string     `yaml:"default_order"`
	Sync         SyncConfig `yaml:"sync"`
}

// SyncConfig points the tracker sync at its credentials and target list.
type SyncConfig struct {
	Provider        string `yaml:"provider"`
	TaskList        string `yaml:"task_list"`
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
}

func Default() Config {
	return Config{
		BackupCount:  5,
		DefaultSort:  "created_at",
		DefaultOrder: "asc",
		Sync: SyncConfig{
			Provider: "googletasks",
			TaskList: "@default",
		},
	}
}

func Path(dataDir string) string {
	return filepath.Join(dataDir, fileName)
}

// DataDir resolves the store root: explicit flag value, then the
// TASKMAN_DATA_DIR environment variable, then ~/.taskman.
func DataDir(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if env := os.Getenv("TASKMAN_DATA_DIR"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return ".taskman"
	}
	return filepath.Join(home, ".taskman")
}

func Load(dataDir string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(Path(dataDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("%w: %s: %v", store.ErrCorrupt, Path(dataDir), err)
	}
	if cfg.BackupCount <= 0 {
		cfg.BackupCount = Default().BackupCount
	}
	if strings.TrimSpace(cfg.DefaultSort) == "" {
		cfg.DefaultSort = Default().DefaultSort
	}
	if strings.TrimSpace(cfg.DefaultOrder) == "" {
		cfg.DefaultOrder = Default().DefaultOrder
	}
	return cfg, nil
}

func Save(dataDir string, cfg Config) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	path := Path(dataDir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Set updates a single dotted key. Unknown keys are rejected.
func (c *Config) Set(key, value string) error {
	key = strings.TrimSpace(strings.ToLower(key))
	value = strings.TrimSpace(value)
	switch key {
	case "backup_count":
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n < 1 {
			return fmt.Errorf("%w: backup_count must be a positive integer, got %q", task.ErrInvalid, value)
		}
		c.BackupCount = n
	case "default_sort":
		switch value {
		case "created_at", "updated_at", "due_date", "priority", "status", "title":
			c.DefaultSort = value
		default:
			return fmt.Errorf("%w: unknown sort field %q", task.ErrInvalid, value)
		}
	case "default_order":
		switch strings.ToLower(value) {
		case "asc", "desc":
			c.DefaultOrder = strings.ToLower(value)
		default:
			return fmt.Errorf("%w: default_order must be asc or desc, got %q", task.ErrInvalid, value)
		}
	case "sync.provider":
		c.Sync.Provider = value
	case "sync.task_list":
		c.Sync.TaskList = value
	case "sync.credentials_file":
		c.Sync.CredentialsFile = value
	case "sync.token_file":
		c.Sync.TokenFile = value
	default:
		return fmt.Errorf("%w: unknown config key %q", task.ErrInvalid, key)
	}
	return nil
}
