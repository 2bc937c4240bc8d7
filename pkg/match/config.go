package match

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// EngineConfig describes one USI engine and the options sent during the
// handshake.
type EngineConfig struct {
	Name    string            `json:"name"`
	Path    string            `json:"path"`
	Args    []string          `json:"args"`
	Options map[string]string `json:"options"`
}

type Config struct {
	Sente     EngineConfig `json:"sente"`
	Gote      EngineConfig `json:"gote"`
	Millis    int          `json:"millis"`
	MaxPlies  int          `json:"max_plies"`
	Games     int          `json:"games"`
	StartSFEN string       `json:"start_sfen"`
}

const (
	defaultMillis   = 1000
	defaultMaxPlies = 320
)

// FindConfigPath walks up from the working directory to the nearest
// config.json and returns it with its directory.
func FindConfigPath() (string, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", "", err
	}
	dir := cwd
	for {
		path := filepath.Join(dir, "config.json")
		if _, err := os.Stat(path); err == nil {
			return path, filepath.Dir(path), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", "", fmt.Errorf("config.json not found from %s", cwd)
}

// LoadConfig reads a JSON config, fills defaults and validates it.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) withDefaults() Config {
	if c.Millis <= 0 {
		c.Millis = defaultMillis
	}
	if c.MaxPlies == 0 {
		c.MaxPlies = defaultMaxPlies
	}
	if c.Games <= 0 {
		c.Games = 1
	}
	for _, e := range []*EngineConfig{&c.Sente, &c.Gote} {
		if e.Name == "" && e.Path != "" {
			e.Name = filepath.Base(e.Path)
		}
	}
	return c
}

func (c Config) Validate() error {
	if c.Sente.Path == "" || c.Gote.Path == "" {
		return errors.New("both sente.path and gote.path are required")
	}
	if c.MaxPlies < 0 {
		return fmt.Errorf("max_plies must be >= 0, got %d", c.MaxPlies)
	}
	return nil
}

// ResolveEnginePath makes a relative engine path relative to root, the
// directory holding the config file.
func ResolveEnginePath(path, root string) (string, error) {
	if path == "" {
		return "", errors.New("engine path is required")
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Join(root, path), nil
}
