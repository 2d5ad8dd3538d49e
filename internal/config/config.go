package config

import (
	"os"
	"path/filepath"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Search  SearchConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type SearchConfig struct {
	// DefaultLimit is the result count used when a search request does not
	// specify one.
	DefaultLimit int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4680,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Search: SearchConfig{
			DefaultLimit: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/promptlab/config.json, then applies PROMPTLAB_* environment
// variable overrides.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "promptlab-data"
		}
	}
	return filepath.Join(dir, "promptlab")
}
