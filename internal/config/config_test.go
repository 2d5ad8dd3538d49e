package config

import (
	"strings"
	"testing"
)

// memBackend is an in-memory ConfigBackend for tests.
type memBackend struct {
	strings map[string]string
	ints    map[string]int
}

func newMemBackend() *memBackend {
	return &memBackend{strings: map[string]string{}, ints: map[string]int{}}
}

func (m *memBackend) GetString(key string) (string, bool, error) {
	v, ok := m.strings[key]
	return v, ok, nil
}

func (m *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.ints[key]
	return v, ok, nil
}

func (m *memBackend) SetString(key, val string) error {
	m.strings[key] = val
	return nil
}

func (m *memBackend) SetInt(key string, val int) error {
	m.ints[key] = val
	return nil
}

func (m *memBackend) Delete(key string) error {
	delete(m.strings, key)
	delete(m.ints, key)
	return nil
}

func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies defaults survive an empty backend.
func TestDefaults(t *testing.T) {
	clearEnvOverrides(t)

	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4680 {
		t.Errorf("Server.Port = %d, want 4680", cfg.Server.Port)
	}
	if cfg.Search.DefaultLimit != 5 {
		t.Errorf("Search.DefaultLimit = %d, want 5", cfg.Search.DefaultLimit)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Storage.DataDir should have a default")
	}
}

// TestBackendValues verifies stored values override defaults.
func TestBackendValues(t *testing.T) {
	clearEnvOverrides(t)

	b := newMemBackend()
	b.SetInt("server.port", 5100)
	b.SetString("storage.data_dir", "/tmp/promptlab-test")
	b.SetInt("search.default_limit", 12)
	b.SetString("log.level", "debug")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5100 {
		t.Errorf("Server.Port = %d, want 5100", cfg.Server.Port)
	}
	if cfg.Storage.DataDir != "/tmp/promptlab-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Search.DefaultLimit != 12 {
		t.Errorf("Search.DefaultLimit = %d, want 12", cfg.Search.DefaultLimit)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
}

// TestEnvOverride verifies env vars beat backend values.
func TestEnvOverride(t *testing.T) {
	clearEnvOverrides(t)

	b := newMemBackend()
	b.SetInt("server.port", 5100)
	t.Setenv("PROMPTLAB_SERVER_PORT", "6200")
	t.Setenv("PROMPTLAB_LOG_LEVEL", "debug")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6200 {
		t.Errorf("Server.Port = %d, want 6200", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
}

// TestEnvOverrideBadInt verifies an unparseable integer env var is ignored.
func TestEnvOverrideBadInt(t *testing.T) {
	clearEnvOverrides(t)

	t.Setenv("PROMPTLAB_SERVER_PORT", "not-a-number")

	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4680 {
		t.Errorf("Server.Port = %d, want default 4680", cfg.Server.Port)
	}
}

func TestShowAllCoversEveryKey(t *testing.T) {
	clearEnvOverrides(t)

	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	infos := ShowAll(cfg)
	if len(infos) != len(specs) {
		t.Fatalf("ShowAll returned %d entries, want %d", len(infos), len(specs))
	}
	for _, info := range infos {
		if info.Key == "" || info.EnvVar == "" {
			t.Errorf("incomplete KeyInfo: %+v", info)
		}
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()
	want := []string{"server.port", "storage.data_dir", "search.default_limit", "log.level"}
	if len(keys) != len(want) {
		t.Fatalf("ValidKeys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("ValidKeys = %v, want %v", keys, want)
			break
		}
	}
}

func TestEnsureAPIToken(t *testing.T) {
	dir := t.TempDir()

	token1, err := EnsureAPIToken(dir)
	if err != nil {
		t.Fatalf("EnsureAPIToken: %v", err)
	}
	if len(token1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(token1))
	}
	if strings.TrimSpace(token1) != token1 {
		t.Errorf("token has surrounding whitespace: %q", token1)
	}

	// Second call returns the persisted token unchanged.
	token2, err := EnsureAPIToken(dir)
	if err != nil {
		t.Fatalf("EnsureAPIToken (second): %v", err)
	}
	if token2 != token1 {
		t.Errorf("token changed between calls: %q != %q", token1, token2)
	}
}
