package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	dispatcher "github.com/Swind/go-lane-dispatcher"
)

// isolateConfig points every config search path at empty temp dirs and clears
// LANECTL_* overrides from the environment.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())
	for _, key := range []string{
		"LANECTL_NORMAL_POOL_SIZE",
		"LANECTL_URGENT_POOL_SIZE",
		"LANECTL_IDLE_TIMEOUT",
		"LANECTL_URGENT_THREAD_PRIORITY_BOOST",
	} {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "lanectl.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// TestLoadConfig_Defaults verifies the built-in configuration
// Given: No config file and no LANECTL_* variables
// When: loadConfig is called without a path
// Then: The result matches dispatcher.DefaultConfig
func TestLoadConfig_Defaults(t *testing.T) {
	isolateConfig(t)

	got, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	want := dispatcher.DefaultConfig()
	if got.NormalPoolSize != want.NormalPoolSize ||
		got.UrgentPoolSize != want.UrgentPoolSize ||
		got.IdleTimeout != want.IdleTimeout ||
		got.UrgentThreadPriorityBoost != want.UrgentThreadPriorityBoost {
		t.Fatalf("config = %+v, want defaults %+v", got, want)
	}
}

// TestLoadConfig_FileOverridesDefaults verifies explicit and discovered files
// Given: A lanectl.yaml setting normal_pool_size and idle_timeout
// When: loadConfig reads it by path and from the current directory
// Then: The file values win and unset keys keep their defaults
func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	isolateConfig(t)
	body := "normal_pool_size: 8\nidle_timeout: 3s\n"

	path := writeConfigFile(t, t.TempDir(), body)
	byPath, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig(%s) failed: %v", path, err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	writeConfigFile(t, cwd, body)
	discovered, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig from current directory failed: %v", err)
	}

	for name, got := range map[string]dispatcher.Config{"path": byPath, "discovered": discovered} {
		if got.NormalPoolSize != 8 || got.IdleTimeout != 3*time.Second {
			t.Errorf("%s: normal=%d idle=%v, want 8 and 3s", name, got.NormalPoolSize, got.IdleTimeout)
		}
		if got.UrgentPoolSize != dispatcher.DefaultUrgentPoolSize {
			t.Errorf("%s: urgent=%d, want default %d", name, got.UrgentPoolSize, dispatcher.DefaultUrgentPoolSize)
		}
	}
}

// TestLoadConfig_EnvOverridesFile verifies environment precedence
// Given: A config file with idle_timeout 3s and LANECTL_IDLE_TIMEOUT=500ms
// When: loadConfig is called
// Then: The environment value wins and other file values stay
func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	isolateConfig(t)
	path := writeConfigFile(t, t.TempDir(), "normal_pool_size: 6\nidle_timeout: 3s\n")
	t.Setenv("LANECTL_IDLE_TIMEOUT", "500ms")
	t.Setenv("LANECTL_URGENT_POOL_SIZE", "3")

	got, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if got.IdleTimeout != 500*time.Millisecond {
		t.Errorf("idle timeout = %v, want 500ms from env", got.IdleTimeout)
	}
	if got.UrgentPoolSize != 3 {
		t.Errorf("urgent pool size = %d, want 3 from env", got.UrgentPoolSize)
	}
	if got.NormalPoolSize != 6 {
		t.Errorf("normal pool size = %d, want 6 from file", got.NormalPoolSize)
	}
}

// TestLoadConfig_InvalidValues verifies loaded values are validated
// Given: A file with normal_pool_size 0
// When: loadConfig is called
// Then: It fails with ErrInvalidConfig
func TestLoadConfig_InvalidValues(t *testing.T) {
	isolateConfig(t)

	path := writeConfigFile(t, t.TempDir(), "normal_pool_size: 0\n")
	if _, err := loadConfig(path); !errors.Is(err, dispatcher.ErrInvalidConfig) {
		t.Fatalf("loadConfig(invalid size) err = %v, want ErrInvalidConfig", err)
	}
}
