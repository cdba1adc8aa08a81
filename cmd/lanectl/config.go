package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	dispatcher "github.com/Swind/go-lane-dispatcher"
)

// loadConfig builds a dispatcher.Config.
// Precedence (highest to lowest):
// 1. Environment variables (LANECTL_NORMAL_POOL_SIZE, ...)
// 2. The file given with --config, or lanectl.yaml in the current directory
// 3. User config (~/.config/lanectl/lanectl.yaml)
// 4. dispatcher.DefaultConfig
func loadConfig(path string) (dispatcher.Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lanectl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(userConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return dispatcher.Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("LANECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg dispatcher.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return dispatcher.Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return dispatcher.Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := dispatcher.DefaultConfig()
	v.SetDefault("normal_pool_size", def.NormalPoolSize)
	v.SetDefault("urgent_pool_size", def.UrgentPoolSize)
	v.SetDefault("idle_timeout", def.IdleTimeout)
	v.SetDefault("urgent_thread_priority_boost", def.UrgentThreadPriorityBoost)
}

func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lanectl")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "lanectl")
}
