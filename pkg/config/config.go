// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads runtime settings from the environment and an
// optional agentlang.yaml file. Environment variables win over the file,
// which wins over defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/agentlang-ai/agentlang/pkg/types"
)

// Config is the runtime configuration of the core.
type Config struct {
	// DataDir holds the default database and suspension store.
	DataDir string `mapstructure:"data_dir"`

	// AuthEnabled gates the whole RBAC layer (AGENTLANG_AUTH_ENABLED).
	AuthEnabled bool `mapstructure:"auth_enabled"`

	// RBACEnabled gates rule evaluation (AGENTLANG_RBAC_ENABLED). With auth
	// on and rules off, only the admin check applies.
	RBACEnabled bool `mapstructure:"rbac_enabled"`

	// AdminUser is the designated admin identity; it bypasses every rule.
	AdminUser string `mapstructure:"admin_user"`

	// DSN overrides the default sqlite database path.
	DSN string `mapstructure:"dsn"`

	// Resolvers maps fully-qualified entity names to named resolvers.
	Resolvers map[string]string `mapstructure:"resolvers"`
}

// Load reads configuration. dir may name a directory containing
// agentlang.yaml; an empty dir checks the data directory.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AGENTLANG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_dir", DataDir())
	v.SetDefault("auth_enabled", true)
	v.SetDefault("rbac_enabled", true)
	v.SetDefault("admin_user", "admin")

	v.SetConfigName("agentlang")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	} else {
		v.AddConfigPath(DataDir())
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, types.WrapError(types.KindConfig, err, "read agentlang.yaml")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.WrapError(types.KindConfig, err, "unmarshal configuration")
	}
	return &cfg, nil
}

// DataDir returns the Agentlang data directory.
//
// Priority:
// 1. AGENTLANG_DATA_DIR environment variable (if set and non-empty)
// 2. ~/.agentlang (default)
//
// The returned path is always absolute; ~ and relative paths are expanded.
func DataDir() string {
	if dir := os.Getenv("AGENTLANG_DATA_DIR"); dir != "" {
		return expandPath(dir)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".agentlang"
	}
	return filepath.Join(homeDir, ".agentlang")
}

// DefaultDSN returns the default sqlite database path under the data dir.
func (c *Config) DefaultDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return filepath.Join(c.DataDir, "agentlang.db")
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
