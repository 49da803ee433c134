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
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AGENTLANG_DATA_DIR", t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.AuthEnabled)
	assert.True(t, cfg.RBACEnabled)
	assert.Equal(t, "admin", cfg.AdminUser)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AGENTLANG_DATA_DIR", t.TempDir())
	t.Setenv("AGENTLANG_AUTH_ENABLED", "false")
	t.Setenv("AGENTLANG_ADMIN_USER", "root")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.AuthEnabled)
	assert.Equal(t, "root", cfg.AdminUser)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AGENTLANG_DATA_DIR", dir)
	yaml := "rbac_enabled: false\nadmin_user: ops\ndsn: /tmp/custom.db\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agentlang.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, cfg.RBACEnabled)
	assert.Equal(t, "ops", cfg.AdminUser)
	assert.Equal(t, "/tmp/custom.db", cfg.DSN)
}

func TestDataDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AGENTLANG_DATA_DIR", dir)
	assert.Equal(t, dir, DataDir())

	t.Setenv("AGENTLANG_DATA_DIR", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".agentlang"), DataDir())
}

func TestDefaultDSN(t *testing.T) {
	cfg := &Config{DataDir: "/data"}
	assert.Equal(t, filepath.Join("/data", "agentlang.db"), cfg.DefaultDSN())

	cfg.DSN = "/other/db.sqlite"
	assert.Equal(t, "/other/db.sqlite", cfg.DefaultDSN())
}
