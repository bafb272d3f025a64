// ABOUTME: Tests for YAML config loading, env expansion, and validation
// ABOUTME: Uses temp files; no global state

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shortloop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
  base_url: "https://sl.example.com"

database:
  path: "/tmp/shortloop.db"

auth:
  jwt_secret: "secret"
  superadmins: "admin@example.com, Root@Example.com"
  rp_display_name: "shortloop"
  session_ttl: "24h"
  challenge_ttl: "90s"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "https://sl.example.com", cfg.Server.BaseURL)
	assert.Equal(t, "/tmp/shortloop.db", cfg.Database.Path)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 90*time.Second, cfg.Auth.ChallengeTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "from-env")

	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/test.db"
auth:
  jwt_secret: "${TEST_JWT_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_MissingFields(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"no http_addr", "database:\n  path: \"/tmp/x.db\"\nauth:\n  jwt_secret: \"s\"\n"},
		{"no database path", "server:\n  http_addr: \"localhost:8080\"\nauth:\n  jwt_secret: \"s\"\n"},
		{"no jwt_secret", "server:\n  http_addr: \"localhost:8080\"\ndatabase:\n  path: \"/tmp/x.db\"\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/test.db"
auth:
  jwt_secret: "s"
  session_ttl: "not-a-duration"
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSuperadminList(t *testing.T) {
	cfg := AuthConfig{Superadmins: " Admin@Example.com ,root@example.com,, "}
	assert.Equal(t, []string{"admin@example.com", "root@example.com"}, cfg.SuperadminList())

	empty := AuthConfig{}
	assert.Empty(t, empty.SuperadminList())
}
