package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
server:
  address: ":8080"
  allowed_origins: ["http://localhost:5173"]
database:
  driver: pgx
  url: postgres://console@localhost/naimu
redis:
  addr: localhost:6379
auth:
  jwt_secret: file-secret
files:
  workflows: config/workflows.yaml
permission_refresh_seconds: 60
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadReadsFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "config/workflows.yaml", cfg.Files.Workflows)
	assert.Equal(t, 60, cfg.PermissionRefreshSeconds)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigin)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("PORT", "9000")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestMissingFileUsesEnv(t *testing.T) {
	t.Setenv("DB_URL", "user:pass@/naimu")
	t.Setenv("JWT_SECRET", "s")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, ":4001", cfg.Server.Address)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no database url", "auth:\n  jwt_secret: s\n"},
		{"no secret", "database:\n  url: x\n"},
		{"bad driver", "database:\n  driver: sqlite\n  url: x\nauth:\n  jwt_secret: s\n"},
		{"bad yaml", "database: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
