package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, k := range []string{"CONFIG_FILE", "PORT", "DB_DRIVER", "DB_CONN", "JWT_SECRET", "TOKEN_TTL", "MAX_PROOF_BYTES"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("JWT_SECRET", "test-signing-key")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "321456", cfg.StaticOTP)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
}

func TestNewConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "loantracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9000\"\ndb_driver: postgres\ndb_conn: postgres://localhost/loans\ntoken_ttl: 2h\n"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("JWT_SECRET", "test-signing-key")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port, "environment overrides the file")
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/loans", cfg.DBConn)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
}

func TestNewConfig_Invalid(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "test-signing-key")
	t.Setenv("DB_DRIVER", "mysql")
	_, err := NewConfig()
	assert.Error(t, err)

	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("TOKEN_TTL", "forever")
	_, err = NewConfig()
	assert.Error(t, err)
}

func TestNewConfig_RequiresJWTSecret(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	_, err := NewConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{TimeZone: "Mars/Olympus"}
	assert.Equal(t, time.UTC, cfg.Location())
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
