package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_HOST", "localhost")
	t.Setenv("DATABASE_DBNAME", "proptrack")
	t.Setenv("DATABASE_USER", "postgres")
}

func TestLoad_DefaultsFromEnvOnly(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "temp_user_id", cfg.Identity.KeyPrefix)
	assert.Equal(t, 30*24*time.Hour, cfg.Identity.PrimaryTTL)
	assert.Equal(t, 5, cfg.Identity.RegistrationMaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Merge.TypeTimeout)
	assert.ElementsMatch(t, []string{"comment", "share", "save_note", "set_alert"}, cfg.Gating.AccountRequiredActions)
	assert.Equal(t, ThresholdConfig{Counter: "pins", Limit: 25}, cfg.Gating.Thresholds["pin"])
	assert.Equal(t, "analytics_events", cfg.Analytics.Channel)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
identity:
  primary_ttl: 2h
gating:
  account_required_actions: ["comment"]
merge:
  type_timeout: 3s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, cfg.Identity.PrimaryTTL)
	assert.Equal(t, []string{"comment"}, cfg.Gating.AccountRequiredActions)
	assert.Equal(t, 3*time.Second, cfg.Merge.TypeTimeout)
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_HOST", "localhost")
	t.Setenv("DATABASE_DBNAME", "proptrack")
	t.Setenv("DATABASE_USER", "postgres")

	cfg, err := Load("")

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "JWT secret")
}

func TestValidate_ReleaseModeRequiresStrongSecretAndPassword(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Mode: "release"},
		JWT:      JWTConfig{Secret: "short"},
		Database: DatabaseConfig{Host: "db", DBName: "proptrack", User: "app"},
		Identity: IdentityConfig{PrimaryTTL: time.Hour, RegistrationMaxAttempts: 1},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")

	cfg.JWT.Secret = "0123456789abcdef0123456789abcdef"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database password")

	cfg.Database.Password = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_EmailRequiresKey(t *testing.T) {
	cfg := &Config{
		JWT:      JWTConfig{Secret: "s"},
		Database: DatabaseConfig{Host: "db", DBName: "proptrack", User: "app"},
		Identity: IdentityConfig{PrimaryTTL: time.Hour, RegistrationMaxAttempts: 1},
		Email:    EmailConfig{Enabled: true},
	}

	assert.Error(t, cfg.Validate())
}

func TestPostgresURL(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: "5432", User: "u", Password: "p", DBName: "db", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/db?sslmode=disable", d.PostgresURL())
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=db sslmode=disable", d.PostgresConnectionString())
}
