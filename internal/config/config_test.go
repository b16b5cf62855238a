package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
environment: production
server:
  port: 8080
database:
  host: db
  user: medelle
  name: medelle
storage:
  driver: postgres
jwt:
  secret: from-file
paypal:
  webhook_id: WH-123
  plan_id: P-1
outbox:
  poll_interval: 5s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadReadsFileAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, 5*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, "medelle.events", cfg.Outbox.Channel)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverlaysSecrets(t *testing.T) {
	t.Setenv("MEDELLE_JWT_SECRET", "from-env")
	t.Setenv("MEDELLE_DB_PASSWORD", "s3cret")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Contains(t, cfg.Database.DSN(), "medelle:s3cret@db:5432/medelle")
}

func TestValidate(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Driver: DriverMemory}}
	assert.Error(t, cfg.Validate())

	cfg.JWT.Secret = "x"
	assert.NoError(t, cfg.Validate())

	cfg.Environment = EnvProduction
	assert.Error(t, cfg.Validate())

	cfg.Storage.Driver = "mongo"
	cfg.PayPal.WebhookID = "WH"
	assert.Error(t, cfg.Validate())
}
