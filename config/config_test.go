package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExampleYAMLIsValid(t *testing.T) {
	cfg, err := ValidateYAMLContent([]byte(ExampleYAML()))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "billing.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Contains(t, cfg.Server.CORSOrigins, "http://localhost:5173")
}

func TestValidateYAMLContent_Overrides(t *testing.T) {
	content := []byte(`
server:
  port: 9090
database:
  path: "/tmp/test.db"
log:
  level: "debug"
`)
	cfg, err := ValidateYAMLContent(content)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidateYAMLContent_InvalidPort(t *testing.T) {
	content := []byte(`
server:
  port: 70000
`)
	_, err := ValidateYAMLContent(content)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidateYAMLContent_InvalidLogLevel(t *testing.T) {
	content := []byte(`
log:
  level: "verbose"
`)
	_, err := ValidateYAMLContent(content)
	require.Error(t, err)
}

func TestValidateYAMLContent_Malformed(t *testing.T) {
	_, err := ValidateYAMLContent([]byte("server: ["))
	require.Error(t, err)
}
