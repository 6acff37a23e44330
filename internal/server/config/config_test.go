package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, ":8080", cfg.EndpointAddr)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenValidityDuration)
	assert.NotEmpty(t, cfg.DatabaseDSN)
	assert.NotEmpty(t, cfg.S3Bucket)
}

func TestParseJson_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.json")

	payload := map[string]any{
		"endpoint_addr":                   ":9090",
		"database_dsn":                    "postgres://x",
		"secret_key":                      "s3cr3t",
		"access_token_validity_duration":  "5m",
		"refresh_token_validity_duration": "48h",
		"auth_rate_per_minute":            10,
		"auth_rate_burst":                 3,
		"s3_root_user":                    "root",
		"s3_root_password":                "pw",
		"s3_bucket":                       "b",
		"s3_region":                       "eu-west-1",
		"s3_base_endpoint":                "http://minio:9000/",
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))

	oldArgs := os.Args
	os.Args = []string{"server", "-c", path}
	defer func() { os.Args = oldArgs }()

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, ":9090", cfg.EndpointAddr)
	assert.Equal(t, "postgres://x", cfg.DatabaseDSN)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, 48*time.Hour, cfg.RefreshTokenValidityDuration)
	assert.Equal(t, 10, cfg.AuthRatePerMinute)
}

func TestParseFlags_Overrides(t *testing.T) {
	oldArgs := os.Args
	os.Args = []string{"server", "-a", ":7070", "-s", "flagsecret", "-t", "2"}
	defer func() { os.Args = oldArgs }()

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, ":7070", cfg.EndpointAddr)
	assert.Equal(t, "flagsecret", cfg.SecretKey)
	assert.Equal(t, 2*time.Minute, cfg.AccessTokenValidityDuration)
}
