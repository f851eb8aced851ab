package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "github.com/starford/notesight/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.AuthEnabled())
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, AuthModeDisabled, cfg.Mode)
}

func TestAuthConfig_TokenMode(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.AuthEnabled())

	cfg.Token = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is empty")
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	assert.Error(t, cfg.Validate())
}

func TestDefaultConfigValid(t *testing.T) {
	assert.NoError(t, NewDefaultConfig().Validate())
}

func TestSearchConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *SearchConfig)
		wantErr bool
	}{
		{"defaults", func(*SearchConfig) {}, false},
		{"unknown backend", func(c *SearchConfig) { c.Backend = "solr" }, true},
		{"elasticsearch without hosts", func(c *SearchConfig) { c.Hosts = nil }, true},
		{"bad host url", func(c *SearchConfig) { c.Hosts = []string{"::not a url"} }, true},
		{"elasticsearch without index", func(c *SearchConfig) { c.Index = "" }, true},
		{"bleve without hosts", func(c *SearchConfig) { c.Backend = BackendBleve; c.Hosts = nil; c.Index = "" }, false},
		{"default above max", func(c *SearchConfig) { c.DefaultTopK = 10; c.MaxTopK = 5 }, true},
		{"zero top_k", func(c *SearchConfig) { c.DefaultTopK = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig().Search
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInsightsConfig_TokenNotRequired(t *testing.T) {
	cfg := NewDefaultConfig().Insights
	cfg.Token = ""
	require.NoError(t, cfg.Validate(), "missing token is checked by the client, not config")

	cfg.Temperature = 3
	assert.Error(t, cfg.Validate(), "temperature above 2 should fail")
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	assert.Error(t, cfg.Validate())
}

func TestLoadYAMLWithEnv(t *testing.T) {
	t.Setenv("NOTESIGHT_TEST_HF_TOKEN", "hf_abc")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  log_level: debug
  http:
    port: 9090
sqlite:
  path: ./test.db
search:
  backend: bleve
  path: ./index.bleve
  timeout: 3s
  default_top_k: 3
  max_top_k: 20
insights:
  token: ${NOTESIGHT_TEST_HF_TOKEN}
  rate_per_minute: 30
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg := NewDefaultConfig()
	require.NoError(t, pkgconfig.Load(path, cfg))

	assert.Equal(t, 9090, cfg.App.HTTP.Port)
	assert.Equal(t, slog.LevelDebug, cfg.App.LogLevel)
	assert.Equal(t, BackendBleve, cfg.Search.Backend)
	assert.Equal(t, 3*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 20, cfg.Search.MaxTopK)
	assert.Equal(t, "hf_abc", cfg.Insights.Token, "env value expanded")
	assert.Equal(t, 30, cfg.Insights.RatePerMinute)
	assert.Equal(t, "gpt2", cfg.Insights.Model, "model default kept")
}
