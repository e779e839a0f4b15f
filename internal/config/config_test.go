package config

import (
	"path/filepath"
	"testing"
	"time"

	"foodchat/internal/storage"
	"foodchat/internal/testutils"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolatedOptions(t *testing.T) Options {
	t.Helper()
	return Options{ConfigDir: t.TempDir(), WorkDir: t.TempDir()}
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "FOODCHAT_AUTH_BASE_URL", EnvName(KeyAuthBaseURL))
	assert.Equal(t, "FOODCHAT_UI_REGISTER_REDIRECT_DELAY", EnvName(KeyRegisterRedirectDelay))
	assert.Contains(t, Keys(), KeyHTTPTimeout)
}

func TestLoad_Defaults(t *testing.T) {
	opts := isolatedOptions(t)

	cfg, err := Load(viper.New(), opts)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8001", cfg.AuthBaseURL)
	assert.Equal(t, "http://localhost:8100", cfg.ChatBaseURL)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, storage.BackendFile, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(opts.ConfigDir, "state.yaml"), cfg.Storage.Path)
	assert.Equal(t, 1500*time.Millisecond, cfg.UI.RegisterRedirectDelay)
	assert.True(t, cfg.UI.RenderMarkdown)
	assert.Equal(t, "default", cfg.UI.Theme)
	assert.Equal(t, ":8001", cfg.Mock.AuthAddr)
	assert.Equal(t, ":8100", cfg.Mock.ChatAddr)
	assert.Equal(t, time.Hour, cfg.Mock.TokenTTL)
	assert.Equal(t, opts.ConfigDir, cfg.ConfigDir)
}

func TestLoad_ConfigFile(t *testing.T) {
	opts := isolatedOptions(t)
	opts.ConfigDir = testutils.NewFileHelpers().CreateTempDir(t, map[string]string{
		"config.yaml": `
auth:
  base_url: https://auth.example.com/
http:
  timeout: 5s
storage:
  backend: sqlite
ui:
  render_markdown: false
  greeting: Xin chào!
`,
	})

	cfg, err := Load(viper.New(), opts)
	require.NoError(t, err)

	assert.Equal(t, "https://auth.example.com", cfg.AuthBaseURL)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, storage.BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(opts.ConfigDir, "state.db"), cfg.Storage.Path)
	assert.False(t, cfg.UI.RenderMarkdown)
	assert.Equal(t, "Xin chào!", cfg.UI.Greeting)
}

func TestLoad_ExplicitConfigFileMustExist(t *testing.T) {
	opts := isolatedOptions(t)
	opts.ConfigFile = filepath.Join(opts.ConfigDir, "missing.yaml")

	_, err := Load(viper.New(), opts)
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoad_DotEnvPrecedence(t *testing.T) {
	files := testutils.NewFileHelpers()
	opts := Options{
		ConfigDir: files.CreateTempDir(t, map[string]string{
			"config.yaml": "chat:\n  base_url: http://from-yaml:1\n",
			".env": "FOODCHAT_CHAT_BASE_URL=http://from-config-env:2\n" +
				"FOODCHAT_HTTP_TIMEOUT=7s\n" +
				"UNRELATED=1\n",
		}),
		WorkDir: files.CreateTempDir(t, map[string]string{
			".env": "FOODCHAT_CHAT_BASE_URL=http://from-local-env:3\n",
		}),
	}

	cfg, err := Load(viper.New(), opts)
	require.NoError(t, err)
	assert.Equal(t, "http://from-local-env:3", cfg.ChatBaseURL, "local .env wins over config dir .env")
	assert.Equal(t, 7*time.Second, cfg.HTTPTimeout)

	t.Setenv("FOODCHAT_CHAT_BASE_URL", "http://from-env:4")
	cfg, err = Load(viper.New(), opts)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:4", cfg.ChatBaseURL, "process environment wins over .env")

	opts.SkipDotEnv = true
	t.Setenv("FOODCHAT_CHAT_BASE_URL", "")
	cfg, err = Load(viper.New(), opts)
	require.NoError(t, err)
	assert.Equal(t, "http://from-yaml:1", cfg.ChatBaseURL, "empty environment values are ignored")
}

func TestLoad_FlagsWin(t *testing.T) {
	t.Setenv("FOODCHAT_AUTH_BASE_URL", "http://from-env:1")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("auth-url", "", "")
	require.NoError(t, flags.Parse([]string{"--auth-url", "http://from-flag:2"}))

	v := viper.New()
	require.NoError(t, v.BindPFlag(KeyAuthBaseURL, flags.Lookup("auth-url")))

	cfg, err := Load(v, isolatedOptions(t))
	require.NoError(t, err)
	assert.Equal(t, "http://from-flag:2", cfg.AuthBaseURL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AuthBaseURL: "http://localhost:8001",
			ChatBaseURL: "https://chat.example.com",
			HTTPTimeout: time.Second,
			Storage:     StorageConfig{Backend: storage.BackendMemory},
			Mock:        MockConfig{TokenTTL: time.Minute},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad scheme", func(c *Config) { c.AuthBaseURL = "ftp://x" }, KeyAuthBaseURL},
		{"no host", func(c *Config) { c.ChatBaseURL = "http://" }, KeyChatBaseURL},
		{"zero timeout", func(c *Config) { c.HTTPTimeout = 0 }, KeyHTTPTimeout},
		{"negative delay", func(c *Config) { c.UI.RegisterRedirectDelay = -time.Second }, KeyRegisterRedirectDelay},
		{"zero ttl", func(c *Config) { c.Mock.TokenTTL = 0 }, KeyMockTokenTTL},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, KeyStorageBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestOpenStore(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Backend: storage.BackendMemory}}
	store, err := cfg.OpenStore()
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, store)

	cfg.Storage = StorageConfig{Backend: storage.BackendFile, Path: filepath.Join(t.TempDir(), "state.yaml")}
	store, err = cfg.OpenStore()
	require.NoError(t, err)
	assert.IsType(t, &storage.FileStore{}, store)
}
