// Package config loads foodchat settings with the following precedence, highest first:
// command-line flags bound to viper, FOODCHAT_* environment variables, the local .env file,
// the .env file in the user config directory, the YAML config file, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"foodchat/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "FOODCHAT"

// AppName names the directory under the user config directory.
const AppName = "foodchat"

// Configuration keys.
const (
	KeyAuthBaseURL           = "auth.base_url"
	KeyChatBaseURL           = "chat.base_url"
	KeyHTTPTimeout           = "http.timeout"
	KeyStorageBackend        = "storage.backend"
	KeyStoragePath           = "storage.path"
	KeyRegisterRedirectDelay = "ui.register_redirect_delay"
	KeyRenderMarkdown        = "ui.render_markdown"
	KeyTheme                 = "ui.theme"
	KeyGreeting              = "ui.greeting"
	KeyLogLevel              = "log.level"
	KeyLogFile               = "log.file"
	KeyMockAuthAddr          = "mock.auth_addr"
	KeyMockChatAddr          = "mock.chat_addr"
	KeyMockTokenTTL          = "mock.token_ttl"
)

var defaults = map[string]any{
	KeyAuthBaseURL:           "http://localhost:8001",
	KeyChatBaseURL:           "http://localhost:8100",
	KeyHTTPTimeout:           "30s",
	KeyStorageBackend:        storage.BackendFile,
	KeyStoragePath:           "",
	KeyRegisterRedirectDelay: "1500ms",
	KeyRenderMarkdown:        true,
	KeyTheme:                 "default",
	KeyGreeting:              "",
	KeyLogLevel:              "",
	KeyLogFile:               "",
	KeyMockAuthAddr:          ":8001",
	KeyMockChatAddr:          ":8100",
	KeyMockTokenTTL:          "60m",
}

// Keys returns every known configuration key.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	return keys
}

// EnvName returns the environment variable read for key, e.g. FOODCHAT_AUTH_BASE_URL.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Config is the resolved configuration.
type Config struct {
	AuthBaseURL string
	ChatBaseURL string
	HTTPTimeout time.Duration

	Storage StorageConfig
	UI      UIConfig
	Log     LogConfig
	Mock    MockConfig

	// ConfigDir is the per-user directory holding config.yaml, .env and the default state file.
	ConfigDir string
}

// StorageConfig selects the persistence backend for the credential and session identity.
type StorageConfig struct {
	Backend string
	Path    string
}

// UIConfig holds presentation settings.
type UIConfig struct {
	RegisterRedirectDelay time.Duration
	RenderMarkdown        bool
	Theme                 string
	Greeting              string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
	File  string
}

// MockConfig configures the local stand-in backends.
type MockConfig struct {
	AuthAddr string
	ChatAddr string
	TokenTTL time.Duration
}

// Options control where Load looks for files.
type Options struct {
	// ConfigFile overrides <ConfigDir>/config.yaml.
	ConfigFile string
	// ConfigDir overrides the user config directory.
	ConfigDir string
	// WorkDir is searched for a local .env file. Empty means the current directory.
	WorkDir string
	// SkipDotEnv disables .env loading, as in test mode.
	SkipDotEnv bool
}

// UserConfigDir returns $XDG_CONFIG_HOME/foodchat (or the platform equivalent).
func UserConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// Load resolves the configuration into v and returns it. Pass viper.GetViper() to honor
// flags bound with viper.BindPFlag; pass viper.New() for an isolated load.
func Load(v *viper.Viper, opts Options) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	configDir := opts.ConfigDir
	if configDir == "" {
		dir, err := UserConfigDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, opts.ConfigFile, configDir); err != nil {
		return nil, err
	}

	if !opts.SkipDotEnv {
		workDir := opts.WorkDir
		if workDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get working directory: %w", err)
			}
			workDir = wd
		}
		// The local .env is merged last so it wins over the config directory one.
		for _, path := range []string{filepath.Join(configDir, ".env"), filepath.Join(workDir, ".env")} {
			if err := mergeDotEnv(v, path); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{
		AuthBaseURL: strings.TrimSuffix(v.GetString(KeyAuthBaseURL), "/"),
		ChatBaseURL: strings.TrimSuffix(v.GetString(KeyChatBaseURL), "/"),
		HTTPTimeout: v.GetDuration(KeyHTTPTimeout),
		Storage: StorageConfig{
			Backend: strings.ToLower(v.GetString(KeyStorageBackend)),
			Path:    v.GetString(KeyStoragePath),
		},
		UI: UIConfig{
			RegisterRedirectDelay: v.GetDuration(KeyRegisterRedirectDelay),
			RenderMarkdown:        v.GetBool(KeyRenderMarkdown),
			Theme:                 v.GetString(KeyTheme),
			Greeting:              v.GetString(KeyGreeting),
		},
		Log: LogConfig{
			Level: v.GetString(KeyLogLevel),
			File:  v.GetString(KeyLogFile),
		},
		Mock: MockConfig{
			AuthAddr: v.GetString(KeyMockAuthAddr),
			ChatAddr: v.GetString(KeyMockChatAddr),
			TokenTTL: v.GetDuration(KeyMockTokenTTL),
		},
		ConfigDir: configDir,
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath(configDir, cfg.Storage.Backend)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultStoragePath returns the state file used when storage.path is unset.
func DefaultStoragePath(configDir, backend string) string {
	switch backend {
	case storage.BackendSQLite:
		return filepath.Join(configDir, "state.db")
	case storage.BackendMemory:
		return ""
	default:
		return filepath.Join(configDir, "state.yaml")
	}
}

func readConfigFile(v *viper.Viper, configFile, configDir string) error {
	explicit := configFile != ""
	if !explicit {
		configFile = filepath.Join(configDir, "config.yaml")
	}
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil // Missing default config file is not an error
		}
		return fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}
	return nil
}

// mergeDotEnv parses a .env file and merges every FOODCHAT_* entry that maps to a known key.
// Missing files are ignored.
func mergeDotEnv(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing .env file is not an error
	}

	envMap, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("failed to parse .env file %s: %w", path, err)
	}

	nested := map[string]any{}
	for key := range defaults {
		value, ok := envMap[EnvName(key)]
		if !ok {
			continue
		}
		section, leaf, _ := strings.Cut(key, ".")
		inner, ok := nested[section].(map[string]any)
		if !ok {
			inner = map[string]any{}
			nested[section] = inner
		}
		inner[leaf] = value
	}
	if len(nested) == 0 {
		return nil
	}
	if err := v.MergeConfigMap(nested); err != nil {
		return fmt.Errorf("failed to merge .env file %s: %w", path, err)
	}
	return nil
}

// Validate checks URLs, durations and the storage backend.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{KeyAuthBaseURL: c.AuthBaseURL, KeyChatBaseURL: c.ChatBaseURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an http(s) URL, got %q", name, raw)
		}
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyHTTPTimeout, c.HTTPTimeout)
	}
	if c.UI.RegisterRedirectDelay < 0 {
		return fmt.Errorf("%s must not be negative", KeyRegisterRedirectDelay)
	}
	if c.Mock.TokenTTL <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyMockTokenTTL, c.Mock.TokenTTL)
	}
	switch c.Storage.Backend {
	case storage.BackendFile, storage.BackendSQLite, storage.BackendMemory:
	default:
		return fmt.Errorf("%s must be one of file, sqlite, memory; got %q", KeyStorageBackend, c.Storage.Backend)
	}
	return nil
}

// OpenStore opens the configured storage backend.
func (c *Config) OpenStore() (storage.Store, error) {
	return storage.Open(c.Storage.Backend, c.Storage.Path)
}
