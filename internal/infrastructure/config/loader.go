package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/aish/assets"
	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/pkg/filesystem"
	"github.com/doeshing/aish/internal/ports"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "AISH"

// envKeys maps environment overrides (without prefix) to what they replace.
var envKeys = []string{"config", "model", "backend", "max_retries", "timeout", "on_failure", "debug"}

// FileLoader loads YAML configuration from ~/.aish/config.yaml (overridable via
// AISH_CONFIG) and overlays AISH_* environment variables.
type FileLoader struct {
	overridePath string
	env          *viper.Viper
}

// NewFileLoader builds a new loader. An empty path falls back to AISH_CONFIG and
// then to the default location.
func NewFileLoader(path string) *FileLoader {
	env := viper.New()
	env.SetEnvPrefix(EnvPrefix)
	env.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for _, key := range envKeys {
		_ = env.BindEnv(key)
	}
	return &FileLoader{overridePath: path, env: env}
}

// Path returns the file Load reads.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return filesystem.ExpandPath(l.overridePath)
	}
	if custom := l.env.GetString("config"); custom != "" {
		return filesystem.ExpandPath(custom)
	}
	return filesystem.AppDir("config.yaml")
}

// Load implements ports.ConfigProvider. A missing file is created from the
// embedded defaults.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()

	cfg, err := Defaults()
	if err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := writeDefault(path); err != nil {
			return domain.Config{}, err
		}
	case err != nil:
		return domain.Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		// decoding over the defaults keeps every key the file leaves out
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return domain.Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := l.applyEnv(&cfg); err != nil {
		return domain.Config{}, err
	}
	return expandPaths(cfg), nil
}

// Defaults decodes the embedded default configuration.
func Defaults() (domain.Config, error) {
	var cfg domain.Config
	if err := yaml.Unmarshal(assets.DefaultConfigYAML, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse embedded defaults: %w", err)
	}
	return cfg, nil
}

func (l *FileLoader) applyEnv(cfg *domain.Config) error {
	if l.env.IsSet("model") {
		cfg.Preferences.DefaultModel = l.env.GetString("model")
	}
	if l.env.IsSet("backend") {
		cfg.Preferences.Backend = domain.Backend(strings.ToLower(l.env.GetString("backend")))
	}
	if l.env.IsSet("max_retries") {
		raw := strings.TrimSpace(l.env.GetString("max_retries"))
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s_MAX_RETRIES: invalid integer %q", EnvPrefix, raw)
		}
		cfg.Execution.MaxRetries = n
	}
	if l.env.IsSet("timeout") {
		cfg.Execution.CommandTimeout = l.env.GetString("timeout")
	}
	if l.env.IsSet("on_failure") {
		cfg.Execution.OnFailure = domain.FailurePolicy(strings.ToLower(l.env.GetString("on_failure")))
	}
	if l.env.IsSet("debug") {
		cfg.Preferences.Debug = l.env.GetBool("debug")
	}
	return nil
}

func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, assets.DefaultConfigYAML, domain.SecureFilePermissions); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

func expandPaths(cfg domain.Config) domain.Config {
	cfg.Security.RulesFile = filesystem.ExpandPath(cfg.Security.RulesFile)
	cfg.History.Path = filesystem.ExpandPath(cfg.History.Path)
	cfg.History.IndexPath = filesystem.ExpandPath(cfg.History.IndexPath)
	cfg.Cache.Dir = filesystem.ExpandPath(cfg.Cache.Dir)
	cfg.Logging.File = filesystem.ExpandPath(cfg.Logging.File)
	return cfg
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
