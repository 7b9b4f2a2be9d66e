// Package config loads pagelens settings from defaults, an optional YAML file
// and PAGELENS_* environment variables, and reloads them when the file changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PAGELENS"

// Config is the resolved configuration.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	OpenAI     OpenAIConfig     `mapstructure:"openai" yaml:"openai"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Transcript TranscriptConfig `mapstructure:"transcript" yaml:"transcript"`
}

type LLMConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

type CacheConfig struct {
	Dir        string `mapstructure:"dir" yaml:"dir"`
	MaxEntries int    `mapstructure:"max_entries" yaml:"max_entries"`
}

type TranscriptConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MarshalYAML writes the timeout in its string form so the file stays
// readable.
func (c LLMConfig) MarshalYAML() (any, error) {
	return map[string]any{
		"provider":    c.Provider,
		"endpoint":    c.Endpoint,
		"model":       c.Model,
		"temperature": c.Temperature,
		"max_tokens":  c.MaxTokens,
		"timeout":     c.Timeout.String(),
	}, nil
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			Provider:    "ollama",
			Endpoint:    "http://localhost:11434",
			Model:       "llama3.2",
			Temperature: 0.7,
			MaxTokens:   500,
			Timeout:     3 * time.Minute,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		Cache: CacheConfig{
			MaxEntries: 32,
		},
	}
}

// envAliases lists extra variables honoured for a key, checked after the
// PAGELENS_ name.
var envAliases = map[string][]string{
	"llm.endpoint":   {"OLLAMA_HOST"},
	"llm.model":      {"OLLAMA_MODEL"},
	"openai.api_key": {"OPENAI_API_KEY"},
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager reads cfgFile, or config.yaml from . or $HOME/.pagelens when
// cfgFile is empty. A missing default file is not an error.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{v: viper.New()}
	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}
	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg
	return cm, nil
}

func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	d := DefaultConfig()
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.endpoint", d.LLM.Endpoint)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("openai.api_key", d.OpenAI.APIKey)
	v.SetDefault("openai.base_url", d.OpenAI.BaseURL)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("transcript.path", d.Transcript.Path)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, aliases := range envAliases {
		names := append([]string{envName(key)}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pagelens")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ConfigFile reports the file in use, or "" when running on defaults.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// BindFlag lets a command-line flag override key when it is set.
func (cm *Manager) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag for %s", key)
	}
	if err := cm.v.BindPFlag(key, flag); err != nil {
		return err
	}
	return cm.Reload()
}

// Reload re-reads the viper state into a fresh Config.
func (cm *Manager) Reload() error {
	cfg, err := cm.load()
	if err != nil {
		return err
	}
	cm.mu.Lock()
	cm.config = cfg
	cm.mu.Unlock()
	return nil
}

// Get returns the current configuration.
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	header := []byte(`# pagelens configuration
# Every key can be overridden with PAGELENS_<SECTION>_<KEY>, e.g. PAGELENS_LLM_MODEL.
# OLLAMA_HOST, OLLAMA_MODEL and OPENAI_API_KEY are honoured as well.

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
