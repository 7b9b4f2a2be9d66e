package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	defaultOllamaModel    = "llama3.2"
	defaultOllamaHost     = "http://localhost:11434"
	defaultOpenAIBase     = "https://api.openai.com/v1"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultTemperature    = 0.7
	defaultMaxTokens      = 500
	defaultLLMHTTPTimeout = 3 * time.Minute
)

// ErrEmptyResponse is returned when the service answers without any text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Config describes how to build an LLM client.
type Config struct {
	Provider    string
	Model       string
	Endpoint    string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Options tune a single generation. Zero values fall back to the client
// defaults; TopK and TopP are only sent when set.
type Options struct {
	Temperature float64
	MaxTokens   int
	TopK        int
	TopP        float64
}

// Status reports the outcome of a connectivity probe.
type Status struct {
	Connected bool
	Model     string
	Available []string
	// Substituted is set when the configured model was missing and the first
	// available one was picked instead.
	Substituted bool
}

// Settings are the parts of a client's configuration that can change while
// the client is in use. Zero values select the package defaults; an empty
// Model keeps the current one.
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

func (s Settings) options() Options {
	o := Options{Temperature: s.Temperature, MaxTokens: s.MaxTokens}
	if o.Temperature == 0 {
		o.Temperature = defaultTemperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = defaultMaxTokens
	}
	return o
}

// Reconfigurer is implemented by clients that take new Settings in place.
// Requests already in flight keep the settings they started with.
type Reconfigurer interface {
	Reconfigure(Settings)
}

// Client generates text from a prompt.
type Client interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
	Probe(ctx context.Context) (Status, error)
	Name() string
}

// New builds a client for cfg.Provider, filling unset fields from the
// environment and the package defaults.
func New(cfg Config) (Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	defaults := Settings{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}.options()
	httpClient := pickHTTPClient(cfg.HTTPClient, cfg.Timeout)

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOllama:
		return newOllamaClient(cfg, defaults, httpClient, logger), nil
	case ProviderOpenAI:
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("openai provider requires an API key")
		}
		base := strings.TrimRight(cfg.Endpoint, "/")
		if base == "" {
			base = defaultOpenAIBase
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return &openAIClient{
			apiKey:   apiKey,
			model:    model,
			base:     base,
			defaults: defaults,
			client:   httpClient,
			logger:   logger,
		}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// NewFromEnv builds an Ollama client, reading OLLAMA_HOST and OLLAMA_MODEL
// for anything cfg leaves empty.
func NewFromEnv(cfg Config) (Client, error) {
	cfg.Provider = ProviderOllama
	return New(cfg)
}

func newOllamaClient(cfg Config, defaults Options, httpClient *http.Client, logger *slog.Logger) *ollamaClient {
	host := strings.TrimRight(cfg.Endpoint, "/")
	if host == "" {
		if env := os.Getenv("OLLAMA_HOST"); env != "" {
			host = strings.TrimRight(env, "/")
		} else {
			host = defaultOllamaHost
		}
	}
	model := cfg.Model
	if model == "" {
		if env := os.Getenv("OLLAMA_MODEL"); env != "" {
			model = env
		} else {
			model = defaultOllamaModel
		}
	}
	return &ollamaClient{
		host:       host,
		model:      model,
		defaults:   defaults,
		client:     httpClient,
		logger:     logger,
		probeTries: defaultProbeAttempts,
		probeDelay: defaultProbeDelay,
	}
}

func pickHTTPClient(custom *http.Client, timeout time.Duration) *http.Client {
	if custom != nil {
		return custom
	}
	if timeout <= 0 {
		timeout = defaultLLMHTTPTimeout
	}
	// Generations often run past a minute; callers cancel through ctx.
	return &http.Client{Timeout: timeout}
}

func (o Options) withDefaults(d Options) Options {
	if o.Temperature == 0 {
		o.Temperature = d.Temperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = d.MaxTokens
	}
	if o.TopK == 0 {
		o.TopK = d.TopK
	}
	if o.TopP == 0 {
		o.TopP = d.TopP
	}
	return o
}
