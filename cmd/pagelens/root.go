package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/csheth/pagelens/internal/config"
	"github.com/csheth/pagelens/internal/document"
	"github.com/csheth/pagelens/internal/llm"
	"github.com/csheth/pagelens/internal/transcript"
	"github.com/csheth/pagelens/internal/tui"
)

var (
	cfgFile     string
	llmModel    string
	llmEndpoint string
	logFile     string
	noAltScreen bool
	noLLM       bool
	debug       bool
)

var rootCmd = &cobra.Command{
	Use:   "pagelens [file-or-url]",
	Short: "Terminal PDF viewer with a natural-language command bar",
	Long: `pagelens opens a PDF from a path or an http(s) URL, shows its text page by
page and answers commands typed in plain language:

  find invoice               list every page containing "invoice"
  go to page 12              jump to a page
  summarize this page        ask the language model for a short summary
  extract text               print the text of the current page
  what is the total amount?  ask a question about the surrounding pages

Summaries and questions use a local Ollama server by default.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runViewer,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.pagelens/config.yaml)")
	flags.StringVar(&logFile, "log-file", "", "log file (default: pagelens.log in the user cache dir)")
	flags.BoolVar(&debug, "debug", false, "log at debug level")

	rootCmd.Flags().StringVar(&llmModel, "llm-model", "", "model to use (default llama3.2)")
	rootCmd.Flags().StringVar(&llmEndpoint, "llm-endpoint", "", "Ollama host or OpenAI-compatible base URL")
	rootCmd.Flags().BoolVar(&noAltScreen, "no-alt-screen", false, "disable the alternate screen buffer")
	rootCmd.Flags().BoolVar(&noLLM, "no-llm", false, "run without a language model")

	rootCmd.Version = gitRelease
	rootCmd.AddCommand(versionCmd, configCmd)
}

func runViewer(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := openLogger(logFile, debug)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	mgr, err := newConfigManager(cmd)
	if err != nil {
		return err
	}
	cfg := mgr.Get()

	var client llm.Client
	if !noLLM {
		client, err = llm.New(llmConfig(cfg, logger))
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "LLM disabled:", err)
			logger.Warn("llm disabled", "err", err)
			client = nil
		}
	}
	if mgr.ConfigFile() != "" {
		started := cfg.LLM
		mgr.OnChange(func(next *config.Config) {
			logger.Info("configuration changed", "file", mgr.ConfigFile())
			reloadLLM(client, started, next, logger)
		})
		mgr.WatchConfig()
	}

	cache, err := document.NewCache(cfg.Cache.Dir, nil, cfg.Cache.MaxEntries)
	if err != nil {
		return fmt.Errorf("prepare pdf cache: %w", err)
	}

	source := ""
	if len(args) == 1 {
		source = args[0]
		if !document.IsRemote(source) {
			if abs, err := filepath.Abs(source); err == nil {
				source = abs
			}
		}
	}

	transcriptPath := cfg.Transcript.Path
	if transcriptPath == "" {
		transcriptPath = transcript.DefaultPath()
	}

	opts := []tea.ProgramOption{tea.WithContext(cmd.Context())}
	if !noAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(
		tui.New(tui.Config{
			Source:         source,
			LLM:            client,
			Cache:          cache,
			TranscriptPath: transcriptPath,
			Logger:         logger,
			Context:        cmd.Context(),
		}),
		opts...,
	)

	logger.Info("starting", "source", source, "config", mgr.ConfigFile())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("program error: %w", err)
	}
	return nil
}

// newConfigManager loads configuration and lets the command's flags override
// their keys.
func newConfigManager(cmd *cobra.Command) (*config.Manager, error) {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	bindings := map[string]string{
		"llm.model":    "llm-model",
		"llm.endpoint": "llm-endpoint",
	}
	for key, name := range bindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := mgr.BindFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return mgr, nil
}

// llmConfig maps the resolved settings onto a client config. The OpenAI
// provider reads its endpoint and key from the openai section.
func llmConfig(cfg *config.Config, logger *slog.Logger) llm.Config {
	out := llm.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		Endpoint:    cfg.LLM.Endpoint,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		Logger:      logger,
	}
	if cfg.LLM.Provider == llm.ProviderOpenAI {
		defaults := config.DefaultConfig()
		out.APIKey = cfg.OpenAI.APIKey
		if out.Endpoint == defaults.LLM.Endpoint {
			out.Endpoint = cfg.OpenAI.BaseURL
		}
		if out.Model == defaults.LLM.Model {
			out.Model = ""
		}
	}
	return out
}

// reloadLLM applies the model and generation settings of next to a running
// client. Provider and endpoint are fixed for the life of the client.
func reloadLLM(client llm.Client, started config.LLMConfig, next *config.Config, logger *slog.Logger) bool {
	r, ok := client.(llm.Reconfigurer)
	if !ok {
		return false
	}
	if next.LLM.Provider != started.Provider || next.LLM.Endpoint != started.Endpoint {
		logger.Warn("llm provider or endpoint changed; restart to apply", "provider", next.LLM.Provider, "endpoint", next.LLM.Endpoint)
	}
	c := llmConfig(next, logger)
	r.Reconfigure(llm.Settings{Model: c.Model, Temperature: c.Temperature, MaxTokens: c.MaxTokens})
	logger.Info("llm settings reloaded", "model", client.Name(), "temperature", c.Temperature, "max_tokens", c.MaxTokens)
	return true
}

func openLogger(path string, debug bool) (*slog.Logger, func(), error) {
	if path == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			dir = os.TempDir()
		}
		path = filepath.Join(dir, "pagelens", "pagelens.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: level}))
	return logger, func() { _ = file.Close() }, nil
}

func printConfig(w io.Writer, cfg *config.Config) error {
	shown := *cfg
	if shown.OpenAI.APIKey != "" {
		shown.OpenAI.APIKey = "********"
	}
	data, err := yaml.Marshal(shown)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = w.Write(data)
	return err
}
