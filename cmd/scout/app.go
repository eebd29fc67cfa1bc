package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gliderlab/scholarscout/agent"
	"github.com/gliderlab/scholarscout/config"
	"github.com/gliderlab/scholarscout/logging"
	"github.com/gliderlab/scholarscout/research"
	"github.com/gliderlab/scholarscout/storage"
	"github.com/gliderlab/scholarscout/tools"
)

// app holds everything a command needs.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *storage.Storage
	prompts *research.Prompts

	search  *tools.SearchClient
	fetcher *tools.Fetcher
	papers  *tools.PaperClient
}

func newApp(opts *Options) (*app, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Path:       cfg.Log.Path,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Console:    true,
	})
	if err != nil {
		return nil, err
	}

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}
	fromStore, err := config.SyncStored(&cfg, store, opts.ForceConfig)
	if err != nil {
		store.Close()
		return nil, err
	}
	if fromStore {
		logger.Info("llm config loaded from database", zap.String("db", cfg.Storage.DBPath))
	}
	if err := cfg.Validate(); err != nil {
		store.Close()
		return nil, err
	}
	logger.Info("config",
		zap.String("apiKey", config.MaskKey(cfg.LLM.APIKey)),
		zap.String("baseUrl", cfg.LLM.BaseURL),
		zap.String("model", cfg.LLM.Model),
		zap.String("db", cfg.Storage.DBPath))

	prompts := research.DefaultPrompts()
	if cfg.Research.PromptsPath != "" {
		if prompts, err = research.LoadPrompts(cfg.Research.PromptsPath); err != nil {
			store.Close()
			return nil, err
		}
	}

	hc := tools.NewHTTPClient(cfg.Search.Timeout(), cfg.Search.RequestsPerSecond)
	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		prompts: prompts,
		search:  tools.NewSearchClient(hc, cfg.Search.SerperKey, cfg.Search.SerperURL),
		papers:  tools.NewPaperClient(hc, cfg.Search.OpenAlexEmail, cfg.Search.OpenAlexURL),
		fetcher: tools.NewFetcher(hc, tools.FetcherConfig{
			MaxPDFBytes: cfg.Search.MaxPDFBytes,
			MaxPDFPages: cfg.Search.MaxPDFPages,
			Concurrency: cfg.Search.FetchConcurrency,
			Logger:      logger.Named("fetch"),
		}),
	}
	return a, nil
}

// newAgent builds an agent offering the given tools.
func (a *app) newAgent(ts ...tools.Tool) (*agent.Agent, error) {
	catalog := tools.NewCatalog(ts...).WithLogger(a.logger.Named("tools"))
	client := agent.NewOpenAIClient(agent.OpenAIConfig{
		APIKey:  a.cfg.LLM.APIKey,
		BaseURL: a.cfg.LLM.BaseURL,
		Timeout: a.cfg.LLM.Timeout(),
	})
	return agent.New(agent.Config{
		Client:             client,
		Model:              a.cfg.LLM.Model,
		Catalog:            catalog,
		SystemPrompt:       a.prompts.System,
		Temperature:        a.cfg.LLM.Temperature,
		MaxRepeatToolCalls: a.cfg.LLM.MaxRepeatToolCalls,
		MaxRounds:          a.cfg.LLM.MaxRounds,
		Logger:             a.logger.Named("agent"),
	})
}

// chatTools is every tool the interactive agent may use.
func (a *app) chatTools() []tools.Tool {
	return []tools.Tool{
		tools.NewWebSearchTool(a.search),
		a.fetcher.Tool(),
		a.papers.Tool(),
	}
}

// newPipeline builds the research pipeline; confirmation may only search papers.
func (a *app) newPipeline() (*research.Pipeline, error) {
	ag, err := a.newAgent(a.papers.Tool())
	if err != nil {
		return nil, err
	}
	return research.New(research.Config{
		Agent:       ag,
		Search:      a.search,
		Fetcher:     a.fetcher,
		Store:       a.store,
		Prompts:     a.prompts,
		DataDir:     a.cfg.Storage.DataDir,
		ResultNum:   a.cfg.Research.ResultNum,
		ContentSize: a.cfg.Research.ContentSize,
		Logger:      a.logger.Named("research"),
	})
}

func (a *app) Close() {
	if stats, err := a.store.Stats(); err == nil {
		a.logger.Debug("storage stats", zap.Any("stats", stats))
	}
	a.store.Close()
	_ = a.logger.Sync()
}
