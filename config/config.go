package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type LLMConfig struct {
	APIKey             string  `toml:"apiKey"`
	BaseURL            string  `toml:"baseUrl"`
	Model              string  `toml:"model"`
	Temperature        float64 `toml:"temperature"`
	TimeoutSeconds     int     `toml:"timeoutSeconds"`
	MaxRepeatToolCalls int     `toml:"maxRepeatToolCalls"`
	MaxRounds          int     `toml:"maxRounds"`
}

type SearchConfig struct {
	SerperKey         string  `toml:"serperKey"`
	SerperURL         string  `toml:"serperUrl"`
	OpenAlexEmail     string  `toml:"openAlexEmail"`
	OpenAlexURL       string  `toml:"openAlexUrl"`
	RequestsPerSecond float64 `toml:"requestsPerSecond"`
	TimeoutSeconds    int     `toml:"timeoutSeconds"`
	FetchConcurrency  int     `toml:"fetchConcurrency"`
	MaxPDFBytes       int64   `toml:"maxPdfBytes"`
	MaxPDFPages       int     `toml:"maxPdfPages"`
}

type StorageConfig struct {
	DBPath  string `toml:"dbPath"`
	DataDir string `toml:"dataDir"`
}

type ResearchConfig struct {
	ResultNum   int    `toml:"resultNum"`
	ContentSize int    `toml:"contentSize"`
	PromptsPath string `toml:"promptsPath"` // YAML overriding the built-in prompts
}

type LogConfig struct {
	Level      string `toml:"level"`
	Path       string `toml:"path"`
	MaxSizeMB  int    `toml:"maxSizeMB"`
	MaxBackups int    `toml:"maxBackups"`
}

type Config struct {
	LLM      LLMConfig      `toml:"llm"`
	Search   SearchConfig   `toml:"search"`
	Storage  StorageConfig  `toml:"storage"`
	Research ResearchConfig `toml:"research"`
	Log      LogConfig      `toml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			BaseURL:            "https://api.openai.com/v1",
			Model:              "gpt-4o-mini",
			Temperature:        0.7,
			TimeoutSeconds:     120,
			MaxRepeatToolCalls: 3,
			MaxRounds:          20,
		},
		Search: SearchConfig{
			RequestsPerSecond: 5,
			TimeoutSeconds:    30,
			FetchConcurrency:  4,
			MaxPDFBytes:       10 << 20,
			MaxPDFPages:       20,
		},
		Storage: StorageConfig{
			DBPath:  "scout.db",
			DataDir: "data",
		},
		Research: ResearchConfig{
			ResultNum:   20,
			ContentSize: 40000,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	}
}

// Load decodes the TOML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	applyEnv(&cfg, os.Getenv)
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set("SCOUT_API_KEY", &cfg.LLM.APIKey)
	set("SCOUT_BASE_URL", &cfg.LLM.BaseURL)
	set("SCOUT_MODEL", &cfg.LLM.Model)
	set("SCOUT_DB_PATH", &cfg.Storage.DBPath)
	set("SERPER_KEY", &cfg.Search.SerperKey)
	set("OPENALEX_EMAIL", &cfg.Search.OpenAlexEmail)
	set("SCOUT_LOG_LEVEL", &cfg.Log.Level)
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	var errs []error
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is empty"))
	}
	if c.LLM.BaseURL == "" {
		errs = append(errs, errors.New("llm.baseUrl is empty"))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature %v out of range [0, 2]", c.LLM.Temperature))
	}
	if c.Research.ResultNum <= 0 {
		errs = append(errs, errors.New("research.resultNum must be positive"))
	}
	if c.Research.ContentSize <= 0 {
		errs = append(errs, errors.New("research.contentSize must be positive"))
	}
	if c.Storage.DBPath == "" {
		errs = append(errs, errors.New("storage.dbPath is empty"))
	}
	return errors.Join(errs...)
}

func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Store is the persisted key/value config table.
type Store interface {
	ConfigExists(section string) (bool, error)
	SetConfig(section, key, value string) error
	GetConfigSection(section string) (map[string]string, error)
}

const llmSection = "llm"

// SyncStored reconciles the llm section with the database. The first start
// (or force) writes cfg.LLM to the store; later starts load it back over
// file and environment values. It reports whether values came from the store.
func SyncStored(cfg *Config, store Store, force bool) (bool, error) {
	exists, err := store.ConfigExists(llmSection)
	if err != nil {
		return false, fmt.Errorf("check stored config: %w", err)
	}
	if !exists || force {
		values := map[string]string{
			"apiKey":      cfg.LLM.APIKey,
			"baseUrl":     cfg.LLM.BaseURL,
			"model":       cfg.LLM.Model,
			"temperature": strconv.FormatFloat(cfg.LLM.Temperature, 'f', -1, 64),
		}
		for k, v := range values {
			if err := store.SetConfig(llmSection, k, v); err != nil {
				return false, fmt.Errorf("save config %s.%s: %w", llmSection, k, err)
			}
		}
		return false, nil
	}

	stored, err := store.GetConfigSection(llmSection)
	if err != nil {
		return false, fmt.Errorf("load stored config: %w", err)
	}
	if v := stored["apiKey"]; v != "" {
		cfg.LLM.APIKey = v
	}
	if v := stored["baseUrl"]; v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := stored["model"]; v != "" {
		cfg.LLM.Model = v
	}
	if v := stored["temperature"]; v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return true, fmt.Errorf("stored temperature %q: %w", v, err)
		}
		cfg.LLM.Temperature = t
	}
	return true, nil
}

// MaskKey hides all but the ends of a secret for logging.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
