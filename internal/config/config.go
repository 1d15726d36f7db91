// Package config holds the application settings: LLM endpoint, GitHub
// access, task storage, and upload limits. Settings load from a YAML or
// JSON file; secrets may also arrive via environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file values for secrets.
const (
	EnvLLMAPIKey   = "CONDENSER_LLM_API_KEY"
	EnvGitHubToken = "CONDENSER_GITHUB_TOKEN"
)

// LLM configures the language-model client.
type LLM struct {
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	Model       string        `yaml:"model" json:"model"`
	APIKey      string        `yaml:"api_key" json:"api_key"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// GitHub configures repository fetches.
type GitHub struct {
	Token        string        `yaml:"token" json:"token"`
	CommitWindow time.Duration `yaml:"commit_window" json:"commit_window"`
	CommitLimit  int           `yaml:"commit_limit" json:"commit_limit"`
}

// Store configures where task records live. An empty Path keeps records
// in memory.
type Store struct {
	Path string        `yaml:"path" json:"path"`
	TTL  time.Duration `yaml:"ttl" json:"ttl"`
}

// Upload bounds user-submitted files.
type Upload struct {
	MaxFiles     int      `yaml:"max_files" json:"max_files"`
	MaxFileBytes int64    `yaml:"max_file_bytes" json:"max_file_bytes"`
	AllowedExts  []string `yaml:"allowed_exts" json:"allowed_exts"`
}

// Settings is the full application configuration.
type Settings struct {
	LLM    LLM    `yaml:"llm" json:"llm"`
	GitHub GitHub `yaml:"github" json:"github"`
	Store  Store  `yaml:"store" json:"store"`
	Upload Upload `yaml:"upload" json:"upload"`
}

// Default returns the settings used when no file is supplied.
func Default() Settings {
	return Settings{
		LLM: LLM{
			Model:       "sonar",
			MaxTokens:   700,
			Temperature: 0.7,
			Timeout:     90 * time.Second,
		},
		GitHub: GitHub{
			CommitWindow: 3 * 24 * time.Hour,
			CommitLimit:  30,
		},
		Store: Store{
			TTL: time.Hour,
		},
		Upload: Upload{
			MaxFiles:     5,
			MaxFileBytes: 1 << 20,
			AllowedExts:  []string{".txt", ".md"},
		},
	}
}

// Load reads settings from a file, auto-detecting format by extension
// (.yaml, .yml, .json). Missing fields keep their defaults; environment
// variables override file values for secrets. An empty path returns the
// defaults with environment overrides applied.
func Load(path string) (Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read config file: %w", err)
		}
		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, &s); err != nil {
				return Settings{}, fmt.Errorf("parse yaml: %w", err)
			}
		case ".json":
			if err := json.Unmarshal(data, &s); err != nil {
				return Settings{}, fmt.Errorf("parse json: %w", err)
			}
		default:
			return Settings{}, fmt.Errorf("unsupported config file extension: %s", ext)
		}
	}

	s.applyEnv()
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) applyEnv() {
	if key := os.Getenv(EnvLLMAPIKey); key != "" {
		s.LLM.APIKey = key
	}
	if tok := os.Getenv(EnvGitHubToken); tok != "" {
		s.GitHub.Token = tok
	}
}

func (s *Settings) validate() error {
	if s.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens must not be negative, got %d", s.LLM.MaxTokens)
	}
	if s.LLM.Temperature < 0 || s.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be in [0, 2], got %g", s.LLM.Temperature)
	}
	if s.Upload.MaxFiles < 0 {
		return fmt.Errorf("upload.max_files must not be negative, got %d", s.Upload.MaxFiles)
	}
	if s.Store.TTL < 0 {
		return fmt.Errorf("store.ttl must not be negative, got %s", s.Store.TTL)
	}
	return nil
}
