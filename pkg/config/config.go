package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"campus-crawler/pkg/utils"
)

const (
	DefaultBaseURL    = "https://coek.dypgroup.edu.in"
	DefaultMaxVisited = 100
	DefaultOutputFile = "public/data.json"
	DefaultUserAgent  = "campus-crawler/1.0 (+https://coek.dypgroup.edu.in)"
	DefaultMaxRetries = 3
)

// DefaultIgnoredRoutes are route fragments excluded from extraction on the college site.
var DefaultIgnoredRoutes = []string{
	"/events",
	"/wp-content",
	"/event",
	"/statutory-committees",
	"media",
	"media_dl",
	"campus-life",
	"cultural",
	"foreign-language-program",
	"alumni",
	"internal-committees",
}

// AppConfig holds the application configuration for one crawl target
type AppConfig struct {
	BaseURL                 string           `yaml:"base_url"`
	IgnoredRoutes           []string         `yaml:"ignored_routes"`
	DisallowedPathPatterns  []string         `yaml:"disallowed_path_patterns,omitempty"` // Regex patterns for routes to exclude
	MaxVisited              int              `yaml:"max_visited"`
	OutputFile              string           `yaml:"output_file"`
	NumWorkers              int              `yaml:"num_workers"`
	MaxRequests             int              `yaml:"max_requests"`
	UserAgent               string           `yaml:"user_agent"`
	DelayPerHost            time.Duration    `yaml:"delay_per_host,omitempty"`
	RespectRobots           bool             `yaml:"respect_robots,omitempty"`
	MaxRetries              int              `yaml:"max_retries,omitempty"`
	InitialRetryDelay       time.Duration    `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay           time.Duration    `yaml:"max_retry_delay,omitempty"`
	SemaphoreAcquireTimeout time.Duration    `yaml:"semaphore_acquire_timeout,omitempty"`
	PerFetchTimeout         time.Duration    `yaml:"per_fetch_timeout,omitempty"` // Timeout for one fetch incl. retries (0 = no timeout)
	GlobalCrawlTimeout      time.Duration    `yaml:"global_crawl_timeout,omitempty"`
	MaxPageSizeBytes        int64            `yaml:"max_page_size_bytes,omitempty"`
	HTTPClientSettings      HTTPClientConfig `yaml:"http_client_settings,omitempty"`
	EnableStateStore        bool             `yaml:"enable_state_store,omitempty"`
	StateDir                string           `yaml:"state_dir"`
	WriteVisitedLog         bool             `yaml:"write_visited_log,omitempty"`
	EnableMetadataYAML      bool             `yaml:"enable_metadata_yaml"`
	MetadataYAMLFilename    string           `yaml:"metadata_yaml_filename,omitempty"`
	MarkdownOutputDir       string           `yaml:"markdown_output_dir,omitempty"` // Empty disables the Markdown export
	ChunksOutputFile        string           `yaml:"chunks_output_file,omitempty"`  // Empty disables the chunk export
	ChunkMaxTokens          int              `yaml:"chunk_max_tokens,omitempty"`
	ChunkOverlap            int              `yaml:"chunk_overlap,omitempty"`
	TokenizerEncoding       string           `yaml:"tokenizer_encoding,omitempty"`
	Server                  ServerConfig     `yaml:"server,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"`
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"` // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// ServerConfig holds settings for the HTTP control endpoint
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// Default returns the configuration used when no config file is present.
func Default() AppConfig {
	return AppConfig{
		BaseURL:              DefaultBaseURL,
		IgnoredRoutes:        append([]string(nil), DefaultIgnoredRoutes...),
		MaxVisited:           DefaultMaxVisited,
		OutputFile:           DefaultOutputFile,
		NumWorkers:           1,
		MaxRequests:          10,
		UserAgent:            DefaultUserAgent,
		MaxRetries:           DefaultMaxRetries,
		StateDir:             "./crawler_state",
		EnableMetadataYAML:   true,
		MetadataYAMLFilename: "metadata.yaml",
		ChunkMaxTokens:       512,
		ChunkOverlap:         50,
		TokenizerEncoding:    "cl100k_base",
		Server:               ServerConfig{ListenAddr: ":3000"},
	}
}

// Load reads a YAML config file on top of Default(). A missing file yields the defaults.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("%w: reading config '%s': %w", utils.ErrFilesystem, path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parsing config '%s': %w", utils.ErrConfigValidation, path, err)
	}
	return cfg, nil
}

// MetadataPath is the run metadata file, placed next to the corpus file.
func (c *AppConfig) MetadataPath() string {
	if !c.EnableMetadataYAML {
		return ""
	}
	return filepath.Join(filepath.Dir(c.OutputFile), c.MetadataYAMLFilename)
}

// Summary flattens the settings worth recording in run metadata.
func (c *AppConfig) Summary() map[string]any {
	return map[string]any{
		"base_url":       c.BaseURL,
		"ignored_routes": c.IgnoredRoutes,
		"max_visited":    c.MaxVisited,
		"num_workers":    c.NumWorkers,
		"respect_robots": c.RespectRobots,
		"delay_per_host": c.DelayPerHost.String(),
		"user_agent":     c.UserAgent,
	}
}
