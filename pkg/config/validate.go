package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"campus-crawler/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// BaseURL (required)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.BaseURL == "" {
		return nil, fmt.Errorf("%w: base_url is required", utils.ErrConfigValidation)
	}
	u, parseErr := url.Parse(c.BaseURL)
	if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: base_url '%s' must be an absolute http(s) URL", utils.ErrConfigValidation, c.BaseURL)
	}
	if u.Path != "" && u.Path != "/" {
		warnings = append(warnings, fmt.Sprintf("base_url path '%s' ignored, crawling the whole origin", u.Path))
	}
	c.BaseURL = u.Scheme + "://" + u.Host

	// DisallowedPathPatterns must compile
	if _, err := utils.CompileRegexPatterns(c.DisallowedPathPatterns); err != nil {
		return warnings, err
	}

	// MaxVisited
	if c.MaxVisited <= 0 {
		warnings = append(warnings, fmt.Sprintf("max_visited should be > 0, defaulting to %d", DefaultMaxVisited))
		c.MaxVisited = DefaultMaxVisited
	}

	// OutputFile
	if c.OutputFile == "" {
		warnings = append(warnings, fmt.Sprintf("output_file is empty, defaulting to '%s'", DefaultOutputFile))
		c.OutputFile = DefaultOutputFile
	}

	// NumWorkers
	if c.NumWorkers <= 0 {
		warnings = append(warnings, "num_workers should be > 0, defaulting to 1")
		c.NumWorkers = 1
	}

	// MaxRequests
	if c.MaxRequests <= 0 {
		warnings = append(warnings, "max_requests should be > 0, defaulting to 10")
		c.MaxRequests = 10
	}
	if c.MaxRequests < c.NumWorkers {
		warnings = append(warnings, fmt.Sprintf(
			"max_requests (%d) < num_workers (%d), workers will wait on the request semaphore",
			c.MaxRequests, c.NumWorkers))
	}

	// UserAgent
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	// DelayPerHost
	if c.DelayPerHost < 0 {
		warnings = append(warnings, "delay_per_host cannot be negative, setting to 0")
		c.DelayPerHost = 0
	}

	// StateDir
	if c.StateDir == "" {
		if c.EnableStateStore {
			warnings = append(warnings, "state_dir is empty, defaulting to './crawler_state'")
		}
		c.StateDir = "./crawler_state"
	}
	if c.WriteVisitedLog && !c.EnableStateStore {
		warnings = append(warnings, "write_visited_log requires enable_state_store, ignoring")
		c.WriteVisitedLog = false
	}

	// MaxRetries: 0 disables retries; Default() carries DefaultMaxRetries.
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, disabling retries")
		c.MaxRetries = 0
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// SemaphoreAcquireTimeout
	if c.SemaphoreAcquireTimeout <= 0 {
		c.SemaphoreAcquireTimeout = 30 * time.Second
	}

	// Timeouts
	if c.GlobalCrawlTimeout < 0 {
		warnings = append(warnings, "global_crawl_timeout cannot be negative, disabling timeout")
		c.GlobalCrawlTimeout = 0
	}
	if c.PerFetchTimeout < 0 {
		warnings = append(warnings, "per_fetch_timeout cannot be negative, disabling timeout")
		c.PerFetchTimeout = 0
	}

	// MaxPageSizeBytes
	if c.MaxPageSizeBytes < 0 {
		warnings = append(warnings, "max_page_size_bytes cannot be negative, setting to 0 (unlimited)")
		c.MaxPageSizeBytes = 0
	}

	c.validateHTTPClientSettings()

	// Metadata YAML filename
	if c.EnableMetadataYAML && c.MetadataYAMLFilename == "" {
		warnings = append(warnings,
			"'enable_metadata_yaml' is true but 'metadata_yaml_filename' is empty. Defaulting to 'metadata.yaml'")
		c.MetadataYAMLFilename = "metadata.yaml"
	}

	// Chunking
	if c.ChunkMaxTokens <= 0 {
		c.ChunkMaxTokens = 512
	}
	if c.ChunkOverlap < 0 {
		warnings = append(warnings, "chunk_overlap cannot be negative, setting to 0")
		c.ChunkOverlap = 0
	}
	if c.ChunkOverlap >= c.ChunkMaxTokens {
		warnings = append(warnings, fmt.Sprintf(
			"chunk_overlap (%d) >= chunk_max_tokens (%d), setting overlap to %d",
			c.ChunkOverlap, c.ChunkMaxTokens, c.ChunkMaxTokens/10))
		c.ChunkOverlap = c.ChunkMaxTokens / 10
	}
	if c.TokenizerEncoding == "" {
		c.TokenizerEncoding = "cl100k_base"
	}

	// Server
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":3000"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
