package models

import "time"

// PageRecord is one entry of the corpus file.
type PageRecord struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// FetchResult is the outcome of fetching one URL. Exactly one of Body or Err is meaningful.
type FetchResult struct {
	URL        string // URL as requested
	FinalURL   string // URL after redirects
	StatusCode int
	Body       []byte
	Err        error
}

// FetchOk builds a successful FetchResult.
func FetchOk(requested, final string, status int, body []byte) FetchResult {
	return FetchResult{URL: requested, FinalURL: final, StatusCode: status, Body: body}
}

// FetchFailed builds a failed FetchResult.
func FetchFailed(requested string, status int, err error) FetchResult {
	return FetchResult{URL: requested, FinalURL: requested, StatusCode: status, Err: err}
}

// Ok reports whether the fetch produced a body.
func (r FetchResult) Ok() bool {
	return r.Err == nil
}

// ExtractResult is the outcome of extracting readable text from a page.
type ExtractResult struct {
	Text  string
	Empty bool // true when the page had no visible text
}

// ExtractOk wraps non-empty text.
func ExtractOk(text string) ExtractResult {
	return ExtractResult{Text: text}
}

// ExtractEmpty marks a page with no readable text.
func ExtractEmpty() ExtractResult {
	return ExtractResult{Empty: true}
}

// RunResult summarizes one crawl run. The first four fields form the
// response body of the scrape trigger.
type RunResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	TotalRoutes int    `json:"totalRoutes"`

	RunID       string        `json:"run_id,omitempty"`
	State       RunState      `json:"state"`
	Discovered  int           `json:"discovered"`
	Filtered    int           `json:"filtered"`
	FailedPages int           `json:"failed_pages"`
	EmptyPages  int           `json:"empty_pages"`
	Records     int           `json:"records"`
	OutputFile  string        `json:"output_file,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`

	Err error `json:"-"`
}

// PageDBEntry stores the crawl outcome of a URL in the state store
type PageDBEntry struct {
	Status      PageStatus `json:"status"`
	Phase       string     `json:"phase"`                  // "discover" or "extract"
	ErrorType   string     `json:"error_type,omitempty"`   // Error category (on failure)
	StatusCode  int        `json:"status_code,omitempty"`  // Last HTTP status seen
	ProcessedAt time.Time  `json:"processed_at,omitempty"` // Timestamp of successful processing
	LastAttempt time.Time  `json:"last_attempt"`
	RunID       string     `json:"run_id,omitempty"`
}

// CrawlMetadata is written as YAML next to the corpus after a successful run.
type CrawlMetadata struct {
	RunID           string         `yaml:"run_id"`
	BaseURL         string         `yaml:"base_url"`
	CrawlStartTime  time.Time      `yaml:"crawl_start_time"`
	CrawlEndTime    time.Time      `yaml:"crawl_end_time"`
	Discovered      int            `yaml:"discovered"`
	TotalRoutes     int            `yaml:"total_routes"`
	TotalPagesSaved int            `yaml:"total_pages_saved"`
	FailedPages     int            `yaml:"failed_pages"`
	EmptyPages      int            `yaml:"empty_pages"`
	TotalTokens     int            `yaml:"total_tokens,omitempty"`
	OutputFile      string         `yaml:"output_file"`
	CorpusSHA256    string         `yaml:"corpus_sha256"`
	Configuration   map[string]any `yaml:"configuration,omitempty"`
	Pages           []PageMetadata `yaml:"pages"`
}

// PageMetadata holds metadata for a single saved page.
type PageMetadata struct {
	URL           string    `yaml:"url"`
	Route         string    `yaml:"route"`
	ProcessedAt   time.Time `yaml:"processed_at"`
	ContentHash   string    `yaml:"content_hash"`
	ContentLength int       `yaml:"content_length"`
	TokenCount    int       `yaml:"token_count,omitempty"`
	Title         string    `yaml:"title,omitempty"`
	Headings      []string  `yaml:"headings,omitempty"`
	MarkdownFile  string    `yaml:"markdown_file,omitempty"` // Relative to markdown_output_dir
}

// ChunkRecord is one line of the chunks JSONL export.
type ChunkRecord struct {
	URL              string   `json:"url"`
	Route            string   `json:"route"`
	ChunkIndex       int      `json:"chunk_index"`
	Content          string   `json:"content"`
	HeadingHierarchy []string `json:"heading_hierarchy,omitempty"`
	TokenCount       int      `json:"token_count"`
}
