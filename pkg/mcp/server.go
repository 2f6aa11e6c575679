package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"campus-crawler/pkg/config"
	"campus-crawler/pkg/crawler"
	"campus-crawler/pkg/fetch"
	"campus-crawler/pkg/models"
)

const (
	serverName    = "campus-crawler"
	serverVersion = "1.0.0"
)

// CrawlRunner starts crawl runs and reports on the active one.
// *orchestrate.Orchestrator satisfies it.
type CrawlRunner interface {
	Run(ctx context.Context) (models.RunResult, error)
	Progress() (crawler.Progress, bool)
}

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
}

// Server exposes crawl triggering and corpus lookup as MCP tools.
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	runner     CrawlRunner
	fetcher    crawler.PageFetcher
	jobManager *JobManager
}

// NewServer creates a new MCP server instance. fetcher may be nil, in which
// case get_page uses a fetcher built from the app config.
func NewServer(cfg *ServerConfig, runner CrawlRunner, fetcher crawler.PageFetcher) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("crawl runner is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	log := cfg.Logger.WithField("component", "mcp")

	if fetcher == nil {
		client := fetch.NewClient(cfg.AppConfig.HTTPClientSettings, log)
		fetcher = fetch.NewFetcher(client, cfg.AppConfig, log)
	}

	s := &Server{
		mcpServer:  server.NewMCPServer(serverName, serverVersion, server.WithLogging()),
		cfg:        cfg,
		log:        log,
		runner:     runner,
		fetcher:    fetcher,
		jobManager: NewJobManager(),
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	runCrawlTool := mcp.NewTool("run_crawl",
		mcp.WithDescription("Start a background crawl of the configured site. Returns immediately with a job ID."),
	)
	s.mcpServer.AddTool(runCrawlTool, s.handleRunCrawl)

	getJobStatusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status and progress of a crawl job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by run_crawl"),
		),
	)
	s.mcpServer.AddTool(getJobStatusTool, s.handleGetJobStatus)

	getPageTool := mcp.NewTool("get_page",
		mcp.WithDescription("Fetch one page of the configured site and return its readable text"),
		mcp.WithString("route",
			mcp.Required(),
			mcp.Description("Route relative to the base URL (e.g. '/about'), or an absolute URL on the same site"),
		),
		mcp.WithString("format",
			mcp.Description("'text' (default, same normalization as the corpus) or 'markdown'"),
			mcp.Enum("text", "markdown"),
		),
	)
	s.mcpServer.AddTool(getPageTool, s.handleGetPage)

	searchCorpusTool := mcp.NewTool("search_corpus",
		mcp.WithDescription("Search the last written corpus using text matching"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query (case-insensitive substring match on route and content)"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of results to return (default: 10, max: 100)"),
		),
	)
	s.mcpServer.AddTool(searchCorpusTool, s.handleSearchCorpus)

	s.log.Infof("Registered %d MCP tools", 4)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		return server.NewSSEServer(s.mcpServer).Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running jobs
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return nil
}
