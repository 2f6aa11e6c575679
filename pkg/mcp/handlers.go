package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mark3labs/mcp-go/mcp"

	"campus-crawler/pkg/crawler"
	"campus-crawler/pkg/parse"
	"campus-crawler/pkg/process"
	"campus-crawler/pkg/utils"
)

// jobProgressInterval is how often a running job copies the crawl progress.
var jobProgressInterval = time.Second

// handleRunCrawl handles the run_crawl tool
func (s *Server) handleRunCrawl(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, created := s.jobManager.CreateJob()
	if !created {
		result := map[string]interface{}{
			"status":  "already_running",
			"message": "A crawl is already in progress",
			"job_id":  job.ID,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	go s.runCrawlJob(job.ID)

	result := map[string]interface{}{
		"status":   "started",
		"message":  "Crawl started successfully",
		"job_id":   job.ID,
		"base_url": s.cfg.AppConfig.BaseURL,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":       job.ID,
		"status":       job.Status,
		"started_at":   job.StartedAt.Format(time.RFC3339),
		"visited":      job.Visited,
		"routes_total": job.RoutesTotal,
		"routes_done":  job.RoutesDone,
	}
	if job.RunID != "" {
		result["run_id"] = job.RunID
	}
	if job.State != "" {
		result["state"] = job.State
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.Status == JobStatusCompleted {
		result["totalRoutes"] = job.TotalRoutes
		result["output_file"] = s.cfg.AppConfig.OutputFile
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetPage handles the get_page tool
func (s *Server) handleGetPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	route := request.GetString("route", "")
	if route == "" {
		return mcp.NewToolResultError("route parameter is required"), nil
	}
	format := request.GetString("format", "text")
	if format != "text" && format != "markdown" {
		return mcp.NewToolResultError(fmt.Sprintf("unknown format '%s' (supported: text, markdown)", format)), nil
	}

	pageURL, err := s.resolvePageURL(route)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	startTime := time.Now()
	res := s.fetcher.Fetch(ctx, pageURL)
	if !res.Ok() {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch %s (%s): %v", pageURL, utils.CategorizeError(res.Err), res.Err)), nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse HTML: %v", err)), nil
	}

	title := process.PageTitle(doc)
	extracted := process.ExtractContent(doc)
	content := extracted.Text
	if format == "markdown" && !extracted.Empty {
		content, err = process.BodyMarkdown(doc)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to convert to markdown: %v", err)), nil
		}
	}

	result := map[string]interface{}{
		"url":            res.FinalURL,
		"route":          parse.ToRoute(pageURL, s.cfg.AppConfig.BaseURL),
		"title":          title,
		"format":         format,
		"content":        content,
		"empty":          extracted.Empty,
		"content_length": len(content),
		"fetch_time_ms":  time.Since(startTime).Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleSearchCorpus handles the search_corpus tool
func (s *Server) handleSearchCorpus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(request.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	maxResults := request.GetInt("max_results", 10)
	if maxResults <= 0 {
		maxResults = 10
	}
	if maxResults > 100 {
		maxResults = 100
	}

	records, err := crawler.ReadCorpus(s.cfg.AppConfig.OutputFile)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("corpus not available at %s (run run_crawl first): %v", s.cfg.AppConfig.OutputFile, err)), nil
	}

	results := make([]map[string]interface{}, 0)
	queryLower := strings.ToLower(query)
	for _, rec := range records {
		if len(results) >= maxResults {
			break
		}

		var matchLocation string
		switch {
		case strings.Contains(strings.ToLower(rec.URL), queryLower):
			matchLocation = "route"
		case strings.Contains(strings.ToLower(rec.Content), queryLower):
			matchLocation = "content"
		default:
			continue
		}

		results = append(results, map[string]interface{}{
			"route":          rec.URL,
			"url":            parse.RouteURL(s.cfg.AppConfig.BaseURL, rec.URL),
			"snippet":        extractSnippet(rec.Content, query, 150),
			"match_location": matchLocation,
		})
	}

	response := map[string]interface{}{
		"query":         query,
		"results":       results,
		"total_matches": len(results),
		"corpus_size":   len(records),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// runCrawlJob runs a crawl job in the background
func (s *Server) runCrawlJob(jobID string) {
	s.jobManager.UpdateStatus(jobID, JobStatusRunning, "")
	jobCtx := s.jobManager.GetContext(jobID)
	log := s.log.WithField("job_id", jobID)

	done := make(chan struct{})
	defer close(done)
	go s.trackProgress(jobID, done)

	res, err := s.runner.Run(jobCtx)
	if err != nil {
		log.Warnf("Crawl job could not start: %v", err)
		s.jobManager.UpdateStatus(jobID, JobStatusFailed, err.Error())
		return
	}

	s.jobManager.Finish(jobID, res.RunID, string(res.State), res.TotalRoutes)
	switch {
	case res.Success:
		log.Infof("Crawl job completed: %d routes", res.TotalRoutes)
		s.jobManager.UpdateStatus(jobID, JobStatusCompleted, "")
	case errors.Is(res.Err, context.Canceled):
		s.jobManager.UpdateStatus(jobID, JobStatusCancelled, "")
	default:
		log.Warnf("Crawl job failed: %s", res.Error)
		s.jobManager.UpdateStatus(jobID, JobStatusFailed, res.Error)
	}
}

// trackProgress copies the runner's progress into the job until done closes.
func (s *Server) trackProgress(jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(jobProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if p, ok := s.runner.Progress(); ok {
				s.jobManager.UpdateProgress(jobID, p)
			}
		}
	}
}

// resolvePageURL turns a route or same-site URL into a canonical absolute URL.
func (s *Server) resolvePageURL(route string) (string, error) {
	_, base, err := parse.ParseAndNormalize(s.cfg.AppConfig.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base_url: %v", err)
	}
	ref, err := url.Parse(route)
	if err != nil {
		return "", fmt.Errorf("invalid route: %v", err)
	}
	if ref.IsAbs() && !parse.SameOrigin(ref, base) {
		return "", fmt.Errorf("%s is outside %s: %w", route, parse.Origin(base), utils.ErrScopeViolation)
	}
	resolved, ok := parse.ResolveReference(base, route)
	if !ok {
		return "", fmt.Errorf("cannot resolve route %q against %s", route, parse.Origin(base))
	}
	return resolved, nil
}

// extractSnippet extracts a snippet around the query match, slicing on rune
// boundaries so multi-byte UTF-8 characters are never split.
func extractSnippet(content, query string, maxLen int) string {
	runes := []rune(content)
	queryRunes := []rune(strings.ToLower(query))
	contentLowerRunes := []rune(strings.ToLower(content))

	idx := -1
	if len(contentLowerRunes) == len(runes) {
		for i := 0; i+len(queryRunes) <= len(contentLowerRunes); i++ {
			if string(contentLowerRunes[i:i+len(queryRunes)]) == string(queryRunes) {
				idx = i
				break
			}
		}
	}

	if idx == -1 {
		if len(runes) > maxLen {
			return string(runes[:maxLen]) + "..."
		}
		return content
	}

	start := max(idx-maxLen/2, 0)
	end := min(idx+len(queryRunes)+maxLen/2, len(runes))

	snippet := string(runes[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(runes) {
		snippet += "..."
	}
	return snippet
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
