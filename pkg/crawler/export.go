package crawler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"campus-crawler/pkg/config"
	"campus-crawler/pkg/models"
	"campus-crawler/pkg/process"
	"campus-crawler/pkg/utils"
)

// exporter writes the optional artifacts that accompany the corpus: per-page
// Markdown, retrieval chunks as JSONL and the run metadata YAML. Failures are
// logged and never fail the run.
type exporter struct {
	cfg       *config.AppConfig
	tokenizer *process.Tokenizer
	log       *logrus.Entry
}

func newExporter(cfg *config.AppConfig, tokenizer *process.Tokenizer, log *logrus.Entry) *exporter {
	return &exporter{cfg: cfg, tokenizer: tokenizer, log: log}
}

// needsMarkdown reports whether any export reads the page Markdown.
func (e *exporter) needsMarkdown() bool {
	return e.cfg.MarkdownOutputDir != "" || e.cfg.ChunksOutputFile != "" || e.cfg.MetadataPath() != ""
}

func (e *exporter) write(meta *models.CrawlMetadata, pages []extractedPage) {
	var markdownFiles map[string]string
	if e.cfg.MarkdownOutputDir != "" {
		markdownFiles = e.writeMarkdownFiles(pages)
	}

	if e.cfg.ChunksOutputFile != "" {
		if err := e.writeChunks(pages); err != nil {
			e.log.Errorf("Failed to write chunks file: %v", err)
		}
	}

	if path := e.cfg.MetadataPath(); path != "" {
		if err := e.writeMetadataYAML(path, meta, pages, markdownFiles); err != nil {
			e.log.Errorf("Failed to write metadata YAML: %v", err)
		}
	} else {
		e.log.Debug("YAML metadata output is disabled.")
	}
}

// writeMarkdownFiles saves one .md file per page and returns route -> file name.
func (e *exporter) writeMarkdownFiles(pages []extractedPage) map[string]string {
	dir := e.cfg.MarkdownOutputDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		e.log.Errorf("Failed to create Markdown output dir '%s': %v", dir, err)
		return nil
	}

	files := make(map[string]string, len(pages))
	used := make(map[string]int, len(pages))
	for _, p := range pages {
		if p.markdown == "" {
			continue
		}
		name := utils.RouteFilename(p.record.URL, ".md")
		n := used[name]
		used[name]++
		if n > 0 {
			name = strings.TrimSuffix(name, ".md") + "_" + strconv.Itoa(n+1) + ".md"
		}

		var b strings.Builder
		if p.title != "" {
			fmt.Fprintf(&b, "# %s\n\n", p.title)
		}
		fmt.Fprintf(&b, "Source: %s\n\n%s\n", p.pageURL, p.markdown)

		if err := os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0644); err != nil {
			e.log.WithField("route", p.record.URL).Errorf("Failed to write Markdown file: %v", err)
			continue
		}
		files[p.record.URL] = name
	}
	e.log.Infof("Wrote %d Markdown files to %s", len(files), dir)
	return files
}

// writeChunks splits each page into token-bounded chunks and writes them as JSON lines.
func (e *exporter) writeChunks(pages []extractedPage) error {
	path := e.cfg.ChunksOutputFile
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: creating chunks dir: %w", utils.ErrFilesystem, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating chunks file '%s': %w", utils.ErrFilesystem, path, err)
	}
	defer file.Close()

	chunker := process.NewChunker(process.ChunkerConfig{
		MaxChunkSize: e.cfg.ChunkMaxTokens,
		ChunkOverlap: e.cfg.ChunkOverlap,
	}, e.tokenizer)

	writer := bufio.NewWriter(file)
	total := 0
	for _, p := range pages {
		source := p.markdown
		if source == "" {
			source = p.record.Content
		}
		chunks, err := chunker.Split(source)
		if err != nil {
			e.log.WithField("route", p.record.URL).Warnf("Failed to chunk page: %v", err)
			continue
		}
		for i, chunk := range chunks {
			line, err := json.Marshal(models.ChunkRecord{
				URL:              p.pageURL,
				Route:            p.record.URL,
				ChunkIndex:       i,
				Content:          chunk.Content,
				HeadingHierarchy: chunk.HeadingHierarchy,
				TokenCount:       chunk.TokenCount,
			})
			if err != nil {
				e.log.Errorf("Failed to marshal chunk to JSON: %v", err)
				continue
			}
			if _, err := writer.Write(append(line, '\n')); err != nil {
				return fmt.Errorf("%w: writing chunks file: %w", utils.ErrFilesystem, err)
			}
			total++
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("%w: flushing chunks file: %w", utils.ErrFilesystem, err)
	}
	e.log.Infof("Wrote %d chunks to %s", total, path)
	return nil
}

// writeMetadataYAML writes the run summary and per-page metadata next to the corpus.
func (e *exporter) writeMetadataYAML(path string, meta *models.CrawlMetadata, pages []extractedPage, markdownFiles map[string]string) error {
	e.log.Debugf("Preparing to write crawl metadata to: %s", path)

	meta.CrawlEndTime = time.Now()
	meta.TotalPagesSaved = len(pages)
	meta.Pages = make([]models.PageMetadata, 0, len(pages))
	if sum, err := utils.CalculateFileSHA256(e.cfg.OutputFile); err != nil {
		e.log.Warnf("Could not hash corpus file: %v", err)
	} else {
		meta.CorpusSHA256 = sum
	}

	for _, p := range pages {
		tokens := e.tokenizer.Count(p.record.Content)
		meta.TotalTokens += tokens
		pm := models.PageMetadata{
			URL:           p.pageURL,
			Route:         p.record.URL,
			ProcessedAt:   p.processedAt,
			ContentHash:   utils.CalculateStringSHA256(p.record.Content),
			ContentLength: len(p.record.Content),
			TokenCount:    tokens,
			Title:         p.title,
			MarkdownFile:  markdownFiles[p.record.URL],
		}
		if p.markdown != "" {
			pm.Headings = process.ExtractHeadings([]byte(p.markdown))
		}
		meta.Pages = append(meta.Pages, pm)
	}

	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: marshal crawl metadata: %w", utils.ErrParsing, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: creating metadata dir: %w", utils.ErrFilesystem, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: writing metadata YAML '%s': %w", utils.ErrFilesystem, path, err)
	}
	e.log.Infof("Successfully wrote crawl metadata (%d pages) to %s", meta.TotalPagesSaved, path)
	return nil
}
