package crawler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"campus-crawler/pkg/models"
	"campus-crawler/pkg/utils"
)

// WriteCorpus writes records as a pretty-printed JSON array to path, creating
// missing directories. The file is replaced atomically: readers see either the
// old corpus or the complete new one.
func WriteCorpus(records []models.PageRecord, path string) error {
	if records == nil {
		records = []models.PageRecord{}
	}
	return writeJSONAtomic(path, records)
}

// ReadCorpus loads a corpus file written by WriteCorpus.
func ReadCorpus(path string) ([]models.PageRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading corpus '%s': %w", utils.ErrFilesystem, path, err)
	}
	var records []models.PageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: decoding corpus '%s': %w", utils.ErrParsing, path, err)
	}
	return records, nil
}

// writeJSONAtomic encodes v with two-space indentation into a temp file next to
// path and renames it into place.
func writeJSONAtomic(path string, v any) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating output directory '%s': %w", utils.ErrFilesystem, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file in '%s': %w", utils.ErrFilesystem, dir, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err = enc.Encode(v); err != nil {
		return fmt.Errorf("%w: encoding '%s': %w", utils.ErrFilesystem, path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: syncing '%s': %w", utils.ErrFilesystem, tmpPath, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing '%s': %w", utils.ErrFilesystem, tmpPath, err)
	}
	if err = os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("%w: chmod '%s': %w", utils.ErrFilesystem, tmpPath, err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: replacing '%s': %w", utils.ErrFilesystem, path, err)
	}
	return nil
}
