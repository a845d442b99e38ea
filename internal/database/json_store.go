package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"tgfb-relay/internal/database/models"
)

// JSONStore keeps the records as a pretty-printed JSON array in one file.
type JSONStore struct {
	path string
	now  func() time.Time
}

// NewJSONStore creates a store backed by path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path, now: time.Now}
}

// Path returns the backing file path.
func (s *JSONStore) Path() string { return s.path }

// Load reads all records. A missing or empty file yields no records; a file
// that is not a JSON array yields ErrCorruptStore. Entries without an id are
// skipped.
func (s *JSONStore) Load(_ context.Context) ([]models.PublishRecord, error) {
	f, err := s.read()
	return f.records, err
}

// Append rewrites the file as existing records followed by records. The new
// content is written to a temporary file and renamed over the old one, so a
// crash leaves either the old or the new content. A corrupt file is moved
// aside before the rewrite rather than being silently replaced.
func (s *JSONStore) Append(_ context.Context, records []models.PublishRecord) error {
	if len(records) == 0 {
		return nil
	}

	current, err := s.read()
	if err != nil {
		if !errors.Is(err, ErrCorruptStore) {
			return err
		}
		quarantine := fmt.Sprintf("%s.corrupt-%s", s.path, s.now().Format("20060102T150405"))
		if werr := os.WriteFile(quarantine, current.raw, 0o644); werr != nil {
			return fmt.Errorf("failed to quarantine corrupt results store: %w", werr)
		}
		log.Printf("[ResultStore %s] Corrupt content moved to %s before rewrite", s.path, quarantine)
		current.entries = nil
	}

	// Existing entries are written back as read, including skipped ones.
	all := make([]interface{}, 0, len(current.entries)+len(records))
	for _, entry := range current.entries {
		all = append(all, entry)
	}
	for _, rec := range records {
		all = append(all, rec)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(all); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return writeFileAtomic(s.path, buf.Bytes())
}

// storeFile is the decoded content of the backing file.
type storeFile struct {
	raw     []byte
	entries []json.RawMessage
	records []models.PublishRecord
}

func (s *JSONStore) read() (storeFile, error) {
	var f storeFile
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return f, fmt.Errorf("failed to read results store: %w", err)
	}
	f.raw = raw
	if len(bytes.TrimSpace(raw)) == 0 {
		return f, nil
	}

	if err := json.Unmarshal(raw, &f.entries); err != nil {
		return f, fmt.Errorf("%w: %s: %v", ErrCorruptStore, s.path, err)
	}
	f.records = make([]models.PublishRecord, 0, len(f.entries))
	for i, entry := range f.entries {
		var rec models.PublishRecord
		if err := json.Unmarshal(entry, &rec); err != nil {
			log.Printf("[ResultStore %s] Skipping entry %d: %v", s.path, i, err)
			continue
		}
		f.records = append(f.records, rec)
	}
	return f, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create results dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp results file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp results file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp results file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp results file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("failed to chmod temp results file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace results file: %w", err)
	}
	return nil
}

var _ ResultStore = (*JSONStore)(nil)
