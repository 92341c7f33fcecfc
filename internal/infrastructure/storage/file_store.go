package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/ports"
)

type historyFile struct {
	Version int                    `json:"version"`
	Records []domain.HistoryRecord `json:"records"`
}

// FileStore keeps history in a single JSON document replaced atomically.
type FileStore struct {
	path      string
	retention time.Duration
	now       func() time.Time

	mu      sync.Mutex
	loaded  bool
	records map[domain.Identity]domain.HistoryRecord
}

var _ ports.HistoryStore = (*FileStore)(nil)

// NewFileStore points the store at path. Records unseen for longer than
// retention are dropped on write; zero keeps everything.
func NewFileStore(path string, retention time.Duration) *FileStore {
	return &FileStore{path: path, retention: retention, now: time.Now}
}

// Lookup returns the record for id or domain.ErrNotFound.
func (s *FileStore) Lookup(ctx context.Context, id domain.Identity) (domain.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return domain.HistoryRecord{}, err
	}
	rec, ok := s.records[id]
	if !ok {
		return domain.HistoryRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

// Merge folds deltas into the document and rewrites it. A corrupt document
// is moved aside so history can start over.
func (s *FileStore) Merge(ctx context.Context, deltas []domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		if !errors.Is(err, errCorrupt) {
			return err
		}
		if err := s.quarantine(); err != nil {
			return err
		}
	}

	next := make(map[domain.Identity]domain.HistoryRecord, len(s.records)+len(deltas))
	for id, rec := range s.records {
		next[id] = rec
	}
	for _, d := range deltas {
		next[d.Identity] = next[d.Identity].Merge(d)
	}
	s.prune(next)

	doc := historyFile{Version: 1, Records: make([]domain.HistoryRecord, 0, len(next))}
	for _, rec := range next {
		doc.Records = append(doc.Records, rec)
	}
	if err := writeJSONAtomic(s.path, doc); err != nil {
		return fmt.Errorf("write history: %w", err)
	}

	s.records = next
	return nil
}

func (s *FileStore) load() error {
	if s.loaded {
		return nil
	}
	var doc historyFile
	if _, err := readJSON(s.path, &doc); err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	s.records = make(map[domain.Identity]domain.HistoryRecord, len(doc.Records))
	for _, rec := range doc.Records {
		s.records[rec.Identity] = rec
	}
	s.loaded = true
	return nil
}

func (s *FileStore) quarantine() error {
	aside := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
	if err := os.Rename(s.path, aside); err != nil {
		return fmt.Errorf("move corrupt history aside: %w", err)
	}
	s.records = map[domain.Identity]domain.HistoryRecord{}
	s.loaded = true
	return nil
}

func (s *FileStore) prune(records map[domain.Identity]domain.HistoryRecord) {
	if s.retention <= 0 {
		return
	}
	cutoff := s.now().Add(-s.retention)
	for id, rec := range records {
		if rec.LastSeenAt.Before(cutoff) {
			delete(records, id)
		}
	}
}
