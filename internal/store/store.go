package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Dataset categories, one directory per category under the data root.
const (
	CategoryPapers   = "papers"
	CategorySearches = "searches"
	CategoryCrawls   = "crawls"
	CategoryLinks    = "links"
)

const tableExt = ".table"

// Store persists records as column-oriented files under one data root,
// one directory per category plus an all_<category> rollup per category.
// Appends never rewrite existing per-key files; the rollup is rewritten
// atomically under a per-category lock.
type Store struct {
	root   string
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(root string, logger *zap.Logger) (*Store, error) {
	for _, category := range []string{CategoryPapers, CategorySearches, CategoryCrawls, CategoryLinks} {
		if err := os.MkdirAll(filepath.Join(root, category), 0o755); err != nil {
			return nil, fmt.Errorf("create dataset directory: %w", err)
		}
	}
	return &Store{
		root:   root,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) categoryLock(category string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[category]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[category] = lock
	}
	return lock
}

func (s *Store) keyPath(category, key string) string {
	return filepath.Join(s.root, category, key+tableExt)
}

func (s *Store) rollupPath(category string) string {
	return filepath.Join(s.root, category, "all_"+category+tableExt)
}

// Put writes one record as the category's file for key. Duplicate keys are
// permitted at this layer and simply overwrite; dedup belongs to the caller.
func (s *Store) Put(category, key string, row Row) error {
	data, err := EncodeTable([]Row{row})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := writeAtomic(s.keyPath(category, key), data); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	s.logger.Info("Record saved",
		zap.String("category", category),
		zap.String("key", key))
	return nil
}

// AppendRollup loads the category rollup, concatenates the new record and
// rewrites the file atomically. An unreadable rollup is logged and treated
// as starting fresh; rows already on disk stay untouched in that case only
// if the file itself was unreadable, so nothing readable is ever dropped.
func (s *Store) AppendRollup(category string, row Row) error {
	lock := s.categoryLock(category)
	lock.Lock()
	defer lock.Unlock()

	path := s.rollupPath(category)
	var rows []Row
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		rows, err = DecodeTable(data)
		if err != nil {
			s.logger.Warn("Rollup unreadable, starting fresh",
				zap.Error(err),
				zap.String("category", category))
			rows = nil
		}
	case os.IsNotExist(err):
		// First append for this category.
	default:
		s.logger.Warn("Failed to load rollup, starting fresh",
			zap.Error(err),
			zap.String("category", category))
	}

	rows = append(rows, row)
	out, err := EncodeTable(rows)
	if err != nil {
		return fmt.Errorf("encode rollup: %w", err)
	}
	if err := writeAtomic(path, out); err != nil {
		return fmt.Errorf("write rollup: %w", err)
	}
	return nil
}

// Get looks up a record by key. Absent is not an error; an unreadable file
// is logged and reported as absent.
func (s *Store) Get(category, key string) (Row, bool) {
	data, err := os.ReadFile(s.keyPath(category, key))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("Failed to read record",
				zap.Error(err),
				zap.String("category", category),
				zap.String("key", key))
		}
		return nil, false
	}
	rows, err := DecodeTable(data)
	if err != nil || len(rows) == 0 {
		s.logger.Error("Failed to decode record",
			zap.Error(err),
			zap.String("category", category),
			zap.String("key", key))
		return nil, false
	}
	return rows[0], true
}

// ScanCategory loads every per-key file in a category, concatenating rows.
// The rollup file is excluded so records are not counted twice. Files that
// fail to decode are skipped and logged, never abort the scan.
func (s *Store) ScanCategory(category string) []Row {
	dir := filepath.Join(s.root, category)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("Failed to read dataset directory",
				zap.Error(err),
				zap.String("category", category))
		}
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, tableExt) || strings.HasPrefix(name, "all_") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var rows []Row
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			s.logger.Warn("Skipping unreadable dataset file",
				zap.Error(err),
				zap.String("category", category),
				zap.String("file", name))
			continue
		}
		fileRows, err := DecodeTable(data)
		if err != nil {
			s.logger.Warn("Skipping corrupt dataset file",
				zap.Error(err),
				zap.String("category", category),
				zap.String("file", name))
			continue
		}
		rows = append(rows, fileRows...)
	}
	return rows
}

// ReadRollup returns every row of the category rollup, oldest first.
func (s *Store) ReadRollup(category string) []Row {
	lock := s.categoryLock(category)
	lock.Lock()
	defer lock.Unlock()

	data, err := os.ReadFile(s.rollupPath(category))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("Failed to read rollup",
				zap.Error(err),
				zap.String("category", category))
		}
		return nil
	}
	rows, err := DecodeTable(data)
	if err != nil {
		s.logger.Error("Failed to decode rollup",
			zap.Error(err),
			zap.String("category", category))
		return nil
	}
	return rows
}

// writeAtomic writes via a temp file in the same directory plus rename, so
// readers never observe a partially written table.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
