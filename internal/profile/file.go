package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileStore keeps one JSON document per user under a profiles directory.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profiles directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) path(userKey string) string {
	return filepath.Join(s.dir, userKey+"_profile.json")
}

func (s *FileStore) Get(ctx context.Context, userKey string) (*Document, error) {
	data, err := os.ReadFile(s.path(userKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &doc, nil
}

func (s *FileStore) Put(ctx context.Context, userKey string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := os.WriteFile(s.path(userKey), data, 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
