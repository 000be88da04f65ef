package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"clockout-watcher/internal/common"
	"clockout-watcher/internal/features/auth/domain"
)

// FileStore implements domain.TokenStore backed by a single JSON file.
//
// Writes are atomic: the new token is written to a temp file in the same
// directory and renamed over the old one, so a crash mid-write leaves the
// previous token intact. A process-wide mutex plus a cross-process lock
// file serialize writers.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a new file-backed token store
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, common.InvalidInputError("token store path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create token store directory: %w", err)
	}

	return &FileStore{path: path}, nil
}

// Path returns the token file path
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the stored token. A missing, empty or corrupt file is
// reported as common.ErrNoToken so first use triggers extraction instead of
// failing hard.
func (s *FileStore) Load(ctx context.Context) (domain.Token, error) {
	if err := common.CheckContext(ctx); err != nil {
		return domain.Token{}, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Token{}, common.NoTokenError("token file %s does not exist", s.path)
		}
		return domain.Token{}, fmt.Errorf("failed to read token file: %w", err)
	}

	var token domain.Token
	if err := json.Unmarshal(data, &token); err != nil {
		log.Printf("Token file %s is corrupt, treating as missing: %v", s.path, err)
		return domain.Token{}, common.NoTokenError("token file %s is corrupt", s.path)
	}

	if token.IsZero() {
		return domain.Token{}, common.NoTokenError("token file %s holds no token", s.path)
	}

	return token, nil
}

// Save atomically replaces the stored token
func (s *FileStore) Save(ctx context.Context, token domain.Token) error {
	if err := common.CheckContext(ctx); err != nil {
		return err
	}
	if token.IsZero() {
		return common.InvalidInputError("refusing to persist an empty token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := acquireFileLock(s.path)
	if err != nil {
		return common.NewStorePersistError(s.path, err)
	}
	defer lock.release()

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return common.NewStorePersistError(s.path, err)
	}

	if err := s.writeAtomic(data); err != nil {
		return common.NewStorePersistError(s.path, err)
	}

	return nil
}

// Clear removes the stored token
func (s *FileStore) Clear(ctx context.Context) error {
	if err := common.CheckContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// writeAtomic writes data to a temp file and renames it over the store path
func (s *FileStore) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.path)

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	// Remove the temp file on any failure path so aborted writes leave
	// nothing behind.
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token file permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token data: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync token data: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	return nil
}
