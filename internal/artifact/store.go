package artifact

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ErrHandleReleased is returned when releasing a handle that is not live.
var ErrHandleReleased = errors.New("handle already released")

// Handle identifies a live resource backing an artifact.
type Handle struct {
	ID   string
	Path string
}

func (h Handle) IsZero() bool {
	return h.ID == ""
}

// Store hands out resource handles for audio payloads. Every Acquire must be
// matched by exactly one Release.
type Store interface {
	Acquire(data []byte, mimeType string) (Handle, error)
	Release(h Handle) error
	Live() int
}

// FileStore backs handles with files in a private directory.
type FileStore struct {
	dir   string
	owned bool

	mu   sync.Mutex
	live map[string]string

	onChange func(live int)
}

// NewFileStore creates a store in dir, or in a fresh temp directory when dir is empty.
func NewFileStore(dir string) (*FileStore, error) {
	owned := false
	if dir == "" {
		tmp, err := os.MkdirTemp("", "speaktranslate-")
		if err != nil {
			return nil, fmt.Errorf("failed to create handle directory: %w", err)
		}
		dir = tmp
		owned = true
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create handle directory: %w", err)
	}

	return &FileStore{
		dir:   dir,
		owned: owned,
		live:  make(map[string]string),
	}, nil
}

// OnChange registers a callback invoked with the live count after every change.
func (s *FileStore) OnChange(fn func(live int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *FileStore) Acquire(data []byte, mimeType string) (Handle, error) {
	id := uuid.NewString()
	path := filepath.Join(s.dir, id+"."+Extension(mimeType))

	if err := os.WriteFile(path, data, 0600); err != nil {
		return Handle{}, fmt.Errorf("failed to write artifact: %w", err)
	}

	s.mu.Lock()
	s.live[id] = path
	n := len(s.live)
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(n)
	}
	slog.Debug("Artifact handle acquired", "id", id, "path", path, "bytes", len(data))
	return Handle{ID: id, Path: path}, nil
}

func (s *FileStore) Release(h Handle) error {
	s.mu.Lock()
	path, ok := s.live[h.ID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("release %s: %w", h.ID, ErrHandleReleased)
	}
	delete(s.live, h.ID)
	n := len(s.live)
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(n)
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove artifact %s: %w", path, err)
	}
	slog.Debug("Artifact handle released", "id", h.ID)
	return nil
}

func (s *FileStore) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Close releases every live handle and removes the directory if the store created it.
func (s *FileStore) Close() error {
	s.mu.Lock()
	handles := make([]Handle, 0, len(s.live))
	for id, path := range s.live {
		handles = append(handles, Handle{ID: id, Path: path})
	}
	s.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := s.Release(h); err != nil {
			errs = append(errs, err)
		}
	}
	if s.owned {
		if err := os.RemoveAll(s.dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
