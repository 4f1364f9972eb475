package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// ErrCorrupt marks a data file whose content could not be decoded. Seeded
// loads park the file and regenerate defaults; direct Load callers decide for
// themselves.
var ErrCorrupt = errors.New("data file is corrupt")

// Store persists application state as JSON files under a single data
// directory. Every save is atomic: the new content lands in a temp file, the
// previous file is parked as a .bak, and the temp file is renamed into place
// before the backup is removed. A crash at any point leaves either the old or
// the new version readable.
type Store struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates the data directory if needed and returns a ready Store.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	return &Store{
		dir:    dir,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the store's data directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Save serializes v and atomically replaces the file for key.
func (s *Store) Save(key string, v any) error {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	return s.saveLocked(key, v)
}

func (s *Store) saveLocked(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	target := s.path(key)
	tmp := target + ".tmp"
	bak := target + ".bak"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file for %s: %w", key, err)
	}

	hadPrevious := false
	if _, err := os.Stat(target); err == nil {
		if err := os.Rename(target, bak); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("park backup for %s: %w", key, err)
		}
		hadPrevious = true
	}

	if err := os.Rename(tmp, target); err != nil {
		if hadPrevious {
			if restoreErr := os.Rename(bak, target); restoreErr != nil {
				s.logger.Error("failed to restore backup after save failure",
					"key", key, "error", restoreErr)
			}
		}
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", key, err)
	}

	if hadPrevious {
		if err := os.Remove(bak); err != nil {
			s.logger.Warn("failed to remove backup file", "key", key, "error", err)
		}
	}

	return nil
}

// Load reads the file for key into out. A missing file is reported as
// fs.ErrNotExist after attempting recovery from a leftover .bak. Corrupt JSON
// is surfaced as ErrCorrupt so callers can decide whether to fall back to
// defaults.
func (s *Store) Load(key string, out any) error {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	return s.loadLocked(key, out)
}

func (s *Store) loadLocked(key string, out any) error {
	target := s.path(key)

	data, err := os.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		// A crash between parking the backup and renaming the temp file
		// leaves only the .bak behind. Promote it and retry.
		bak := target + ".bak"
		if _, bakErr := os.Stat(bak); bakErr == nil {
			s.logger.Warn("recovering from backup file", "key", key)
			if renameErr := os.Rename(bak, target); renameErr != nil {
				return fmt.Errorf("recover backup for %s: %w", key, renameErr)
			}
			data, err = os.ReadFile(target)
		}
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return fmt.Errorf("read %s: %w", key, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %v: %w", key, err, ErrCorrupt)
	}
	return nil
}

// loadOrSeed fills out from disk, writing and returning the seed value when
// the file does not exist yet. A corrupt file is parked next to the original
// and replaced with the seed instead of wedging every subsequent load.
func loadOrSeed[T any](s *Store, key string, seed func() T) (T, error) {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	var value T
	err := s.loadLocked(key, &value)
	switch {
	case err == nil:
		return value, nil
	case errors.Is(err, fs.ErrNotExist):
	case errors.Is(err, ErrCorrupt):
		s.logger.Error("data file is corrupt, regenerating defaults",
			"key", key, "error", err)
		s.parkCorruptLocked(key)
	default:
		var zero T
		return zero, err
	}

	value = seed()
	if err := s.saveLocked(key, value); err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

// parkCorruptLocked moves the unreadable file aside so it stays available for
// inspection while the key is reseeded.
func (s *Store) parkCorruptLocked(key string) {
	target := s.path(key)
	if err := os.Rename(target, target+".corrupt"); err != nil {
		s.logger.Warn("failed to park corrupt file", "key", key, "error", err)
	}
}
