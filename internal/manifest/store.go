package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"rigproc/internal/fileutil"
	"rigproc/internal/logging"
	"rigproc/internal/services"
)

// Store reads and writes the manifest of one process directory.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewStore returns a store for the manifest inside processDir.
func NewStore(processDir string, logger *slog.Logger) *Store {
	return &Store{
		path:   filepath.Join(processDir, FileName),
		logger: logging.NewComponentLogger(logger, "manifest"),
	}
}

// Path returns the manifest file path.
func (s *Store) Path() string {
	return s.path
}

// Entries returns the persisted entries in stored order. A missing manifest
// yields nil without error.
func (s *Store) Entries() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Manifest returns the names and enabled flags as parallel slices.
func (s *Store) Manifest() ([]string, []bool, error) {
	entries, err := s.Entries()
	if err != nil || len(entries) == 0 {
		return nil, nil, err
	}
	names := make([]string, len(entries))
	enabled := make([]bool, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name
		enabled[i] = entry.Enabled
	}
	return names, enabled, nil
}

// SetManifest writes names and enabled flags. The file is replaced unless
// appendMode is set. Entries named "manifest" are dropped.
func (s *Store) SetManifest(names []string, enabled []bool, appendMode bool) error {
	if len(names) != len(enabled) {
		return services.Wrap(services.ErrValidation, "", "set manifest",
			fmt.Sprintf("%d names but %d states", len(names), len(enabled)), nil)
	}
	entries := make([]Entry, 0, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || name == reservedName {
			continue
		}
		entries = append(entries, Entry{Name: name, Enabled: enabled[i]})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if appendMode {
		return fileutil.AppendFile(s.path, encode(entries), 0o644)
	}
	return s.writeLocked(entries)
}

// Contains reports whether name is listed.
func (s *Store) Contains(name string) bool {
	entries, ok := s.nonEmpty("contains", name)
	if !ok {
		return false
	}
	for _, entry := range entries {
		if entry.Name == name {
			return true
		}
	}
	return false
}

// State returns the enabled flag for name and whether name was found.
func (s *Store) State(name string) (enabled bool, found bool) {
	entries, ok := s.nonEmpty("get state", name)
	if !ok {
		return false, false
	}
	for _, entry := range entries {
		if entry.Name == name {
			return entry.Enabled, true
		}
	}
	return false, false
}

// SetState updates the enabled flag for name. An empty manifest or unknown
// name is logged and ignored.
func (s *Store) SetState(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		s.logger.Warn("manifest empty; state not changed",
			logging.String(logging.FieldStep, name),
			logging.String(logging.FieldEventType, "manifest_empty"),
		)
		return nil
	}
	for i := range entries {
		if entries[i].Name == name {
			entries[i].Enabled = enabled
			return s.writeLocked(entries)
		}
	}
	s.logger.Warn("step not in manifest; state not changed",
		logging.String(logging.FieldStep, name),
		logging.String(logging.FieldEventType, "manifest_unknown_step"),
	)
	return nil
}

// Children returns the direct children of name in stored order.
func (s *Store) Children(name string) []string {
	entries, err := s.Entries()
	if err != nil {
		s.logger.Warn("manifest unreadable", logging.Error(err))
		return nil
	}
	var children []string
	for _, entry := range entries {
		if IsDirectChild(name, entry.Name) {
			children = append(children, entry.Name)
		}
	}
	return children
}

// Add appends name as disabled unless it is already listed.
func (s *Store) Add(name string) error {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" || name == reservedName {
		return services.Wrap(services.ErrValidation, name, "add step", "invalid step name", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Name == name {
			return nil
		}
	}
	return fileutil.AppendFile(s.path, encode([]Entry{{Name: name}}), 0o644)
}

// Remove drops name and every entry nested below it.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return err
	}
	kept := entries[:0]
	removed := false
	for _, entry := range entries {
		if entry.Name == name || strings.HasPrefix(entry.Name, name+"/") {
			removed = true
			continue
		}
		kept = append(kept, entry)
	}
	if !removed {
		return nil
	}
	return s.writeLocked(kept)
}

func (s *Store) nonEmpty(operation, name string) ([]Entry, bool) {
	entries, err := s.Entries()
	if err != nil {
		s.logger.Warn("manifest unreadable",
			logging.String("operation", operation),
			logging.Error(err),
		)
		return nil, false
	}
	if len(entries) == 0 {
		s.logger.Warn("manifest empty",
			logging.String("operation", operation),
			logging.String(logging.FieldStep, name),
			logging.String(logging.FieldEventType, "manifest_empty"),
		)
		return nil, false
	}
	return entries, true
}

func (s *Store) readLocked() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	entries, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return entries, nil
}

func (s *Store) writeLocked(entries []Entry) error {
	if err := fileutil.WriteFileAtomic(s.path, encode(entries), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
