package manifest

import (
	"context"
	"fmt"
	"strings"

	"rigproc/internal/logging"
)

// UnitLister enumerates the qualified names of step units present on disk.
type UnitLister interface {
	List() ([]string, error)
}

// SyncResult reports what Sync changed.
type SyncResult struct {
	Added   []string
	Removed []string
}

// Changed reports whether Sync rewrote the manifest.
func (r SyncResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// Sync reconciles the manifest with the units reported by lister. Entries whose
// unit is gone are dropped, known entries keep their order and flags, and new
// units are appended disabled at the end in the order lister returns them.
// New units are not inserted next to their parent.
func (s *Store) Sync(ctx context.Context, lister UnitLister) (SyncResult, error) {
	if lister == nil {
		return SyncResult{}, fmt.Errorf("sync manifest: unit lister is required")
	}
	if err := ctx.Err(); err != nil {
		return SyncResult{}, err
	}
	units, err := lister.List()
	if err != nil {
		return SyncResult{}, fmt.Errorf("list step units: %w", err)
	}
	onDisk := make(map[string]struct{}, len(units))
	for _, unit := range units {
		unit = strings.TrimSpace(unit)
		if unit != "" && unit != reservedName {
			onDisk[unit] = struct{}{}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return SyncResult{}, err
	}

	var result SyncResult
	seen := make(map[string]struct{}, len(entries)+len(units))
	merged := make([]Entry, 0, len(entries)+len(units))
	for _, entry := range entries {
		if _, dup := seen[entry.Name]; dup {
			result.Removed = append(result.Removed, entry.Name)
			continue
		}
		if _, ok := onDisk[entry.Name]; !ok {
			result.Removed = append(result.Removed, entry.Name)
			continue
		}
		seen[entry.Name] = struct{}{}
		merged = append(merged, entry)
	}
	for _, unit := range units {
		unit = strings.TrimSpace(unit)
		if _, ok := onDisk[unit]; !ok {
			continue
		}
		if _, ok := seen[unit]; ok {
			continue
		}
		seen[unit] = struct{}{}
		merged = append(merged, Entry{Name: unit})
		result.Added = append(result.Added, unit)
	}

	if !result.Changed() {
		return result, nil
	}
	if err := s.writeLocked(merged); err != nil {
		return SyncResult{}, err
	}
	s.logger.Info("manifest synced",
		logging.String(logging.FieldEventType, "manifest_sync"),
		logging.Int("added", len(result.Added)),
		logging.Int("removed", len(result.Removed)),
	)
	return result, nil
}
