// ============================================================================
// UWS Core — Default Backup Manager
// ============================================================================
//
// Package: internal/backup
// File: backup.go
// Purpose: A JSON-file BackupManager (contracts.BackupManager) — one file
//          per JobList, atomic tmp-file-then-rename writes (§4.8).
//
// Grounding:
//   Directly adapts the teacher's snapshot.Manager (internal/snapshot/
//   snapshot_manager.go): same atomic write discipline (temp file + rename),
//   same indented-JSON-for-debuggability choice, same "missing file means
//   first startup, not an error" load semantics. Generalized from one
//   fixed path to one path per registered list, and from a flat jobs map
//   to []uws.JobSnapshot.
//
// ============================================================================

package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gmantele/vollt-uws/pkg/uws"
)

const schemaVersion = 1

type listFile struct {
	SchemaVersion int               `json:"schema_version"`
	Jobs          []uws.JobSnapshot `json:"jobs"`
}

// FileBackupManager persists each JobList's jobs to its own JSON file under
// Dir, named "<list>.json" (§4.8 "one file per list or per owner" option —
// this implementation picks per-list).
type FileBackupManager struct {
	dir string

	mu       sync.Mutex
	listJobs func() map[string][]uws.JobSnapshot
}

// New constructs a FileBackupManager rooted at dir. snapshotSource is
// called at SaveAll time to obtain the current jobs of every registered
// list, keyed by list name; wiring it is the caller's (Service's)
// responsibility since BackupManager itself must not import joblist.
func New(dir string, snapshotSource func() map[string][]uws.JobSnapshot) *FileBackupManager {
	return &FileBackupManager{dir: dir, listJobs: snapshotSource}
}

func (b *FileBackupManager) pathFor(listName string) string {
	return filepath.Join(b.dir, listName+".json")
}

// SaveAll writes every registered list's current jobs to its backup file.
func (b *FileBackupManager) SaveAll(ctx context.Context) error {
	if b.listJobs == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for listName, jobs := range b.listJobs() {
		if err := b.writeList(listName, jobs); err != nil {
			return fmt.Errorf("uws: saving list %q: %w", listName, err)
		}
	}
	return nil
}

// SaveOwner writes every registered list's jobs, filtered to ownerID, to a
// separate "<list>.<ownerID>.json" file (§4.8 per-owner backup option).
func (b *FileBackupManager) SaveOwner(ctx context.Context, ownerID string) error {
	if b.listJobs == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for listName, jobs := range b.listJobs() {
		var owned []uws.JobSnapshot
		for _, snap := range jobs {
			if snap.OwnerID == ownerID {
				owned = append(owned, snap)
			}
		}
		if len(owned) == 0 {
			continue
		}
		path := filepath.Join(b.dir, fmt.Sprintf("%s.%s.json", listName, ownerID))
		if err := writeAtomic(path, listFile{SchemaVersion: schemaVersion, Jobs: owned}); err != nil {
			return fmt.Errorf("uws: saving owner %q in list %q: %w", ownerID, listName, err)
		}
	}
	return nil
}

func (b *FileBackupManager) writeList(listName string, jobs []uws.JobSnapshot) error {
	return writeAtomic(b.pathFor(listName), listFile{SchemaVersion: schemaVersion, Jobs: jobs})
}

func writeAtomic(path string, data listFile) error {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, jsonBytes, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// RestoreAll reads every "<list>.json" file under Dir and returns the
// snapshots it holds, keyed by list name. A missing directory or an
// individual missing file is treated as "nothing to restore", not an
// error — first startup has no backups yet.
func (b *FileBackupManager) RestoreAll(ctx context.Context) (map[string][]uws.JobSnapshot, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]uws.JobSnapshot{}, nil
		}
		return nil, fmt.Errorf("uws: reading backup dir: %w", err)
	}

	out := make(map[string][]uws.JobSnapshot)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		listName := namingListName(entry.Name())
		if listName == "" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(b.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("uws: reading backup file %q: %w", entry.Name(), err)
		}
		var file listFile
		if err := json.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("uws: corrupt backup file %q: %w", entry.Name(), err)
		}
		if file.SchemaVersion != schemaVersion {
			return nil, fmt.Errorf("uws: backup file %q has incompatible schema version %d", entry.Name(), file.SchemaVersion)
		}
		out[listName] = append(out[listName], file.Jobs...)
	}
	return out, nil
}

// namingListName extracts the list name from a backup filename, rejecting
// per-owner files ("<list>.<owner>.json") since RestoreAll only replays
// whole-list backups; per-owner files are an export/audit artifact.
func namingListName(filename string) string {
	base := filename[:len(filename)-len(filepath.Ext(filename))]
	if filepath.Ext(base) != "" {
		return ""
	}
	return base
}
