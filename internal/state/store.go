// Package state persists run snapshots as JSON files so a run can be
// inspected, resumed, or post-mortemed after the process exits.
package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/renameio/v2"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

// Store writes one snapshot file per run under its directory.
type Store struct {
	dir string
}

// NewStore creates a snapshot store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// snapshotEnvelope wraps a snapshot with integrity metadata.
type snapshotEnvelope struct {
	Version   int               `json:"version"`
	Checksum  string            `json:"checksum"`
	UpdatedAt time.Time         `json:"updated_at"`
	Snapshot  *core.RunSnapshot `json:"snapshot"`
}

// Save persists a snapshot atomically, keeping the previous version as a
// backup.
func (s *Store) Save(_ context.Context, snap core.RunSnapshot) error {
	if snap.RunID == "" {
		return core.ErrValidation(core.CodeInvalidState, "snapshot has no run id")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	path := s.path(snap.RunID)
	if prev, err := os.ReadFile(path); err == nil {
		if err := renameio.WriteFile(path+".bak", prev, 0o644); err != nil {
			return fmt.Errorf("writing backup: %w", err)
		}
	}

	snapBytes, err := json.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	hash := sha256.Sum256(snapBytes)

	envelope := snapshotEnvelope{
		Version:   1,
		Checksum:  hex.EncodeToString(hash[:]),
		UpdatedAt: time.Now().UTC(),
		Snapshot:  &snap,
	}
	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}

	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot file: %w", err)
	}
	return nil
}

// Load retrieves a snapshot, falling back to the backup when the primary
// file is corrupt.
func (s *Store) Load(_ context.Context, id core.RunID) (*core.RunSnapshot, error) {
	path := s.path(id)
	snap, err := loadFromPath(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrNotFound("run", string(id))
		}
		backup, backupErr := loadFromPath(path + ".bak")
		if backupErr != nil {
			return nil, fmt.Errorf("loading snapshot: %w (backup also failed: %v)", err, backupErr)
		}
		return backup, nil
	}
	return snap, nil
}

// List returns the IDs of all persisted runs, newest first.
func (s *Store) List() ([]core.RunID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state directory: %w", err)
	}

	type entry struct {
		id  core.RunID
		mod time.Time
	}
	var runs []entry
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		runs = append(runs, entry{
			id:  core.RunID(name[:len(name)-len(".json")]),
			mod: info.ModTime(),
		})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].mod.After(runs[j].mod) })
	ids := make([]core.RunID, len(runs))
	for i, r := range runs {
		ids[i] = r.id
	}
	return ids, nil
}

func (s *Store) path(id core.RunID) string {
	return filepath.Join(s.dir, string(id)+".json")
}

func loadFromPath(path string) (*core.RunSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var envelope snapshotEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshaling envelope: %w", err)
	}
	if envelope.Snapshot == nil {
		return nil, core.ErrState("STATE_CORRUPTED", "envelope has no snapshot")
	}

	snapBytes, err := json.Marshal(envelope.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot for checksum: %w", err)
	}
	hash := sha256.Sum256(snapBytes)
	if hex.EncodeToString(hash[:]) != envelope.Checksum {
		return nil, core.ErrState("STATE_CORRUPTED", "checksum mismatch")
	}
	return envelope.Snapshot, nil
}

// Verify that Store implements core.StateStore.
var _ core.StateStore = (*Store)(nil)
