package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"agentmail-search/internal/logging"
	"agentmail-search/internal/searcherr"
)

// Layout resolves the on-disk paths for one (root, scope, engine) artifact
// family: root/scope_dir/engine_name/schema_hash/...
type Layout struct {
	Root       string
	Scope      Scope
	EngineName string
}

func (l Layout) engineDir() string {
	return filepath.Join(l.Root, l.Scope.Dir(), l.EngineName)
}

// SchemaDir is the directory holding segment files and the checkpoint for
// one schema_hash.
func (l Layout) SchemaDir(schemaHash string) string {
	return filepath.Join(l.engineDir(), schemaHash)
}

func (l Layout) checkpointPath(schemaHash string) string {
	return filepath.Join(l.SchemaDir(schemaHash), "checkpoint.json")
}

func (l Layout) activationPointerPath() string {
	return filepath.Join(l.engineDir(), "active_schema")
}

// EnsureDirs creates the engine and schema_hash directories if absent.
func (l Layout) EnsureDirs(schemaHash string) error {
	if err := os.MkdirAll(l.SchemaDir(schemaHash), 0o755); err != nil {
		return searcherr.New(searcherr.IO, "Layout.EnsureDirs", err)
	}
	return nil
}

// Activate names schemaHash as the currently-active schema for this engine.
// Activation is atomic: the pointer is written to a temp file in the same
// directory, then renamed into place, so concurrent readers never observe a
// partially-written pointer.
func (l Layout) Activate(schemaHash string) error {
	dir := l.engineDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return searcherr.New(searcherr.IO, "Layout.Activate", err)
	}

	tmp, err := os.CreateTemp(dir, "active_schema.tmp-*")
	if err != nil {
		return searcherr.New(searcherr.IO, "Layout.Activate", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(schemaHash); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return searcherr.New(searcherr.IO, "Layout.Activate", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return searcherr.New(searcherr.IO, "Layout.Activate", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return searcherr.New(searcherr.IO, "Layout.Activate", err)
	}

	if err := os.Rename(tmpPath, l.activationPointerPath()); err != nil {
		os.Remove(tmpPath)
		return searcherr.New(searcherr.IO, "Layout.Activate", err)
	}

	logging.Index("Activated schema %s for engine %s in scope %s", schemaHash, l.EngineName, l.Scope.Dir())
	return nil
}

// ActiveSchema reads the activation pointer. Returns ("", nil) if no schema
// has ever been activated for this engine.
func (l Layout) ActiveSchema() (string, error) {
	data, err := os.ReadFile(l.activationPointerPath())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", searcherr.New(searcherr.IO, "Layout.ActiveSchema", err)
	}
	return string(data), nil
}

// WriteCheckpoint writes cp as strict JSON for (scope, schemaHash).
func (l Layout) WriteCheckpoint(schemaHash string, cp Checkpoint) error {
	if err := l.EnsureDirs(schemaHash); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return searcherr.New(searcherr.Serialization, "Layout.WriteCheckpoint", err)
	}

	path := l.checkpointPath(schemaHash)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return searcherr.New(searcherr.IO, "Layout.WriteCheckpoint", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return searcherr.New(searcherr.IO, "Layout.WriteCheckpoint", err)
	}
	return nil
}

// ReadCheckpoint reads the checkpoint for (scope, schemaHash). A missing
// file is reported via ok=false with a nil error (a warning-level
// condition, not a failure); a malformed file surfaces as a Serialization
// error.
func (l Layout) ReadCheckpoint(schemaHash string) (cp Checkpoint, ok bool, err error) {
	data, readErr := os.ReadFile(l.checkpointPath(schemaHash))
	if os.IsNotExist(readErr) {
		return Checkpoint{}, false, nil
	}
	if readErr != nil {
		return Checkpoint{}, false, searcherr.New(searcherr.IO, "Layout.ReadCheckpoint", readErr)
	}
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, searcherr.New(searcherr.Serialization, "Layout.ReadCheckpoint", fmt.Errorf("malformed checkpoint at %s: %w", l.checkpointPath(schemaHash), err))
	}
	return cp, true, nil
}
