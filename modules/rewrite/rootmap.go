package rewrite

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/coldfix/git-filter-tree/modules/oid"
)

// RootMap is the persistent old_oid -> new_oid mapping of spec §4.7:
// created at the start of a run and appended during the rewrite phase.
// The reference-update phase looks targets up in the in-memory copy of
// the same mappings that Driver.rewritePhase builds, not by reading
// this file back. Writes are append-only
// and serialized through a single mutex (spec §5, "The root-map output
// is append-only and serialized (one writer)").
//
// Each appended line is flushed (fsync'd) immediately: spec §9 leaves
// root-map durability an open question ("If crash-safety matters,
// flush after each line") and this implementation takes the
// crash-safety-favoring side, since a root-map left incomplete after a
// crash is exactly the artifact an operator needs to diagnose which
// roots completed (spec §7, "the root-map file is left in place").
type RootMap struct {
	mu   sync.Mutex
	file *os.File
}

// OpenRootMap implements spec §4.7 phase 1: it refuses to run (returns
// *StaleStateError) if path already exists and is non-empty.
func OpenRootMap(path string) (*RootMap, error) {
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return nil, &StaleStateError{Path: path}
	} else if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("rewrite: stat root-map %q: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("rewrite: open root-map %q: %w", path, err)
	}
	return &RootMap{file: f}, nil
}

// Append records one old_oid -> new_oid mapping, flushing immediately.
func (m *RootMap) Append(oldOID, newOID oid.OID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := fmt.Fprintf(m.file, "%s %s\n", oldOID.String(), newOID.String()); err != nil {
		return fmt.Errorf("rewrite: append root-map: %w", err)
	}
	return m.file.Sync()
}

// Close closes the underlying file.
func (m *RootMap) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file.Close()
}

// LoadRootMap reads a previously-written root-map file into memory, for
// inspecting the result of a run after the fact.
func LoadRootMap(path string) (map[oid.OID]oid.OID, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rewrite: open root-map %q: %w", path, err)
	}
	defer f.Close()
	m := make(map[oid.OID]oid.OID)
	sc := bufio.NewScanner(f)
	sc.Buffer(nil, 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("rewrite: malformed root-map line %q", line)
		}
		oldOID, err := oid.NewEx(fields[0])
		if err != nil {
			return nil, err
		}
		newOID, err := oid.NewEx(fields[1])
		if err != nil {
			return nil, err
		}
		m[oldOID] = newOID
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("rewrite: read root-map %q: %w", path, err)
	}
	return m, nil
}
