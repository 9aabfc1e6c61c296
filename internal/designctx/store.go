// Package designctx provides the task-scoped artifact context store.
//
// The coordination core does not own persistence of design content; it
// only needs keyed lookups: does a primary design artifact exist for a
// task, what is its real module identity, and which artifact files are
// actually on disk. The filesystem-backed store answers those questions
// and keeps its index current with a directory watcher while workers
// produce files.
package designctx

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Store answers artifact-context queries for a task id.
type Store interface {
	// HasPrimaryArtifact reports whether a primary design artifact
	// exists for the task.
	HasPrimaryArtifact(taskID string) bool
	// ModuleIdentity returns the declared module name of the task's
	// primary design artifact, or "" when unknown.
	ModuleIdentity(taskID string) string
	// KnownArtifacts lists the artifact file names recorded for the task.
	KnownArtifacts(taskID string) []string
	// Exists reports whether a claimed artifact name is present in the
	// task's output location.
	Exists(taskID, name string) bool
}

// moduleDeclRe matches a Verilog module declaration line.
var moduleDeclRe = regexp.MustCompile(`^\s*module\s+([A-Za-z_][A-Za-z0-9_$]*)`)

// FSStore is a Store rooted at an output directory with one subdirectory
// per task id.
type FSStore struct {
	root string
	// index maps task id -> artifact name -> present.
	index map[string]map[string]bool
	mu    sync.RWMutex
}

// NewFSStore creates a store over the given output root and builds the
// initial index from what is already on disk.
func NewFSStore(root string) (*FSStore, error) {
	s := &FSStore{
		root:  root,
		index: make(map[string]map[string]bool),
	}
	if err := s.Rescan(); err != nil {
		return nil, err
	}
	return s, nil
}

// Root returns the output root directory.
func (s *FSStore) Root() string {
	return s.root
}

// TaskDir returns the output directory for a task id.
func (s *FSStore) TaskDir(taskID string) string {
	return filepath.Join(s.root, taskID)
}

// Rescan rebuilds the artifact index from disk.
func (s *FSStore) Rescan() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	index := make(map[string]map[string]bool)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		taskID := e.Name()
		files, err := os.ReadDir(filepath.Join(s.root, taskID))
		if err != nil {
			continue
		}
		index[taskID] = make(map[string]bool)
		for _, f := range files {
			if !f.IsDir() {
				index[taskID][f.Name()] = true
			}
		}
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	return nil
}

// record adds a single artifact to the index.
func (s *FSStore) record(taskID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index[taskID] == nil {
		s.index[taskID] = make(map[string]bool)
	}
	s.index[taskID][name] = true
}

// remove drops a single artifact from the index.
func (s *FSStore) remove(taskID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index[taskID] != nil {
		delete(s.index[taskID], name)
	}
}

// HasPrimaryArtifact reports whether the task has a design source file.
// Testbench files do not count as primary artifacts.
func (s *FSStore) HasPrimaryArtifact(taskID string) bool {
	return s.primaryArtifact(taskID) != ""
}

// primaryArtifact returns the task's first non-testbench HDL source name.
func (s *FSStore) primaryArtifact(taskID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for name := range s.index[taskID] {
		if !isHDLSource(name) {
			continue
		}
		lower := strings.ToLower(name)
		if strings.Contains(lower, "_tb") || strings.HasPrefix(lower, "tb_") {
			continue
		}
		return name
	}
	return ""
}

// ModuleIdentity parses the primary design artifact for its declared
// module name. Full Verilog parsing belongs to an external collaborator;
// the declaration-line scan here is only the keyed identity lookup the
// analyzer needs for content verification.
func (s *FSStore) ModuleIdentity(taskID string) string {
	name := s.primaryArtifact(taskID)
	if name == "" {
		return ""
	}

	f, err := os.Open(filepath.Join(s.TaskDir(taskID), name))
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if m := moduleDeclRe.FindStringSubmatch(scanner.Text()); m != nil {
			return m[1]
		}
	}
	return ""
}

// KnownArtifacts lists the indexed artifact names for the task.
func (s *FSStore) KnownArtifacts(taskID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.index[taskID]))
	for name := range s.index[taskID] {
		out = append(out, name)
	}
	return out
}

// Exists reports whether the claimed artifact name is indexed for the task.
func (s *FSStore) Exists(taskID, name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index[taskID][filepath.Base(name)]
}

// isHDLSource reports whether the file name looks like an HDL source file.
func isHDLSource(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".v", ".sv", ".vh", ".svh":
		return true
	default:
		return false
	}
}
