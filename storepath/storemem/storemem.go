// Package storemem is an in-memory reference implementation of
// storepath.Store, in the same spirit as the teacher's
// core/model/cassandra/impl/mem package: a mutex-guarded map standing
// in for a real backing store, suitable for tests and for embedding in
// short-lived tools that never need real persistence.
package storemem

import (
	"sync"

	. "github.com/warpfork/go-errcat"

	"github.com/ztzg/nix/storepath"
)

type Store struct {
	root string

	mu        sync.Mutex
	files     map[storepath.StorePath][]byte
	resolved  map[resolveKey]storepath.StorePath
}

type resolveKey struct {
	drv    storepath.StorePath
	output string
}

func New(root string) *Store {
	return &Store{
		root:     root,
		files:    make(map[storepath.StorePath][]byte),
		resolved: make(map[resolveKey]storepath.StorePath),
	}
}

func (s *Store) Root() string { return s.root }

func (s *Store) PathFromHash(digest []byte, name string) (storepath.StorePath, error) {
	compressed := digest
	if len(digest) != 20 {
		compressed = storepath.CompressHash(digest, 20)
	}
	var p storepath.StorePath
	copy(p.Digest[:], compressed)
	p.Name = name
	return p, nil
}

func (s *Store) ReadFile(path storepath.StorePath) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	if !ok {
		return nil, Errorf(storepath.ErrStore, "no such store path: %s", s.PrintPath(path))
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *Store) WriteFile(path storepath.StorePath, data []byte, repair bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.files[path]; exists && !repair {
		return nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.files[path] = cp
	return nil
}

func (s *Store) PrintPath(path storepath.StorePath) string {
	return s.root + path.String()
}

func (s *Store) ParsePath(str string) (storepath.StorePath, error) {
	if len(str) < len(s.root) || str[:len(s.root)] != s.root {
		return storepath.StorePath{}, Errorf(storepath.ErrStore, "path %q is not under store root %q", str, s.root)
	}
	return storepath.ParseLocal(str[len(s.root):])
}

// PutResolution records that outputName of inputDrv realized to path,
// so a later TryResolve call can look it up.  Test and tool setup use
// this to simulate a completed build.
func (s *Store) PutResolution(inputDrv storepath.StorePath, outputName string, path storepath.StorePath) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved[resolveKey{inputDrv, outputName}] = path
}

func (s *Store) ResolveOutput(inputDrv storepath.StorePath, outputName string) (storepath.StorePath, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.resolved[resolveKey{inputDrv, outputName}]
	return p, ok, nil
}
