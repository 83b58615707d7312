package graph

import (
	"path/filepath"

	"golang.org/x/xerrors"

	"github.com/dankamongmen/growlight/quantity"
)

// MountSink adapts a Graph to mounts.DeviceSink without this package
// importing internal/mounts (the dependency runs the other way: the CLI
// driver wires a *MountSink into mounts.Apply).
type MountSink struct {
	g *Graph
}

// NewMountSink returns a MountSink bound to g.
func NewMountSink(g *Graph) *MountSink { return &MountSink{g: g} }

// ResolveDeviceName maps a mountinfo device field to its graph short
// name: a symlinked path (e.g. under /dev/disk/by-uuid) is followed to
// its target when it exists, then reduced to the trailing path component
// the graph indexes devices by.
func (s *MountSink) ResolveDeviceName(raw string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(raw); err == nil {
		raw = resolved
	}
	name := filepath.Base(raw)
	if _, ok := s.g.Lookup(name); !ok {
		return "", xerrors.Errorf("%w: %s", ErrNotFound, name)
	}
	return name, nil
}

func (s *MountSink) AddMount(name, path, opts string) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if d, ok := s.g.byName[name]; ok {
		d.Mounts.AddMount(path, opts)
	}
}

func (s *MountSink) SetFilesystemType(name, fsType string) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if d, ok := s.g.byName[name]; ok {
		d.FilesystemType = fsType
	}
}

func (s *MountSink) AddMountBytes(name string, total quantity.Size) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if d, ok := s.g.byName[name]; ok {
		d.Mounts.TotalBytes += total
	}
}

func (s *MountSink) SetSwapPriority(name string, prio int) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if d, ok := s.g.byName[name]; ok {
		d.Swap = SwapPriority(prio)
	}
}

func (s *MountSink) MarkTargetParticipant(name string) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if d, ok := s.g.byName[name]; ok {
		d.TargetParticipant = true
	}
}
