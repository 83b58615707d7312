// Package target is the target-root planner: an insertion-sorted list of
// future mounts for installer mode, serialized to fstab form on finalize
// (spec §4.11).
package target

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/xerrors"
)

// Mount is one planned mount (spec §3 "Mount record", reused for the
// target plan).
type Mount struct {
	Device  string
	Path    string
	FSType  string
	Options string
}

var (
	ErrFirstMustBeRoot = xerrors.New("first target mount must be /")
	ErrNotUnderRoot    = xerrors.New("path is not beneath an existing target mount")
	ErrDuplicatePath   = xerrors.New("path already planned")
)

// Planner owns the insertion-sorted mount list. The zero value is ready
// to use.
type Planner struct {
	mounts []Mount // kept sorted by ascending path length, "/" first
}

// Insert adds m to the plan. The first entry must have path "/"; every
// later path must sit beneath some existing entry (spec §4.11:
// "enforced by descending path-length order").
func (p *Planner) Insert(m Mount) error {
	path := cleanPath(m.Path)
	m.Path = path

	if len(p.mounts) == 0 {
		if path != "/" {
			return ErrFirstMustBeRoot
		}
		p.mounts = append(p.mounts, m)
		return nil
	}

	for _, existing := range p.mounts {
		if existing.Path == path {
			return xerrors.Errorf("%w: %s", ErrDuplicatePath, path)
		}
	}
	if !hasPrefixMount(p.mounts, path) {
		return ErrNotUnderRoot
	}

	// Stored shallowest-first (ascending path length) so the plan is
	// already in mount order and Finalize needs no extra sort to put "/"
	// first; longest-prefix containment is still checked against every
	// entry in hasPrefixMount regardless of storage order.
	i := sort.Search(len(p.mounts), func(i int) bool {
		return len(p.mounts[i].Path) >= len(path)
	})
	p.mounts = append(p.mounts, Mount{})
	copy(p.mounts[i+1:], p.mounts[i:])
	p.mounts[i] = m
	return nil
}

// Unset removes the entry at path, if present.
func (p *Planner) Unset(path string) bool {
	path = cleanPath(path)
	for i, m := range p.mounts {
		if m.Path == path {
			p.mounts = append(p.mounts[:i], p.mounts[i+1:]...)
			return true
		}
	}
	return false
}

// Mounts returns the plan in stored (ascending path-length) order.
func (p *Planner) Mounts() []Mount {
	out := make([]Mount, len(p.mounts))
	copy(out, p.mounts)
	return out
}

// hasPrefixMount reports whether some existing mount's path is a
// (non-strict) prefix component of path.
func hasPrefixMount(mounts []Mount, path string) bool {
	for _, m := range mounts {
		if m.Path == "/" {
			if strings.HasPrefix(path, "/") {
				return true
			}
			continue
		}
		if strings.HasPrefix(path, m.Path+"/") {
			return true
		}
	}
	return false
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// Finalize serializes the plan to fstab form (tab-separated: device,
// path, fs, opts, 0, pass-number), with "/" first and pass number 1 for
// the root mount and 2 for everything else, matching common fstab
// convention since the spec does not otherwise constrain it.
func (p *Planner) Finalize() string {
	var b strings.Builder
	for _, m := range p.mounts {
		pass := 2
		if m.Path == "/" {
			pass = 1
		}
		opts := m.Options
		if opts == "" {
			opts = "defaults"
		}
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\t0\t%d\n", m.Device, m.Path, m.FSType, opts, pass)
	}
	return b.String()
}
