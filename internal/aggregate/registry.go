// Package aggregate is the declarative catalogue of RAID/ZFS/dm levels
// and their constructor trampolines (spec §4.10). The core never builds
// an array byte-for-byte; it validates the request and delegates
// construction to the corresponding external builder.
package aggregate

import (
	"golang.org/x/xerrors"
)

// Family groups related aggregate types by their external builder.
type Family string

const (
	FamilyMD  Family = "md"
	FamilyZFS Family = "zfs"
	FamilyDM  Family = "dm"
)

// Component is the narrow view of a device graph node the registry
// needs to validate aggregability and size homogeneity, without
// depending on the graph package directly (avoids an import cycle and
// keeps this package testable with plain structs).
type Component struct {
	Name       string
	SizeBytes  uint64
	Aggregable bool
}

// Builder delegates actual construction to an external tool once the
// registry has validated the request (spec §4.10 "delegates to the
// corresponding external builder with the component device nodes").
type Builder interface {
	Build(level string, name string, components []Component) error
}

// Descriptor is one entry in the static catalogue (spec §3 "Aggregate-
// type descriptor").
type Descriptor struct {
	Name              string
	Family            Family
	Description       string
	MinComponents     int
	MaxFailures        int // -1 = unlimited, >=0 = limit
	DefaultNamePrefix string
	RequiresHomogeneousSize bool // striped variants require equal-size components
}

var (
	ErrUnknownType       = xerrors.New("unknown aggregate type")
	ErrTooFewComponents  = xerrors.New("too few components for this aggregate type")
	ErrNotAggregable     = xerrors.New("component is not eligible for aggregation")
	ErrHeterogeneousSize = xerrors.New("striped aggregate requires equal-size components")
	ErrNoBuilder         = xerrors.New("no builder registered for this family")
)

// catalogue is the static table (spec §4.10): "md linear/ddf/imsm/
// contain/raid{0,1,4,5,6,10}, zfs mirror/raidz{1,2,3}/zil/l2arc, dm
// linear/striped/crypt/mirror".
var catalogue = []Descriptor{
	{Name: "linear", Family: FamilyMD, Description: "MD linear concatenation", MinComponents: 1, MaxFailures: 0, DefaultNamePrefix: "md"},
	{Name: "ddf", Family: FamilyMD, Description: "MD DDF container", MinComponents: 1, MaxFailures: -1, DefaultNamePrefix: "md"},
	{Name: "imsm", Family: FamilyMD, Description: "MD Intel Matrix Storage container", MinComponents: 1, MaxFailures: -1, DefaultNamePrefix: "md"},
	{Name: "container", Family: FamilyMD, Description: "MD external metadata container", MinComponents: 1, MaxFailures: -1, DefaultNamePrefix: "md"},
	{Name: "raid0", Family: FamilyMD, Description: "MD RAID 0 (striped)", MinComponents: 2, MaxFailures: 0, DefaultNamePrefix: "md", RequiresHomogeneousSize: true},
	{Name: "raid1", Family: FamilyMD, Description: "MD RAID 1 (mirror)", MinComponents: 2, MaxFailures: 1, DefaultNamePrefix: "md"},
	{Name: "raid4", Family: FamilyMD, Description: "MD RAID 4", MinComponents: 3, MaxFailures: 1, DefaultNamePrefix: "md", RequiresHomogeneousSize: true},
	{Name: "raid5", Family: FamilyMD, Description: "MD RAID 5", MinComponents: 3, MaxFailures: 1, DefaultNamePrefix: "md", RequiresHomogeneousSize: true},
	{Name: "raid6", Family: FamilyMD, Description: "MD RAID 6", MinComponents: 4, MaxFailures: 2, DefaultNamePrefix: "md", RequiresHomogeneousSize: true},
	{Name: "raid10", Family: FamilyMD, Description: "MD RAID 10", MinComponents: 4, MaxFailures: 1, DefaultNamePrefix: "md", RequiresHomogeneousSize: true},
	{Name: "mirror", Family: FamilyZFS, Description: "ZFS mirror vdev", MinComponents: 2, MaxFailures: -1, DefaultNamePrefix: "tank"},
	{Name: "raidz1", Family: FamilyZFS, Description: "ZFS raidz1 vdev", MinComponents: 3, MaxFailures: 1, DefaultNamePrefix: "tank"},
	{Name: "raidz2", Family: FamilyZFS, Description: "ZFS raidz2 vdev", MinComponents: 4, MaxFailures: 2, DefaultNamePrefix: "tank"},
	{Name: "raidz3", Family: FamilyZFS, Description: "ZFS raidz3 vdev", MinComponents: 5, MaxFailures: 3, DefaultNamePrefix: "tank"},
	{Name: "zil", Family: FamilyZFS, Description: "ZFS separate intent log", MinComponents: 1, MaxFailures: -1, DefaultNamePrefix: "tank"},
	{Name: "l2arc", Family: FamilyZFS, Description: "ZFS cache vdev", MinComponents: 1, MaxFailures: -1, DefaultNamePrefix: "tank"},
	{Name: "dm-linear", Family: FamilyDM, Description: "device-mapper linear target", MinComponents: 1, MaxFailures: 0, DefaultNamePrefix: "dm"},
	{Name: "dm-striped", Family: FamilyDM, Description: "device-mapper striped target", MinComponents: 2, MaxFailures: 0, DefaultNamePrefix: "dm", RequiresHomogeneousSize: true},
	{Name: "dm-crypt", Family: FamilyDM, Description: "device-mapper dm-crypt target", MinComponents: 1, MaxFailures: 0, DefaultNamePrefix: "dm"},
	{Name: "dm-mirror", Family: FamilyDM, Description: "device-mapper mirror target", MinComponents: 2, MaxFailures: 1, DefaultNamePrefix: "dm"},
}

// Lookup returns the descriptor for name, or false if unknown.
func Lookup(name string) (Descriptor, bool) {
	for _, d := range catalogue {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// All returns the full catalogue, for CLI listing verbs.
func All() []Descriptor {
	out := make([]Descriptor, len(catalogue))
	copy(out, catalogue)
	return out
}

// Registry dispatches validated construction requests to the Builder
// registered for each Family.
type Registry struct {
	builders map[Family]Builder
}

// NewRegistry returns a Registry with no builders attached; attach them
// with Register before calling Construct.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[Family]Builder)}
}

// Register attaches the external builder for a family.
func (r *Registry) Register(f Family, b Builder) {
	r.builders[f] = b
}

// Construct validates a build request against the catalogue — component
// count, aggregability, and (for striped variants) size homogeneity —
// then delegates to the family's builder.
func (r *Registry) Construct(typeName, name string, components []Component) error {
	d, ok := Lookup(typeName)
	if !ok {
		return xerrors.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	if len(components) < d.MinComponents {
		return xerrors.Errorf("%w: %s needs at least %d, got %d", ErrTooFewComponents, typeName, d.MinComponents, len(components))
	}
	for _, c := range components {
		if !c.Aggregable {
			return xerrors.Errorf("%w: %s", ErrNotAggregable, c.Name)
		}
	}
	if d.RequiresHomogeneousSize {
		if err := checkHomogeneous(components); err != nil {
			return err
		}
	}
	b, ok := r.builders[d.Family]
	if !ok {
		return xerrors.Errorf("%w: %s", ErrNoBuilder, d.Family)
	}
	return b.Build(typeName, name, components)
}

func checkHomogeneous(components []Component) error {
	if len(components) == 0 {
		return nil
	}
	want := components[0].SizeBytes
	for _, c := range components[1:] {
		if c.SizeBytes != want {
			return ErrHeterogeneousSize
		}
	}
	return nil
}

// PoolRecord is one zpool, as reported by a ZpoolScanner (spec §9 open
// question: ZFS is exposed via a scanner interface, no ZFS library is
// vendored).
type PoolRecord struct {
	Name    string
	Version int
	Health  string
	Slaves  []string
}

// ZpoolScanner reads the current zpool list, typically by shelling out
// to `zpool list`/`zpool status` (delegated, per spec §4.10/§6, to the
// external zpool binary — never linked in-process).
type ZpoolScanner interface {
	ScanPools() ([]PoolRecord, error)
}
