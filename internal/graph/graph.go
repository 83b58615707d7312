package graph

import (
	"sync"

	"golang.org/x/xerrors"
)

// Observer receives synchronous notifications as the graph's topology
// changes (spec §4.8 discovery / §5 "observers run on the thread that
// triggered them, synchronously"). Implementations must not perform long
// I/O; they may only update cached display structures.
type Observer interface {
	// BlockEvent is called once per discovered device and returns the
	// opaque handle attached to that device's Observer field.
	BlockEvent(dev *Device) ObserverHandle
	// BlockFree is called when a device is removed from the graph.
	BlockFree(dev *Device)
}

var (
	ErrNotFound      = xerrors.New("no such device")
	ErrAlreadyExists = xerrors.New("device already present")
)

// Graph is the process-wide device topology. The zero value is not
// usable; construct with New. Every exported method locks internally —
// callers never hold Graph's lock themselves, which is what lets
// observer callbacks "re-enter" the graph's own internal (lowercase)
// methods safely: those never try to relock.
type Graph struct {
	mu          sync.Mutex
	observer    Observer
	controllers []*Controller
	byName      map[string]*Device
	virtual     *Controller
}

// New returns an empty Graph with its singleton Virtual controller
// already present, reporting events to obs (which may be nil).
func New(obs Observer) *Graph {
	virt := &Controller{ID: VirtualControllerID, Bus: BusVirtual}
	return &Graph{
		observer:    obs,
		controllers: []*Controller{virt},
		byName:      make(map[string]*Device),
		virtual:     virt,
	}
}

// Lookup finds a device by its stable short name. O(1) via the backing
// map (spec §4.8 allows either O(n) or a hash-backed index; this
// implementation chooses the hash).
func (g *Graph) Lookup(name string) (*Device, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.byName[name]
	return d, ok
}

// Controllers returns the current controller list, including Virtual.
func (g *Graph) Controllers() []*Controller {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Controller, len(g.controllers))
	copy(out, g.controllers)
	return out
}

// insertDevice adds dev under controller c, invokes the observer, and
// indexes it by name. Must be called with mu held.
func (g *Graph) insertDevice(c *Controller, dev *Device) error {
	if _, exists := g.byName[dev.Name]; exists {
		return xerrors.Errorf("%w: %s", ErrAlreadyExists, dev.Name)
	}
	c.Devices = append(c.Devices, dev)
	g.byName[dev.Name] = dev
	if g.observer != nil {
		dev.Observer = g.observer.BlockEvent(dev)
	}
	return nil
}

// removeDevice detaches dev from its controller and notifies the
// observer. Must be called with mu held.
func (g *Graph) removeDevice(dev *Device) {
	delete(g.byName, dev.Name)
	for _, c := range g.controllers {
		for i, d := range c.Devices {
			if d == dev {
				c.Devices = append(c.Devices[:i], c.Devices[i+1:]...)
				break
			}
		}
	}
	if g.observer != nil {
		g.observer.BlockFree(dev)
	}
}

// insertPartitionSorted inserts part into parent's partition list in
// first-sector order (spec §3 invariant 1). It does not check that the
// new range is disjoint from the existing ones.
func insertPartitionSorted(parent *Device, part *Device) {
	i := 0
	for ; i < len(parent.partitions); i++ {
		if parent.partitions[i].Partition.FirstLBA > part.Partition.FirstLBA {
			break
		}
	}
	parent.partitions = append(parent.partitions, nil)
	copy(parent.partitions[i+1:], parent.partitions[i:])
	parent.partitions[i] = part
}

// VirtualController returns the singleton Virtual controller that owns
// aggregate pseudo-devices.
func (g *Graph) VirtualController() *Controller {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.virtual
}

// Aggregable reports whether dev is eligible as an aggregate component
// (spec §4.8 "Aggregable predicate"): filesystem type is empty,
// "zfs_member", or "linux_raid_member"; not already a slave; size > 0;
// not read-only; and by layout either a raw device without a partition
// table, a partition whose type is flagged aggregable, or an existing
// aggregate/zpool.
func Aggregable(dev *Device, aggregableCode func(code uint16) bool) bool {
	if dev == nil || dev.isSlave || dev.Size == 0 || dev.ReadOnly {
		return false
	}
	switch dev.FilesystemType {
	case "", "zfs_member", "linux_raid_member":
	default:
		return false
	}
	switch dev.Layout {
	case LayoutNone:
		return dev.Raw.TableKind == ""
	case LayoutPartition:
		return aggregableCode != nil && aggregableCode(dev.Partition.TypeCode)
	case LayoutMdadm, LayoutDM, LayoutZpool:
		return true
	default:
		return false
	}
}
