package graph

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/dankamongmen/growlight/quantity"
)

// ControllerInfo is what an Enumerator reports about one bus endpoint,
// read from sysfs (spec §6 sysfs reads).
type ControllerInfo struct {
	ID   string
	Bus  BusKind
	PCIe PCIeAddress
}

// DeviceInfo is what an Enumerator reports about one raw block device,
// sourced from /sys/block/<name>/{size,queue/*,removable,ro,device/*}.
type DeviceInfo struct {
	Name                         string
	SizeBytes                    quantity.Size
	LogicalSectorSize            int
	PhysicalSectorSize           int
	Rotational                   bool
	Removable                    bool
	ReadOnly                     bool
	Model, Revision, Serial, WWN string
	Transport                    TransportKind
	TableKind                    string
	Partitions                   []PartitionInfo
}

// PartitionInfo is what an Enumerator reports about one partition
// subdirectory of a block device.
type PartitionInfo struct {
	Name      string
	Number    int
	FirstLBA  uint64
	LastLBA   uint64
	TypeCode  uint16
	Flags     uint64
	Name36    string
	UUID      string
	Role      PartitionRole
}

// Enumerator is the sysfs-reading backend behind discovery, kept as an
// interface so tests substitute an in-memory fake instead of touching a
// real /sys (mirrors the teacher's fake-backend-behind-an-interface test
// idiom used throughout the partition-table engines).
type Enumerator interface {
	Controllers() ([]ControllerInfo, error)
	BlockDevices(controllerID string) ([]string, error)
	ReadDevice(name string) (DeviceInfo, error)
}

// AggregateEnumerator reports aggregate devices (md, zpool) discovered
// after the raw device scan, binding slave lists by name (spec §4.8
// "Aggregate detection runs after raw device scan").
type AggregateEnumerator interface {
	MdadmDevices() ([]MdadmInfo, error)
	ZpoolDevices() ([]ZpoolInfo, error)
}

// MdadmInfo is what an AggregateEnumerator reports about one md device,
// from md/{raid_disks,level,metadata_version,rd<N>} (spec §6).
type MdadmInfo struct {
	Name      string
	Level     string
	SlaveNames []string
}

// ZpoolInfo is what an AggregateEnumerator reports about one zpool.
type ZpoolInfo struct {
	Name       string
	Version    int
	Health     string
	SlaveNames []string
}

// Discover enumerates controllers, then for each controller enumerates
// its block devices and populates their records (including child
// partitions), invoking the observer's BlockEvent per device. Aggregate
// detection (mdadm, zpool) runs afterward, binding slave lists by name
// (spec §4.8).
func Discover(g *Graph, enum Enumerator, aggEnum AggregateEnumerator) error {
	controllers, err := enum.Controllers()
	if err != nil {
		return xerrors.Errorf("enumerate controllers: %w", err)
	}

	type populated struct {
		ctrl  *Controller
		infos []DeviceInfo
	}
	results := make([]populated, len(controllers))

	grp, _ := errgroup.WithContext(context.Background())
	for i, ci := range controllers {
		i, ci := i, ci
		grp.Go(func() error {
			names, err := enum.BlockDevices(ci.ID)
			if err != nil {
				return xerrors.Errorf("enumerate block devices on %s: %w", ci.ID, err)
			}
			infos := make([]DeviceInfo, 0, len(names))
			for _, name := range names {
				info, err := enum.ReadDevice(name)
				if err != nil {
					return xerrors.Errorf("read device %s: %w", name, err)
				}
				infos = append(infos, info)
			}
			results[i] = populated{ctrl: &Controller{ID: ci.ID, Bus: ci.Bus, PCIe: ci.PCIe}, infos: infos}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	g.mu.Lock()
	for _, r := range results {
		g.controllers = append(g.controllers, r.ctrl)
		for _, info := range r.infos {
			dev := deviceFromInfo(info)
			if err := g.insertDevice(r.ctrl, dev); err != nil {
				g.mu.Unlock()
				return err
			}
			for _, pinfo := range info.Partitions {
				part := partitionFromInfo(dev, pinfo)
				insertPartitionSorted(dev, part)
				if err := g.insertDevice(r.ctrl, part); err != nil {
					g.mu.Unlock()
					return err
				}
			}
		}
	}
	g.mu.Unlock()

	if aggEnum == nil {
		return nil
	}
	return g.bindAggregates(aggEnum)
}

func deviceFromInfo(info DeviceInfo) *Device {
	d := &Device{
		Name:               info.Name,
		Size:               info.SizeBytes,
		LogicalSectorSize:  info.LogicalSectorSize,
		PhysicalSectorSize: info.PhysicalSectorSize,
		Model:              info.Model,
		Revision:           info.Revision,
		Serial:             info.Serial,
		WWN:                info.WWN,
		ReadOnly:           info.ReadOnly,
		Swap:               SwapInactive,
		Layout:             LayoutNone,
	}
	d.Raw = RawLayout{
		TableKind: info.TableKind,
		Transport: info.Transport,
		Removable: info.Removable,
		RotationRPM: func() int {
			if info.Rotational {
				return 7200 // unknown exact RPM; nonzero marks "rotational" per spec encoding
			}
			return -1
		}(),
	}
	return d
}

func partitionFromInfo(parent *Device, info PartitionInfo) *Device {
	d := &Device{
		Name:     info.Name,
		ReadOnly: parent.ReadOnly,
		Swap:     SwapInactive,
		Layout:   LayoutPartition,
	}
	d.Partition = PartitionLayout{
		Parent:   parent,
		Number:   info.Number,
		FirstLBA: info.FirstLBA,
		LastLBA:  info.LastLBA,
		TypeCode: info.TypeCode,
		Flags:    info.Flags,
		Name:     info.Name36,
		UUID:     info.UUID,
		Role:     info.Role,
	}
	sectorSize := parent.LogicalSectorSize
	if sectorSize == 0 {
		sectorSize = 512
	}
	d.Size = quantity.Size((info.LastLBA - info.FirstLBA + 1) * uint64(sectorSize))
	d.LogicalSectorSize = parent.LogicalSectorSize
	d.PhysicalSectorSize = parent.PhysicalSectorSize
	startByte := info.FirstLBA * uint64(sectorSize)
	d.Partition.Alignment = alignmentOf(startByte)
	return d
}

// alignmentOf returns the largest power of two dividing off, capped at
// 1<<30 so a zero offset doesn't report an unbounded alignment.
func alignmentOf(off uint64) uint64 {
	if off == 0 {
		return 1 << 30
	}
	align := uint64(1)
	for off%(align*2) == 0 && align < 1<<30 {
		align *= 2
	}
	return align
}

// bindAggregates attaches md/zpool pseudo-devices under the Virtual
// controller and binds their slave lists by name.
func (g *Graph) bindAggregates(aggEnum AggregateEnumerator) error {
	mds, err := aggEnum.MdadmDevices()
	if err != nil {
		return xerrors.Errorf("enumerate mdadm devices: %w", err)
	}
	pools, err := aggEnum.ZpoolDevices()
	if err != nil {
		return xerrors.Errorf("enumerate zpool devices: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, md := range mds {
		dev := &Device{Name: md.Name, Layout: LayoutMdadm, Swap: SwapInactive}
		dev.Mdadm = MdadmLayout{Level: md.Level, DiskCount: len(md.SlaveNames)}
		for _, sn := range md.SlaveNames {
			slave, ok := g.byName[sn]
			if !ok {
				continue
			}
			slave.isSlave = true
			dev.Mdadm.Slaves = append(dev.Mdadm.Slaves, SlaveRecord{Name: sn, Device: slave})
		}
		if err := g.insertDevice(g.virtual, dev); err != nil {
			return err
		}
	}
	for _, pool := range pools {
		dev := &Device{Name: pool.Name, Layout: LayoutZpool, Swap: SwapInactive}
		dev.Zpool = ZpoolLayout{Version: pool.Version, Health: pool.Health}
		for _, sn := range pool.SlaveNames {
			slave, ok := g.byName[sn]
			if !ok {
				continue
			}
			slave.isSlave = true
			dev.Zpool.Slaves = append(dev.Zpool.Slaves, SlaveRecord{Name: sn, Device: slave})
		}
		if err := g.insertDevice(g.virtual, dev); err != nil {
			return err
		}
	}
	return nil
}
