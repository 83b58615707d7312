// Package graph is the device graph: the in-memory topology tying
// controllers, block devices, partitions, and aggregates into a single
// live model synchronized with the kernel (spec §4.8).
package graph

import "github.com/dankamongmen/growlight/quantity"

// BusKind identifies the upstream I/O bus a Controller sits on.
type BusKind int

const (
	BusUnknown BusKind = iota
	BusVirtual
	BusPCIe
)

func (b BusKind) String() string {
	switch b {
	case BusVirtual:
		return "virtual"
	case BusPCIe:
		return "pcie"
	default:
		return "unknown"
	}
}

// PCIeAddress is the bus-specific address for a PCIe controller.
type PCIeAddress struct {
	Domain, Bus, Dev, Func uint32
	Lanes                  int
	Generation             int
	BandwidthBytesPerSec   uint64
}

// Controller is an upstream I/O bus endpoint (spec §3 "Controller").
// Created on discovery, destroyed only at process shutdown.
type Controller struct {
	ID      string
	Bus     BusKind
	PCIe    PCIeAddress
	Devices []*Device // ordered list of child devices
}

// VirtualControllerID is the stable identifier of the singleton Virtual
// controller that owns aggregate pseudo-devices.
const VirtualControllerID = "virtual"

// TransportKind is the physical link a raw disk device rides.
type TransportKind int

const (
	TransportUnknown TransportKind = iota
	TransportParallelATA
	TransportSerialATA1
	TransportSerialATA2
	TransportSerialATA3
	TransportSerialATA8
	TransportSerialATAUnknown
	TransportDirectNVMe
	TransportMixed // aggregate whose slaves disagree
)

// SmartStatus is the raw layout's read-only SMART overall-status enum,
// populated by an external enricher (spec's SMART polling exclusion).
type SmartStatus int

const (
	SmartUnknown SmartStatus = iota
	SmartGood
	SmartBad
)

// PartitionRole classifies a partition within its table kind.
type PartitionRole int

const (
	RoleUnknown PartitionRole = iota
	RolePrimary
	RoleExtended
	RoleLogical
	RoleESP
	RoleGPT
	RoleMac
	RolePC98
)

// SwapPriority is a device's swap priority, or one of the two sentinels.
type SwapPriority int

const (
	SwapInvalid  SwapPriority = -2
	SwapInactive SwapPriority = -1
)

// MountSet holds the parallel path/option lists for a device that is
// mounted at one or more points (spec §3 invariant 6: equal length).
type MountSet struct {
	Paths      []string
	Options    []string
	TotalBytes quantity.Size
}

// AddMount idempotently appends path/opts, matching §4.9 "idempotently
// append to the device's mount paths list and options list".
func (m *MountSet) AddMount(path, opts string) {
	for i, p := range m.Paths {
		if p == path {
			m.Options[i] = opts
			return
		}
	}
	m.Paths = append(m.Paths, path)
	m.Options = append(m.Options, opts)
}

// Layout tags which variant record a Device carries.
type Layout int

const (
	LayoutNone Layout = iota
	LayoutPartition
	LayoutMdadm
	LayoutDM
	LayoutZpool
)

func (l Layout) String() string {
	switch l {
	case LayoutPartition:
		return "partition"
	case LayoutMdadm:
		return "mdadm"
	case LayoutDM:
		return "dm"
	case LayoutZpool:
		return "zpool"
	default:
		return "none"
	}
}

// RawLayout is the Layout=None variant: a raw block device.
type RawLayout struct {
	RotationRPM    int // -1 SSD, 0 unknown, else RPM
	Removable      bool
	WriteCache     bool
	RWVerify       bool
	BIOSBoot       bool
	MBRCodeSHA1    [20]byte
	TableKind      string // empty means absent
	Transport      TransportKind
	Smart          SmartStatus
	TemperatureC   int
}

// PartitionLayout is the Layout=Partition variant.
type PartitionLayout struct {
	Parent    *Device
	Number    int // 1-based
	FirstLBA  uint64
	LastLBA   uint64
	TypeCode  uint16
	Flags     uint64
	Name      string
	UUID      string
	Role      PartitionRole
	Alignment uint64 // largest power of two dividing the starting byte offset
}

// SlaveRecord names one component of an aggregate device.
type SlaveRecord struct {
	Name   string
	Device *Device
}

// MdadmLayout is the Layout=Mdadm variant.
type MdadmLayout struct {
	DiskCount int
	Level     string
	Slaves    []SlaveRecord
	TableKind string
	Transport TransportKind
}

// DMLayout is the Layout=DM variant; shape mirrors MdadmLayout.
type DMLayout struct {
	DiskCount int
	Target    string // linear|striped|crypt|mirror
	Slaves    []SlaveRecord
	TableKind string
	Transport TransportKind
}

// ZpoolLayout is the Layout=Zpool variant.
type ZpoolLayout struct {
	Version   int
	Health    string
	Transport TransportKind
	Slaves    []SlaveRecord
}

// Device is any block-layer object: raw disk, aggregate, or partition
// (spec §3 "Device").
type Device struct {
	Name string // stable kernel identifier, <= NAME_MAX

	Size                       quantity.Size
	LogicalSectorSize          int
	PhysicalSectorSize         int

	Model, Revision, Serial, WWN string
	FilesystemUUID               string
	FilesystemLabel               string
	FilesystemType                string

	Mounts MountSet
	Swap   SwapPriority

	// TargetParticipant marks a device as mounted somewhere beneath the
	// target-root prefix (spec §4.9 "mark target-root participants").
	TargetParticipant bool

	ReadOnly bool

	Observer ObserverHandle

	Layout    Layout
	Raw       RawLayout
	Partition PartitionLayout
	Mdadm     MdadmLayout
	DM        DMLayout
	Zpool     ZpoolLayout

	// partitions of this device, sorted by first sector (invariant 1).
	partitions []*Device
	// isSlave is set when this device has been bound into an aggregate.
	isSlave bool
}

// Partitions returns the device's child partitions, sorted by first
// sector, as required by spec §3 invariant 1.
func (d *Device) Partitions() []*Device { return d.partitions }

// ObserverHandle is the opaque UI observer handle attached to a device.
type ObserverHandle interface{}
