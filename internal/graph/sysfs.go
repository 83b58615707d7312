package graph

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/xerrors"

	"github.com/dankamongmen/growlight/quantity"
)

// pciAddrPattern matches a PCI bus:device.function segment of a sysfs
// device symlink, e.g. "0000:00:1f.2" (spec §6 sysfs reads).
var pciAddrPattern = regexp.MustCompile(`^[0-9a-f]{4}:[0-9a-f]{2}:[0-9a-f]{2}\.[0-9a-f]$`)

// SysfsEnumerator is the real Enumerator, reading /sys/block the way
// spec §6 describes: one attribute per file, ASCII, under
// /sys/block/<name>/{size,queue/*,removable,ro,device/*} and partition
// subdirectories.
type SysfsEnumerator struct {
	Root string // usually "/sys"
}

// NewSysfsEnumerator returns an Enumerator reading the real sysfs tree.
func NewSysfsEnumerator() *SysfsEnumerator { return &SysfsEnumerator{Root: "/sys"} }

func (e *SysfsEnumerator) blockDir() string { return filepath.Join(e.Root, "block") }

// controllerOfDevice walks the device symlink under /sys/block/<name>
// looking for the last PCI bus:device.function path component, which
// names the controller the device hangs off of. Devices with no PCI
// component (virtio, loop) are grouped under a synthetic "platform"
// controller.
func (e *SysfsEnumerator) controllerOfDevice(name string) (string, BusKind) {
	target, err := os.Readlink(filepath.Join(e.blockDir(), name))
	if err != nil {
		return "platform", BusUnknown
	}
	var last string
	for _, part := range strings.Split(target, string(filepath.Separator)) {
		if pciAddrPattern.MatchString(part) {
			last = part
		}
	}
	if last == "" {
		return "platform", BusUnknown
	}
	return last, BusPCIe
}

// Controllers enumerates the distinct controller IDs implied by the
// current set of block devices.
func (e *SysfsEnumerator) Controllers() ([]ControllerInfo, error) {
	entries, err := os.ReadDir(e.blockDir())
	if err != nil {
		return nil, xerrors.Errorf("read %s: %w", e.blockDir(), err)
	}
	seen := map[string]ControllerInfo{}
	var order []string
	for _, ent := range entries {
		id, bus := e.controllerOfDevice(ent.Name())
		if _, ok := seen[id]; !ok {
			seen[id] = ControllerInfo{ID: id, Bus: bus}
			order = append(order, id)
		}
	}
	out := make([]ControllerInfo, 0, len(order))
	for _, id := range order {
		out = append(out, seen[id])
	}
	return out, nil
}

// BlockDevices lists the whole-disk device names belonging to controllerID.
func (e *SysfsEnumerator) BlockDevices(controllerID string) ([]string, error) {
	entries, err := os.ReadDir(e.blockDir())
	if err != nil {
		return nil, xerrors.Errorf("read %s: %w", e.blockDir(), err)
	}
	var names []string
	for _, ent := range entries {
		id, _ := e.controllerOfDevice(ent.Name())
		if id == controllerID {
			names = append(names, ent.Name())
		}
	}
	return names, nil
}

func readTrimmed(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func readUint(path string) (uint64, bool) {
	s, ok := readTrimmed(path)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	return v, err == nil
}

// ReadDevice reads the full attribute set for one whole-disk device,
// including its partition subdirectories.
func (e *SysfsEnumerator) ReadDevice(name string) (DeviceInfo, error) {
	dir := filepath.Join(e.blockDir(), name)
	info := DeviceInfo{Name: name}

	if sectors, ok := readUint(filepath.Join(dir, "size")); ok {
		info.LogicalSectorSize = 512 // kernel "size" is always in 512-byte units
		info.SizeBytes = quantity.Size(sectors * 512)
	}
	if v, ok := readUint(filepath.Join(dir, "queue", "logical_block_size")); ok {
		info.LogicalSectorSize = int(v)
	}
	if v, ok := readUint(filepath.Join(dir, "queue", "physical_block_size")); ok {
		info.PhysicalSectorSize = int(v)
	}
	if v, ok := readUint(filepath.Join(dir, "queue", "rotational")); ok {
		info.Rotational = v != 0
	}
	if v, ok := readUint(filepath.Join(dir, "removable")); ok {
		info.Removable = v != 0
	}
	if v, ok := readUint(filepath.Join(dir, "ro")); ok {
		info.ReadOnly = v != 0
	}
	if s, ok := readTrimmed(filepath.Join(dir, "device", "model")); ok {
		info.Model = s
	}
	if s, ok := readTrimmed(filepath.Join(dir, "device", "rev")); ok {
		info.Revision = s
	}
	if s, ok := readTrimmed(filepath.Join(dir, "device", "serial")); ok {
		info.Serial = s
	}
	info.Transport = transportOf(name)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return info, xerrors.Errorf("read %s: %w", dir, err)
	}
	for _, ent := range entries {
		if !ent.IsDir() || !strings.HasPrefix(ent.Name(), name) || ent.Name() == name {
			continue
		}
		pinfo, ok := readPartition(dir, ent.Name())
		if ok {
			info.Partitions = append(info.Partitions, pinfo)
		}
	}
	return info, nil
}

func readPartition(parentDir, name string) (PartitionInfo, bool) {
	pdir := filepath.Join(parentDir, name)
	sectors, ok := readUint(filepath.Join(pdir, "size"))
	if !ok {
		return PartitionInfo{}, false
	}
	start, _ := readUint(filepath.Join(pdir, "start"))
	numStr := strings.TrimPrefix(name, strings.TrimRight(name, "0123456789"))
	num, _ := strconv.Atoi(numStr)
	return PartitionInfo{
		Name:     name,
		Number:   num,
		FirstLBA: start,
		LastLBA:  start + sectors - 1,
	}, true
}

// transportOf guesses a device's transport from its kernel name prefix.
// This is a coarse fallback; an enricher with SMART/ATA identify access
// can override it (spec's SMART enrichment exclusion applies to the
// detailed generation/speed fields, not this classification).
func transportOf(name string) TransportKind {
	switch {
	case strings.HasPrefix(name, "nvme"):
		return TransportDirectNVMe
	case strings.HasPrefix(name, "sd"), strings.HasPrefix(name, "hd"):
		return TransportSerialATAUnknown
	default:
		return TransportUnknown
	}
}
