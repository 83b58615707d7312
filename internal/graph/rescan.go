package graph

import (
	"bytes"
	"strings"

	"golang.org/x/xerrors"
	"gopkg.in/tomb.v2"

	"golang.org/x/sys/unix"
)

// Rescan re-reads sysfs for a single device and reconciles the graph: new
// partitions are appended, removed partitions are destroyed (triggering
// the observer's BlockFree), and changed attributes are overwritten in
// place (spec §4.8 "Runtime mutation").
func (g *Graph) Rescan(enum Enumerator, name string) error {
	info, err := enum.ReadDevice(name)
	if err != nil {
		return xerrors.Errorf("rescan %s: %w", name, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	dev, ok := g.byName[name]
	if !ok {
		return xerrors.Errorf("%w: %s", ErrNotFound, name)
	}

	dev.Size = info.SizeBytes
	dev.LogicalSectorSize = info.LogicalSectorSize
	dev.PhysicalSectorSize = info.PhysicalSectorSize
	dev.Model, dev.Revision, dev.Serial, dev.WWN = info.Model, info.Revision, info.Serial, info.WWN
	dev.ReadOnly = info.ReadOnly
	dev.Raw.TableKind = info.TableKind
	dev.Raw.Transport = info.Transport
	dev.Raw.Removable = info.Removable

	seen := make(map[string]bool, len(info.Partitions))
	for _, pinfo := range info.Partitions {
		seen[pinfo.Name] = true
		if existing, ok := g.byName[pinfo.Name]; ok {
			existing.Partition.FirstLBA = pinfo.FirstLBA
			existing.Partition.LastLBA = pinfo.LastLBA
			existing.Partition.TypeCode = pinfo.TypeCode
			existing.Partition.Flags = pinfo.Flags
			existing.Partition.Name = pinfo.Name36
			existing.Partition.UUID = pinfo.UUID
			continue
		}
		part := partitionFromInfo(dev, pinfo)
		insertPartitionSorted(dev, part)
		if err := g.insertDevice(controllerOf(g, dev), part); err != nil {
			return err
		}
	}

	remaining := dev.partitions[:0]
	for _, p := range dev.partitions {
		if seen[p.Name] {
			remaining = append(remaining, p)
			continue
		}
		g.removeDevice(p)
	}
	dev.partitions = remaining
	return nil
}

// controllerOf finds the controller that currently owns dev, defaulting
// to the Virtual controller for pseudo-devices.
func controllerOf(g *Graph, dev *Device) *Controller {
	for _, c := range g.controllers {
		for _, d := range c.Devices {
			if d == dev {
				return c
			}
		}
	}
	return g.virtual
}

// uevent netlink group for kobject-uevent broadcasts (monitor, not the
// kernel-only "udev" group).
const ueventMulticastGroup = 1

// UdevReader funnels kernel hotplug events into the graph via Rescan,
// running on its own goroutine supervised by a tomb (spec §5 thread 2,
// §4.8 "kernel-event intake").
type UdevReader struct {
	t    tomb.Tomb
	fd   int
	g    *Graph
	enum Enumerator
}

// NewUdevReader opens the raw NETLINK_KOBJECT_UEVENT socket and returns a
// reader ready to Start. vishvananda/netlink's public API targets the
// NETLINK_ROUTE family only and has no generic-family constructor, so the
// socket is opened directly with golang.org/x/sys/unix (see DESIGN.md).
func NewUdevReader(g *Graph, enum Enumerator) (*UdevReader, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, xerrors.Errorf("open uevent socket: %w", err)
	}
	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: ueventMulticastGroup}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, xerrors.Errorf("bind uevent socket: %w", err)
	}
	return &UdevReader{fd: fd, g: g, enum: enum}, nil
}

// Start launches the reader goroutine.
func (r *UdevReader) Start() {
	r.t.Go(r.loop)
}

// Stop requests shutdown and waits for the goroutine to exit.
func (r *UdevReader) Stop() error {
	r.t.Kill(nil)
	unix.Close(r.fd)
	return r.t.Wait()
}

func (r *UdevReader) loop() error {
	buf := make([]byte, 8192)
	for {
		select {
		case <-r.t.Dying():
			return nil
		default:
		}
		n, _, err := unix.Recvfrom(r.fd, buf, 0)
		if err != nil {
			if r.t.Alive() {
				continue
			}
			return nil
		}
		name := deviceNameFromUevent(buf[:n])
		if name == "" {
			continue
		}
		if err := r.g.Rescan(r.enum, name); err != nil {
			continue // a device that vanished mid-reconcile is not fatal
		}
	}
}

// deviceNameFromUevent extracts the DEVNAME= field from a raw kobject
// uevent message (NUL-separated KEY=VALUE lines after the action line).
func deviceNameFromUevent(msg []byte) string {
	for _, line := range bytes.Split(msg, []byte{0}) {
		if s := string(line); strings.HasPrefix(s, "DEVNAME=") {
			return strings.TrimPrefix(s, "DEVNAME=")
		}
	}
	return ""
}
