// Package ptable is the partition-table dispatcher: it selects an engine
// by table kind and enforces the rules that are common to all of them —
// make/wipe refusal conditions and the post-mutation kernel rescan (spec
// §4.6). Per spec §9 it replaces the C vtable-of-function-pointers with a
// Go interface implemented once per table kind.
package ptable

import (
	"crypto/rand"
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/dankamongmen/growlight/internal/apm"
	"github.com/dankamongmen/growlight/internal/gpt"
	"github.com/dankamongmen/growlight/internal/mbr"
	"github.com/dankamongmen/growlight/internal/ptypes"
)

func randomDiskSignature() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 1
	}
	return binary.LittleEndian.Uint32(b[:])
}

var (
	ErrAlreadyHasTable   = xerrors.New("device already has a partition table")
	ErrFilesystemPresent = xerrors.New("a filesystem signature is present")
	ErrBusyMounted       = xerrors.New("device or a partition of it is mounted")
	ErrUnsupported       = xerrors.New("operation unsupported for this table kind")
	ErrNoTable           = xerrors.New("device has no partition table")
)

// Rescanner triggers the kernel re-read bridge after a mutation (spec
// §4.7). Its method set matches *blkpg.Bridge exactly, so a live bridge
// satisfies it without an adapter; tests substitute a fake.
type Rescanner interface {
	Add(fd int, startBytes, lengthBytes int64, partNumber int, devName string) error
	Del(fd int, partNumber int, devName string) error
}

// RescanAttacher is implemented by every Table variant that can trigger a
// kernel rescan (GPT and DOS; APM's mutators are all unsupported so it has
// nothing to rescan). Callers that have a live Rescanner and the whole-disk
// file descriptor call AttachRescanner once, after construction, to enable it.
type RescanAttacher interface {
	AttachRescanner(r Rescanner, fd int, devName string)
}

// Table is the uniform surface every engine variant implements.
type Table interface {
	Kind() ptypes.TableKind
	FirstUsable() uint64
	LastUsable() uint64
	AddPartition(name string, first, last uint64, code uint16) (int, error)
	DeletePartition(partNumber int) error
	SetName(partNumber int, name string) error
	SetUUID(partNumber int, guidHex string) error
	SetFlags(partNumber int, flags uint64) error
	SetFlag(partNumber int, bit uint, on bool) error
	SetCode(partNumber int, code uint16) error
}

// MakeTable refuses when a filesystem signature exists on the device or
// a table is already present (spec §4.6 make_table).
func MakeTable(hasFilesystem, hasTable bool, kind ptypes.TableKind, disk gpt.Disk, sectorSize int, totalSectors uint64) (Table, error) {
	if hasFilesystem {
		return nil, ErrFilesystemPresent
	}
	if hasTable {
		return nil, ErrAlreadyHasTable
	}
	switch kind {
	case ptypes.GPT:
		t, err := gpt.Create(disk, sectorSize, totalSectors)
		if err != nil {
			return nil, err
		}
		return &gptTable{t: t, disk: disk, sectorSize: sectorSize}, nil
	case ptypes.DOS:
		t, err := mbr.Create(disk.(mbr.Disk), sectorSize, randomDiskSignature())
		if err != nil {
			return nil, err
		}
		return &dosTable{t: t, disk: disk.(mbr.Disk), totalSectors: totalSectors, sectorSize: sectorSize}, nil
	case ptypes.APM:
		if err := apm.Create(disk.(apm.Disk), sectorSize, totalSectors, 1); err != nil {
			return nil, err
		}
		return &apmTable{disk: disk.(apm.Disk), sectorSize: sectorSize, totalSectors: totalSectors, partitionCount: 1}, nil
	default:
		return nil, ErrUnsupported
	}
}

// OpenTable loads an existing on-disk table of the given kind so its
// partitions can be mutated, the counterpart to MakeTable for a device
// that already carries a table (spec §4.6 dispatch covers both paths:
// make on an empty device, open-then-mutate on an existing one).
func OpenTable(kind ptypes.TableKind, disk gpt.Disk, sectorSize int, totalSectors uint64) (Table, error) {
	switch kind {
	case ptypes.GPT:
		t, err := gpt.Open(disk, sectorSize, totalSectors)
		if err != nil {
			return nil, err
		}
		return &gptTable{t: t, disk: disk, sectorSize: sectorSize}, nil
	case ptypes.DOS:
		t, err := mbr.Open(disk.(mbr.Disk), sectorSize)
		if err != nil {
			return nil, err
		}
		return &dosTable{t: t, disk: disk.(mbr.Disk), totalSectors: totalSectors, sectorSize: sectorSize}, nil
	case ptypes.APM:
		return &apmTable{disk: disk.(apm.Disk), sectorSize: sectorSize, totalSectors: totalSectors, partitionCount: 1}, nil
	default:
		return nil, ErrUnsupported
	}
}

// WipeTable refuses when the device or any of its partitions is mounted.
// kind lets the caller force a specific engine's zap when detection
// failed but a stale table is suspected (spec §4.6).
func WipeTable(mounted bool, kind ptypes.TableKind, disk gpt.Disk, sectorSize int, totalSectors uint64) error {
	if mounted {
		return ErrBusyMounted
	}
	switch kind {
	case ptypes.GPT:
		return gpt.Zap(disk, sectorSize, totalSectors)
	case ptypes.DOS:
		return mbr.Zap(disk.(mbr.Disk), sectorSize)
	case ptypes.APM:
		return apm.Zap(disk.(apm.Disk), sectorSize, 1)
	default:
		return ErrUnsupported
	}
}

// rescanAfter invokes the kernel re-read bridge unless no Rescanner is
// attached, or the mutation left the partition count unchanged (spec §4.6:
// "Mutations that do not physically change partition count do not invoke
// the BLKPG ioctl").
func rescanAfter(r Rescanner, fd int, added bool, partNumber int, firstLBA, lastLBA uint64, sectorSize int, devName string) error {
	if r == nil {
		return nil
	}
	if added {
		startBytes := int64(firstLBA) * int64(sectorSize)
		lengthBytes := int64(lastLBA-firstLBA+1) * int64(sectorSize)
		return r.Add(fd, startBytes, lengthBytes, partNumber, devName)
	}
	return r.Del(fd, partNumber, devName)
}
