// Package apm implements a minimal Apple Partition Map engine: create and
// zap only, matching the spec's "create/zap (minimal)" scope (§4.5). Write
// support for add/delete is explicitly not provided.
package apm

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

var (
	ErrUnsupported = xerrors.New("unsupported in apm")
	ErrIO          = xerrors.New("i/o error")
)

// Disk is the minimal device surface this engine needs.
type Disk interface {
	WriteAt(p []byte, off int64) (int, error)
	Sync() error
}

const (
	ddbSignature  = 0x4552 // "ER" in the original; APM spec value 0x4552 for Driver Descriptor Map
	entrySize     = 512
	ddbBlock      = 0
	firstMapBlock = 1
)

// Create writes a Device Descriptor Block and a chain of zero-initialized
// entries, marking slot 1 as the free span covering every sector after
// the map. Per
// spec §9, the original code's write path hard-requires a 512-byte sector
// and this port preserves that limitation rather than generalizing it.
func Create(disk Disk, logicalSector int, totalSectors uint64, partitionCount int) error {
	if logicalSector != entrySize {
		return xerrors.Errorf("%w: apm requires a 512-byte sector, got %d", ErrUnsupported, logicalSector)
	}
	if partitionCount < 1 {
		partitionCount = 1
	}

	ddb := make([]byte, entrySize)
	binary.BigEndian.PutUint16(ddb[0:2], ddbSignature)
	binary.BigEndian.PutUint16(ddb[2:4], uint16(entrySize))
	binary.BigEndian.PutUint32(ddb[4:8], uint32(totalSectors))
	if _, err := disk.WriteAt(ddb, ddbBlock*entrySize); err != nil {
		return xerrors.Errorf("%w: %v", ErrIO, err)
	}

	for i := 0; i < partitionCount; i++ {
		entry := make([]byte, entrySize)
		binary.BigEndian.PutUint16(entry[0:2], 0x504D) // "PM" partition map signature
		binary.BigEndian.PutUint32(entry[4:8], uint32(partitionCount))
		if i == 0 {
			// slot 1: the free span covering everything after the map.
			copy(entry[48:80], []byte("Free"))
			copy(entry[16:48], []byte("Apple_Free"))
			binary.BigEndian.PutUint32(entry[8:12], uint32(firstMapBlock+partitionCount))
			binary.BigEndian.PutUint32(entry[12:16], uint32(totalSectors)-uint32(firstMapBlock+partitionCount))
		}
		off := int64(firstMapBlock+i) * entrySize
		if _, err := disk.WriteAt(entry, off); err != nil {
			return xerrors.Errorf("%w: %v", ErrIO, err)
		}
	}
	return disk.Sync()
}

// Zap overwrites the Driver Descriptor Block and the partition map entries
// with zeros.
func Zap(disk Disk, logicalSector int, partitionCount int) error {
	if logicalSector != entrySize {
		return xerrors.Errorf("%w: apm requires a 512-byte sector", ErrUnsupported)
	}
	zero := make([]byte, entrySize)
	if _, err := disk.WriteAt(zero, ddbBlock*entrySize); err != nil {
		return xerrors.Errorf("%w: %v", ErrIO, err)
	}
	for i := 0; i < partitionCount; i++ {
		off := int64(firstMapBlock+i) * entrySize
		if _, err := disk.WriteAt(zero, off); err != nil {
			return xerrors.Errorf("%w: %v", ErrIO, err)
		}
	}
	return disk.Sync()
}

// FirstUsable and LastUsable implement the read-side enumeration rule from
// spec §4.5: first_usable = 1 + partition_count, last_usable =
// size/logical - 1.
func FirstUsable(partitionCount int) uint64 { return uint64(1 + partitionCount) }
func LastUsable(totalSectors uint64) uint64 { return totalSectors - 1 }

// Add and Delete are not supported by this engine (spec §4.5: "Write-side
// add/delete is not supported").
func Add(Disk, string, uint64, uint64, uint16) error { return ErrUnsupported }
func Delete(Disk, int) error                         { return ErrUnsupported }
