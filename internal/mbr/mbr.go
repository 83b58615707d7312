// Package mbr implements the legacy DOS MBR/EBR partition table engine
// (spec §4.4). Only the four primary entries are created by this engine;
// extended/logical partitions are recognized on read by chasing the EBR
// chain but are not constructed here, matching the spec's stated
// limitation.
package mbr

import (
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/dankamongmen/growlight/internal/ptypes"
)

var (
	ErrBadGeometry     = xerrors.New("bad geometry")
	ErrOverlap         = xerrors.New("overlapping partition range")
	ErrCapacityExceeded = xerrors.New("capacity exceeded")
	ErrNotFound        = xerrors.New("partition entry not found")
	ErrUnsupported     = xerrors.New("unsupported in mbr")
	ErrIO              = xerrors.New("i/o error")
	ErrCorrupt         = xerrors.New("corrupt mbr")
)

// maxSize2TiB is the MBR engine's per-partition size cap of 2*10^12 bytes
// (decimal), checked against sectors*logical in Add (spec §4.4).
const maxSize2TiB = 2_000_000_000_000

// Disk mirrors gpt.Disk; kept as a distinct type so the mbr package has no
// dependency on the gpt package.
type Disk interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Sync() error
}

// Entry is one 16-byte MBR partition table entry.
type Entry struct {
	Boot     bool
	Type     byte
	FirstLBA uint32
	Sectors  uint32
}

func (e Entry) Empty() bool { return e.Type == 0 }

func (e Entry) encode() []byte {
	buf := make([]byte, 16)
	if e.Boot {
		buf[0] = 0x80
	}
	buf[4] = e.Type
	binary.LittleEndian.PutUint32(buf[8:12], e.FirstLBA)
	binary.LittleEndian.PutUint32(buf[12:16], e.Sectors)
	return buf
}

func decodeEntry(buf []byte) Entry {
	return Entry{
		Boot:     buf[0] == 0x80,
		Type:     buf[4],
		FirstLBA: binary.LittleEndian.Uint32(buf[8:12]),
		Sectors:  binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// Table is the in-memory view of an MBR: four primary entries, plus any
// extended/logical partitions discovered by chasing EBRs (read-only).
type Table struct {
	DiskSignature uint32
	Entries       [4]Entry
	Logical       []Entry // discovered via EBR chain; not created here
	LogicalSector int
}

// Create initializes a fresh, empty MBR (all four entries zero).
func Create(disk Disk, logicalSector int, diskSignature uint32) (*Table, error) {
	if logicalSector <= 0 {
		return nil, ErrBadGeometry
	}
	t := &Table{DiskSignature: diskSignature, LogicalSector: logicalSector}
	if err := t.write(disk); err != nil {
		return nil, err
	}
	return t, nil
}

// Zap overwrites the MBR sector with zeros.
func Zap(disk Disk, logicalSector int) error {
	buf := make([]byte, logicalSector)
	if _, err := disk.WriteAt(buf, 0); err != nil {
		return xerrors.Errorf("%w: %v", ErrIO, err)
	}
	return disk.Sync()
}

// Open reads and validates the MBR sector, chasing any 0x05/0x0F
// extended-partition container to enumerate logical partitions for
// informational purposes (read-only; spec §4.4).
func Open(disk Disk, logicalSector int) (*Table, error) {
	buf := make([]byte, logicalSector)
	if _, err := disk.ReadAt(buf, 0); err != nil {
		return nil, xerrors.Errorf("%w: %v", ErrIO, err)
	}
	if buf[510] != 0x55 || buf[511] != 0xAA {
		return nil, xerrors.Errorf("%w: missing 55AA signature", ErrCorrupt)
	}
	t := &Table{LogicalSector: logicalSector}
	t.DiskSignature = binary.LittleEndian.Uint32(buf[440:444])
	for i := 0; i < 4; i++ {
		t.Entries[i] = decodeEntry(buf[446+i*16 : 446+(i+1)*16])
	}
	for _, e := range t.Entries {
		if e.Type == 0x05 || e.Type == 0x0F {
			logical, err := chaseEBRChain(disk, logicalSector, e.FirstLBA)
			if err == nil {
				t.Logical = append(t.Logical, logical...)
			}
		}
	}
	return t, nil
}

// chaseEBRChain walks the linked list of Extended Boot Records starting at
// extendedBase, returning the logical partitions found. Errors are
// tolerated by the caller: a broken chain just yields fewer entries.
func chaseEBRChain(disk Disk, logicalSector int, extendedBase uint32) ([]Entry, error) {
	var out []Entry
	next := extendedBase
	for i := 0; i < 1024 && next != 0; i++ { // bounded: pathological chains must not loop forever
		buf := make([]byte, logicalSector)
		if _, err := disk.ReadAt(buf, int64(next)*int64(logicalSector)); err != nil {
			return out, err
		}
		if buf[510] != 0x55 || buf[511] != 0xAA {
			return out, xerrors.Errorf("%w: ebr missing signature", ErrCorrupt)
		}
		first := decodeEntry(buf[446:462])
		linkEntry := decodeEntry(buf[462:478])
		if !first.Empty() {
			first.FirstLBA += next
			out = append(out, first)
		}
		if linkEntry.Empty() {
			break
		}
		next = extendedBase + linkEntry.FirstLBA
	}
	return out, nil
}

func (t *Table) write(disk Disk) error {
	buf := make([]byte, t.LogicalSector)
	binary.LittleEndian.PutUint32(buf[440:444], t.DiskSignature)
	for i, e := range t.Entries {
		copy(buf[446+i*16:446+(i+1)*16], e.encode())
	}
	buf[510], buf[511] = 0x55, 0xAA
	if _, err := disk.WriteAt(buf, 0); err != nil {
		return xerrors.Errorf("%w: %v", ErrIO, err)
	}
	return disk.Sync()
}

// Add creates a primary partition in slot partNumber (1..4).
func (t *Table) Add(disk Disk, partNumber int, first, sectors uint32, code uint16) error {
	if partNumber < 1 || partNumber > 4 {
		return ErrUnsupported
	}
	b, err := ptypes.MBRByteFor(code)
	if err != nil {
		return ErrUnsupported
	}
	size := uint64(sectors) * uint64(t.LogicalSector)
	if size > maxSize2TiB {
		return ErrCapacityExceeded
	}
	last := uint64(first) + uint64(sectors) - 1
	for i, e := range t.Entries {
		if i == partNumber-1 || e.Empty() {
			continue
		}
		eLast := uint64(e.FirstLBA) + uint64(e.Sectors) - 1
		if uint64(first) <= eLast && uint64(e.FirstLBA) <= last {
			return ErrOverlap
		}
	}
	t.Entries[partNumber-1] = Entry{Type: b, FirstLBA: first, Sectors: sectors}
	return t.write(disk)
}

// Delete clears the entry at partNumber.
func (t *Table) Delete(disk Disk, partNumber int) error {
	if partNumber < 1 || partNumber > 4 || t.Entries[partNumber-1].Empty() {
		return ErrNotFound
	}
	t.Entries[partNumber-1] = Entry{}
	return t.write(disk)
}

// SetFlag toggles the boot flag (0x80); it is the only flag MBR supports.
func (t *Table) SetFlag(disk Disk, partNumber int, bit byte, on bool) error {
	if bit != 0x80 {
		return ErrUnsupported
	}
	if partNumber < 1 || partNumber > 4 || t.Entries[partNumber-1].Empty() {
		return ErrNotFound
	}
	t.Entries[partNumber-1].Boot = on
	return t.write(disk)
}

// SetName always fails: MBR entries have no name field (spec §4.4).
func (t *Table) SetName(string, string) error {
	return ErrUnsupported
}

// FirstUsable and LastUsable bound the addressable 32-bit LBA space.
func (t *Table) FirstUsable() uint64 { return 1 }
func (t *Table) LastUsable(totalSectors uint64) uint64 {
	if totalSectors-1 > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return totalSectors - 1
}
