package gpt

import (
	"io"

	"golang.org/x/xerrors"

	"github.com/dankamongmen/growlight/internal/gptguid"
)

// Disk is the minimal block-device surface the GPT engine needs. A real
// device is an *os.File the caller opened read-write; tests pass an
// in-memory implementation.
type Disk interface {
	io.ReaderAt
	io.WriterAt
	Sync() error
}

// Table is an in-memory, mutable view of a GPT partition table: the
// primary header, the backup header, and the single shared entry array
// that both copies mirror (spec invariant 3).
type Table struct {
	SectorSize   int
	TotalSectors uint64
	Primary      Header
	Backup       Header
	Entries      []Entry
}

func span(sectorSize int, entryCount int) uint64 {
	// 1 + ceil(128*entryCount/sectorSize) sectors, spec §4.3 geometry.
	bytes := uint64(entryCount) * entrySize
	sectors := (bytes + uint64(sectorSize) - 1) / uint64(sectorSize)
	return 1 + sectors
}

// minTotalSectors is the smallest disk the engine will build a table on:
// protective MBR + 2 * (primary/backup header + 16384-byte-equivalent
// array), per spec §4.3 create() refusal rule.
func minTotalSectors(sectorSize int) uint64 {
	arraySectors := (16384 + uint64(sectorSize) - 1) / uint64(sectorSize)
	return 1 + 2*(1+arraySectors)
}

// Create builds a fresh GPT on disk: protective MBR at LBA 0, primary
// header+array starting at LBA 1, backup mirror at the end of the disk.
func Create(disk Disk, sectorSize int, totalSectors uint64) (*Table, error) {
	if sectorSize <= 0 || uint64(sectorSize)%512 != 0 {
		return nil, xerrors.Errorf("%w: invalid sector size %d", ErrBadGeometry, sectorSize)
	}
	if totalSectors < minTotalSectors(sectorSize) {
		return nil, xerrors.Errorf("%w: disk too small for a gpt (%d sectors)", ErrBadGeometry, totalSectors)
	}

	diskGUID, err := gptguid.NewRandom()
	if err != nil {
		return nil, xerrors.Errorf("%w: %v", ErrRngExhausted, err)
	}

	arraySpan := span(sectorSize, minEntries) - 1 // sectors occupied by the array alone
	primaryArrayLBA := uint64(2)
	firstUsable := primaryArrayLBA + arraySpan
	backupLBA := totalSectors - 1
	backupArrayLBA := backupLBA - arraySpan
	lastUsable := backupArrayLBA - 1

	entries := make([]Entry, minEntries)

	primary := Header{
		ThisLBA:      1,
		AltLBA:       backupLBA,
		FirstUsable:  firstUsable,
		LastUsable:   lastUsable,
		DiskGUID:     diskGUID,
		PartArrayLBA: primaryArrayLBA,
		PartCount:    minEntries,
		PartSize:     entrySize,
	}
	backup := primary
	backup.ThisLBA, backup.AltLBA = backupLBA, 1
	backup.PartArrayLBA = backupArrayLBA

	t := &Table{SectorSize: sectorSize, TotalSectors: totalSectors, Primary: primary, Backup: backup, Entries: entries}
	t.refreshCRCs()

	if err := writeProtectiveMBR(disk, sectorSize, totalSectors); err != nil {
		return nil, xerrors.Errorf("%w: %v", ErrIO, err)
	}
	if err := t.writeBoth(disk); err != nil {
		return nil, err
	}
	return t, nil
}

// Zap overwrites the protective MBR and both header+array zones with
// zeros (spec §4.3 zap()).
func Zap(disk Disk, sectorSize int, totalSectors uint64) error {
	zero := make([]byte, sectorSize)
	if _, err := disk.WriteAt(zero, 0); err != nil {
		return xerrors.Errorf("%w: %v", ErrIO, err)
	}
	arraySpan := span(sectorSize, minEntries) - 1
	wipe := func(headerLBA, arrayLBA uint64) error {
		if _, err := disk.WriteAt(zero, int64(headerLBA)*int64(sectorSize)); err != nil {
			return err
		}
		arrayBuf := make([]byte, arraySpan*uint64(sectorSize))
		_, err := disk.WriteAt(arrayBuf, int64(arrayLBA)*int64(sectorSize))
		return err
	}
	if err := wipe(1, 2); err != nil {
		return xerrors.Errorf("%w: %v", ErrIO, err)
	}
	backupLBA := totalSectors - 1
	backupArrayLBA := backupLBA - arraySpan
	if err := wipe(backupLBA, backupArrayLBA); err != nil {
		return xerrors.Errorf("%w: %v", ErrIO, err)
	}
	return disk.Sync()
}

// Open reads and validates the primary header and entry array. If the
// primary is corrupt, ErrCorrupt is returned; the caller may retry via
// OpenBackup to recover from the mirror (spec §8 scenario 6 — recovery is
// optional, not required).
func Open(disk Disk, sectorSize int, totalSectors uint64) (*Table, error) {
	return open(disk, sectorSize, totalSectors, 1)
}

// OpenBackup reads and validates the backup header and array instead of
// the primary, for manual recovery after primary corruption.
func OpenBackup(disk Disk, sectorSize int, totalSectors uint64) (*Table, error) {
	backupLBA := totalSectors - 1
	return open(disk, sectorSize, totalSectors, backupLBA)
}

func open(disk Disk, sectorSize int, totalSectors uint64, headerLBA uint64) (*Table, error) {
	hdrBuf := make([]byte, sectorSize)
	if _, err := disk.ReadAt(hdrBuf, int64(headerLBA)*int64(sectorSize)); err != nil {
		return nil, xerrors.Errorf("%w: %v", ErrIO, err)
	}
	hdr, err := decodeHeader(hdrBuf)
	if err != nil {
		return nil, err
	}
	arrayBuf := make([]byte, uint64(hdr.PartCount)*uint64(hdr.PartSize))
	if _, err := disk.ReadAt(arrayBuf, int64(hdr.PartArrayLBA)*int64(sectorSize)); err != nil {
		return nil, xerrors.Errorf("%w: %v", ErrIO, err)
	}
	if gptguid.Checksum(arrayBuf) != hdr.PartArrayCRC32 {
		return nil, xerrors.Errorf("%w: partition array crc mismatch", ErrCorrupt)
	}
	entries := decodeArray(arrayBuf, int(hdr.PartCount))

	if headerLBA == 1 {
		t := &Table{SectorSize: sectorSize, TotalSectors: totalSectors, Primary: hdr, Entries: entries}
		t.Backup = t.mirrorOf(hdr)
		return t, nil
	}
	t := &Table{SectorSize: sectorSize, TotalSectors: totalSectors, Backup: hdr, Entries: entries}
	t.Primary = t.mirrorOf(hdr)
	return t, nil
}

// mirrorOf derives the other copy's header from h: self/alt LBA and
// part-array LBA are swapped, everything else (including CRCs, which are
// recomputed) is identical, per invariant 3.
func (t *Table) mirrorOf(h Header) Header {
	arraySpan := span(t.SectorSize, int(h.PartCount)) - 1
	m := h
	m.ThisLBA, m.AltLBA = h.AltLBA, h.ThisLBA
	if h.ThisLBA == 1 {
		m.PartArrayLBA = m.ThisLBA - arraySpan
	} else {
		m.PartArrayLBA = 2
	}
	m.refreshCRC()
	return m
}

func (t *Table) refreshCRCs() {
	arrayBuf := encodeArray(t.Entries)
	crc := gptguid.Checksum(arrayBuf)
	t.Primary.PartArrayCRC32 = crc
	t.Backup.PartArrayCRC32 = crc
	t.Primary.refreshCRC()
	t.Backup.refreshCRC()
}

// writeBoth persists both header+array copies and syncs, so that at most
// one half is ever invalid after a power loss (spec §4.3 "mirror update").
func (t *Table) writeBoth(disk Disk) error {
	t.refreshCRCs()
	arrayBuf := encodeArray(t.Entries)

	write := func(h Header) error {
		if _, err := disk.WriteAt(h.encode(t.SectorSize), int64(h.ThisLBA)*int64(t.SectorSize)); err != nil {
			return err
		}
		_, err := disk.WriteAt(arrayBuf, int64(h.PartArrayLBA)*int64(t.SectorSize))
		return err
	}
	if err := write(t.Primary); err != nil {
		return xerrors.Errorf("%w: %v", ErrIO, err)
	}
	if err := disk.Sync(); err != nil {
		return xerrors.Errorf("%w: %v", ErrIO, err)
	}
	if err := write(t.Backup); err != nil {
		return xerrors.Errorf("%w: %v", ErrIO, err)
	}
	return disk.Sync()
}

func writeProtectiveMBR(disk Disk, sectorSize int, totalSectors uint64) error {
	buf := make([]byte, sectorSize)
	// Single 0xEE entry spanning LBA 1..min(uint32max, totalSectors-1).
	last := totalSectors - 1
	if last > 0xFFFFFFFF {
		last = 0xFFFFFFFF
	}
	entry := buf[446:462]
	entry[0] = 0x80 // boot flag set intentionally, spec §4.3 deviation note
	entry[4] = 0xEE
	le32 := func(b []byte, v uint32) {
		b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	}
	le32(entry[8:12], 1)
	le32(entry[12:16], uint32(last))
	buf[510], buf[511] = 0x55, 0xAA
	_, err := disk.WriteAt(buf, 0)
	return err
}
