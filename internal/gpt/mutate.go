package gpt

import (
	"github.com/dankamongmen/growlight/internal/gptguid"
	"github.com/dankamongmen/growlight/internal/ptypes"
)

// FirstUsable returns the first usable LBA from the primary header.
func (t *Table) FirstUsable() uint64 { return t.Primary.FirstUsable }

// LastUsable returns the last usable LBA from the primary header.
func (t *Table) LastUsable() uint64 { return t.Primary.LastUsable }

// alignUp rounds first up to the next multiple of the physical/logical
// sector ratio (spec §4.3 add(): "Aligns first upward to physical/logical
// sector ratio").
func alignUp(first uint64, logical, physical int) uint64 {
	if physical <= logical {
		return first
	}
	ratio := uint64(physical / logical)
	if first%ratio == 0 {
		return first
	}
	return (first/ratio + 1) * ratio
}

func (t *Table) overlaps(first, last uint64, skip int) bool {
	for i, e := range t.Entries {
		if i == skip || e.Empty() {
			continue
		}
		if first <= e.LastLBA && e.FirstLBA <= last {
			return true
		}
	}
	return false
}

func (t *Table) firstFreeEntry() (int, bool) {
	for i, e := range t.Entries {
		if e.Empty() {
			return i, true
		}
	}
	return 0, false
}

// Add validates and inserts a new partition, persists both copies, and
// returns the 1-based partition number. The caller is responsible for
// invoking the kernel re-read bridge afterward (spec §4.3 add()).
func (t *Table) Add(disk Disk, name string, first, last uint64, code uint16, logicalSector, physicalSector int) (int, error) {
	gptGUID, err := gptguidFor(code)
	if err != nil {
		return 0, err
	}
	if last < first {
		return 0, ErrBadGeometry
	}
	first = alignUp(first, logicalSector, physicalSector)
	if first < t.FirstUsable() || last > t.LastUsable() {
		return 0, ErrUnaligned
	}
	if t.overlaps(first, last, -1) {
		return 0, ErrOverlap
	}
	idx, ok := t.firstFreeEntry()
	if !ok {
		return 0, ErrNoFreeEntry
	}
	partGUID, err := gptguid.NewRandom()
	if err != nil {
		return 0, ErrRngExhausted
	}

	e := Entry{TypeGUID: gptGUID, PartGUID: partGUID, FirstLBA: first, LastLBA: last}
	if err := e.SetName(name); err != nil {
		return 0, err
	}
	t.Entries[idx] = e

	if err := t.writeBoth(disk); err != nil {
		return 0, err
	}
	return idx + 1, nil
}

// EntryRange returns the first and last LBA of the given 1-based partition
// number, for callers that need the extent after the fact (e.g. to size a
// kernel rescan before the entry is zeroed by Delete).
func (t *Table) EntryRange(partNumber int) (first, last uint64) {
	idx, err := t.index(partNumber)
	if err != nil {
		return 0, 0
	}
	e := t.Entries[idx]
	return e.FirstLBA, e.LastLBA
}

// Delete zeroes the entry at the given 1-based partition number.
func (t *Table) Delete(disk Disk, partNumber int) error {
	idx := partNumber - 1
	if idx < 0 || idx >= len(t.Entries) || t.Entries[idx].Empty() {
		return ErrNotFound
	}
	t.Entries[idx] = Entry{}
	return t.writeBoth(disk)
}

// Rename sets the partition's name field.
func (t *Table) Rename(disk Disk, partNumber int, name string) error {
	idx, err := t.index(partNumber)
	if err != nil {
		return err
	}
	e := t.Entries[idx]
	if err := e.SetName(name); err != nil {
		return err
	}
	t.Entries[idx] = e
	return t.writeBoth(disk)
}

// Relabel is an alias for Rename in the GPT engine: GPT has no separate
// filesystem-label field distinct from the partition name at this layer.
func (t *Table) Relabel(disk Disk, partNumber int, label string) error {
	return t.Rename(disk, partNumber, label)
}

// SetCode changes the partition's type code, validating that code has a
// GPT representation.
func (t *Table) SetCode(disk Disk, partNumber int, code uint16) error {
	idx, err := t.index(partNumber)
	if err != nil {
		return err
	}
	g, err := gptguidFor(code)
	if err != nil {
		return err
	}
	t.Entries[idx].TypeGUID = g
	return t.writeBoth(disk)
}

// SetFlags overwrites the entry's attribute bitfield wholesale.
func (t *Table) SetFlags(disk Disk, partNumber int, flags uint64) error {
	idx, err := t.index(partNumber)
	if err != nil {
		return err
	}
	t.Entries[idx].Attrs = flags
	return t.writeBoth(disk)
}

// SetFlag toggles a single attribute bit.
func (t *Table) SetFlag(disk Disk, partNumber int, bit uint, on bool) error {
	idx, err := t.index(partNumber)
	if err != nil {
		return err
	}
	if on {
		t.Entries[idx].Attrs |= 1 << bit
	} else {
		t.Entries[idx].Attrs &^= 1 << bit
	}
	return t.writeBoth(disk)
}

// SetUUID overwrites the partition's own GUID (as distinct from its type
// GUID), used when cloning a table onto new media.
func (t *Table) SetUUID(disk Disk, partNumber int, g gptguid.GUID) error {
	idx, err := t.index(partNumber)
	if err != nil {
		return err
	}
	t.Entries[idx].PartGUID = g
	return t.writeBoth(disk)
}

func (t *Table) index(partNumber int) (int, error) {
	idx := partNumber - 1
	if idx < 0 || idx >= len(t.Entries) || t.Entries[idx].Empty() {
		return 0, ErrNotFound
	}
	return idx, nil
}

func gptguidFor(code uint16) (gptguid.GUID, error) {
	g, err := ptypes.GPTGUIDFor(code)
	if err != nil {
		return gptguid.GUID{}, ErrCodeUnsupported
	}
	return g, nil
}
