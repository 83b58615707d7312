package ptable

import (
	"fmt"

	"github.com/dankamongmen/growlight/internal/apm"
	"github.com/dankamongmen/growlight/internal/gpt"
	"github.com/dankamongmen/growlight/internal/gptguid"
	"github.com/dankamongmen/growlight/internal/mbr"
	"github.com/dankamongmen/growlight/internal/ptypes"
)

// gptTable adapts *gpt.Table to the Table interface.
type gptTable struct {
	t          *gpt.Table
	disk       gpt.Disk
	sectorSize int

	rescan       Rescanner
	fd           int
	devicePrefix string
}

func (g *gptTable) Kind() ptypes.TableKind { return ptypes.GPT }
func (g *gptTable) FirstUsable() uint64    { return g.t.FirstUsable() }
func (g *gptTable) LastUsable() uint64     { return g.t.LastUsable() }

func (g *gptTable) AttachRescanner(r Rescanner, fd int, devName string) {
	g.rescan, g.fd, g.devicePrefix = r, fd, devName
}

func (g *gptTable) partitionDevName(partNumber int) string {
	return fmt.Sprintf("%s%d", g.devicePrefix, partNumber)
}

func (g *gptTable) AddPartition(name string, first, last uint64, code uint16) (int, error) {
	partNumber, err := g.t.Add(g.disk, name, first, last, code, g.sectorSize, g.sectorSize)
	if err != nil {
		return 0, err
	}
	// Add may have aligned first upward; rescan with the on-disk extent,
	// not the caller's pre-alignment request.
	alignedFirst, alignedLast := g.t.EntryRange(partNumber)
	if err := rescanAfter(g.rescan, g.fd, true, partNumber, alignedFirst, alignedLast, g.sectorSize, g.partitionDevName(partNumber)); err != nil {
		return partNumber, err
	}
	return partNumber, nil
}
func (g *gptTable) DeletePartition(partNumber int) error {
	first, last := g.t.EntryRange(partNumber)
	if err := g.t.Delete(g.disk, partNumber); err != nil {
		return err
	}
	return rescanAfter(g.rescan, g.fd, false, partNumber, first, last, g.sectorSize, g.partitionDevName(partNumber))
}
func (g *gptTable) SetName(partNumber int, name string) error {
	return g.t.Rename(g.disk, partNumber, name)
}
func (g *gptTable) SetUUID(partNumber int, guidHex string) error {
	parsed, err := gptguid.ParseGUID(guidHex)
	if err != nil {
		return err
	}
	return g.t.SetUUID(g.disk, partNumber, parsed)
}
func (g *gptTable) SetFlags(partNumber int, flags uint64) error {
	return g.t.SetFlags(g.disk, partNumber, flags)
}
func (g *gptTable) SetFlag(partNumber int, bit uint, on bool) error {
	return g.t.SetFlag(g.disk, partNumber, bit, on)
}
func (g *gptTable) SetCode(partNumber int, code uint16) error {
	return g.t.SetCode(g.disk, partNumber, code)
}

// dosTable adapts *mbr.Table.
type dosTable struct {
	t            *mbr.Table
	disk         mbr.Disk
	totalSectors uint64
	sectorSize   int

	rescan       Rescanner
	fd           int
	devicePrefix string
}

func (d *dosTable) Kind() ptypes.TableKind { return ptypes.DOS }
func (d *dosTable) FirstUsable() uint64    { return d.t.FirstUsable() }
func (d *dosTable) LastUsable() uint64     { return d.t.LastUsable(d.totalSectors) }

func (d *dosTable) AttachRescanner(r Rescanner, fd int, devName string) {
	d.rescan, d.fd, d.devicePrefix = r, fd, devName
}

func (d *dosTable) partitionDevName(partNumber int) string {
	return fmt.Sprintf("%s%d", d.devicePrefix, partNumber)
}

func (d *dosTable) AddPartition(name string, first, last uint64, code uint16) (int, error) {
	partNumber := d.firstFreeSlot()
	if partNumber == 0 {
		return 0, mbr.ErrUnsupported
	}
	sectors := uint32(last - first + 1)
	if err := d.t.Add(d.disk, partNumber, uint32(first), sectors, code); err != nil {
		return 0, err
	}
	sectorSize := d.sectorSize
	if sectorSize == 0 {
		sectorSize = 512
	}
	if err := rescanAfter(d.rescan, d.fd, true, partNumber, first, last, sectorSize, d.partitionDevName(partNumber)); err != nil {
		return partNumber, err
	}
	return partNumber, nil
}
func (d *dosTable) firstFreeSlot() int {
	for i, e := range d.t.Entries {
		if e.Empty() {
			return i + 1
		}
	}
	return 0
}
func (d *dosTable) DeletePartition(partNumber int) error {
	idx := partNumber - 1
	var first, last uint64
	if idx >= 0 && idx < len(d.t.Entries) {
		first = uint64(d.t.Entries[idx].FirstLBA)
		last = first + uint64(d.t.Entries[idx].Sectors) - 1
	}
	if err := d.t.Delete(d.disk, partNumber); err != nil {
		return err
	}
	sectorSize := d.sectorSize
	if sectorSize == 0 {
		sectorSize = 512
	}
	return rescanAfter(d.rescan, d.fd, false, partNumber, first, last, sectorSize, d.partitionDevName(partNumber))
}
func (d *dosTable) SetName(partNumber int, name string) error {
	return d.t.SetName(name, "")
}
func (d *dosTable) SetUUID(int, string) error { return mbr.ErrUnsupported }
func (d *dosTable) SetFlags(partNumber int, flags uint64) error {
	if flags&0x80 != 0 {
		return d.t.SetFlag(d.disk, partNumber, 0x80, true)
	}
	return d.t.SetFlag(d.disk, partNumber, 0x80, false)
}
func (d *dosTable) SetFlag(partNumber int, bit uint, on bool) error {
	return d.t.SetFlag(d.disk, partNumber, byte(1<<bit), on)
}
func (d *dosTable) SetCode(partNumber int, code uint16) error {
	return mbr.ErrUnsupported // MBR type change is modeled as delete+add by the dispatcher's caller
}

// apmTable adapts the apm package's free functions (APM has no mutable
// in-memory table of its own: add/delete/rename are simply unsupported).
type apmTable struct {
	disk           apm.Disk
	sectorSize     int
	totalSectors   uint64
	partitionCount int
}

func (a *apmTable) Kind() ptypes.TableKind { return ptypes.APM }
func (a *apmTable) FirstUsable() uint64    { return apm.FirstUsable(a.partitionCount) }
func (a *apmTable) LastUsable() uint64     { return apm.LastUsable(a.totalSectors) }
func (a *apmTable) AddPartition(string, uint64, uint64, uint16) (int, error) {
	return 0, apm.ErrUnsupported
}
func (a *apmTable) DeletePartition(int) error         { return apm.ErrUnsupported }
func (a *apmTable) SetName(int, string) error         { return apm.ErrUnsupported }
func (a *apmTable) SetUUID(int, string) error         { return apm.ErrUnsupported }
func (a *apmTable) SetFlags(int, uint64) error        { return apm.ErrUnsupported }
func (a *apmTable) SetFlag(int, uint, bool) error     { return apm.ErrUnsupported }
func (a *apmTable) SetCode(int, uint16) error         { return apm.ErrUnsupported }
