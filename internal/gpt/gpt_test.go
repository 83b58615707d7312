package gpt_test

import (
	"errors"
	"strings"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/dankamongmen/growlight/internal/gpt"
)

func Test(t *testing.T) { TestingT(t) }

type gptSuite struct{}

var _ = Suite(&gptSuite{})

// memDisk is an in-memory gpt.Disk for tests.
type memDisk struct {
	data []byte
}

func newMemDisk(sectorSize int, totalSectors uint64) *memDisk {
	return &memDisk{data: make([]byte, uint64(sectorSize)*totalSectors)}
}

func (d *memDisk) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, d.data[off:])
	return n, nil
}

func (d *memDisk) WriteAt(p []byte, off int64) (int, error) {
	n := copy(d.data[off:], p)
	return n, nil
}

func (d *memDisk) Sync() error { return nil }

const (
	sectorSize   = 512
	totalSectors = 4194304 // 2 TiB at 512B sectors
)

func (s *gptSuite) TestCreateFreshGPT(c *C) {
	disk := newMemDisk(sectorSize, totalSectors)
	t, err := gpt.Create(disk, sectorSize, totalSectors)
	c.Assert(err, IsNil)
	c.Check(t.Primary.ThisLBA, Equals, uint64(1))
	c.Check(t.Primary.AltLBA, Equals, uint64(totalSectors-1))
	c.Check(t.FirstUsable(), Equals, uint64(34))
	c.Check(t.LastUsable(), Equals, uint64(4194270))
	for _, e := range t.Entries {
		c.Check(e.Empty(), Equals, true)
	}

	read, err := gpt.Open(disk, sectorSize, totalSectors)
	c.Assert(err, IsNil)
	c.Check(read.Primary.HeaderCRC32, Equals, t.Primary.HeaderCRC32)
	c.Check(read.Primary.PartArrayCRC32, Equals, t.Primary.PartArrayCRC32)
}

func (s *gptSuite) TestAddSinglePartitionSpanningDisk(c *C) {
	disk := newMemDisk(sectorSize, totalSectors)
	t, err := gpt.Create(disk, sectorSize, totalSectors)
	c.Assert(err, IsNil)

	partno, err := t.Add(disk, "", t.FirstUsable(), t.LastUsable(), 0x0083, sectorSize, sectorSize)
	c.Assert(err, IsNil)
	c.Check(partno, Equals, 1)

	read, err := gpt.Open(disk, sectorSize, totalSectors)
	c.Assert(err, IsNil)
	e := read.Entries[0]
	c.Check(e.TypeGUID.FormatUppercase(), Equals, "0FC63DAF-8483-4772-8E79-3D69D8477DE4")
	c.Check(e.FirstLBA, Equals, uint64(34))
	c.Check(e.LastLBA, Equals, uint64(4194270))
}

func (s *gptSuite) TestNameTruncation(c *C) {
	disk := newMemDisk(sectorSize, totalSectors)
	t, err := gpt.Create(disk, sectorSize, totalSectors)
	c.Assert(err, IsNil)

	long := strings.Repeat("n", 40)
	_, err = t.Add(disk, long, t.FirstUsable(), t.FirstUsable()+1000, 0x0083, sectorSize, sectorSize)
	c.Assert(err, IsNil)

	name, err := t.Entries[0].Name()
	c.Assert(err, IsNil)
	c.Check(name, Equals, strings.Repeat("n", 36))
}

func (s *gptSuite) TestOverlapRejected(c *C) {
	disk := newMemDisk(sectorSize, totalSectors)
	t, err := gpt.Create(disk, sectorSize, totalSectors)
	c.Assert(err, IsNil)

	_, err = t.Add(disk, "a", 1000, 2000, 0x0083, sectorSize, sectorSize)
	c.Assert(err, IsNil)
	beforeCRC := t.Primary.HeaderCRC32

	_, err = t.Add(disk, "b", 1500, 2500, 0x0083, sectorSize, sectorSize)
	c.Assert(err, Equals, gpt.ErrOverlap)
	c.Check(t.Primary.HeaderCRC32, Equals, beforeCRC)
}

func (s *gptSuite) TestBoundaryOneSectorOutsideFails(c *C) {
	disk := newMemDisk(sectorSize, totalSectors)
	t, err := gpt.Create(disk, sectorSize, totalSectors)
	c.Assert(err, IsNil)

	_, err = t.Add(disk, "", t.FirstUsable(), t.LastUsable()+1, 0x0083, sectorSize, sectorSize)
	c.Assert(err, Equals, gpt.ErrUnaligned)
}

func (s *gptSuite) TestDeleteRoundTrip(c *C) {
	disk := newMemDisk(sectorSize, totalSectors)
	t, err := gpt.Create(disk, sectorSize, totalSectors)
	c.Assert(err, IsNil)
	partno, err := t.Add(disk, "x", 1000, 2000, 0x0083, sectorSize, sectorSize)
	c.Assert(err, IsNil)
	c.Assert(t.Delete(disk, partno), IsNil)
	c.Check(t.Entries[partno-1].Empty(), Equals, true)
	c.Assert(t.Delete(disk, partno), Equals, gpt.ErrNotFound)
}

func (s *gptSuite) TestZapThenCorrupt(c *C) {
	disk := newMemDisk(sectorSize, totalSectors)
	_, err := gpt.Create(disk, sectorSize, totalSectors)
	c.Assert(err, IsNil)
	c.Assert(gpt.Zap(disk, sectorSize, totalSectors), IsNil)

	_, err = gpt.Open(disk, sectorSize, totalSectors)
	c.Assert(errors.Is(err, gpt.ErrCorrupt), Equals, true)
}

func (s *gptSuite) TestCorruptPrimaryBackupRecoverable(c *C) {
	disk := newMemDisk(sectorSize, totalSectors)
	_, err := gpt.Create(disk, sectorSize, totalSectors)
	c.Assert(err, IsNil)

	// Poison the primary header's signature (LBA 1, byte offset sectorSize).
	disk.data[sectorSize] = 'X'

	_, err = gpt.Open(disk, sectorSize, totalSectors)
	c.Assert(errors.Is(err, gpt.ErrCorrupt), Equals, true)

	// The backup is still valid.
	_, err = gpt.OpenBackup(disk, sectorSize, totalSectors)
	c.Assert(err, IsNil)
}
