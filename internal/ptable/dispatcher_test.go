package ptable_test

import (
	"testing"

	. "gopkg.in/check.v1"

	"github.com/dankamongmen/growlight/internal/ptable"
	"github.com/dankamongmen/growlight/internal/ptypes"
)

func Test(t *testing.T) { TestingT(t) }

type dispatcherSuite struct{}

var _ = Suite(&dispatcherSuite{})

type memDisk struct{ data []byte }

func (d *memDisk) ReadAt(p []byte, off int64) (int, error)  { return copy(p, d.data[off:]), nil }
func (d *memDisk) WriteAt(p []byte, off int64) (int, error) { return copy(d.data[off:], p), nil }
func (d *memDisk) Sync() error                              { return nil }

func (s *dispatcherSuite) TestMakeTableRefusesFilesystemPresent(c *C) {
	disk := &memDisk{data: make([]byte, 512*100000)}
	_, err := ptable.MakeTable(true, false, ptypes.GPT, disk, 512, 100000)
	c.Assert(err, Equals, ptable.ErrFilesystemPresent)
}

func (s *dispatcherSuite) TestMakeTableRefusesExistingTable(c *C) {
	disk := &memDisk{data: make([]byte, 512*100000)}
	_, err := ptable.MakeTable(false, true, ptypes.GPT, disk, 512, 100000)
	c.Assert(err, Equals, ptable.ErrAlreadyHasTable)
}

func (s *dispatcherSuite) TestMakeTableGPTThenAddPartition(c *C) {
	disk := &memDisk{data: make([]byte, 512*4194304)}
	tbl, err := ptable.MakeTable(false, false, ptypes.GPT, disk, 512, 4194304)
	c.Assert(err, IsNil)
	c.Check(tbl.Kind(), Equals, ptypes.GPT)

	partno, err := tbl.AddPartition("root", tbl.FirstUsable(), tbl.LastUsable(), 0x0083)
	c.Assert(err, IsNil)
	c.Check(partno, Equals, 1)
}

func (s *dispatcherSuite) TestWipeTableRefusesMounted(c *C) {
	disk := &memDisk{data: make([]byte, 512*100000)}
	err := ptable.WipeTable(true, ptypes.GPT, disk, 512, 100000)
	c.Assert(err, Equals, ptable.ErrBusyMounted)
}

type fakeRescanner struct {
	adds, dels int
	lastDev    string
}

func (f *fakeRescanner) Add(fd int, startBytes, lengthBytes int64, partNumber int, devName string) error {
	f.adds++
	f.lastDev = devName
	return nil
}
func (f *fakeRescanner) Del(fd int, partNumber int, devName string) error {
	f.dels++
	f.lastDev = devName
	return nil
}

func (s *dispatcherSuite) TestRescanAttachedOnAddAndDelete(c *C) {
	disk := &memDisk{data: make([]byte, 512*4194304)}
	tbl, err := ptable.MakeTable(false, false, ptypes.GPT, disk, 512, 4194304)
	c.Assert(err, IsNil)

	fr := &fakeRescanner{}
	tbl.(ptable.RescanAttacher).AttachRescanner(fr, 3, "sda")

	partno, err := tbl.AddPartition("root", tbl.FirstUsable(), tbl.FirstUsable()+2047, 0x0083)
	c.Assert(err, IsNil)
	c.Check(fr.adds, Equals, 1)
	c.Check(fr.lastDev, Equals, "sda1")

	c.Assert(tbl.DeletePartition(partno), IsNil)
	c.Check(fr.dels, Equals, 1)
}

func (s *dispatcherSuite) TestMakeTableDOS(c *C) {
	disk := &memDisk{data: make([]byte, 512*100000)}
	tbl, err := ptable.MakeTable(false, false, ptypes.DOS, disk, 512, 100000)
	c.Assert(err, IsNil)
	partno, err := tbl.AddPartition("", 63, 2048000, 0x0083)
	c.Assert(err, IsNil)
	c.Check(partno, Equals, 1)
}

func (s *dispatcherSuite) TestOpenTableSeesPreviouslyAddedPartition(c *C) {
	disk := &memDisk{data: make([]byte, 512*4194304)}
	tbl, err := ptable.MakeTable(false, false, ptypes.GPT, disk, 512, 4194304)
	c.Assert(err, IsNil)
	_, err = tbl.AddPartition("root", tbl.FirstUsable(), tbl.LastUsable(), 0x0083)
	c.Assert(err, IsNil)

	reopened, err := ptable.OpenTable(ptypes.GPT, disk, 512, 4194304)
	c.Assert(err, IsNil)
	c.Check(reopened.Kind(), Equals, ptypes.GPT)
	c.Assert(reopened.DeletePartition(1), IsNil)
}
