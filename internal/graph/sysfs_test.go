package graph_test

import (
	"os"
	"path/filepath"

	. "gopkg.in/check.v1"

	"github.com/dankamongmen/growlight/internal/graph"
	"github.com/dankamongmen/growlight/quantity"
)

type sysfsSuite struct{}

var _ = Suite(&sysfsSuite{})

func writeFile(c *C, path, content string) {
	c.Assert(os.MkdirAll(filepath.Dir(path), 0755), IsNil)
	c.Assert(os.WriteFile(path, []byte(content+"\n"), 0644), IsNil)
}

func (s *sysfsSuite) TestReadDeviceReadsAttributesAndPartitions(c *C) {
	root := c.MkDir()
	dev := filepath.Join(root, "block", "sda")
	writeFile(c, filepath.Join(dev, "size"), "2048")
	writeFile(c, filepath.Join(dev, "queue", "logical_block_size"), "512")
	writeFile(c, filepath.Join(dev, "queue", "physical_block_size"), "4096")
	writeFile(c, filepath.Join(dev, "queue", "rotational"), "0")
	writeFile(c, filepath.Join(dev, "removable"), "0")
	writeFile(c, filepath.Join(dev, "ro"), "0")
	writeFile(c, filepath.Join(dev, "device", "model"), "Fake Disk")
	writeFile(c, filepath.Join(dev, "sda1", "size"), "1000")
	writeFile(c, filepath.Join(dev, "sda1", "start"), "2048")

	e := &graph.SysfsEnumerator{Root: root}
	info, err := e.ReadDevice("sda")
	c.Assert(err, IsNil)
	c.Check(info.SizeBytes, Equals, quantity.Size(2048*512))
	c.Check(info.LogicalSectorSize, Equals, 512)
	c.Check(info.PhysicalSectorSize, Equals, 4096)
	c.Check(info.Rotational, Equals, false)
	c.Check(info.Model, Equals, "Fake Disk")
	c.Assert(len(info.Partitions), Equals, 1)
	c.Check(info.Partitions[0].Name, Equals, "sda1")
	c.Check(info.Partitions[0].Number, Equals, 1)
	c.Check(info.Partitions[0].FirstLBA, Equals, uint64(2048))
	c.Check(info.Partitions[0].LastLBA, Equals, uint64(2999))
}

func (s *sysfsSuite) TestBlockDevicesListsWholeDisks(c *C) {
	root := c.MkDir()
	writeFile(c, filepath.Join(root, "block", "sda", "size"), "100")
	writeFile(c, filepath.Join(root, "block", "sdb", "size"), "100")

	e := &graph.SysfsEnumerator{Root: root}
	ctrls, err := e.Controllers()
	c.Assert(err, IsNil)
	c.Assert(len(ctrls), Equals, 1)
	c.Check(ctrls[0].ID, Equals, "platform")

	names, err := e.BlockDevices("platform")
	c.Assert(err, IsNil)
	c.Check(len(names), Equals, 2)
}
