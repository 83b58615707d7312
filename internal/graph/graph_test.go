package graph_test

import (
	"testing"

	. "gopkg.in/check.v1"

	"github.com/dankamongmen/growlight/internal/graph"
	"github.com/dankamongmen/growlight/quantity"
)

func Test(t *testing.T) { TestingT(t) }

type graphSuite struct{}

var _ = Suite(&graphSuite{})

type fakeObserver struct {
	events int
	frees  int
}

func (f *fakeObserver) BlockEvent(dev *graph.Device) graph.ObserverHandle {
	f.events++
	return f.events
}
func (f *fakeObserver) BlockFree(dev *graph.Device) { f.frees++ }

type fakeEnum struct {
	controllers []graph.ControllerInfo
	devices     map[string][]string // controller ID -> device names
	infos       map[string]graph.DeviceInfo
}

func (e *fakeEnum) Controllers() ([]graph.ControllerInfo, error) { return e.controllers, nil }
func (e *fakeEnum) BlockDevices(id string) ([]string, error)     { return e.devices[id], nil }
func (e *fakeEnum) ReadDevice(name string) (graph.DeviceInfo, error) {
	return e.infos[name], nil
}

type fakeAggEnum struct {
	mds    []graph.MdadmInfo
	pools  []graph.ZpoolInfo
}

func (a *fakeAggEnum) MdadmDevices() ([]graph.MdadmInfo, error) { return a.mds, nil }
func (a *fakeAggEnum) ZpoolDevices() ([]graph.ZpoolInfo, error) { return a.pools, nil }

func baseEnum() *fakeEnum {
	return &fakeEnum{
		controllers: []graph.ControllerInfo{{ID: "pci0", Bus: graph.BusPCIe}},
		devices:     map[string][]string{"pci0": {"sda"}},
		infos: map[string]graph.DeviceInfo{
			"sda": {
				Name:               "sda",
				SizeBytes:          quantity.Size(2 * 1024 * 1024 * 1024),
				LogicalSectorSize:  512,
				PhysicalSectorSize: 512,
				TableKind:          "gpt",
				Partitions: []graph.PartitionInfo{
					{Name: "sda1", Number: 1, FirstLBA: 34, LastLBA: 2047, TypeCode: 0x0083},
				},
			},
		},
	}
}

func (s *graphSuite) TestDiscoverPopulatesGraph(c *C) {
	obs := &fakeObserver{}
	g := graph.New(obs)
	err := graph.Discover(g, baseEnum(), nil)
	c.Assert(err, IsNil)

	dev, ok := g.Lookup("sda")
	c.Assert(ok, Equals, true)
	c.Check(dev.Layout, Equals, graph.LayoutNone)
	c.Check(len(dev.Partitions()), Equals, 1)

	part, ok := g.Lookup("sda1")
	c.Assert(ok, Equals, true)
	c.Check(part.Partition.Number, Equals, 1)
	c.Check(obs.events, Equals, 2) // sda + sda1
}

func (s *graphSuite) TestDiscoverBindsAggregateSlaves(c *C) {
	g := graph.New(nil)
	aggEnum := &fakeAggEnum{
		mds: []graph.MdadmInfo{{Name: "md0", Level: "raid1", SlaveNames: []string{"sda"}}},
	}
	err := graph.Discover(g, baseEnum(), aggEnum)
	c.Assert(err, IsNil)

	md, ok := g.Lookup("md0")
	c.Assert(ok, Equals, true)
	c.Check(md.Layout, Equals, graph.LayoutMdadm)
	c.Assert(len(md.Mdadm.Slaves), Equals, 1)
	c.Check(md.Mdadm.Slaves[0].Name, Equals, "sda")

	sda, _ := g.Lookup("sda")
	c.Check(graph.Aggregable(sda, nil), Equals, false) // now a slave
}

func (s *graphSuite) TestRescanAddsAndRemovesPartitions(c *C) {
	g := graph.New(nil)
	enum := baseEnum()
	c.Assert(graph.Discover(g, enum, nil), IsNil)

	// add sda2, drop sda1
	enum.infos["sda"] = graph.DeviceInfo{
		Name:               "sda",
		SizeBytes:          quantity.Size(2 * 1024 * 1024 * 1024),
		LogicalSectorSize:  512,
		PhysicalSectorSize: 512,
		TableKind:          "gpt",
		Partitions: []graph.PartitionInfo{
			{Name: "sda2", Number: 2, FirstLBA: 2048, LastLBA: 4095, TypeCode: 0x0083},
		},
	}
	c.Assert(g.Rescan(enum, "sda"), IsNil)

	_, ok := g.Lookup("sda1")
	c.Check(ok, Equals, false)
	p2, ok := g.Lookup("sda2")
	c.Assert(ok, Equals, true)
	c.Check(p2.Partition.Number, Equals, 2)

	dev, _ := g.Lookup("sda")
	c.Check(len(dev.Partitions()), Equals, 1)
}

func (s *graphSuite) TestAggregablePredicate(c *C) {
	raw := &graph.Device{Size: 100, Layout: graph.LayoutNone}
	c.Check(graph.Aggregable(raw, nil), Equals, true)

	raw.Raw.TableKind = "gpt"
	c.Check(graph.Aggregable(raw, nil), Equals, false) // partitioned raw disk not aggregable

	part := &graph.Device{Size: 100, Layout: graph.LayoutPartition}
	part.Partition.TypeCode = 0x00FD
	c.Check(graph.Aggregable(part, func(code uint16) bool { return code == 0x00FD }), Equals, true)
	c.Check(graph.Aggregable(part, func(code uint16) bool { return false }), Equals, false)

	readOnly := &graph.Device{Size: 100, ReadOnly: true}
	c.Check(graph.Aggregable(readOnly, nil), Equals, false)
}
