package target_test

import (
	"path/filepath"

	. "gopkg.in/check.v1"

	"github.com/dankamongmen/growlight/internal/target"
)

type storeSuite struct{}

var _ = Suite(&storeSuite{})

func (s *storeSuite) TestSaveAndLoadRoundTrips(c *C) {
	path := filepath.Join(c.MkDir(), "target.db")
	store, err := target.OpenStore(path)
	c.Assert(err, IsNil)
	defer store.Close()

	var p target.Planner
	c.Assert(p.Insert(target.Mount{Device: "sda1", Path: "/", FSType: "ext4"}), IsNil)
	c.Assert(p.Insert(target.Mount{Device: "sda2", Path: "/boot", FSType: "ext4"}), IsNil)
	c.Assert(store.Save(&p), IsNil)

	loaded, err := store.Load()
	c.Assert(err, IsNil)
	c.Check(loaded.Mounts(), DeepEquals, p.Mounts())
}

func (s *storeSuite) TestLoadEmptyStoreReturnsEmptyPlanner(c *C) {
	path := filepath.Join(c.MkDir(), "target.db")
	store, err := target.OpenStore(path)
	c.Assert(err, IsNil)
	defer store.Close()

	loaded, err := store.Load()
	c.Assert(err, IsNil)
	c.Check(len(loaded.Mounts()), Equals, 0)
}

func (s *storeSuite) TestClearRemovesPersistedPlan(c *C) {
	path := filepath.Join(c.MkDir(), "target.db")
	store, err := target.OpenStore(path)
	c.Assert(err, IsNil)
	defer store.Close()

	var p target.Planner
	c.Assert(p.Insert(target.Mount{Device: "sda1", Path: "/", FSType: "ext4"}), IsNil)
	c.Assert(store.Save(&p), IsNil)
	c.Assert(store.Clear(), IsNil)

	loaded, err := store.Load()
	c.Assert(err, IsNil)
	c.Check(len(loaded.Mounts()), Equals, 0)
}
