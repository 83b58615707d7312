package target_test

import (
	"errors"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/dankamongmen/growlight/internal/target"
)

func Test(t *testing.T) { TestingT(t) }

type plannerSuite struct{}

var _ = Suite(&plannerSuite{})

func (s *plannerSuite) TestFirstMustBeRoot(c *C) {
	var p target.Planner
	err := p.Insert(target.Mount{Device: "sda2", Path: "/boot/efi", FSType: "vfat"})
	c.Assert(err, Equals, target.ErrFirstMustBeRoot)
}

func (s *plannerSuite) TestInsertRejectsUnrooted(c *C) {
	var p target.Planner
	c.Assert(p.Insert(target.Mount{Device: "sda1", Path: "/", FSType: "ext4"}), IsNil)
	err := p.Insert(target.Mount{Device: "sdb1", Path: "other/path", FSType: "ext4"})
	c.Assert(err, Equals, target.ErrNotUnderRoot)
}

func (s *plannerSuite) TestInsertRejectsDuplicate(c *C) {
	var p target.Planner
	c.Assert(p.Insert(target.Mount{Device: "sda1", Path: "/", FSType: "ext4"}), IsNil)
	err := p.Insert(target.Mount{Device: "sda1", Path: "/", FSType: "ext4"})
	c.Assert(errors.Is(err, target.ErrDuplicatePath), Equals, true)
}

func (s *plannerSuite) TestFinalizeOrdersRootFirst(c *C) {
	var p target.Planner
	c.Assert(p.Insert(target.Mount{Device: "sda1", Path: "/", FSType: "ext4", Options: "rw"}), IsNil)
	c.Assert(p.Insert(target.Mount{Device: "sda2", Path: "/boot", FSType: "ext4"}), IsNil)
	c.Assert(p.Insert(target.Mount{Device: "sda3", Path: "/boot/efi", FSType: "vfat"}), IsNil)

	mounts := p.Mounts()
	c.Assert(len(mounts), Equals, 3)
	c.Check(mounts[0].Path, Equals, "/")
	c.Check(mounts[1].Path, Equals, "/boot")
	c.Check(mounts[2].Path, Equals, "/boot/efi")

	fstab := p.Finalize()
	c.Check(fstab, Equals,
		"sda1\t/\text4\trw\t0\t1\n"+
			"sda2\t/boot\text4\tdefaults\t0\t2\n"+
			"sda3\t/boot/efi\tvfat\tdefaults\t0\t2\n")
}

func (s *plannerSuite) TestUnset(c *C) {
	var p target.Planner
	c.Assert(p.Insert(target.Mount{Device: "sda1", Path: "/", FSType: "ext4"}), IsNil)
	c.Assert(p.Insert(target.Mount{Device: "sda2", Path: "/boot", FSType: "ext4"}), IsNil)
	c.Check(p.Unset("/boot"), Equals, true)
	c.Check(len(p.Mounts()), Equals, 1)
	c.Check(p.Unset("/nonexistent"), Equals, false)
}
