package quantity_test

import (
	"testing"

	. "gopkg.in/check.v1"

	"github.com/dankamongmen/growlight/quantity"
)

func Test(t *testing.T) { TestingT(t) }

type sizeSuite struct{}

var _ = Suite(&sizeSuite{})

func (s *sizeSuite) TestIECString(c *C) {
	for _, tc := range []struct {
		size quantity.Size
		exp  string
	}{
		{512, "512 B"},
		{1000, "1000 B"},
		{1030, "1.01 KiB"},
		{quantity.SizeKiB + 512, "1.50 KiB"},
		{123 * quantity.SizeKiB, "123 KiB"},
		{512 * quantity.SizeKiB, "512 KiB"},
		{578 * quantity.SizeMiB, "578 MiB"},
		{1*quantity.SizeGiB + 123*quantity.SizeMiB, "1.12 GiB"},
		{1024 * quantity.SizeGiB, "1 TiB"},
	} {
		c.Check(tc.size.IECString(), Equals, tc.exp)
	}
}

func (s *sizeSuite) TestOffsetAdd(c *C) {
	o := quantity.Offset(1024)
	c.Check(o.Add(quantity.Size(512)), Equals, quantity.Offset(1536))
}
