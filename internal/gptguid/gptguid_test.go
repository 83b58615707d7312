package gptguid_test

import (
	"strings"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/dankamongmen/growlight/internal/gptguid"
)

func Test(t *testing.T) { TestingT(t) }

type gptguidSuite struct{}

var _ = Suite(&gptguidSuite{})

func (s *gptguidSuite) TestChecksumEmpty(c *C) {
	// CRC-32/IEEE of the empty string is well known.
	c.Check(gptguid.Checksum(nil), Equals, uint32(0))
}

func (s *gptguidSuite) TestGUIDRoundTrip(c *C) {
	const in = "0FC63DAF-8483-4772-8E79-3D69D8477DE4"
	g, err := gptguid.ParseGUID(in)
	c.Assert(err, IsNil)
	c.Check(g.FormatUppercase(), Equals, in)
}

func (s *gptguidSuite) TestGUIDOnDiskBytesAreMixedEndian(c *C) {
	// 0FC63DAF-8483-4772-8E79-3D69D8477DE4 is the Linux filesystem type
	// GUID; its on-disk encoding is well known from gdisk/parted output
	// and the UEFI spec's mixed-endian GUID layout: the first three
	// fields little-endian, the last two a straight big-endian byte
	// string.
	g, err := gptguid.ParseGUID("0FC63DAF-8483-4772-8E79-3D69D8477DE4")
	c.Assert(err, IsNil)
	c.Check(g[:], DeepEquals, []byte{
		0xAF, 0x3D, 0xC6, 0x0F,
		0x83, 0x84,
		0x72, 0x47,
		0x8E, 0x79,
		0x3D, 0x69, 0xD8, 0x47, 0x7D, 0xE4,
	})
}

func (s *gptguidSuite) TestGUIDRejectsMalformed(c *C) {
	_, err := gptguid.ParseGUID("not-a-guid")
	c.Assert(err, NotNil)
}

func (s *gptguidSuite) TestNewRandomIsNotZero(c *C) {
	g, err := gptguid.NewRandom()
	c.Assert(err, IsNil)
	c.Check(g.Zero(), Equals, false)
}

func (s *gptguidSuite) TestNewRandomUnique(c *C) {
	a, err := gptguid.NewRandom()
	c.Assert(err, IsNil)
	b, err := gptguid.NewRandom()
	c.Assert(err, IsNil)
	c.Check(a, Not(Equals), b)
}

func (s *gptguidSuite) TestEncodeDecodeNameRoundTrip(c *C) {
	field, err := gptguid.EncodeName("boot")
	c.Assert(err, IsNil)
	c.Check(len(field), Equals, 2*gptguid.NameUnits)
	name, err := gptguid.DecodeName(field)
	c.Assert(err, IsNil)
	c.Check(name, Equals, "boot")
}

func (s *gptguidSuite) TestEncodeNameTruncates(c *C) {
	long := strings.Repeat("x", 40)
	field, err := gptguid.EncodeName(long)
	c.Assert(err, IsNil)
	c.Check(len(field), Equals, 2*gptguid.NameUnits)
	name, err := gptguid.DecodeName(field)
	c.Assert(err, IsNil)
	c.Check(name, Equals, strings.Repeat("x", gptguid.NameUnits))
}

func (s *gptguidSuite) TestDecodeNameWrongSize(c *C) {
	_, err := gptguid.DecodeName([]byte{0, 0})
	c.Assert(err, NotNil)
}
