package ptypes_test

import (
	"testing"

	. "gopkg.in/check.v1"

	"github.com/dankamongmen/growlight/internal/ptypes"
)

func Test(t *testing.T) { TestingT(t) }

type ptypesSuite struct{}

var _ = Suite(&ptypesSuite{})

func (s *ptypesSuite) TestLookupByCode(c *C) {
	d, ok := ptypes.LookupByCode(0x0083)
	c.Assert(ok, Equals, true)
	c.Check(d.Name, Equals, "Linux filesystem")
	c.Check(d.MBRByte, Equals, byte(0x83))
}

func (s *ptypesSuite) TestGPTGUIDForUnsupported(c *C) {
	_, err := ptypes.GPTGUIDFor(0x2100 + 1) // unknown code
	c.Assert(err, NotNil)
}

func (s *ptypesSuite) TestMBRByteForFailsWhenZero(c *C) {
	_, err := ptypes.MBRByteFor(0x2100) // BIOS boot: GPT-only
	c.Assert(err, NotNil)
}

func (s *ptypesSuite) TestSupportedIn(c *C) {
	c.Check(ptypes.SupportedIn(ptypes.GPT, 0x0083), Equals, true)
	c.Check(ptypes.SupportedIn(ptypes.DOS, 0x0083), Equals, true)
	c.Check(ptypes.SupportedIn(ptypes.DOS, 0x2100), Equals, false)
	c.Check(ptypes.SupportedIn(ptypes.MDP, 0x0083), Equals, false)
}

func (s *ptypesSuite) TestParseUserStringHex(c *C) {
	code, err := ptypes.ParseUserString("0x83")
	c.Assert(err, IsNil)
	c.Check(code, Equals, uint16(0x0083))
}

func (s *ptypesSuite) TestParseUserStringGUID(c *C) {
	code, err := ptypes.ParseUserString("0FC63DAF-8483-4772-8E79-3D69D8477DE4")
	c.Assert(err, IsNil)
	c.Check(code, Equals, uint16(0x0083))
}

func (s *ptypesSuite) TestParseUserStringUnknown(c *C) {
	_, err := ptypes.ParseUserString("zzz")
	c.Assert(err, NotNil)
}
