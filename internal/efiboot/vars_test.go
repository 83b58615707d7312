package efiboot_test

import (
	"testing"

	efi "github.com/canonical/go-efilib"
	. "gopkg.in/check.v1"

	"github.com/dankamongmen/growlight/internal/efiboot"
)

func Test(t *testing.T) { TestingT(t) }

type efibootSuite struct{}

var _ = Suite(&efibootSuite{})

type fakeVarAccess struct {
	vars map[string][]byte
}

func newFakeVarAccess() *fakeVarAccess { return &fakeVarAccess{vars: map[string][]byte{}} }

func (f *fakeVarAccess) ReadVariable(name string, guid efi.GUID) ([]byte, efi.VariableAttributes, error) {
	d, ok := f.vars[name]
	if !ok {
		return nil, 0, efi.ErrVarNotExist
	}
	return d, efi.AttributeNonVolatile, nil
}
func (f *fakeVarAccess) WriteVariable(name string, guid efi.GUID, attrs efi.VariableAttributes, data []byte) error {
	f.vars[name] = data
	return nil
}
func (f *fakeVarAccess) ListVariables() ([]efi.VariableDescriptor, error) { return nil, nil }

func (s *efibootSuite) TestSetAndReadBootOrder(c *C) {
	v := newFakeVarAccess()
	c.Assert(efiboot.SetBootOrder(v, []uint16{0, 2, 1}), IsNil)

	order, err := efiboot.BootOrder(v)
	c.Assert(err, IsNil)
	c.Check(order, DeepEquals, []uint16{0, 2, 1})
}

func (s *efibootSuite) TestBootOrderOddLength(c *C) {
	v := newFakeVarAccess()
	v.vars["BootOrder"] = []byte{0x01}
	_, err := efiboot.BootOrder(v)
	c.Assert(err, NotNil)
}

func (s *efibootSuite) TestBootEntryName(c *C) {
	c.Check(efiboot.BootEntryName(0), Equals, "Boot0000")
	c.Check(efiboot.BootEntryName(10), Equals, "Boot000A")
}

func (s *efibootSuite) TestListBootEntriesSkipsMissing(c *C) {
	v := newFakeVarAccess()
	order := []uint16{0, 1}
	entries, err := efiboot.ListBootEntries(v, order)
	c.Assert(err, IsNil)
	c.Check(len(entries), Equals, 0)
}
