package inhibit_test

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	. "gopkg.in/check.v1"

	"github.com/dankamongmen/growlight/internal/inhibit"
)

func Test(t *testing.T) { TestingT(t) }

type inhibitSuite struct{}

var _ = Suite(&inhibitSuite{})

type fakeCaller struct {
	gotMethod string
	gotArgs   []interface{}
	fd        dbus.UnixFD
	err       error
}

func (f *fakeCaller) Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call {
	f.gotMethod = method
	f.gotArgs = args
	if f.err != nil {
		return &dbus.Call{Err: f.err}
	}
	return &dbus.Call{Body: []interface{}{f.fd}}
}

func (s *inhibitSuite) TestTakeIssuesInhibitCallWithBlockMode(c *C) {
	fc := &fakeCaller{fd: 7}
	lock, err := inhibit.Take(fc, "shutdown:sleep", "growlight", "rewriting partition table")
	c.Assert(err, IsNil)
	c.Check(fc.gotMethod, Equals, "org.freedesktop.login1.Manager.Inhibit")
	c.Check(fc.gotArgs, DeepEquals, []interface{}{"shutdown:sleep", "growlight", "rewriting partition table", "block"})
	c.Assert(lock, NotNil)
}

func (s *inhibitSuite) TestTakePropagatesCallError(c *C) {
	fc := &fakeCaller{err: errors.New("boom")}
	_, err := inhibit.Take(fc, "shutdown", "growlight", "test")
	c.Assert(err, NotNil)
}

func (s *inhibitSuite) TestReleaseOnNilFileIsNoop(c *C) {
	lock := &inhibit.Lock{}
	c.Check(lock.Release(), IsNil)
}
