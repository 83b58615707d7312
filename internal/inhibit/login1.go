// Package inhibit holds a logind inhibitor lock across partition-table
// mutations (spec §5: growlight must not let the session manager
// suspend, shut down, or let another process race a mount/unmount
// while a table rewrite or mkfs is in flight). The lock is the same
// mechanism systemd-inhibit uses: a Manager.Inhibit call returning a
// pipe fd that must be held open for the duration and closed to
// release it.
package inhibit

import (
	"os"

	"github.com/godbus/dbus/v5"
	"golang.org/x/xerrors"
)

const (
	login1BusName    = "org.freedesktop.login1"
	login1ObjectPath = dbus.ObjectPath("/org/freedesktop/login1")
	login1Iface      = "org.freedesktop.login1.Manager"
)

// Caller is the narrow subset of *dbus.Object growlight needs, kept as
// an interface so tests don't require a real system bus.
type Caller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Lock is a held logind inhibitor. Release drops it.
type Lock struct {
	f *os.File
}

// Release closes the inhibitor's fd, letting logind proceed with
// whatever it was blocked on.
func (l *Lock) Release() error {
	if l.f == nil {
		return nil
	}
	return l.f.Close()
}

// Take acquires a "block"-mode inhibitor lock for the given what
// (colon-separated from shutdown/sleep/idle/handle-power-key/...),
// who and why being free-form identification shown in loginctl
// list-inhibitors.
func Take(c Caller, what, who, why string) (*Lock, error) {
	call := c.Call(login1Iface+".Inhibit", 0, what, who, why, "block")
	if call.Err != nil {
		return nil, xerrors.Errorf("logind Inhibit: %w", call.Err)
	}
	var fd dbus.UnixFD
	if err := call.Store(&fd); err != nil {
		return nil, xerrors.Errorf("logind Inhibit reply: %w", err)
	}
	return &Lock{f: os.NewFile(uintptr(fd), "login1-inhibit")}, nil
}

// SystemCaller returns a Caller bound to the real system bus's logind
// Manager object.
func SystemCaller() (Caller, *dbus.Conn, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, nil, xerrors.Errorf("connect system bus: %w", err)
	}
	return conn.Object(login1BusName, login1ObjectPath), conn, nil
}
