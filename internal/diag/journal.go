package diag

import (
	"github.com/coreos/go-systemd/daemon"
	"github.com/coreos/go-systemd/journal"
)

// JournalMirror forwards every Sink entry to the systemd journal, when
// running under systemd (spec's ambient logging: "optional mirror to the
// systemd journal via github.com/coreos/go-systemd/journal when running
// under systemd").
type JournalMirror struct{}

var kindPriority = map[Kind]journal.Priority{
	Info:               journal.PriInfo,
	BadArgument:        journal.PriWarning,
	NotFound:           journal.PriWarning,
	WrongLayout:        journal.PriWarning,
	BusyMounted:        journal.PriWarning,
	BusySwap:           journal.PriWarning,
	BusySlave:          journal.PriWarning,
	OverlapOrMisalign:  journal.PriWarning,
	CapacityExceeded:   journal.PriWarning,
	IOErr:              journal.PriErr,
	KernelRescanFailed: journal.PriErr,
	SubprocessFailed:   journal.PriErr,
	Unsupported:        journal.PriWarning,
	RngExhausted:       journal.PriCrit,
	Corrupt:            journal.PriCrit,
}

// Mirror implements the Mirror interface. Failures to reach the journal
// (e.g. not running under systemd) are silently ignored — the ring
// buffer remains authoritative regardless.
func (JournalMirror) Mirror(e Entry) {
	pri, ok := kindPriority[e.Kind]
	if !ok {
		pri = journal.PriInfo
	}
	_ = journal.Send(e.Text, pri, map[string]string{"GROWLIGHT_KIND": string(e.Kind)})
}

// NotifyReady signals systemd readiness (sd_notify READY=1), for use
// after the device graph has completed initial discovery.
func NotifyReady() error {
	_, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	return err
}
