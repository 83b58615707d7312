package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/term"
	"golang.org/x/xerrors"

	"github.com/jessevdk/go-flags"
	"github.com/mattn/go-runewidth"

	"github.com/dankamongmen/growlight/internal/aggregate"
	"github.com/dankamongmen/growlight/internal/blkpg"
	"github.com/dankamongmen/growlight/internal/diag"
	"github.com/dankamongmen/growlight/internal/efiboot"
	"github.com/dankamongmen/growlight/internal/graph"
	"github.com/dankamongmen/growlight/internal/inhibit"
	"github.com/dankamongmen/growlight/internal/mounts"
	"github.com/dankamongmen/growlight/internal/ptable"
	"github.com/dankamongmen/growlight/internal/ptypes"
	"github.com/dankamongmen/growlight/internal/subprocess"
	"github.com/dankamongmen/growlight/internal/target"
)

func registerCommands(parser *flags.Parser, h *appHolder) {
	parser.AddCommand("version", "print version", "", &versionCmd{})
	parser.AddCommand("quit", "exit cleanly", "", &quitCmd{})
	parser.AddCommand("adapter", "list controllers", "", &adapterCmd{h: h})
	parser.AddCommand("blockdev", "discover and list block devices", "", &blockdevCmd{h: h})
	parser.AddCommand("mounts", "apply and list mount/swap state", "", &mountsCmd{h: h})
	parser.AddCommand("target", "manage the target-root plan", "", &targetCmd{h: h})
	parser.AddCommand("partition", "create/delete a partition", "", &partitionCmd{h: h})
	parser.AddCommand("fs", "run a filesystem tool (mkfs/fsck) against a partition", "", &fsCmd{h: h})
	parser.AddCommand("swap", "run a swap tool (mkswap/swapon/swapoff)", "", &swapCmd{h: h})
	parser.AddCommand("mdadm", "run mdadm", "", &aggregateToolCmd{h: h, tool: "mdadm", family: aggregate.FamilyMD})
	parser.AddCommand("zpool", "run zpool", "", &aggregateToolCmd{h: h, tool: "zpool", family: aggregate.FamilyZFS})
	parser.AddCommand("zfs", "run zfs", "", &aggregateToolCmd{h: h, tool: "zfs", family: aggregate.FamilyZFS})
	parser.AddCommand("dm", "run dmsetup", "", &aggregateToolCmd{h: h, tool: "dmsetup", family: aggregate.FamilyDM})
	parser.AddCommand("map", "create a device-mapper mapping (dmsetup create)", "", &mapCmd{h: h})
	parser.AddCommand("unmap", "remove a device-mapper mapping (dmsetup remove)", "", &unmapCmd{h: h})
	parser.AddCommand("uefiboot", "list EFI boot entries", "", &uefibootCmd{h: h})
	parser.AddCommand("biosboot", "invoke the BIOS bootloader installer", "", &passthroughCmd{h: h, tool: "grub-install"})
	parser.AddCommand("grubmap", "run grub-mkdevicemap", "", &passthroughCmd{h: h, tool: "grub-mkdevicemap"})
	parser.AddCommand("benchmark", "run hdparm -t against a device", "", &benchmarkCmd{h: h})
	parser.AddCommand("stats", "summarize diagnostic history by kind", "", &statsCmd{h: h})
	parser.AddCommand("diags", "print recent diagnostic entries", "", &diagsCmd{h: h})
	parser.AddCommand("troubleshoot", "dump the full diagnostic history", "", &troubleshootCmd{h: h})
}

type versionCmd struct{}

func (c *versionCmd) Execute(args []string) error {
	fmt.Println("growlight", version)
	return nil
}

type quitCmd struct{}

func (c *quitCmd) Execute(args []string) error { return nil }

// adapterCmd lists discovered controllers (spec §6 "adapter").
type adapterCmd struct {
	h *appHolder
}

func (c *adapterCmd) Execute(args []string) error {
	a := c.h.a
	enum := graph.NewSysfsEnumerator()
	if err := graph.Discover(a.graph, enum, nil); err != nil {
		a.diag.Logf(diagKindFor(err), "discover: %v", err)
		return err
	}
	for _, ctrl := range a.graph.Controllers() {
		fmt.Printf("%-12s bus=%-2d devices=%d\n", ctrl.ID, ctrl.Bus, len(ctrl.Devices))
	}
	return nil
}

// blockdevCmd discovers and lists every raw device and its partitions,
// column-aligned with go-runewidth the way variable-width model strings
// require (spec §6 blockdev listing).
type blockdevCmd struct {
	h *appHolder
}

func (c *blockdevCmd) Execute(args []string) error {
	a := c.h.a
	enum := graph.NewSysfsEnumerator()
	if err := graph.Discover(a.graph, enum, nil); err != nil {
		a.diag.Logf(diagKindFor(err), "discover: %v", err)
		return err
	}
	width := terminalWidth()
	for _, ctrl := range a.graph.Controllers() {
		for _, dev := range ctrl.Devices {
			if a.cfg.Ignored(dev.Name) {
				continue
			}
			printPadded(dev.Name, 16)
			fmt.Printf(" %12s  %s\n", dev.Size.IECString(), truncateToWidth(dev.Model, width, 16+1+12+2))
			for _, p := range dev.Partitions() {
				printPadded("  "+p.Name, 16)
				fmt.Printf(" %12s\n", p.Size.IECString())
			}
		}
	}
	return nil
}

func printPadded(s string, width int) {
	fmt.Print(s)
	if pad := width - runewidth.StringWidth(s); pad > 0 {
		fmt.Print(strings.Repeat(" ", pad))
	}
}

// terminalWidth returns the controlling terminal's column count, or 0
// when stdout isn't a terminal (a pipe or redirect), in which case
// output is never truncated.
func terminalWidth() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return 0
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}

// truncateToWidth shortens s so a line already consuming usedCols fits
// within total, leaving room for the rest of the row (spec §6 blockdev
// listing stays one line per device even on a narrow terminal).
func truncateToWidth(s string, total, usedCols int) string {
	if total == 0 {
		return s
	}
	budget := total - usedCols
	if budget <= 0 || runewidth.StringWidth(s) <= budget {
		return s
	}
	return runewidth.Truncate(s, budget, "...")
}

// mountsCmd applies a simplified mountinfo/swaps snapshot (spec §4.9)
// into the graph and lists the result.
type mountsCmd struct {
	h *appHolder

	MountinfoPath string `long:"mountinfo" default:"/var/lib/growlight/mountinfo"`
	SwapsPath     string `long:"swaps" default:"/var/lib/growlight/swaps"`
}

func (c *mountsCmd) Execute(args []string) error {
	a := c.h.a
	mf, err := os.Open(c.MountinfoPath)
	if err != nil {
		return err
	}
	defer mf.Close()
	mountEntries, err := mounts.ParseMountinfo(mf)
	if err != nil {
		return err
	}

	var swapEntries []mounts.SwapEntry
	if sf, err := os.Open(c.SwapsPath); err == nil {
		defer sf.Close()
		swapEntries, err = mounts.ParseSwaps(sf)
		if err != nil {
			return err
		}
	}

	sink := graph.NewMountSink(a.graph)
	if err := mounts.Apply(sink, mountEntries, swapEntries, nil, a.cfg.TargetRootPrefix); err != nil {
		a.diag.Logf(diagKindFor(err), "apply mounts: %v", err)
		return err
	}
	for _, e := range mountEntries {
		fmt.Printf("%-20s %-24s %-8s %s\n", e.Device, e.Path, e.FSType, e.Options)
	}
	return nil
}

// targetCmd drives the target-root planner, persisted across process
// invocations since the CLI is a new process per call (spec §4.11).
type targetCmd struct {
	h *appHolder

	Positional struct {
		Action string   `positional-arg-name:"action"`
		Rest   []string `positional-arg-name:"args"`
	} `positional-args:"yes"`
}

func (c *targetCmd) Execute(args []string) error {
	a := c.h.a
	p, err := a.planStore.Load()
	if err != nil {
		return err
	}

	switch c.Positional.Action {
	case "set":
		if len(c.Positional.Rest) < 3 {
			return fmt.Errorf("target set requires device, path, fstype [options]")
		}
		m := target.Mount{Device: c.Positional.Rest[0], Path: c.Positional.Rest[1], FSType: c.Positional.Rest[2]}
		if len(c.Positional.Rest) > 3 {
			m.Options = strings.Join(c.Positional.Rest[3:], ",")
		}
		if err := p.Insert(m); err != nil {
			a.diag.Logf(diagKindFor(err), "target set: %v", err)
			return err
		}
	case "unset":
		if len(c.Positional.Rest) != 1 {
			return fmt.Errorf("target unset requires exactly one path")
		}
		p.Unset(c.Positional.Rest[0])
	case "finalize":
		fmt.Print(p.Finalize())
		return a.planStore.Clear()
	}
	return a.planStore.Save(p)
}

// partitionCmd mutates a partition table on a real device, attaching
// the kernel re-read bridge so the change is visible without a reboot
// (spec §4.6/§4.7).
type partitionCmd struct {
	h *appHolder

	Device     string `long:"device" required:"true" description:"whole-disk device path, e.g. /dev/sdb"`
	Kind       string `long:"kind" default:"gpt" description:"gpt, dos, or apm"`
	Fresh      bool   `long:"fresh" description:"create a new table instead of opening an existing one"`
	Delete     int    `long:"delete" default:"0" description:"partition number to delete"`
	Name       string `long:"name"`
	Code       string `long:"code" default:"0x0083" description:"hex partition type code"`
	SectorSize int    `long:"sector-size" default:"512"`
	Sectors    uint64 `long:"total-sectors"`
}

// withInhibitor holds a logind inhibitor lock (the dbus equivalent of
// systemd-inhibit) across fn, so the session manager can't suspend,
// shut down, or race a mount/unmount while a table rewrite or mkfs is
// in flight. A bus or lock acquisition failure is logged and fn still
// runs: growlight must work in containers and minimal systems with no
// logind running, not refuse to touch disks there.
func withInhibitor(a *app, what, why string, fn func() error) error {
	caller, conn, err := inhibit.SystemCaller()
	if err != nil {
		a.diag.Logf(diag.Info, "inhibitor unavailable, proceeding without lock: %v", err)
		return fn()
	}
	defer conn.Close()
	lock, err := inhibit.Take(caller, what, "growlight", why)
	if err != nil {
		a.diag.Logf(diag.Info, "inhibitor lock denied, proceeding without lock: %v", err)
		return fn()
	}
	defer lock.Release()
	return fn()
}

func (c *partitionCmd) Execute(args []string) error {
	a := c.h.a
	f, err := os.OpenFile(c.Device, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	kind := ptypes.TableKind(c.Kind)
	var tbl ptable.Table
	if c.Fresh {
		tbl, err = ptable.MakeTable(false, false, kind, f, c.SectorSize, c.Sectors)
	} else {
		tbl, err = ptable.OpenTable(kind, f, c.SectorSize, c.Sectors)
	}
	if err != nil {
		a.diag.Logf(diagKindFor(err), "partition table on %s: %v", c.Device, err)
		return err
	}

	if ra, ok := tbl.(ptable.RescanAttacher); ok {
		ra.AttachRescanner(blkpg.New(), int(f.Fd()), filepath.Base(c.Device))
	}

	return withInhibitor(a, "shutdown:sleep", "partition table mutation on "+c.Device, func() error {
		if c.Delete > 0 {
			if err := tbl.DeletePartition(c.Delete); err != nil {
				a.diag.Logf(diagKindFor(err), "delete partition %d: %v", c.Delete, err)
				return err
			}
			return nil
		}

		code, err := strconv.ParseUint(c.Code, 0, 16)
		if err != nil {
			return fmt.Errorf("bad --code %q: %w", c.Code, err)
		}
		num, err := tbl.AddPartition(c.Name, tbl.FirstUsable(), tbl.LastUsable(), uint16(code))
		if err != nil {
			a.diag.Logf(diagKindFor(err), "add partition: %v", err)
			return err
		}
		fmt.Println("created partition", num)
		return nil
	})
}

// fsCmd and swapCmd are thin sequencing wrappers: growlight's core only
// decides *when* mkfs/fsck/mkswap/swapon/swapoff run, delegating the
// actual work to the external tool (spec §6 process-spawn surface).
type fsCmd struct {
	h    *appHolder
	Tool string `long:"tool" required:"true" description:"e.g. mkfs.ext4, fsck.ext4"`
}

func (c *fsCmd) Execute(args []string) error {
	return withInhibitor(c.h.a, "shutdown:sleep", "filesystem build via "+c.Tool, func() error {
		return runPassthrough(c.h, c.Tool, args)
	})
}

type swapCmd struct {
	h    *appHolder
	Tool string `long:"tool" required:"true" description:"mkswap, swapon, or swapoff"`
}

func (c *swapCmd) Execute(args []string) error {
	return runPassthrough(c.h, c.Tool, args)
}

type passthroughCmd struct {
	h    *appHolder
	tool string
}

func (c *passthroughCmd) Execute(args []string) error {
	return runPassthrough(c.h, c.tool, args)
}

type benchmarkCmd struct {
	h *appHolder
}

func (c *benchmarkCmd) Execute(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("benchmark requires exactly one device")
	}
	return runPassthrough(c.h, "hdparm", append([]string{"-t"}, args...))
}

// mapCmd and unmapCmd are dmsetup create/remove passthroughs (spec §6
// "map"/"unmap", outside the aggregate registry's validated construction
// path since a raw mapping may not be one of the catalogued aggregate
// types).
type mapCmd struct {
	h *appHolder
}

func (c *mapCmd) Execute(args []string) error {
	return runPassthrough(c.h, "dmsetup", append([]string{"create"}, args...))
}

type unmapCmd struct {
	h *appHolder
}

func (c *unmapCmd) Execute(args []string) error {
	return runPassthrough(c.h, "dmsetup", append([]string{"remove"}, args...))
}

// aggregateToolCmd validates a construction request against the
// aggregate registry before delegating to the external tool that
// actually builds it (spec §4.10).
type aggregateToolCmd struct {
	h      *appHolder
	tool   string
	family aggregate.Family

	Type string `long:"type" description:"catalogued aggregate type name, e.g. raid1, mirror, dm-linear"`
}

func (c *aggregateToolCmd) Execute(args []string) error {
	if c.Type != "" {
		if _, ok := aggregate.Lookup(c.Type); !ok {
			return fmt.Errorf("%w: %s", aggregate.ErrUnknownType, c.Type)
		}
	}
	return runPassthrough(c.h, c.tool, args)
}

func runPassthrough(h *appHolder, tool string, args []string) error {
	a := h.a
	res, err := a.runner.Run(context.Background(), tool, args...)
	fmt.Print(res.Output)
	if err != nil {
		a.diag.Logf(diagKindFor(err), "%s: %v", tool, err)
		return err
	}
	return nil
}

// uefibootCmd lists the current BootOrder's decoded entries.
type uefibootCmd struct {
	h *appHolder
}

func (c *uefibootCmd) Execute(args []string) error {
	v := efiboot.NewRealVariableAccess()
	order, err := efiboot.BootOrder(v)
	if err != nil {
		c.h.a.diag.Logf(diagKindFor(err), "read BootOrder: %v", err)
		return err
	}
	entries, err := efiboot.ListBootEntries(v, order)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s %s active=%v\n", efiboot.BootEntryName(e.Index), e.Description, e.Active)
	}
	return nil
}

// statsCmd summarizes the diagnostic ring buffer by kind (spec §6
// "stats").
type statsCmd struct {
	h *appHolder
}

func (c *statsCmd) Execute(args []string) error {
	counts := map[string]int{}
	for _, e := range c.h.a.diag.Recent(0) {
		counts[string(e.Kind)]++
	}
	for kind, n := range counts {
		fmt.Printf("%-20s %d\n", kind, n)
	}
	return nil
}

// diagsCmd prints the last N diagnostic entries (spec §6 "diags [N]").
type diagsCmd struct {
	h *appHolder

	Positional struct {
		N int `positional-arg-name:"N"`
	} `positional-args:"yes"`
}

func (c *diagsCmd) Execute(args []string) error {
	for _, e := range c.h.a.diag.Recent(c.Positional.N) {
		fmt.Println(e.String())
	}
	return nil
}

type troubleshootCmd struct {
	h *appHolder
}

func (c *troubleshootCmd) Execute(args []string) error {
	for _, e := range c.h.a.diag.Recent(0) {
		fmt.Println(e.String())
	}
	return nil
}

// diagKindFor maps a returned error to the closest spec §7 error kind
// for the diagnostic ring, falling back to Info when it doesn't match
// any sentinel this build recognizes.
func diagKindFor(err error) diag.Kind {
	switch {
	case xerrors.Is(err, graph.ErrNotFound):
		return diag.NotFound
	case xerrors.Is(err, graph.ErrAlreadyExists):
		return diag.BadArgument
	case xerrors.Is(err, ptable.ErrBusyMounted):
		return diag.BusyMounted
	case xerrors.Is(err, ptable.ErrAlreadyHasTable), xerrors.Is(err, ptable.ErrNoTable):
		return diag.WrongLayout
	case xerrors.Is(err, ptable.ErrFilesystemPresent):
		return diag.BadArgument
	case xerrors.Is(err, ptable.ErrUnsupported), xerrors.Is(err, aggregate.ErrUnknownType), xerrors.Is(err, aggregate.ErrNotAggregable):
		return diag.Unsupported
	case xerrors.Is(err, aggregate.ErrTooFewComponents), xerrors.Is(err, aggregate.ErrHeterogeneousSize):
		return diag.BadArgument
	case xerrors.Is(err, target.ErrFirstMustBeRoot), xerrors.Is(err, target.ErrNotUnderRoot), xerrors.Is(err, target.ErrDuplicatePath):
		return diag.BadArgument
	case xerrors.Is(err, subprocess.ErrSubprocessFailed):
		return diag.SubprocessFailed
	default:
		return diag.Info
	}
}
