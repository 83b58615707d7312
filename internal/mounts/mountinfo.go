// Package mounts is the mount/swap registry: it parses mountinfo and
// swaps into device records and maps mount option tokens to the kernel
// mount bitmask (spec §4.9).
package mounts

import (
	"bufio"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/xerrors"

	"github.com/dankamongmen/growlight/quantity"
)

// Entry is one parsed mountinfo row: device, path, fs, raw option
// string (spec §3 "Mount record").
type Entry struct {
	Device  string
	Path    string
	FSType  string
	Options string
}

// ParseMountinfo reads tab/space-delimited rows of device, path, fs,
// options, and two trailing numeric fields (spec §4.9), returning one
// Entry per row. Malformed rows are skipped rather than aborting the
// whole parse, since a single stray line must not blind the registry to
// every mount that follows it.
func ParseMountinfo(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		entries = append(entries, Entry{
			Device:  fields[0],
			Path:    fields[1],
			FSType:  fields[2],
			Options: fields[3],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, xerrors.Errorf("read mountinfo: %w", err)
	}
	return entries, nil
}

// SwapEntry is one parsed swaps row.
type SwapEntry struct {
	Path     string
	Kind     string // "file" | "partition"
	KB       uint64
	UsedKB   uint64
	Priority int
}

// ParseSwaps reads the swaps file, skipping its header line, per the
// format path, kind, kilobytes, used, priority (spec §4.9).
func ParseSwaps(r io.Reader) ([]SwapEntry, error) {
	var entries []SwapEntry
	sc := bufio.NewScanner(r)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		kb, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			continue
		}
		used, err := strconv.ParseUint(fields[3], 10, 64)
		if err != nil {
			continue
		}
		prio, err := strconv.Atoi(fields[4])
		if err != nil {
			continue
		}
		entries = append(entries, SwapEntry{
			Path:     fields[0],
			Kind:     fields[1],
			KB:       kb,
			UsedKB:   used,
			Priority: prio,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, xerrors.Errorf("read swaps: %w", err)
	}
	return entries, nil
}

// DeviceSink is the narrow surface the registry needs from the device
// graph: resolve a device-field symlink to a canonical short name, look
// up the device's mutable mount/swap/filesystem state, and mark it as a
// target-root participant.
type DeviceSink interface {
	ResolveDeviceName(raw string) (string, error)
	AddMount(name, path, opts string)
	SetFilesystemType(name, fsType string)
	AddMountBytes(name string, total quantity.Size)
	SetSwapPriority(name string, prio int)
	MarkTargetParticipant(name string)
}

// Apply reconciles parsed mountinfo and swap entries into sink, per
// spec §4.9: resolve symlinks, idempotently append mount paths/options,
// overwrite a disagreeing filesystem type, accumulate statvfs-derived
// totals, and mark target-root participants.
func Apply(sink DeviceSink, mountEntries []Entry, swapEntries []SwapEntry, statvfsTotal func(path string) (quantity.Size, error), targetRootPrefix string) error {
	for _, e := range mountEntries {
		name, err := sink.ResolveDeviceName(e.Device)
		if err != nil {
			continue // an unresolvable device field names something outside our graph
		}
		sink.AddMount(name, e.Path, e.Options)
		sink.SetFilesystemType(name, e.FSType)
		if statvfsTotal != nil {
			if total, err := statvfsTotal(e.Path); err == nil {
				sink.AddMountBytes(name, total)
			}
		}
		if targetRootPrefix != "" && isUnderPrefix(e.Path, targetRootPrefix) {
			sink.MarkTargetParticipant(name)
		}
	}
	for _, se := range swapEntries {
		name, err := sink.ResolveDeviceName(se.Path)
		if err != nil {
			continue
		}
		sink.SetSwapPriority(name, se.Priority)
	}
	return nil
}

func isUnderPrefix(path, prefix string) bool {
	rel, err := filepath.Rel(prefix, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}
