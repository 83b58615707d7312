package mounts

import (
	"strings"

	"golang.org/x/sys/unix"
)

// optionBits maps the token list spec §4.9 names to the kernel mount(2)
// flag bits they accept.
var optionBits = map[string]uintptr{
	"ro":           unix.MS_RDONLY,
	"dirsync":      unix.MS_DIRSYNC,
	"mand":         unix.MS_MANDLOCK,
	"noatime":      unix.MS_NOATIME,
	"nodev":        unix.MS_NODEV,
	"nodiratime":   unix.MS_NODIRATIME,
	"noexec":       unix.MS_NOEXEC,
	"nosuid":       unix.MS_NOSUID,
	"relatime":     unix.MS_RELATIME,
	"silent":       unix.MS_SILENT,
	"strictatime":  unix.MS_STRICTATIME,
	"sync":         unix.MS_SYNCHRONOUS,
}

// ParseOptionBitmask maps a comma-separated option token list to the
// kernel mount flag bitmask it corresponds to; unrecognized tokens
// (filesystem-specific ones like "discard") are ignored here and must be
// passed through as the mount(2) data string by the caller.
func ParseOptionBitmask(tokenList string) uintptr {
	var mask uintptr
	for _, tok := range strings.Split(tokenList, ",") {
		if bit, ok := optionBits[strings.TrimSpace(tok)]; ok {
			mask |= bit
		}
	}
	return mask
}

// FormatOptionBitmask renders mask back to its canonical token list, in
// the same order as spec §4.9's token list, for display purposes.
func FormatOptionBitmask(mask uintptr) string {
	order := []string{"ro", "dirsync", "mand", "noatime", "nodev", "nodiratime",
		"noexec", "nosuid", "relatime", "silent", "strictatime", "sync"}
	var toks []string
	for _, tok := range order {
		if mask&optionBits[tok] != 0 {
			toks = append(toks, tok)
		}
	}
	return strings.Join(toks, ",")
}
