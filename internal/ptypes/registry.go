// Package ptypes is the partition-type registry: the static table mapping
// a shared 16-bit code to a GPT type GUID, an MBR type byte, and whether
// the type is eligible as a RAID/aggregate component (spec §4.2).
package ptypes

import (
	"strconv"
	"strings"

	"golang.org/x/xerrors"

	"github.com/dankamongmen/growlight/internal/gptguid"
)

// Descriptor describes one partition type known to growlight.
type Descriptor struct {
	Code        uint16
	Name        string
	GPTGUID     gptguid.GUID // zero value means "not representable in GPT"
	MBRByte     byte         // zero means "not representable in MBR"
	Aggregable  bool         // eligible as a RAID/aggregate component
}

// TableKind identifies a partition-table engine.
type TableKind string

const (
	GPT TableKind = "gpt"
	DOS TableKind = "dos"
	APM TableKind = "apm"
	MDP TableKind = "mdp"
)

func mustGUID(s string) gptguid.GUID {
	g, err := gptguid.ParseGUID(s)
	if err != nil {
		panic(err) // static table, programmer error if this ever fails
	}
	return g
}

// table is the static registry. Codes are growlight's own 16-bit space;
// codes below 0x0100 equal their MBR type byte, while codes with a
// nonzero high byte do not encode an MBR byte (MBRByte holds it when the
// type has one, e.g. 0x4200 maps to 0x07).
var table = []Descriptor{
	{Code: 0x0083, Name: "Linux filesystem", GPTGUID: mustGUID("0FC63DAF-8483-4772-8E79-3D69D8477DE4"), MBRByte: 0x83, Aggregable: true},
	{Code: 0x0082, Name: "Linux swap", GPTGUID: mustGUID("0657FD6D-A4AB-43C4-84E5-0933C84B4F4F"), MBRByte: 0x82, Aggregable: false},
	{Code: 0x00FD, Name: "Linux RAID", GPTGUID: mustGUID("A19D880F-05FC-4D3B-A006-743F0F84911E"), MBRByte: 0xFD, Aggregable: true},
	{Code: 0x008E, Name: "Linux LVM", GPTGUID: mustGUID("E6D6D379-F507-44C2-A23C-238F2A3DF928"), MBRByte: 0x8E, Aggregable: true},
	{Code: 0x00EF, Name: "EFI System", GPTGUID: mustGUID("C12A7328-F81F-11D2-BA4B-00A0C93EC93B"), MBRByte: 0xEF, Aggregable: false},
	{Code: 0x00EE, Name: "Protective MBR", GPTGUID: gptguid.GUID{}, MBRByte: 0xEE, Aggregable: false},
	{Code: 0x0000, Name: "Unused", GPTGUID: gptguid.GUID{}, MBRByte: 0x00, Aggregable: false},
	{Code: 0x2100, Name: "BIOS boot", GPTGUID: mustGUID("21686148-6449-6E6F-744E-656564454649"), MBRByte: 0x00, Aggregable: false},
	{Code: 0x4200, Name: "Microsoft basic data", GPTGUID: mustGUID("EBD0A0A2-B9E5-4433-87C0-68B6B72699C7"), MBRByte: 0x07, Aggregable: false},
	{Code: 0x4201, Name: "ZFS member", GPTGUID: mustGUID("6A898CC3-1DD2-11B2-99A6-080020736631"), MBRByte: 0x00, Aggregable: true},
}

// LookupByCode returns the descriptor for code, or false if unknown.
func LookupByCode(code uint16) (Descriptor, bool) {
	for _, d := range table {
		if d.Code == code {
			return d, true
		}
	}
	return Descriptor{}, false
}

// GPTGUIDFor returns the GPT type GUID for code, failing when the
// descriptor carries the zero GUID (not representable in GPT).
func GPTGUIDFor(code uint16) (gptguid.GUID, error) {
	d, ok := LookupByCode(code)
	if !ok {
		return gptguid.GUID{}, xerrors.Errorf("unknown partition type code 0x%04x", code)
	}
	if d.GPTGUID.Zero() {
		return gptguid.GUID{}, xerrors.Errorf("partition type %q has no GPT representation", d.Name)
	}
	return d.GPTGUID, nil
}

// MBRByteFor returns the MBR type byte for code, failing when the
// descriptor carries zero (not representable in MBR).
func MBRByteFor(code uint16) (byte, error) {
	d, ok := LookupByCode(code)
	if !ok {
		return 0, xerrors.Errorf("unknown partition type code 0x%04x", code)
	}
	if d.MBRByte == 0 {
		return 0, xerrors.Errorf("partition type %q has no MBR representation", d.Name)
	}
	return d.MBRByte, nil
}

// LookupByGPTGUID finds the descriptor whose GPT type GUID matches g.
func LookupByGPTGUID(g gptguid.GUID) (Descriptor, bool) {
	if g.Zero() {
		return Descriptor{}, false
	}
	for _, d := range table {
		if d.GPTGUID == g {
			return d, true
		}
	}
	return Descriptor{}, false
}

// LookupByMBRByte finds the descriptor whose MBR type byte matches b.
func LookupByMBRByte(b byte) (Descriptor, bool) {
	if b == 0 {
		return Descriptor{}, false
	}
	for _, d := range table {
		if d.MBRByte == b {
			return d, true
		}
	}
	return Descriptor{}, false
}

// SupportedIn reports whether code can be used in a table of the given
// kind: gpt requires a nonzero GUID, dos requires a nonzero MBR byte, mdp
// is trivially false (an md superblock partition table has no per-type
// codes of its own), anything else is false.
func SupportedIn(kind TableKind, code uint16) bool {
	d, ok := LookupByCode(code)
	if !ok {
		return false
	}
	switch kind {
	case GPT:
		return !d.GPTGUID.Zero()
	case DOS:
		return d.MBRByte != 0
	case MDP:
		return false
	default:
		return false
	}
}

// ParseUserString accepts a hex code ("0x83" / "83"), a bare MBR byte, or
// a formatted GUID, and resolves it to a known code.
func ParseUserString(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if g, err := gptguid.ParseGUID(s); err == nil {
		if d, ok := LookupByGPTGUID(g); ok {
			return d.Code, nil
		}
		return 0, xerrors.Errorf("guid %s does not match any known partition type", s)
	}
	trimmed := strings.TrimPrefix(strings.ToLower(s), "0x")
	if v, err := strconv.ParseUint(trimmed, 16, 16); err == nil {
		if _, ok := LookupByCode(uint16(v)); ok {
			return uint16(v), nil
		}
		if v <= 0xff {
			if d, ok := LookupByMBRByte(byte(v)); ok {
				return d.Code, nil
			}
		}
	}
	return 0, xerrors.Errorf("unrecognized partition type %q", s)
}
