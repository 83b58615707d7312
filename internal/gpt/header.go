// Package gpt implements the primary+backup GUID Partition Table engine:
// on-disk header/entry layout, CRC maintenance, and the create/add/delete/
// rename mutation surface (spec §4.3).
package gpt

import (
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/dankamongmen/growlight/internal/gptguid"
)

const (
	signature  = "EFI PART"
	revision   = 0x00010000
	headerSize = 92
	entrySize  = 128
	minEntries = 128

	// Error kinds (spec §4.3) are declared in errors.go.
)

// Header is the 92-byte GPT header (spec §4.3 header layout).
type Header struct {
	ThisLBA        uint64
	AltLBA         uint64
	FirstUsable    uint64
	LastUsable     uint64
	DiskGUID       gptguid.GUID
	PartArrayLBA   uint64
	PartCount      uint32
	PartSize       uint32
	PartArrayCRC32 uint32
	HeaderCRC32    uint32
}

// encode serializes h into a full logical-sector-sized buffer (trailing
// bytes beyond the 92-byte header are zero, spec §4.3 "trailing bytes of
// the sector are zero"). The CRC field is written as given; callers
// recompute it via refreshCRC before writing to disk.
func (h Header) encode(sectorSize int) []byte {
	buf := make([]byte, sectorSize)
	copy(buf[0:8], signature)
	binary.LittleEndian.PutUint32(buf[8:12], revision)
	binary.LittleEndian.PutUint32(buf[12:16], headerSize)
	binary.LittleEndian.PutUint32(buf[16:20], h.HeaderCRC32)
	// buf[20:24] reserved, already zero
	binary.LittleEndian.PutUint64(buf[24:32], h.ThisLBA)
	binary.LittleEndian.PutUint64(buf[32:40], h.AltLBA)
	binary.LittleEndian.PutUint64(buf[40:48], h.FirstUsable)
	binary.LittleEndian.PutUint64(buf[48:56], h.LastUsable)
	copy(buf[56:72], h.DiskGUID[:])
	binary.LittleEndian.PutUint64(buf[72:80], h.PartArrayLBA)
	binary.LittleEndian.PutUint32(buf[80:84], h.PartCount)
	binary.LittleEndian.PutUint32(buf[84:88], h.PartSize)
	binary.LittleEndian.PutUint32(buf[88:92], h.PartArrayCRC32)
	return buf
}

// decodeHeader parses a logical-sector-sized buffer into a Header,
// validating the signature, revision and header size fields.
func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, xerrors.Errorf("%w: buffer shorter than header", ErrCorrupt)
	}
	if string(buf[0:8]) != signature {
		return Header{}, xerrors.Errorf("%w: bad signature", ErrCorrupt)
	}
	if binary.LittleEndian.Uint32(buf[8:12]) != revision {
		return Header{}, xerrors.Errorf("%w: unsupported revision", ErrCorrupt)
	}
	if binary.LittleEndian.Uint32(buf[12:16]) != headerSize {
		return Header{}, xerrors.Errorf("%w: unexpected header size", ErrCorrupt)
	}
	var h Header
	h.HeaderCRC32 = binary.LittleEndian.Uint32(buf[16:20])
	h.ThisLBA = binary.LittleEndian.Uint64(buf[24:32])
	h.AltLBA = binary.LittleEndian.Uint64(buf[32:40])
	h.FirstUsable = binary.LittleEndian.Uint64(buf[40:48])
	h.LastUsable = binary.LittleEndian.Uint64(buf[48:56])
	copy(h.DiskGUID[:], buf[56:72])
	h.PartArrayLBA = binary.LittleEndian.Uint64(buf[72:80])
	h.PartCount = binary.LittleEndian.Uint32(buf[80:84])
	h.PartSize = binary.LittleEndian.Uint32(buf[84:88])
	h.PartArrayCRC32 = binary.LittleEndian.Uint32(buf[88:92])

	check := h
	check.HeaderCRC32 = 0
	if check.crcBytes() != h.HeaderCRC32 {
		return Header{}, xerrors.Errorf("%w: header crc mismatch", ErrCorrupt)
	}
	return h, nil
}

// crcBytes computes CRC-32 over exactly the 92-byte header with the CRC
// field zeroed, per the UEFI definition (the CRC always covers HeaderSize
// bytes, never the rest of the logical sector).
func (h Header) crcBytes() uint32 {
	h.HeaderCRC32 = 0
	return gptguid.Checksum(h.encode(headerSize))
}

// refreshCRC recomputes HeaderCRC32.
func (h *Header) refreshCRC() {
	h.HeaderCRC32 = h.crcBytes()
}
