package gpt

import (
	"encoding/binary"

	"github.com/dankamongmen/growlight/internal/gptguid"
)

// Entry is one 128-byte GPT partition entry (spec §4.3 entry layout).
type Entry struct {
	TypeGUID  gptguid.GUID
	PartGUID  gptguid.GUID
	FirstLBA  uint64
	LastLBA   uint64
	Attrs     uint64
	NameField [2 * gptguid.NameUnits]byte
}

// Empty reports whether the entry is unused (all-zero type GUID).
func (e Entry) Empty() bool { return e.TypeGUID.Zero() }

// Name decodes the entry's UTF-16LE name field.
func (e Entry) Name() (string, error) {
	return gptguid.DecodeName(e.NameField[:])
}

// SetName encodes name into the entry's name field, truncating to
// gptguid.NameUnits code units if necessary (spec §8 scenario 4).
func (e *Entry) SetName(name string) error {
	field, err := gptguid.EncodeName(name)
	if err != nil {
		return err
	}
	copy(e.NameField[:], field)
	return nil
}

func (e Entry) encode() []byte {
	buf := make([]byte, entrySize)
	copy(buf[0:16], e.TypeGUID[:])
	copy(buf[16:32], e.PartGUID[:])
	binary.LittleEndian.PutUint64(buf[32:40], e.FirstLBA)
	binary.LittleEndian.PutUint64(buf[40:48], e.LastLBA)
	binary.LittleEndian.PutUint64(buf[48:56], e.Attrs)
	copy(buf[56:128], e.NameField[:])
	return buf
}

func decodeEntry(buf []byte) Entry {
	var e Entry
	copy(e.TypeGUID[:], buf[0:16])
	copy(e.PartGUID[:], buf[16:32])
	e.FirstLBA = binary.LittleEndian.Uint64(buf[32:40])
	e.LastLBA = binary.LittleEndian.Uint64(buf[40:48])
	e.Attrs = binary.LittleEndian.Uint64(buf[48:56])
	copy(e.NameField[:], buf[56:128])
	return e
}

// encodeArray serializes entries into a part_count*part_size byte buffer.
func encodeArray(entries []Entry) []byte {
	buf := make([]byte, len(entries)*entrySize)
	for i, e := range entries {
		copy(buf[i*entrySize:(i+1)*entrySize], e.encode())
	}
	return buf
}

func decodeArray(buf []byte, count int) []Entry {
	entries := make([]Entry, count)
	for i := range entries {
		entries[i] = decodeEntry(buf[i*entrySize : (i+1)*entrySize])
	}
	return entries
}
