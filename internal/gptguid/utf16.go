package gptguid

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/xerrors"
)

// NameUnits is the number of UTF-16LE code units a GPT partition name
// occupies on disk (spec §4.3 entry layout, 72 bytes / 2).
const NameUnits = 36

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeName encodes name as UTF-16LE, truncates it to NameUnits code
// units if longer, and zero-pads the remainder. The returned slice is
// always exactly 2*NameUnits bytes. Truncation drops any trailing U+0000
// terminator when the input exactly fills the field (spec §8 scenario 4).
func EncodeName(name string) ([]byte, error) {
	enc := utf16le.NewEncoder()
	raw, err := enc.Bytes([]byte(name))
	if err != nil {
		return nil, xerrors.Errorf("encode partition name: %w", err)
	}
	out := make([]byte, 2*NameUnits)
	n := len(raw)
	if n > len(out) {
		n = len(out)
	}
	copy(out, raw[:n])
	return out, nil
}

// DecodeName decodes a NameUnits-wide UTF-16LE field, stopping at the
// first U+0000 code unit (or the end of the field if none is present).
func DecodeName(field []byte) (string, error) {
	if len(field) != 2*NameUnits {
		return "", xerrors.Errorf("partition name field must be %d bytes, got %d", 2*NameUnits, len(field))
	}
	end := len(field)
	for i := 0; i+1 < len(field); i += 2 {
		if field[i] == 0 && field[i+1] == 0 {
			end = i
			break
		}
	}
	dec := utf16le.NewDecoder()
	out, err := dec.Bytes(field[:end])
	if err != nil {
		return "", xerrors.Errorf("decode partition name: %w", err)
	}
	return string(out), nil
}
