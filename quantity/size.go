// Package quantity holds the byte-count and sector-offset types shared by
// the device graph and every partition-table engine, adapted from the
// teacher's gadget/quantity package (github.com/snapcore/snapd/gadget/quantity).
package quantity

import "fmt"

// Size is a count of bytes.
type Size uint64

const (
	SizeKiB = Size(1 << 10)
	SizeMiB = Size(1 << 20)
	SizeGiB = Size(1 << 30)
	SizeTiB = Size(1 << 40)
	SizePiB = Size(1 << 50)
)

// IECString renders the size using IEC binary units (KiB, MiB, ...),
// matching the teacher's quantity.Size.IECString.
func (s Size) IECString() string {
	return iecString(uint64(s))
}

// Offset is a byte offset from the start of a volume or device.
type Offset uint64

const (
	OffsetKiB = Offset(1 << 10)
	OffsetMiB = Offset(1 << 20)
	OffsetGiB = Offset(1 << 30)
	OffsetTiB = Offset(1 << 40)
	OffsetPiB = Offset(1 << 50)
)

func (o Offset) IECString() string {
	return iecString(uint64(o))
}

func (o Offset) Add(s Size) Offset { return o + Offset(s) }

var units = []struct {
	suffix string
	size   uint64
}{
	{"PiB", 1 << 50},
	{"TiB", 1 << 40},
	{"GiB", 1 << 30},
	{"MiB", 1 << 20},
	{"KiB", 1 << 10},
}

func iecString(v uint64) string {
	if v < 1024 {
		return fmt.Sprintf("%d B", v)
	}
	for _, u := range units {
		if v < u.size {
			continue
		}
		f := float64(v) / float64(u.size)
		if f == float64(int64(f)) {
			return fmt.Sprintf("%d %s", int64(f), u.suffix)
		}
		return fmt.Sprintf("%.2f %s", f, u.suffix)
	}
	return fmt.Sprintf("%d B", v)
}
