// Package efiboot manipulates EFI BootOrder/BootXXXX variables for the
// `uefiboot` CLI verb (spec §6 "Persisted outputs... optional BIOS boot
// code written to MBR code area" has a UEFI analogue: growlight also
// manages the ESP's boot entries on EFI systems).
package efiboot

import (
	"bytes"
	"encoding/binary"
	"fmt"

	efi "github.com/canonical/go-efilib"
	"golang.org/x/xerrors"
)

// bootOrderName is the well-known EFI_GLOBAL_VARIABLE "BootOrder" entry.
const bootOrderName = "BootOrder"

// VariableAccess is the narrow subset of go-efilib's package-level
// variable API growlight needs, kept as an interface so tests run
// without real EFI variable access (most test hosts aren't EFI-booted).
type VariableAccess interface {
	ReadVariable(name string, guid efi.GUID) ([]byte, efi.VariableAttributes, error)
	WriteVariable(name string, guid efi.GUID, attrs efi.VariableAttributes, data []byte) error
	ListVariables() ([]efi.VariableDescriptor, error)
}

// realVariableAccess delegates to go-efilib's package-level functions,
// which read/write the real efivarfs.
type realVariableAccess struct{}

func (realVariableAccess) ReadVariable(name string, guid efi.GUID) ([]byte, efi.VariableAttributes, error) {
	return efi.ReadVariable(name, guid)
}
func (realVariableAccess) WriteVariable(name string, guid efi.GUID, attrs efi.VariableAttributes, data []byte) error {
	return efi.WriteVariable(name, guid, attrs, data)
}
func (realVariableAccess) ListVariables() ([]efi.VariableDescriptor, error) {
	return efi.ListVariables()
}

// NewRealVariableAccess returns a VariableAccess backed by the real
// EFI variable store.
func NewRealVariableAccess() VariableAccess { return realVariableAccess{} }

// BootOrder reads the current BootOrder variable as a list of BootXXXX
// indices, in boot-attempt order.
func BootOrder(v VariableAccess) ([]uint16, error) {
	data, _, err := v.ReadVariable(bootOrderName, efi.GlobalVariable)
	if err != nil {
		return nil, xerrors.Errorf("read BootOrder: %w", err)
	}
	if len(data)%2 != 0 {
		return nil, xerrors.Errorf("BootOrder has odd length %d", len(data))
	}
	order := make([]uint16, len(data)/2)
	for i := range order {
		order[i] = binary.LittleEndian.Uint16(data[i*2 : i*2+2])
	}
	return order, nil
}

// SetBootOrder writes a new BootOrder.
func SetBootOrder(v VariableAccess, order []uint16) error {
	data := make([]byte, len(order)*2)
	for i, idx := range order {
		binary.LittleEndian.PutUint16(data[i*2:i*2+2], idx)
	}
	attrs := efi.AttributeNonVolatile | efi.AttributeBootserviceAccess | efi.AttributeRuntimeAccess
	if err := v.WriteVariable(bootOrderName, efi.GlobalVariable, attrs, data); err != nil {
		return xerrors.Errorf("write BootOrder: %w", err)
	}
	return nil
}

// BootEntryName formats the BootXXXX variable name for index.
func BootEntryName(index uint16) string {
	return fmt.Sprintf("Boot%04X", index)
}

// LoadOption describes one BootXXXX entry's decoded load option, the
// subset growlight's uefiboot verb lists.
type LoadOption struct {
	Index       uint16
	Description string
	Active      bool
}

// ListBootEntries decodes every BootXXXX variable named in BootOrder.
func ListBootEntries(v VariableAccess, order []uint16) ([]LoadOption, error) {
	out := make([]LoadOption, 0, len(order))
	for _, idx := range order {
		data, _, err := v.ReadVariable(BootEntryName(idx), efi.GlobalVariable)
		if err != nil {
			continue // a stale BootOrder entry with no backing variable is skipped, not fatal
		}
		opt, err := efi.ReadLoadOption(bytes.NewReader(data))
		if err != nil {
			continue
		}
		out = append(out, LoadOption{
			Index:       idx,
			Description: opt.Description,
			Active:      opt.Attributes&efi.LoadOptionActive != 0,
		})
	}
	return out, nil
}
