// Package idcode decodes the IEEE 1149.1 device identification register:
// a 4-bit version, 16-bit part number and 11-bit JEP106 manufacturer code
// above a mandatory 1 in bit zero.
package idcode

import "fmt"

// IDCode is a decoded identification register.
type IDCode struct {
	Raw     uint32
	Version uint8  // bits 31:28
	Part    uint16 // bits 27:12
	Vendor  uint16 // bits 11:1, JEP106 identity code
}

// Parse decodes a raw 32-bit register value. ok is false when bit zero is
// clear: the TAP has no IDCODE and the capture came through BYPASS.
func Parse(raw uint32) (id IDCode, ok bool) {
	if raw&1 == 0 {
		return IDCode{Raw: raw}, false
	}
	return IDCode{
		Raw:     raw,
		Version: uint8(raw >> 28),
		Part:    uint16(raw >> 12),
		Vendor:  uint16(raw >> 1 & 0x7FF),
	}, true
}

// VendorName resolves the JEP106 manufacturer code to a readable name.
func (id IDCode) VendorName() string {
	if name, ok := jep106[id.Vendor]; ok {
		return name
	}
	return fmt.Sprintf("unknown (0x%03X)", id.Vendor)
}

func (id IDCode) String() string {
	return fmt.Sprintf("0x%08X %s part 0x%04X rev %d",
		id.Raw, id.VendorName(), id.Part, id.Version)
}
