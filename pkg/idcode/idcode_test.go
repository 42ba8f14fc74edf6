package idcode

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     uint32
		version uint8
		part    uint16
		vendor  string
	}{
		{"ARM Cortex-M4 TAP", 0x4BA00477, 4, 0xBA00, "ARM"},
		{"STM32F4 boundary TAP", 0x06413041, 0, 0x6413, "STMicroelectronics"},
		{"XC7 series", 0x13631093, 1, 0x3631, "Xilinx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := Parse(tt.raw)
			if !ok {
				t.Fatalf("Parse(%08x) rejected a valid IDCODE", tt.raw)
			}
			if id.Version != tt.version {
				t.Errorf("Version = %d, want %d", id.Version, tt.version)
			}
			if id.Part != tt.part {
				t.Errorf("Part = %04X, want %04X", id.Part, tt.part)
			}
			if got := id.VendorName(); got != tt.vendor {
				t.Errorf("VendorName() = %q, want %q", got, tt.vendor)
			}
		})
	}
}

func TestParseBypass(t *testing.T) {
	if _, ok := Parse(0xFFFFFFFE); ok {
		t.Error("Parse accepted a capture with bit zero clear")
	}
}

func TestVendorNameUnknown(t *testing.T) {
	id, _ := Parse(0x00000FFF)
	if got := id.VendorName(); got != "unknown (0x7FF)" {
		t.Errorf("VendorName() = %q", got)
	}
}
