package probe

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// BridgeKind categorizes probe bridge families.
type BridgeKind string

const (
	BridgeKindSerialSWD BridgeKind = "swd-serial"
	BridgeKindGPIO      BridgeKind = "gpio"
	BridgeKindUnknown   BridgeKind = "unknown"
)

// BridgeInfo describes a detected probe bridge.
type BridgeInfo struct {
	Kind        BridgeKind
	Description string
	VendorID    uint16
	ProductID   uint16
}

// Label returns a user-friendly description for the bridge.
func (b BridgeInfo) Label() string {
	if b.Description != "" {
		return b.Description
	}
	return fmt.Sprintf("Bridge %04X:%04X", b.VendorID, b.ProductID)
}

// Discover enumerates connected USB devices matching known serial-bridge
// VID/PID pairs. The on-board GPIO header entry is always included so the
// JTAG path can be exercised without a USB bridge attached.
func Discover(ctx context.Context) ([]BridgeInfo, error) {
	var results []BridgeInfo
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if info, ok := classifyUSBDevice(desc); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}

	results = append(results, BridgeInfo{
		Kind:        BridgeKindGPIO,
		Description: "GPIO header (on-board pins)",
	})

	return results, nil
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (BridgeInfo, bool) {
	for _, known := range knownSerialBridges {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return BridgeInfo{
				Kind:        BridgeKindSerialSWD,
				Description: known.Description,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
			}, true
		}
	}
	return BridgeInfo{}, false
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

// CDC-ACM adapters known to carry the hex exchange firmware.
var knownSerialBridges = []knownUSBDevice{
	{VendorID: 0x2E8A, ProductID: 0x000A, Description: "Raspberry Pi Pico (CDC bridge)"},
	{VendorID: 0x0483, ProductID: 0x5740, Description: "STM32 virtual COM bridge"},
	{VendorID: 0x1366, ProductID: 0x0105, Description: "SEGGER J-Link CDC"},
}
