package daemon

import (
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// VendorIDSystem76 is the USB vendor id of System76 keyboards.
const VendorIDSystem76 = 0x3384

// DeviceInfo describes a detected keyboard.
type DeviceInfo struct {
	Bus         int
	Address     int
	VendorID    uint16
	ProductID   uint16
	Interface   int
	Description string
}

// Key identifies the device for as long as it stays attached.
func (i DeviceInfo) Key() string {
	return fmt.Sprintf("%03d:%03d", i.Bus, i.Address)
}

// Label returns a user-friendly description of the device.
func (i DeviceInfo) Label() string {
	if i.Description != "" {
		return fmt.Sprintf("%s (bus %d address %d)", i.Description, i.Bus, i.Address)
	}
	return fmt.Sprintf("Keyboard %04X:%04X (bus %d address %d)", i.VendorID, i.ProductID, i.Bus, i.Address)
}

// Scanner finds keyboards and opens their HID interface.
type Scanner interface {
	Scan() ([]DeviceInfo, error)
	Open(info DeviceInfo) (HIDDevice, error)
	Close() error
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Interface   int
	Description string
}

var knownKeyboards = []knownUSBDevice{
	{VendorID: VendorIDSystem76, ProductID: 0x0001, Interface: 1, Description: "System76 Launch"},
	{VendorID: VendorIDSystem76, ProductID: 0x0005, Interface: 1, Description: "System76 Launch Lite"},
	{VendorID: VendorIDSystem76, ProductID: 0x0006, Interface: 1, Description: "System76 Launch Heavy"},
	{VendorID: VendorIDSystem76, ProductID: 0x0007, Interface: 1, Description: "System76 Launch 2"},
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (DeviceInfo, bool) {
	for _, known := range knownKeyboards {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return DeviceInfo{
				Bus:         desc.Bus,
				Address:     desc.Address,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
				Interface:   known.Interface,
				Description: known.Description,
			}, true
		}
	}
	return DeviceInfo{}, false
}

// USBScanner enumerates keyboards with libusb.
type USBScanner struct {
	ctx *gousb.Context
}

// NewUSBScanner opens a libusb context. Close releases it.
func NewUSBScanner() *USBScanner {
	return &USBScanner{ctx: gousb.NewContext()}
}

// Scan lists the attached keyboards without opening them.
func (s *USBScanner) Scan() ([]DeviceInfo, error) {
	var results []DeviceInfo
	_, err := s.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if info, ok := classifyUSBDevice(desc); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return results, err
	}
	return results, nil
}

// Open claims the HID interface of a scanned keyboard.
func (s *USBScanner) Open(info DeviceInfo) (HIDDevice, error) {
	devs, err := s.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == info.Bus && desc.Address == info.Address &&
			uint16(desc.Vendor) == info.VendorID && uint16(desc.Product) == info.ProductID
	})
	if err != nil {
		for _, d := range devs {
			d.Close()
		}
		return nil, fmt.Errorf("open %s: %w", info.Label(), err)
	}
	if len(devs) == 0 {
		return nil, fmt.Errorf("open %s: %w", info.Label(), gousb.ErrorNoDevice)
	}
	for _, extra := range devs[1:] {
		extra.Close()
	}

	hid, err := openHID(devs[0], info.Interface)
	if err != nil {
		devs[0].Close()
		return nil, fmt.Errorf("open %s: %w", info.Label(), err)
	}
	return hid, nil
}

// Close releases the libusb context.
func (s *USBScanner) Close() error {
	return s.ctx.Close()
}
