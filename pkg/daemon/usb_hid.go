package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

const (
	// HID class request used when a board has no interrupt OUT endpoint.
	hidSetReport     = 0x09
	hidReportOutput  = 0x02
	hidRequestOut    = 0x21
	defaultHIDConfig = 1

	DefaultTimeout = 2 * time.Second
)

// HIDDevice exchanges fixed-size reports with one keyboard.
type HIDDevice interface {
	WriteRead(packet []byte) ([]byte, error)
	Close() error
}

// usbHID talks to the EC HID interface of a keyboard through gousb.
type usbHID struct {
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	intfNum    int
	packetSize int
	timeout    time.Duration
}

// openHID claims interface intfNum of dev. On failure dev is left open for
// the caller to close.
func openHID(dev *gousb.Device, intfNum int) (*usbHID, error) {
	// Not supported on every platform.
	_ = dev.SetAutoDetach(true)

	// Use the active configuration, falling back to the first one
	cfgNum, err := dev.ActiveConfigNum()
	if err != nil || cfgNum == 0 {
		cfgNum = defaultHIDConfig
	}
	cfg, err := dev.Config(cfgNum)
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	// Claim the EC interface
	intf, err := cfg.Interface(intfNum, 0)
	if err != nil {
		cfg.Close()
		return nil, fmt.Errorf("failed to claim interface %d: %w", intfNum, err)
	}

	h := &usbHID{
		dev:        dev,
		cfg:        cfg,
		intf:       intf,
		intfNum:    intfNum,
		packetSize: ECPacketSize,
		timeout:    DefaultTimeout,
	}
	if err := h.findEndpoints(); err != nil {
		intf.Close()
		cfg.Close()
		return nil, err
	}
	return h, nil
}

// findEndpoints opens the interrupt IN endpoint and, when present, the
// interrupt OUT endpoint.
func (h *usbHID) findEndpoints() error {
	var inNum, outNum int
	// Take the first interrupt endpoint in each direction
	for _, ep := range h.intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeInterrupt {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionIn:
			if inNum == 0 {
				inNum = ep.Number
				h.packetSize = ep.MaxPacketSize
			}
		case gousb.EndpointDirectionOut:
			if outNum == 0 {
				outNum = ep.Number
			}
		}
	}

	// Replies always arrive on interrupt IN
	if inNum == 0 {
		return fmt.Errorf("interrupt IN endpoint not found on interface %d", h.intfNum)
	}
	epIn, err := h.intf.InEndpoint(inNum)
	if err != nil {
		return fmt.Errorf("failed to open IN endpoint: %w", err)
	}
	h.epIn = epIn

	if outNum != 0 {
		epOut, err := h.intf.OutEndpoint(outNum)
		if err != nil {
			return fmt.Errorf("failed to open OUT endpoint: %w", err)
		}
		h.epOut = epOut
	}
	// Short endpoints still get full EC packets
	if h.packetSize < ECPacketSize {
		h.packetSize = ECPacketSize
	}
	return nil
}

func (h *usbHID) write(packet []byte) error {
	if h.epOut != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		if _, err := h.epOut.WriteContext(ctx, packet); err != nil {
			return fmt.Errorf("USB write failed: %w", err)
		}
		return nil
	}
	// No OUT endpoint: send the report over the control pipe
	if _, err := h.dev.Control(hidRequestOut, hidSetReport, hidReportOutput<<8, uint16(h.intfNum), packet); err != nil {
		return fmt.Errorf("USB set report failed: %w", err)
	}
	return nil
}

func (h *usbHID) read() ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	buf := make([]byte, h.packetSize)
	n, err := h.epIn.ReadContext(ctx, buf)
	if err != nil {
		return nil, fmt.Errorf("USB read failed: %w", err)
	}
	return buf[:n], nil
}

// WriteRead sends one report and returns the reply.
func (h *usbHID) WriteRead(packet []byte) ([]byte, error) {
	if err := h.write(packet); err != nil {
		return nil, err
	}
	return h.read()
}

// Close releases the interface and the device.
func (h *usbHID) Close() error {
	// Release in reverse order of acquisition
	if h.intf != nil {
		h.intf.Close()
		h.intf = nil
	}
	if h.cfg != nil {
		h.cfg.Close()
		h.cfg = nil
	}
	if h.dev != nil {
		h.dev.Close()
		h.dev = nil
	}
	return nil
}
