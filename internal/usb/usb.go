// Package usb opens a Conexant processor in USB boot loader mode and
// exchanges 64-byte command packets over its bulk endpoint.
package usb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"

	"github.com/ondrej-zary/cx861xx-flash/internal/protocol"
)

// Vendor is the Conexant USB vendor ID.
const Vendor = gousb.ID(0x0572)

const (
	cmdEndpoint = 1 // single bulk endpoint, used in both directions
	cmdTimeout  = 100 * time.Millisecond
)

// Family describes one supported processor family. The boot loader protocol
// is the same for both, but flash is mapped at different physical addresses.
type Family struct {
	Name    string
	Product gousb.ID

	// FlashBase is the physical address where external flash is mapped.
	FlashBase uint32

	// FlashEnable is the I/O register that must be written with 1 to map
	// the flash, or 0 if flash is always accessible.
	FlashEnable uint32
}

// Families lists the supported processor families in probe order.
var Families = []Family{
	{Name: "CX861xx", Product: 0xCAFC, FlashBase: 0x04000000, FlashEnable: 0x00600004},
	{Name: "CX82xxx", Product: 0xCAFD, FlashBase: 0x00400000},
}

// ErrNoDevice is returned by Open when no board in USB boot mode is present.
var ErrNoDevice = errors.New("no device in USB boot mode found")

// ClaimError indicates the device was found but its interface could not be
// claimed (typically it is bound to another driver or already in use).
type ClaimError struct {
	Err error
}

func (e *ClaimError) Error() string {
	return "unable to claim interface: " + e.Err.Error()
}

func (e *ClaimError) Unwrap() error {
	return e.Err
}

// TransportError indicates a failed packet exchange with the boot loader.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "usb: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Device is an open boot loader device. It implements the packet transport
// used by the memory access layer.
type Device struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	in   *gousb.InEndpoint
	out  *gousb.OutEndpoint

	Family  Family
	Bus     int
	Address int
}

// Open finds the first board in USB boot mode, claims its interface and
// returns an open device. The matched product ID selects the family.
func Open() (*Device, error) {
	ctx := gousb.NewContext()
	for _, fam := range Families {
		dev, err := ctx.OpenDeviceWithVIDPID(Vendor, fam.Product)
		if err != nil {
			ctx.Close()
			return nil, &TransportError{Op: "open", Err: err}
		}
		if dev == nil {
			continue
		}
		d, err := claim(ctx, dev, fam)
		if err != nil {
			dev.Close()
			ctx.Close()
			return nil, err
		}
		return d, nil
	}
	ctx.Close()
	return nil, ErrNoDevice
}

func claim(ctx *gousb.Context, dev *gousb.Device, fam Family) (*Device, error) {
	dev.SetAutoDetach(true)

	cfg, err := dev.Config(1)
	if err != nil {
		return nil, &ClaimError{Err: err}
	}
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		return nil, &ClaimError{Err: err}
	}
	in, err := intf.InEndpoint(cmdEndpoint)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, &ClaimError{Err: err}
	}
	out, err := intf.OutEndpoint(cmdEndpoint)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, &ClaimError{Err: err}
	}

	return &Device{
		ctx:     ctx,
		dev:     dev,
		cfg:     cfg,
		intf:    intf,
		in:      in,
		out:     out,
		Family:  fam,
		Bus:     dev.Desc.Bus,
		Address: dev.Desc.Address,
	}, nil
}

// Close releases the interface and closes the device.
func (d *Device) Close() error {
	d.intf.Close()
	d.cfg.Close()
	d.dev.Close()
	return d.ctx.Close()
}

// Send transmits one request packet. There are no retries; a failed or
// timed-out transfer aborts the current memory operation.
func (d *Device) Send(p *protocol.Packet) error {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	if _, err := d.out.WriteContext(ctx, p.Encode()); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

// Receive reads one response packet from the boot loader.
func (d *Device) Receive() (*protocol.Packet, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	buf := make([]byte, protocol.PacketSize)
	n, err := d.in.ReadContext(ctx, buf)
	if err != nil {
		return nil, &TransportError{Op: "receive", Err: err}
	}
	p, err := protocol.Decode(buf[:n])
	if err != nil {
		return nil, &TransportError{Op: "receive", Err: err}
	}
	return p, nil
}

// Info describes one board in USB boot mode found on the bus.
type Info struct {
	Family  string
	Bus     int
	Address int
}

func (i Info) String() string {
	return fmt.Sprintf("%s at bus %d, address %d", i.Family, i.Bus, i.Address)
}

// List enumerates all boards in USB boot mode without claiming them.
func List() ([]Info, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var found []Info
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor != Vendor {
			return false
		}
		for _, fam := range Families {
			if desc.Product == fam.Product {
				found = append(found, Info{Family: fam.Name, Bus: desc.Bus, Address: desc.Address})
				break
			}
		}
		return false
	})
	for _, dev := range devs {
		dev.Close()
	}
	if err != nil {
		return nil, &TransportError{Op: "list", Err: err}
	}
	return found, nil
}
