package transport

import (
	"fmt"

	"github.com/gotmc/libusb"
)

// USBDevice is the minimal surface an engine needs from a USB instrument:
// vendor control requests, bulk data transfer, and interface claim/release.
// Kept narrow in the style of SerialPort, and of the example pack's
// DeviceHandleInterface, so engines never import gotmc/libusb directly.
type USBDevice interface {
	// ControlTransfer issues a vendor/device control request. requestType follows
	// the libusb RequestType convention (EndpointDirectionOut == 0 for
	// host-to-device); data is both input (for OUT transfers) and, on
	// IN transfers, filled with the device's reply up to len(data).
	ControlTransfer(requestType uint8, request uint8, value, index uint16, data []byte, timeoutMs int) (int, error)

	// BulkTransfer moves data to (OUT endpoints) or from (IN endpoints)
	// endpoint. It returns the number of bytes actually transferred.
	BulkTransfer(endpoint uint8, data []byte, timeoutMs int) (int, error)

	// ClaimInterface/ReleaseInterface bracket exclusive access to iface.
	ClaimInterface(iface int) error
	ReleaseInterface(iface int) error

	// VendorProduct reports the descriptor's VendorID/ProductID, as read
	// at open time.
	VendorProduct() (vendorID, productID uint16)

	Close() error
}

// Endpoint direction/transfer-type bits, per the USB 2.0 spec (libusb
// exposes these as RequestType/Recipient constants; we keep our own
// narrow aliases so callers don't need the libusb package import).
const (
	EndpointOut       uint8 = 0x00
	EndpointIn        uint8 = 0x80
	RequestTypeVendor uint8 = 0x40 // vendor | host-to-device
)

// usbAdapter wraps a gotmc/libusb device handle to satisfy USBDevice.
type usbAdapter struct {
	ctx      *libusb.Context
	dev      *libusb.Device
	dh       *libusb.DeviceHandle
	vendorID uint16
	productID uint16
}

// OpenUSB opens the first device matching vendorID/productID and claims
// iface. The caller must Close the returned USBDevice when done; Close
// also releases the underlying libusb context.
func OpenUSB(vendorID, productID uint16, iface int) (USBDevice, error) {
	ctx, err := libusb.Init()
	if err != nil {
		return nil, fmt.Errorf("transport: libusb init: %w", err)
	}

	dev, dh, err := ctx.OpenDeviceWithVendorProduct(vendorID, productID)
	if err != nil {
		ctx.Exit()
		return nil, fmt.Errorf("transport: open usb device %04x:%04x: %w", vendorID, productID, err)
	}

	if err := dh.ClaimInterface(iface); err != nil {
		dh.Close()
		ctx.Exit()
		return nil, fmt.Errorf("transport: claim interface %d: %w", iface, err)
	}

	a := &usbAdapter{
		ctx:       ctx,
		dev:       dev,
		dh:        dh,
		vendorID:  vendorID,
		productID: productID,
	}
	return a, nil
}

func (a *usbAdapter) ControlTransfer(requestType, request uint8, value, index uint16, data []byte, timeoutMs int) (int, error) {
	return a.dh.ControlTransfer(requestType, request, value, index, data, len(data), timeoutMs)
}

func (a *usbAdapter) BulkTransfer(endpoint uint8, data []byte, timeoutMs int) (int, error) {
	return a.dh.BulkTransfer(endpoint, data, len(data), timeoutMs)
}

func (a *usbAdapter) ClaimInterface(iface int) error   { return a.dh.ClaimInterface(iface) }
func (a *usbAdapter) ReleaseInterface(iface int) error { return a.dh.ReleaseInterface(iface) }

func (a *usbAdapter) VendorProduct() (uint16, uint16) { return a.vendorID, a.productID }

func (a *usbAdapter) Close() error {
	a.dh.Close()
	a.ctx.Exit()
	return nil
}
