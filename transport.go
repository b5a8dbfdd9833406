package glasspick

import (
	"context"

	"tinygo.org/x/bluetooth"
)

// GATTProfile names the service and characteristics a protocol speaks over.
type GATTProfile struct {
	Service bluetooth.UUID
	Write   bluetooth.UUID
	Notify  bluetooth.UUID
}

// NotificationHandler receives raw notification payloads from a peripheral.
type NotificationHandler func(data []byte)

// DisconnectHandler is invoked with the peripheral ID when the transport
// reports a link dropped without an explicit Disconnect call.
type DisconnectHandler func(deviceID string)

// Link is one established connection to a peripheral with its write
// characteristic resolved.
type Link interface {
	// Write sends a payload to the peripheral's write characteristic.
	// Writes to a single link are delivered in submission order.
	Write(data []byte) (int, error)
	// Disconnect releases the transport connection.
	Disconnect() error
}

// Transport abstracts the BLE stack so the connection state machine can be
// driven without radio hardware.
type Transport interface {
	// Connect establishes a link: transport-level connect, service and
	// characteristic discovery against the profile, and notification
	// subscription (when a notify characteristic is present) before
	// returning. A missing service or write characteristic fails with an
	// error listing the UUIDs that were discovered instead.
	Connect(ctx context.Context, device FoundDevice, profile GATTProfile, onNotify NotificationHandler) (Link, error)

	// ConnectedPeripherals reports peripherals the transport layer already
	// holds a connection to, e.g. from OS-level pairing state. Transports
	// that cannot enumerate these return nil.
	ConnectedPeripherals(profile GATTProfile) []FoundDevice

	// SetDisconnectHandler installs the callback for unsolicited
	// transport-level disconnects.
	SetDisconnectHandler(fn DisconnectHandler)
}

// ScanTransport is the discovery side of the BLE stack.
type ScanTransport interface {
	// Scan streams advertising peripherals to fn until ctx is done. No
	// service filter is applied; the hardware does not reliably advertise
	// the target service.
	Scan(ctx context.Context, fn func(FoundDevice)) error
}
