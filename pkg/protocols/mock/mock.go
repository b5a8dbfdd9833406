// Package mock provides a simulated single-unit glasses protocol and an
// in-memory transport. It is intended for development and testing when
// physical glasses are not available.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/pickline/glasspick"
)

// This init function registers the mock protocol with the central registry.
// To use it, you must explicitly import this package.
func init() {
	glasspick.Register(New())
}

// This line is the compile-time check. It will fail to compile if
// *Protocol ever stops satisfying the glasspick.Protocol interface.
var _ glasspick.Protocol = (*Protocol)(nil)

var (
	mockServiceUUID, _ = bluetooth.ParseUUID("0000feed-0000-1000-8000-00805f9b34fb")
	mockWriteUUID, _   = bluetooth.ParseUUID("0000fee1-0000-1000-8000-00805f9b34fb")
	mockNotifyUUID, _  = bluetooth.ParseUUID("0000fee2-0000-1000-8000-00805f9b34fb")
)

// Protocol is a single-unit device: one peripheral carries both displays,
// so a single arm suffices for a full connection.
type Protocol struct{}

// New returns the mock protocol.
func New() *Protocol { return &Protocol{} }

func (*Protocol) Name() string { return "Mock Glasses" }

func (*Protocol) ServiceUUID() bluetooth.UUID              { return mockServiceUUID }
func (*Protocol) WriteCharacteristicUUID() bluetooth.UUID  { return mockWriteUUID }
func (*Protocol) NotifyCharacteristicUUID() bluetooth.UUID { return mockNotifyUUID }

func (*Protocol) IsCompatibleDevice(deviceName string) bool {
	return strings.HasPrefix(strings.ToUpper(deviceName), "MOCK")
}

func (*Protocol) RequiresDualArm() bool { return false }

// ArmFromDeviceName maps every compatible mock device to the left slot;
// single-unit hardware has no side distinction to preserve.
func (p *Protocol) ArmFromDeviceName(deviceName string) glasspick.ArmSide {
	if !p.IsCompatibleDevice(deviceName) {
		return glasspick.ArmUndetermined
	}
	return glasspick.ArmLeft
}

func (*Protocol) InitCommand() []byte           { return []byte{0xA0, 0x01} }
func (*Protocol) BatteryRequestCommand() []byte { return []byte{0xA0, 0x02} }
func (*Protocol) ManualModeCommand() []byte     { return []byte{0xA0, 0x03} }
func (*Protocol) ExitCommand() []byte           { return []byte{0xA0, 0x04} }

func (*Protocol) TextMessage(text string, sequenceNumber uint8, _ bool) []byte {
	return append([]byte{0xA1, sequenceNumber}, []byte(text)...)
}

// ParseIncomingData understands a single frame shape: 0xB0 {percentage}
// reports battery, anything else with a known class is unknown.
func (*Protocol) ParseIncomingData(data []byte) glasspick.Event {
	if len(data) < 2 {
		return nil
	}
	if data[0] == 0xB0 {
		return glasspick.GlassesBattery{Percentage: int(data[1])}
	}
	return glasspick.UnknownEvent{
		EventType: data[0],
		Raw:       append([]byte(nil), data...),
	}
}

// --- In-memory transport ---

// Transport is an in-memory glasspick.Transport and ScanTransport. Tests
// and the simulator inject peripherals, observe writes, and push
// notification payloads.
type Transport struct {
	mu           sync.Mutex
	peripherals  []glasspick.FoundDevice
	preconnected []glasspick.FoundDevice
	links        map[string]*Link
	connectErrs  map[string][]error
	onDisconnect glasspick.DisconnectHandler
	advertise    chan glasspick.FoundDevice
}

// NewTransport returns an empty in-memory transport.
func NewTransport() *Transport {
	return &Transport{
		links:       make(map[string]*Link),
		connectErrs: make(map[string][]error),
		advertise:   make(chan glasspick.FoundDevice, 16),
	}
}

// AddPeripheral makes a device discoverable by Scan.
func (t *Transport) AddPeripheral(dev glasspick.FoundDevice) {
	t.mu.Lock()
	t.peripherals = append(t.peripherals, dev)
	t.mu.Unlock()
	select {
	case t.advertise <- dev:
	default:
	}
}

// AddPreconnected reports a device as already connected at the OS level.
func (t *Transport) AddPreconnected(dev glasspick.FoundDevice) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.preconnected = append(t.preconnected, dev)
}

// FailConnect queues errors to be returned by the next Connect calls for
// the given device ID, in order.
func (t *Transport) FailConnect(deviceID string, errs ...error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connectErrs[deviceID] = append(t.connectErrs[deviceID], errs...)
}

// Link returns the live link for a device ID, if connected.
func (t *Transport) Link(deviceID string) (*Link, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.links[deviceID]
	return l, ok
}

// DropLink simulates an unsolicited transport-level disconnect.
func (t *Transport) DropLink(deviceID string) {
	t.mu.Lock()
	delete(t.links, deviceID)
	fn := t.onDisconnect
	t.mu.Unlock()
	if fn != nil {
		fn(deviceID)
	}
}

// Connect implements glasspick.Transport.
func (t *Transport) Connect(_ context.Context, dev glasspick.FoundDevice, _ glasspick.GATTProfile, onNotify glasspick.NotificationHandler) (glasspick.Link, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if errs := t.connectErrs[dev.ID]; len(errs) > 0 {
		err := errs[0]
		t.connectErrs[dev.ID] = errs[1:]
		return nil, err
	}

	link := &Link{transport: t, deviceID: dev.ID, notify: onNotify}
	t.links[dev.ID] = link
	return link, nil
}

// ConnectedPeripherals implements glasspick.Transport.
func (t *Transport) ConnectedPeripherals(glasspick.GATTProfile) []glasspick.FoundDevice {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]glasspick.FoundDevice, len(t.preconnected))
	copy(out, t.preconnected)
	return out
}

// SetDisconnectHandler implements glasspick.Transport.
func (t *Transport) SetDisconnectHandler(fn glasspick.DisconnectHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDisconnect = fn
}

// Scan implements glasspick.ScanTransport: it replays known peripherals
// then streams injected ones until ctx is done.
func (t *Transport) Scan(ctx context.Context, fn func(glasspick.FoundDevice)) error {
	t.mu.Lock()
	backlog := make([]glasspick.FoundDevice, len(t.peripherals))
	copy(backlog, t.peripherals)
	t.mu.Unlock()

	for _, dev := range backlog {
		fn(dev)
	}
	for {
		select {
		case dev := <-t.advertise:
			fn(dev)
		case <-ctx.Done():
			return nil
		}
	}
}

// Link is one in-memory connection.
type Link struct {
	transport *Transport
	deviceID  string
	notify    glasspick.NotificationHandler

	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	closed   bool
}

// Write implements glasspick.Link, recording the payload.
func (l *Link) Write(data []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, fmt.Errorf("link to %s is closed", l.deviceID)
	}
	if l.writeErr != nil {
		return 0, l.writeErr
	}
	l.writes = append(l.writes, append([]byte(nil), data...))
	return len(data), nil
}

// Disconnect implements glasspick.Link.
func (l *Link) Disconnect() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.transport.mu.Lock()
	delete(l.transport.links, l.deviceID)
	l.transport.mu.Unlock()
	return nil
}

// Writes returns every payload written so far.
func (l *Link) Writes() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.writes))
	copy(out, l.writes)
	return out
}

// SetWriteError makes subsequent writes fail.
func (l *Link) SetWriteError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeErr = err
}

// Notify pushes a raw notification payload as if it came from the device.
func (l *Link) Notify(data []byte) {
	if l.notify != nil {
		l.notify(data)
	}
}
