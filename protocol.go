package glasspick

import (
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"
)

// ArmSide identifies which temple of a dual-arm pair a peripheral belongs to.
type ArmSide string

const (
	ArmLeft  ArmSide = "left"
	ArmRight ArmSide = "right"
	// ArmUndetermined is returned when a device name carries no side marker.
	// Such peripherals are not connectable.
	ArmUndetermined ArmSide = ""
)

func (s ArmSide) String() string {
	if s == ArmUndetermined {
		return "undetermined"
	}
	return string(s)
}

// Other returns the opposite arm side.
func (s ArmSide) Other() ArmSide {
	switch s {
	case ArmLeft:
		return ArmRight
	case ArmRight:
		return ArmLeft
	default:
		return ArmUndetermined
	}
}

// FoundDevice is an advertising peripheral seen during a scan.
type FoundDevice struct {
	Name    string
	ID      string
	Address bluetooth.Address
	RSSI    int
}

// Protocol is the wire contract for one glasses model. Implementations are
// pure and stateless: they translate between domain messages and byte
// buffers, and classify peripherals by advertised name. Connection handling
// lives in Manager, which is protocol-agnostic.
type Protocol interface {
	// Name is a human-readable model name, e.g. "Even Realities G1".
	Name() string

	// ServiceUUID is the GATT service carrying the command and event
	// characteristics.
	ServiceUUID() bluetooth.UUID
	// WriteCharacteristicUUID is the characteristic commands are written to.
	WriteCharacteristicUUID() bluetooth.UUID
	// NotifyCharacteristicUUID is the characteristic device events arrive on.
	NotifyCharacteristicUUID() bluetooth.UUID

	// IsCompatibleDevice reports whether an advertised name matches this
	// model's naming conventions.
	IsCompatibleDevice(deviceName string) bool
	// RequiresDualArm is true for models shipped as two independent
	// peripherals, one per temple.
	RequiresDualArm() bool
	// ArmFromDeviceName classifies a peripheral as left or right arm from
	// its advertised name. Returns ArmUndetermined when no marker matches.
	ArmFromDeviceName(deviceName string) ArmSide

	// InitCommand is the handshake payload sent right after characteristic
	// discovery.
	InitCommand() []byte
	// BatteryRequestCommand requests a battery reading.
	BatteryRequestCommand() []byte
	// ManualModeCommand enters the paged display mode.
	ManualModeCommand() []byte
	// ExitCommand returns the display to its dashboard.
	ExitCommand() []byte
	// TextMessage encodes a text display command. When replace is true the
	// text replaces the current screen contents; otherwise it is appended.
	TextMessage(text string, sequenceNumber uint8, replace bool) []byte

	// ParseIncomingData decodes one notification payload into an Event.
	// Returns nil for payloads shorter than two bytes and for recognized
	// no-op notifications. It never panics on malformed input; unknown
	// subtypes decode to UnknownEvent so they stay observable.
	ParseIncomingData(data []byte) Event
}

// --- Implementation Registry ---

var (
	registry []Protocol
	regLock  = sync.RWMutex{}
)

// Register makes a protocol implementation available to discovery. Call from
// the init() function of the implementation's package.
func Register(p Protocol) {
	regLock.Lock()
	defer regLock.Unlock()

	for _, existing := range registry {
		if existing.Name() == p.Name() {
			fmt.Printf("warning: protocol %q is being registered twice\n", p.Name())
		}
	}
	registry = append(registry, p)
}

// ProtocolForDevice returns the first registered protocol whose naming
// conventions match the advertised device name.
func ProtocolForDevice(deviceName string) (Protocol, error) {
	regLock.RLock()
	defer regLock.RUnlock()

	for _, p := range registry {
		if p.IsCompatibleDevice(deviceName) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no protocol implementation found for device %q", deviceName)
}

// RegisteredProtocols returns a snapshot of all registered protocols.
func RegisteredProtocols() []Protocol {
	regLock.RLock()
	defer regLock.RUnlock()

	out := make([]Protocol, len(registry))
	copy(out, registry)
	return out
}
