// Package g1 implements the glasspick protocol for the Even Realities G1,
// a dual-arm model whose left and right temples advertise as independent
// peripherals.
package g1

import (
	"regexp"
	"strings"

	"tinygo.org/x/bluetooth"

	"github.com/pickline/glasspick"
	"github.com/pickline/glasspick/pkg/protocols/g1/comms"
)

func init() {
	glasspick.Register(New())
}

// This line is the compile-time check. It will fail to compile if
// *Protocol ever stops satisfying the glasspick.Protocol interface.
var _ glasspick.Protocol = (*Protocol)(nil)

// Protocol is the Even Realities G1 wire protocol. It is stateless; a
// single instance serves any number of connections.
type Protocol struct{}

// New returns the G1 protocol.
func New() *Protocol {
	return &Protocol{}
}

func (*Protocol) Name() string { return "Even Realities G1" }

func (*Protocol) ServiceUUID() bluetooth.UUID             { return comms.G1ServiceUUID }
func (*Protocol) WriteCharacteristicUUID() bluetooth.UUID { return comms.G1WriteCharUUID }
func (*Protocol) NotifyCharacteristicUUID() bluetooth.UUID {
	return comms.G1NotifyCharUUID
}

// IsCompatibleDevice matches the G1 naming conventions: the brand name, or
// the per-arm side markers.
func (*Protocol) IsCompatibleDevice(deviceName string) bool {
	name := strings.ToLower(deviceName)
	return strings.Contains(name, "even") ||
		strings.Contains(name, "_l_") ||
		strings.Contains(name, "_r_")
}

// RequiresDualArm is true: the G1 ships as two independent peripherals.
func (*Protocol) RequiresDualArm() bool { return true }

var (
	standaloneL = regexp.MustCompile(`\bl\b`)
	standaloneR = regexp.MustCompile(`\br\b`)
)

// ArmFromDeviceName classifies a peripheral by the side markers in its
// advertised name. Left markers are checked first; a name with no marker is
// undetermined and cannot be connected meaningfully.
func (*Protocol) ArmFromDeviceName(deviceName string) glasspick.ArmSide {
	name := strings.ToLower(deviceName)

	if strings.Contains(name, "_l_") ||
		strings.Contains(name, "_l") ||
		strings.Contains(name, "l_") ||
		strings.Contains(name, "left") ||
		standaloneL.MatchString(name) {
		return glasspick.ArmLeft
	}

	if strings.Contains(name, "_r_") ||
		strings.Contains(name, "_r") ||
		strings.Contains(name, "r_") ||
		strings.Contains(name, "right") ||
		standaloneR.MatchString(name) {
		return glasspick.ArmRight
	}

	return glasspick.ArmUndetermined
}

func (*Protocol) InitCommand() []byte           { return comms.BuildInitCommand() }
func (*Protocol) BatteryRequestCommand() []byte { return comms.BuildBatteryRequestCommand() }
func (*Protocol) ManualModeCommand() []byte     { return comms.BuildManualModeCommand() }
func (*Protocol) ExitCommand() []byte           { return comms.BuildExitCommand() }

// CaseBatteryRequestCommand is the legacy request for the charging case's
// battery level only.
func (*Protocol) CaseBatteryRequestCommand() []byte {
	return comms.BuildCaseBatteryRequestCommand()
}

// ClearCommand wipes both micro-displays.
func (*Protocol) ClearCommand() []byte { return comms.BuildClearCommand() }

// MicControlCommand enables or disables the temple microphone.
func (*Protocol) MicControlCommand(enable bool) []byte {
	return comms.BuildMicControlCommand(enable)
}

func (*Protocol) TextMessage(text string, sequenceNumber uint8, replace bool) []byte {
	return comms.BuildTextMessage(text, sequenceNumber, replace)
}

func (*Protocol) ParseIncomingData(data []byte) glasspick.Event {
	return comms.ParseNotification(data)
}
