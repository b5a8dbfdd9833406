package comms

// BuildInitCommand creates the post-connect handshake payload.
func BuildInitCommand() []byte {
	return []byte{CmdInit, 0x01}
}

// BuildBatteryRequestCommand creates the battery/firmware request. The
// response arrives as a 0x2C frame carrying both arms' levels.
func BuildBatteryRequestCommand() []byte {
	return []byte{CmdBatteryInfo, 0x01}
}

// BuildCaseBatteryRequestCommand creates the legacy case-battery-only
// request.
func BuildCaseBatteryRequestCommand() []byte {
	return []byte{CmdDeviceEvent, 0x0F}
}

// BuildManualModeCommand creates the command to enter paged display mode.
func BuildManualModeCommand() []byte {
	return []byte{CmdDeviceEvent, 0x01}
}

// BuildExitCommand creates the command to return to the dashboard.
func BuildExitCommand() []byte {
	return []byte{CmdDeviceEvent, 0x00}
}

// BuildClearCommand creates the single-byte clear-screen command.
func BuildClearCommand() []byte {
	return []byte{CmdClear}
}

// BuildMicControlCommand creates the mic enable/disable command.
func BuildMicControlCommand(enable bool) []byte {
	if enable {
		return []byte{CmdMicControl, 0x01}
	}
	return []byte{CmdMicControl, 0x00}
}

// BuildTextMessage encodes a single-shot text display command:
//
//	0x4E {seq} {total pkgs} {current pkg} {flags} {pos lo} {pos hi} {page} {max page} {utf-8 text}
//
// There is no length prefix; the transport's own framing carries the total
// length. Single-shot messages always report one package and page.
func BuildTextMessage(text string, sequenceNumber uint8, replace bool) []byte {
	textBytes := []byte(text)
	packet := make([]byte, 9, 9+len(textBytes))

	packet[0] = CmdText
	packet[1] = sequenceNumber
	packet[2] = 0x01 // total packages
	packet[3] = 0x00 // current package
	if replace {
		packet[4] = TextFlagReplace
	} else {
		packet[4] = TextFlagAppend
	}
	packet[5] = 0x00 // char position low
	packet[6] = 0x00 // char position high
	packet[7] = 0x01 // current page
	packet[8] = 0x01 // max page

	return append(packet, textBytes...)
}
