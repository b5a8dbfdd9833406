// Package comms provides wire-level communication details for the Even
// Realities G1.
package comms

import "tinygo.org/x/bluetooth"

// The G1 speaks the Nordic UART service on both arms.
var (
	G1ServiceUUID, _    = bluetooth.ParseUUID("6e400001-b5a3-f393-e0a9-e50e24dcca9e")
	G1WriteCharUUID, _  = bluetooth.ParseUUID("6e400002-b5a3-f393-e0a9-e50e24dcca9e")
	G1NotifyCharUUID, _ = bluetooth.ParseUUID("6e400003-b5a3-f393-e0a9-e50e24dcca9e")
)

// Command class selectors, always the first byte of a frame in either
// direction.
const (
	CmdInit        byte = 0x4D
	CmdText        byte = 0x4E
	CmdBatteryInfo byte = 0x2C
	CmdDeviceEvent byte = 0xF5
	CmdMicData     byte = 0xF1
	CmdMicControl  byte = 0x0E
	CmdClear       byte = 0x18
)

// Device-event subtypes, the second byte of a 0xF5 frame.
const (
	evtSingleTap        byte = 0
	evtDoubleTap        byte = 1
	evtGlassesOn        byte = 6
	evtGlassesOff       byte = 7
	evtInCaseLidOpen    byte = 8
	evtCharging         byte = 9
	evtBatteryOrAck     byte = 10
	evtCaseCharging     byte = 14
	evtCaseBattery      byte = 15
	evtGlassesStatus    byte = 17
	evtLongPress        byte = 23
	evtLongPressRelease byte = 24
)

// batteryInfoSubtype marks a 0x2C frame carrying both arms' battery levels.
const batteryInfoSubtype byte = 0x66

// micStatusOK is the mic-control response status byte for success.
const micStatusOK byte = 0xC9

// Text display-mode flag bytes. Lower nibble 0x1 displays new content; the
// upper nibble selects manual mode (0x5) or text show (0x7).
const (
	TextFlagReplace byte = 0x51
	TextFlagAppend  byte = 0x71
)
