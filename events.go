package glasspick

// Event is the interface for all decoded device events.
type Event interface {
	isEvent()
}

// SingleTap is a single tap on a temple touchpad.
type SingleTap struct{}

func (SingleTap) isEvent() {}

// DoubleTap is a double tap on a temple touchpad.
type DoubleTap struct{}

func (DoubleTap) isEvent() {}

// LongPress is the start of a long press on a temple touchpad.
type LongPress struct{}

func (LongPress) isEvent() {}

// LongPressRelease is the end of a long press.
type LongPressRelease struct{}

func (LongPressRelease) isEvent() {}

// GlassesOn signals the glasses were put on.
type GlassesOn struct{}

func (GlassesOn) isEvent() {}

// GlassesOff signals the glasses were taken off.
type GlassesOff struct{}

func (GlassesOff) isEvent() {}

// InCaseLidOpen signals the charging case lid was opened with the glasses
// inside.
type InCaseLidOpen struct{}

func (InCaseLidOpen) isEvent() {}

// Charging signals the glasses started charging.
type Charging struct{}

func (Charging) isEvent() {}

// CaseCharging signals the charging case itself started charging.
type CaseCharging struct{}

func (CaseCharging) isEvent() {}

// CaseBattery carries the charging case's battery percentage. Percentage is
// -1 when the notification was too short to carry one.
type CaseBattery struct {
	Percentage int
}

func (CaseBattery) isEvent() {}

// GlassesBattery carries a battery percentage for the arm the notification
// arrived on.
type GlassesBattery struct {
	Percentage int
}

func (GlassesBattery) isEvent() {}

// BatteryInfo is the response to a battery/firmware request, carrying both
// arms' battery levels in one payload.
type BatteryInfo struct {
	Model        byte
	LeftBattery  int
	RightBattery int
}

func (BatteryInfo) isEvent() {}

// Ack acknowledges a previously sent command. Sequence is -1 when the
// notification did not carry a sequence number.
type Ack struct {
	Sequence int
}

func (Ack) isEvent() {}

// GlassesStatus is a periodic status update. Battery is nil when the payload
// carried no battery reading.
type GlassesStatus struct {
	Battery *int
}

func (GlassesStatus) isEvent() {}

// MicData carries one chunk of microphone audio.
type MicData struct {
	Sequence uint8
	Audio    []byte
}

func (MicData) isEvent() {}

// MicControlResponse reports the outcome of a mic enable/disable command.
type MicControlResponse struct {
	Success bool
	Enabled bool
	Status  byte
}

func (MicControlResponse) isEvent() {}

// UnknownEvent is any device-event notification with an unrecognized
// subtype. The raw bytes are kept so firmware variance stays diagnosable.
type UnknownEvent struct {
	EventType byte
	Raw       []byte
}

func (UnknownEvent) isEvent() {}
