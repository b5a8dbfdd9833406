package comms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickline/glasspick"
)

func TestBuildCommands(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte{0x4D, 0x01}, BuildInitCommand())
	assert.Equal(t, []byte{0x2C, 0x01}, BuildBatteryRequestCommand())
	assert.Equal(t, []byte{0xF5, 0x0F}, BuildCaseBatteryRequestCommand())
	assert.Equal(t, []byte{0xF5, 0x01}, BuildManualModeCommand())
	assert.Equal(t, []byte{0xF5, 0x00}, BuildExitCommand())
	assert.Equal(t, []byte{0x18}, BuildClearCommand())
	assert.Equal(t, []byte{0x0E, 0x01}, BuildMicControlCommand(true))
	assert.Equal(t, []byte{0x0E, 0x00}, BuildMicControlCommand(false))
}

func TestBuildTextMessage(t *testing.T) {
	t.Parallel()

	packet := BuildTextMessage("Hi", 7, true)
	require.Len(t, packet, 11)
	assert.Equal(t, byte(0x4E), packet[0])
	assert.Equal(t, byte(7), packet[1])
	assert.Equal(t, byte(0x01), packet[2])
	assert.Equal(t, byte(0x00), packet[3])
	assert.Equal(t, byte(0x51), packet[4])
	assert.Equal(t, byte(0x01), packet[7])
	assert.Equal(t, byte(0x01), packet[8])
	assert.Equal(t, []byte("Hi"), packet[9:])

	appended := BuildTextMessage("Hi", 8, false)
	assert.Equal(t, byte(0x71), appended[4])

	empty := BuildTextMessage("", 0, true)
	assert.Len(t, empty, 9)

	multibyte := BuildTextMessage("Aisle → A1", 1, true)
	assert.Equal(t, []byte("Aisle → A1"), multibyte[9:])
}

func TestParseNotificationDeviceEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want glasspick.Event
	}{
		{"single tap", []byte{0xF5, 0}, glasspick.SingleTap{}},
		{"double tap", []byte{0xF5, 1}, glasspick.DoubleTap{}},
		{"glasses on", []byte{0xF5, 6}, glasspick.GlassesOn{}},
		{"glasses off", []byte{0xF5, 7}, glasspick.GlassesOff{}},
		{"lid open", []byte{0xF5, 8}, glasspick.InCaseLidOpen{}},
		{"charging", []byte{0xF5, 9}, glasspick.Charging{}},
		{"case charging", []byte{0xF5, 14}, glasspick.CaseCharging{}},
		{"case battery", []byte{0xF5, 15, 87}, glasspick.CaseBattery{Percentage: 87}},
		{"case battery short", []byte{0xF5, 15}, glasspick.CaseBattery{Percentage: -1}},
		{"long press", []byte{0xF5, 23}, glasspick.LongPress{}},
		{"long press release", []byte{0xF5, 24}, glasspick.LongPressRelease{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseNotification(tt.data))
		})
	}
}

func TestParseNotificationBatteryOrAck(t *testing.T) {
	t.Parallel()

	// Subtype 10 is overloaded by the firmware: values up to 100 read as a
	// battery percentage, higher values as an acked sequence number.
	assert.Equal(t, glasspick.GlassesBattery{Percentage: 42}, ParseNotification([]byte{0xF5, 10, 42}))
	assert.Equal(t, glasspick.GlassesBattery{Percentage: 100}, ParseNotification([]byte{0xF5, 10, 100}))
	assert.Equal(t, glasspick.Ack{Sequence: 101}, ParseNotification([]byte{0xF5, 10, 101}))
	assert.Equal(t, glasspick.Ack{Sequence: 200}, ParseNotification([]byte{0xF5, 10, 200}))
	assert.Equal(t, glasspick.Ack{Sequence: -1}, ParseNotification([]byte{0xF5, 10}))
}

func TestParseNotificationGlassesStatus(t *testing.T) {
	t.Parallel()

	ev, ok := ParseNotification([]byte{0xF5, 17, 63}).(glasspick.GlassesStatus)
	require.True(t, ok)
	require.NotNil(t, ev.Battery)
	assert.Equal(t, 63, *ev.Battery)

	ev, ok = ParseNotification([]byte{0xF5, 17}).(glasspick.GlassesStatus)
	require.True(t, ok)
	assert.Nil(t, ev.Battery)

	ev, ok = ParseNotification([]byte{0xF5, 17, 255}).(glasspick.GlassesStatus)
	require.True(t, ok)
	assert.Nil(t, ev.Battery)
}

func TestParseNotificationBatteryInfo(t *testing.T) {
	t.Parallel()

	ev := ParseNotification([]byte{0x2C, 0x66, 0x03, 81, 79})
	assert.Equal(t, glasspick.BatteryInfo{Model: 0x03, LeftBattery: 81, RightBattery: 79}, ev)

	unknown, ok := ParseNotification([]byte{0x2C, 0x42, 1, 2, 3}).(glasspick.UnknownEvent)
	require.True(t, ok)
	assert.Equal(t, byte(0x42), unknown.EventType)

	_, ok = ParseNotification([]byte{0x2C, 0x66, 0x03}).(glasspick.UnknownEvent)
	assert.True(t, ok)
}

func TestParseNotificationMic(t *testing.T) {
	t.Parallel()

	ev := ParseNotification([]byte{0xF1, 5, 0xAA, 0xBB})
	assert.Equal(t, glasspick.MicData{Sequence: 5, Audio: []byte{0xAA, 0xBB}}, ev)

	resp, ok := ParseNotification([]byte{0x0E, 0xC9, 0x01}).(glasspick.MicControlResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)
	assert.True(t, resp.Enabled)

	resp, ok = ParseNotification([]byte{0x0E, 0x01, 0x00}).(glasspick.MicControlResponse)
	require.True(t, ok)
	assert.False(t, resp.Success)
	assert.False(t, resp.Enabled)
}

func TestParseNotificationEdges(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ParseNotification(nil))
	assert.Nil(t, ParseNotification([]byte{0xF5}))
	assert.Nil(t, ParseNotification([]byte{0x99, 0x01}))

	unknown, ok := ParseNotification([]byte{0xF5, 99, 0xDE}).(glasspick.UnknownEvent)
	require.True(t, ok)
	assert.Equal(t, byte(99), unknown.EventType)
	assert.Equal(t, []byte{0xF5, 99, 0xDE}, unknown.Raw)
}
