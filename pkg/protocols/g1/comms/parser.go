package comms

import (
	"github.com/pickline/glasspick"
)

// ParseNotification decodes one notification frame into an Event. It is
// total: inputs shorter than two bytes and unrecognized command classes
// decode to nil, unknown subtypes within a known class decode to
// UnknownEvent carrying the raw frame. It never panics on malformed input.
func ParseNotification(data []byte) glasspick.Event {
	if len(data) < 2 {
		return nil
	}

	switch data[0] {
	case CmdDeviceEvent:
		return parseDeviceEvent(data)
	case CmdBatteryInfo:
		return parseBatteryInfo(data)
	case CmdMicData:
		return glasspick.MicData{
			Sequence: data[1],
			Audio:    append([]byte(nil), data[2:]...),
		}
	case CmdMicControl:
		return parseMicControl(data)
	}
	return nil
}

func parseDeviceEvent(data []byte) glasspick.Event {
	switch data[1] {
	case evtSingleTap:
		return glasspick.SingleTap{}
	case evtDoubleTap:
		return glasspick.DoubleTap{}
	case evtGlassesOn:
		return glasspick.GlassesOn{}
	case evtGlassesOff:
		return glasspick.GlassesOff{}
	case evtInCaseLidOpen:
		return glasspick.InCaseLidOpen{}
	case evtCharging:
		return glasspick.Charging{}
	case evtBatteryOrAck:
		// The firmware overloads subtype 10: values up to 100 are a battery
		// percentage, anything above is an acknowledged sequence number.
		// There is no structural way to tell the two apart.
		if len(data) < 3 {
			return glasspick.Ack{Sequence: -1}
		}
		if data[2] <= 100 {
			return glasspick.GlassesBattery{Percentage: int(data[2])}
		}
		return glasspick.Ack{Sequence: int(data[2])}
	case evtCaseCharging:
		return glasspick.CaseCharging{}
	case evtCaseBattery:
		if len(data) < 3 {
			return glasspick.CaseBattery{Percentage: -1}
		}
		return glasspick.CaseBattery{Percentage: int(data[2])}
	case evtGlassesStatus:
		status := glasspick.GlassesStatus{}
		if len(data) >= 3 && data[2] <= 100 {
			pct := int(data[2])
			status.Battery = &pct
		}
		return status
	case evtLongPress:
		return glasspick.LongPress{}
	case evtLongPressRelease:
		return glasspick.LongPressRelease{}
	default:
		return glasspick.UnknownEvent{
			EventType: data[1],
			Raw:       append([]byte(nil), data...),
		}
	}
}

func parseBatteryInfo(data []byte) glasspick.Event {
	if len(data) >= 5 && data[1] == batteryInfoSubtype {
		return glasspick.BatteryInfo{
			Model:        data[2],
			LeftBattery:  int(data[3]),
			RightBattery: int(data[4]),
		}
	}
	return glasspick.UnknownEvent{
		EventType: data[1],
		Raw:       append([]byte(nil), data...),
	}
}

func parseMicControl(data []byte) glasspick.Event {
	resp := glasspick.MicControlResponse{
		Status:  data[1],
		Success: data[1] == micStatusOK,
	}
	if len(data) >= 3 {
		resp.Enabled = data[2] == 0x01
	}
	return resp
}
