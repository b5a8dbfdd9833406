package devicestore

import (
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/pickline/glasspick"
)

// Recorder adapts a Store to the connection manager's status callbacks,
// merging each partial update into the persisted record.
type Recorder struct {
	store Store
	clock clockwork.Clock
	log   zerolog.Logger

	mu  sync.Mutex
	rec Record
}

var _ glasspick.StatusRecorder = (*Recorder)(nil)

// NewRecorder wraps store. The existing record, if any, seeds the merge
// state so partial updates do not wipe earlier fields.
func NewRecorder(store Store, clock clockwork.Clock, log zerolog.Logger) *Recorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	r := &Recorder{store: store, clock: clock, log: log.With().Str("component", "devicestore").Logger()}
	if rec, ok, err := store.Get(); err == nil && ok {
		r.rec = rec
	}
	return r
}

// RecordConnectivity implements glasspick.StatusRecorder.
func (r *Recorder) RecordConnectivity(online bool, glassesState string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if online {
		r.rec.Status = StatusOnline
	} else {
		r.rec.Status = StatusOffline
	}
	r.rec.GlassesState = glassesState
	return r.persistLocked()
}

// RecordBattery implements glasspick.StatusRecorder.
func (r *Recorder) RecordBattery(b glasspick.BatteryStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.LeftBattery != nil {
		r.rec.BatteryLeft = b.LeftBattery
	}
	if b.RightBattery != nil {
		r.rec.BatteryRight = b.RightBattery
	}
	if b.CaseBattery != nil {
		r.rec.BatteryCase = b.CaseBattery
	}
	if b.GlassesState != "" {
		r.rec.GlassesState = b.GlassesState
	}
	return r.persistLocked()
}

// RecordArms implements glasspick.StatusRecorder.
func (r *Recorder) RecordArms(state glasspick.ConnectionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.Protocol = state.ProtocolName
	if state.LeftArm != nil && state.LeftArm.Connected {
		r.rec.LeftDeviceID = state.LeftArm.DeviceID
		r.rec.LeftDeviceName = state.LeftArm.DeviceName
	}
	if state.RightArm != nil && state.RightArm.Connected {
		r.rec.RightDeviceID = state.RightArm.DeviceID
		r.rec.RightDeviceName = state.RightArm.DeviceName
	}
	if state.FullyConnected {
		r.rec.Status = StatusOnline
	}
	return r.persistLocked()
}

// SavedArms returns the persisted device IDs for assisted reconnect.
func (r *Recorder) SavedArms() (leftID, rightID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.LeftDeviceID, r.rec.RightDeviceID
}

func (r *Recorder) persistLocked() error {
	r.rec.LastSeen = r.clock.Now()
	if err := r.store.Put(r.rec); err != nil {
		r.log.Error().Err(err).Msg("persisting device record")
		return err
	}
	return nil
}
