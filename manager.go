package glasspick

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUndeterminedArm means a device name carried no left/right marker.
	// Connecting such a peripheral is meaningless, so there is no retry.
	ErrUndeterminedArm = errors.New("cannot determine arm side from device name")
	// ErrNoConnectedArms means a fan-out write found nothing to write to.
	ErrNoConnectedArms = errors.New("no connected arms")
	// ErrPartialWrite means a fan-out write reached some but not all arms.
	// One lens is now showing stale content; callers must not treat this as
	// success.
	ErrPartialWrite = errors.New("partial write")
)

// interArmWriteDelay staggers fan-out writes to avoid link contention
// between the two arms.
const interArmWriteDelay = 50 * time.Millisecond

// ArmConnectionState is the observable state of one arm slot.
type ArmConnectionState struct {
	Side       ArmSide
	Connected  bool
	DeviceID   string
	DeviceName string
}

// ConnectionState is the observable aggregate of both arm slots.
// FullyConnected is always derived from the arm slots and the protocol's
// dual-arm requirement, never set independently.
type ConnectionState struct {
	ProtocolName   string
	LeftArm        *ArmConnectionState
	RightArm       *ArmConnectionState
	FullyConnected bool
}

// BatteryStatus aggregates the battery readings decoded from device events.
// Nil fields have not been reported yet. GlassesState is "on", "off" or
// empty when unknown.
type BatteryStatus struct {
	CaseBattery  *int
	LeftBattery  *int
	RightBattery *int
	GlassesState string
}

// StatusRecorder persists device status to an external store. Recording is
// opportunistic: failures are logged by the Manager and never block or roll
// back a BLE operation.
type StatusRecorder interface {
	RecordConnectivity(online bool, glassesState string) error
	RecordBattery(status BatteryStatus) error
	RecordArms(state ConnectionState) error
}

// EventHandler receives every decoded device event with the arm it arrived
// on.
type EventHandler func(side ArmSide, ev Event)

// StateHandler receives a ConnectionState snapshot after every change.
type StateHandler func(state ConnectionState)

type connectedArm struct {
	side   ArmSide
	device FoundDevice
	link   Link
}

// pendingConnect tracks one in-flight connection attempt. Keyed by device ID
// so concurrent attempts on different peripherals never clobber each other,
// even when both classify to the same side.
type pendingConnect struct {
	side   ArmSide
	cancel context.CancelFunc
}

// Manager owns zero, one or two live arm links for a single glasses model
// and drives the connect/retry/disconnect state machine per arm. Dual-arm
// hardware has no atomic "connect the device" operation; the manager's job
// is to make FullyConnected a reliably derived property despite fully
// independent per-arm lifecycles.
type Manager struct {
	protocol  Protocol
	transport Transport
	clock     clockwork.Clock
	classify  RetryClassifier
	log       zerolog.Logger

	onEvent  EventHandler
	onState  StateHandler
	recorder StatusRecorder

	mu         sync.Mutex
	arms       map[ArmSide]*connectedArm
	connecting map[string]pendingConnect
	singleArm  bool
	battery    BatteryStatus
	seq        uint8
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock substitutes the clock used for retry backoff and write
// staggering.
func WithClock(c clockwork.Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

// WithRetryClassifier substitutes the retry policy selection.
func WithRetryClassifier(fn RetryClassifier) ManagerOption {
	return func(m *Manager) { m.classify = fn }
}

// WithEventHandler installs the decoded-event callback.
func WithEventHandler(fn EventHandler) ManagerOption {
	return func(m *Manager) { m.onEvent = fn }
}

// WithStateHandler installs the connection-state callback.
func WithStateHandler(fn StateHandler) ManagerOption {
	return func(m *Manager) { m.onState = fn }
}

// WithStatusRecorder installs the external status store.
func WithStatusRecorder(r StatusRecorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// NewManager creates a Manager for one protocol over the given transport.
func NewManager(protocol Protocol, transport Transport, opts ...ManagerOption) *Manager {
	m := &Manager{
		protocol:   protocol,
		transport:  transport,
		clock:      clockwork.NewRealClock(),
		classify:   DefaultRetryClassifier,
		arms:       make(map[ArmSide]*connectedArm),
		connecting: make(map[string]pendingConnect),
		seq:        1,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = log.With().
		Str("protocol", protocol.Name()).
		Str("connSession", uuid.NewString()).
		Logger()
	transport.SetDisconnectHandler(m.handleUnsolicitedDisconnect)
	return m
}

func (m *Manager) profile() GATTProfile {
	return GATTProfile{
		Service: m.protocol.ServiceUUID(),
		Write:   m.protocol.WriteCharacteristicUUID(),
		Notify:  m.protocol.NotifyCharacteristicUUID(),
	}
}

// Connect establishes the arm link for one discovered peripheral, retrying
// per the classified policy. It is idempotent: a second call for a side that
// is already connected, or a peripheral already being connected, is a no-op.
// The retry loop is cancellable through ctx and through Disconnect for the
// same side.
func (m *Manager) Connect(ctx context.Context, dev FoundDevice) error {
	side := m.protocol.ArmFromDeviceName(dev.Name)
	if side == ArmUndetermined {
		return fmt.Errorf("%w: %q", ErrUndeterminedArm, dev.Name)
	}

	m.mu.Lock()
	if m.arms[side] != nil {
		m.mu.Unlock()
		m.log.Debug().Str("side", side.String()).Msg("arm already connected, skipping")
		return nil
	}
	if _, busy := m.connecting[dev.ID]; busy {
		m.mu.Unlock()
		m.log.Debug().Str("device", dev.ID).Msg("connection attempt already in flight, skipping")
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	m.connecting[dev.ID] = pendingConnect{side: side, cancel: cancel}
	m.mu.Unlock()

	defer func() {
		cancel()
		m.mu.Lock()
		delete(m.connecting, dev.ID)
		m.mu.Unlock()
	}()

	attempt := 0
	for {
		err := m.connectOnce(ctx, dev, side, true)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("connecting %s arm canceled: %w", side, ctx.Err())
		}

		policy := m.classify(err)
		if attempt >= policy.MaxRetries {
			return fmt.Errorf("failed to connect %s arm after %d attempts: %w",
				side, attempt+1, err)
		}
		attempt++
		m.log.Warn().Err(err).
			Str("side", side.String()).
			Int("attempt", attempt).
			Dur("backoff", policy.Backoff).
			Bool("pairingError", IsPairingError(err)).
			Msg("arm connect failed, retrying")

		select {
		case <-m.clock.After(policy.Backoff):
		case <-ctx.Done():
			return fmt.Errorf("connecting %s arm canceled: %w", side, ctx.Err())
		}
	}
}

// Restore re-establishes logical arm references for peripherals the
// transport already reports as connected, without sending the init command
// again. Returns the number of arms restored.
func (m *Manager) Restore(ctx context.Context) int {
	restored := 0
	for _, dev := range m.transport.ConnectedPeripherals(m.profile()) {
		if !m.protocol.IsCompatibleDevice(dev.Name) {
			continue
		}
		side := m.protocol.ArmFromDeviceName(dev.Name)
		if side == ArmUndetermined {
			continue
		}
		m.mu.Lock()
		occupied := m.arms[side] != nil
		m.mu.Unlock()
		if occupied {
			continue
		}
		if err := m.connectOnce(ctx, dev, side, false); err != nil {
			m.log.Warn().Err(err).Str("side", side.String()).Msg("failed to restore arm")
			continue
		}
		m.log.Info().Str("side", side.String()).Str("device", dev.Name).Msg("restored arm from existing connection")
		restored++
	}
	return restored
}

func (m *Manager) connectOnce(ctx context.Context, dev FoundDevice, side ArmSide, sendInit bool) error {
	link, err := m.transport.Connect(ctx, dev, m.profile(), func(data []byte) {
		m.handleNotification(side, data)
	})
	if err != nil {
		return err
	}

	if sendInit {
		if _, err := link.Write(m.protocol.InitCommand()); err != nil {
			_ = link.Disconnect()
			return fmt.Errorf("failed to send init command: %w", err)
		}
	}

	m.mu.Lock()
	if m.arms[side] != nil {
		// Lost a race with another attempt for the same side. Keep the
		// established arm, drop this link.
		m.mu.Unlock()
		_ = link.Disconnect()
		return nil
	}
	m.arms[side] = &connectedArm{side: side, device: dev, link: link}
	state := m.snapshotLocked()
	m.mu.Unlock()

	m.log.Info().
		Str("side", side.String()).
		Str("device", dev.Name).
		Bool("fullyConnected", state.FullyConnected).
		Msg("arm connected")
	m.publish(state)
	return nil
}

// Disconnect releases one arm's link, cancels every in-flight connection
// attempt for that side, and recomputes the aggregate state. Canceled
// attempts clean up their own connecting entries as they unwind.
func (m *Manager) Disconnect(side ArmSide) error {
	m.mu.Lock()
	for _, pending := range m.connecting {
		if pending.side == side {
			pending.cancel()
		}
	}
	arm := m.arms[side]
	delete(m.arms, side)
	state := m.snapshotLocked()
	m.mu.Unlock()

	if arm == nil {
		return nil
	}
	err := arm.link.Disconnect()
	m.log.Info().Str("side", side.String()).Msg("arm disconnected")
	m.publish(state)
	if err != nil {
		return fmt.Errorf("disconnecting %s arm: %w", side, err)
	}
	return nil
}

func (m *Manager) handleUnsolicitedDisconnect(deviceID string) {
	m.mu.Lock()
	var dropped *connectedArm
	for side, arm := range m.arms {
		if arm.device.ID == deviceID {
			dropped = arm
			delete(m.arms, side)
			break
		}
	}
	state := m.snapshotLocked()
	m.mu.Unlock()

	if dropped == nil {
		return
	}
	m.log.Warn().
		Str("side", dropped.side.String()).
		Str("device", dropped.device.Name).
		Msg("arm link dropped by transport")
	m.publish(state)
	if m.recorder != nil {
		if err := m.recorder.RecordConnectivity(false, "off"); err != nil {
			m.log.Warn().Err(err).Msg("failed to record offline status")
		}
	}
}

// SendToBothArms writes the payload to every connected arm, left first, with
// a short stagger between arms. It returns the number of arms reached.
// Reaching some but not all arms returns ErrPartialWrite so callers can see
// that one lens is now stale.
func (m *Manager) SendToBothArms(payload []byte) (int, error) {
	m.mu.Lock()
	var targets []*connectedArm
	for _, side := range []ArmSide{ArmLeft, ArmRight} {
		if arm := m.arms[side]; arm != nil {
			targets = append(targets, arm)
		}
	}
	m.mu.Unlock()

	if len(targets) == 0 {
		return 0, ErrNoConnectedArms
	}

	sent := 0
	var errs []error
	for i, arm := range targets {
		if i > 0 {
			m.clock.Sleep(interArmWriteDelay)
		}
		if _, err := arm.link.Write(payload); err != nil {
			errs = append(errs, fmt.Errorf("%s arm: %w", arm.side, err))
			continue
		}
		sent++
	}

	switch {
	case len(errs) == 0:
		return sent, nil
	case sent > 0:
		return sent, fmt.Errorf("%w: reached %d of %d arms: %v",
			ErrPartialWrite, sent, len(targets), errors.Join(errs...))
	default:
		return 0, fmt.Errorf("write failed on all arms: %w", errors.Join(errs...))
	}
}

// SendText displays text on both arms. When replace is true the text
// replaces the current screen contents, otherwise it is appended. Returns
// the number of arms reached.
func (m *Manager) SendText(text string, replace bool) (int, error) {
	m.mu.Lock()
	seq := m.seq
	m.seq++
	m.mu.Unlock()
	return m.SendToBothArms(m.protocol.TextMessage(text, seq, replace))
}

// EnterManualMode puts both displays into paged display mode.
func (m *Manager) EnterManualMode() (int, error) {
	return m.SendToBothArms(m.protocol.ManualModeCommand())
}

// ExitDisplay returns both displays to the dashboard.
func (m *Manager) ExitDisplay() (int, error) {
	return m.SendToBothArms(m.protocol.ExitCommand())
}

// RequestBattery asks every connected arm for a battery reading. Responses
// arrive asynchronously as decoded events.
func (m *Manager) RequestBattery() (int, error) {
	return m.SendToBothArms(m.protocol.BatteryRequestCommand())
}

// ClearDisplays wipes both micro-displays, on protocols that have a
// dedicated clear command.
func (m *Manager) ClearDisplays() (int, error) {
	c, ok := m.protocol.(interface{ ClearCommand() []byte })
	if !ok {
		return 0, fmt.Errorf("protocol %s has no clear command", m.protocol.Name())
	}
	return m.SendToBothArms(c.ClearCommand())
}

// UseSingleArm records the caller's decision to proceed with one arm on a
// dual-arm protocol. FullyConnected then requires only one connected arm.
func (m *Manager) UseSingleArm() {
	m.mu.Lock()
	m.singleArm = true
	state := m.snapshotLocked()
	m.mu.Unlock()
	m.log.Info().Msg("single-arm mode enabled")
	m.publish(state)
}

// State returns a snapshot of the aggregate connection state.
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// FullyConnected reports whether the device as a whole is usable: both arms
// for dual-arm protocols, any arm otherwise.
func (m *Manager) FullyConnected() bool {
	return m.State().FullyConnected
}

// Battery returns the latest aggregated battery readings.
func (m *Manager) Battery() BatteryStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.battery
}

func (m *Manager) busyWith(deviceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, busy := m.connecting[deviceID]
	return busy
}

func (m *Manager) armConnected(side ArmSide) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.arms[side] != nil
}

func (m *Manager) snapshotLocked() ConnectionState {
	state := ConnectionState{ProtocolName: m.protocol.Name()}
	if arm := m.arms[ArmLeft]; arm != nil {
		state.LeftArm = &ArmConnectionState{
			Side: ArmLeft, Connected: true,
			DeviceID: arm.device.ID, DeviceName: arm.device.Name,
		}
	}
	if arm := m.arms[ArmRight]; arm != nil {
		state.RightArm = &ArmConnectionState{
			Side: ArmRight, Connected: true,
			DeviceID: arm.device.ID, DeviceName: arm.device.Name,
		}
	}
	if m.protocol.RequiresDualArm() && !m.singleArm {
		state.FullyConnected = state.LeftArm != nil && state.RightArm != nil
	} else {
		state.FullyConnected = state.LeftArm != nil || state.RightArm != nil
	}
	return state
}

func (m *Manager) publish(state ConnectionState) {
	if m.onState != nil {
		m.onState(state)
	}
	if m.recorder != nil {
		if err := m.recorder.RecordArms(state); err != nil {
			m.log.Warn().Err(err).Msg("failed to record arm state")
		}
	}
}

func (m *Manager) handleNotification(side ArmSide, data []byte) {
	ev := m.protocol.ParseIncomingData(data)
	if ev == nil {
		return
	}

	recordBattery := false
	m.mu.Lock()
	switch e := ev.(type) {
	case CaseBattery:
		if e.Percentage >= 0 {
			pct := e.Percentage
			m.battery.CaseBattery = &pct
			recordBattery = true
		}
	case GlassesBattery:
		pct := e.Percentage
		if side == ArmLeft {
			m.battery.LeftBattery = &pct
		} else {
			m.battery.RightBattery = &pct
		}
		recordBattery = true
	case BatteryInfo:
		left, right := e.LeftBattery, e.RightBattery
		m.battery.LeftBattery = &left
		m.battery.RightBattery = &right
		recordBattery = true
	case GlassesStatus:
		if e.Battery != nil {
			pct := *e.Battery
			if side == ArmLeft {
				m.battery.LeftBattery = &pct
			} else {
				m.battery.RightBattery = &pct
			}
			recordBattery = true
		}
	case GlassesOn:
		m.battery.GlassesState = "on"
	case GlassesOff:
		m.battery.GlassesState = "off"
	}
	battery := m.battery
	m.mu.Unlock()

	switch e := ev.(type) {
	case GlassesOn:
		m.recordConnectivity(true, "on")
	case GlassesOff:
		m.recordConnectivity(false, "off")
	case UnknownEvent:
		m.log.Debug().
			Str("side", side.String()).
			Uint8("eventType", e.EventType).
			Hex("raw", e.Raw).
			Msg("unknown device event")
	}

	if recordBattery && m.recorder != nil {
		if err := m.recorder.RecordBattery(battery); err != nil {
			m.log.Warn().Err(err).Msg("failed to record battery status")
		}
	}

	if m.onEvent != nil {
		m.onEvent(side, ev)
	}
}

func (m *Manager) recordConnectivity(online bool, glassesState string) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.RecordConnectivity(online, glassesState); err != nil {
		m.log.Warn().Err(err).Msg("failed to record connectivity")
	}
}
