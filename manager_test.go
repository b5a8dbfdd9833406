package glasspick_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickline/glasspick"
	"github.com/pickline/glasspick/pkg/protocols/g1"
	"github.com/pickline/glasspick/pkg/protocols/mock"
)

var (
	leftDev  = glasspick.FoundDevice{Name: "Even G1_45_L_AAAA", ID: "dev-l"}
	rightDev = glasspick.FoundDevice{Name: "Even G1_45_R_BBBB", ID: "dev-r"}
)

// fastRetries keeps retry tests quick.
func fastRetries(maxRetries int) glasspick.RetryClassifier {
	return func(error) glasspick.RetryPolicy {
		return glasspick.RetryPolicy{MaxRetries: maxRetries, Backoff: time.Millisecond}
	}
}

type recordedCall struct {
	kind   string
	online bool
	state  string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *fakeRecorder) RecordConnectivity(online bool, glassesState string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{kind: "connectivity", online: online, state: glassesState})
	return nil
}

func (r *fakeRecorder) RecordBattery(glasspick.BatteryStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{kind: "battery"})
	return nil
}

func (r *fakeRecorder) RecordArms(glasspick.ConnectionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{kind: "arms"})
	return nil
}

func (r *fakeRecorder) snapshot() []recordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedCall, len(r.calls))
	copy(out, r.calls)
	return out
}

func TestManagerDualArmFullyConnected(t *testing.T) {
	t.Parallel()

	transport := mock.NewTransport()
	m := glasspick.NewManager(g1.New(), transport)
	ctx := context.Background()

	require.NoError(t, m.Connect(ctx, leftDev))
	assert.False(t, m.FullyConnected(), "one arm of a dual-arm pair is not fully connected")

	state := m.State()
	require.NotNil(t, state.LeftArm)
	assert.Equal(t, "dev-l", state.LeftArm.DeviceID)
	assert.Nil(t, state.RightArm)

	require.NoError(t, m.Connect(ctx, rightDev))
	assert.True(t, m.FullyConnected())

	// Each arm got the init handshake as its first write.
	for _, id := range []string{"dev-l", "dev-r"} {
		link, ok := transport.Link(id)
		require.True(t, ok)
		writes := link.Writes()
		require.NotEmpty(t, writes)
		assert.Equal(t, g1.New().InitCommand(), writes[0])
	}
}

func TestManagerConnectIdempotent(t *testing.T) {
	t.Parallel()

	transport := mock.NewTransport()
	m := glasspick.NewManager(g1.New(), transport)
	ctx := context.Background()

	require.NoError(t, m.Connect(ctx, leftDev))
	link, ok := transport.Link("dev-l")
	require.True(t, ok)
	before := len(link.Writes())

	require.NoError(t, m.Connect(ctx, leftDev))
	assert.Len(t, link.Writes(), before, "reconnecting an already-connected side must be a no-op")
}

func TestManagerConnectUndeterminedArm(t *testing.T) {
	t.Parallel()

	m := glasspick.NewManager(g1.New(), mock.NewTransport())
	err := m.Connect(context.Background(), glasspick.FoundDevice{Name: "Even G1", ID: "dev-x"})
	assert.ErrorIs(t, err, glasspick.ErrUndeterminedArm)
}

func TestManagerConnectRetries(t *testing.T) {
	t.Parallel()

	transport := mock.NewTransport()
	transport.FailConnect("dev-l",
		errors.New("device unreachable"),
		errors.New("device unreachable"))
	m := glasspick.NewManager(g1.New(), transport,
		glasspick.WithRetryClassifier(fastRetries(3)))

	require.NoError(t, m.Connect(context.Background(), leftDev))
	_, ok := transport.Link("dev-l")
	assert.True(t, ok)
}

func TestManagerConnectRetriesExhausted(t *testing.T) {
	t.Parallel()

	cause := errors.New("device unreachable")
	transport := mock.NewTransport()
	transport.FailConnect("dev-l", cause, cause, cause)
	m := glasspick.NewManager(g1.New(), transport,
		glasspick.WithRetryClassifier(fastRetries(2)))

	err := m.Connect(context.Background(), leftDev)
	assert.ErrorIs(t, err, cause)
	assert.False(t, m.FullyConnected())
}

func TestManagerConnectCanceled(t *testing.T) {
	t.Parallel()

	transport := mock.NewTransport()
	transport.FailConnect("dev-l", errors.New("device unreachable"))
	m := glasspick.NewManager(g1.New(), transport,
		glasspick.WithRetryClassifier(func(error) glasspick.RetryPolicy {
			return glasspick.RetryPolicy{MaxRetries: 5, Backoff: time.Hour}
		}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Connect(ctx, leftDev) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("connect did not return after cancel")
	}
}

func TestManagerDisconnectCancelsAllSideAttempts(t *testing.T) {
	t.Parallel()

	otherLeft := glasspick.FoundDevice{Name: "Even G1_45_L_CCCC", ID: "dev-l2"}
	transport := mock.NewTransport()
	transport.FailConnect("dev-l", errors.New("device unreachable"))
	transport.FailConnect("dev-l2", errors.New("device unreachable"))
	m := glasspick.NewManager(g1.New(), transport,
		glasspick.WithRetryClassifier(func(error) glasspick.RetryPolicy {
			return glasspick.RetryPolicy{MaxRetries: 5, Backoff: time.Hour}
		}))

	// Two peripherals classified to the same side, both stuck in backoff.
	done := make(chan error, 2)
	go func() { done <- m.Connect(context.Background(), leftDev) }()
	go func() { done <- m.Connect(context.Background(), otherLeft) }()

	timeout := time.After(2 * time.Second)
	for received := 0; received < 2; {
		_ = m.Disconnect(glasspick.ArmLeft)
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
			received++
		case <-timeout:
			t.Fatal("disconnect did not cancel every attempt for the side")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestManagerSendToBothArms(t *testing.T) {
	t.Parallel()

	transport := mock.NewTransport()
	m := glasspick.NewManager(g1.New(), transport)
	ctx := context.Background()

	_, err := m.SendToBothArms([]byte{0x01})
	assert.ErrorIs(t, err, glasspick.ErrNoConnectedArms)

	require.NoError(t, m.Connect(ctx, leftDev))
	require.NoError(t, m.Connect(ctx, rightDev))

	sent, err := m.SendToBothArms([]byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	right, ok := transport.Link("dev-r")
	require.True(t, ok)
	right.SetWriteError(errors.New("link flaky"))

	sent, err = m.SendToBothArms([]byte{0x02})
	assert.Equal(t, 1, sent)
	assert.ErrorIs(t, err, glasspick.ErrPartialWrite)
}

func TestManagerSendStaggersBetweenArms(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	transport := mock.NewTransport()
	m := glasspick.NewManager(g1.New(), transport, glasspick.WithClock(clock))
	ctx := context.Background()
	require.NoError(t, m.Connect(ctx, leftDev))
	require.NoError(t, m.Connect(ctx, rightDev))

	left, ok := transport.Link("dev-l")
	require.True(t, ok)
	right, ok := transport.Link("dev-r")
	require.True(t, ok)

	payload := []byte{0x2C, 0x01}
	type result struct {
		sent int
		err  error
	}
	done := make(chan result, 1)
	go func() {
		sent, err := m.SendToBothArms(payload)
		done <- result{sent: sent, err: err}
	}()

	// Left is written immediately; the fan-out then sleeps before touching
	// the right arm.
	clock.BlockUntil(1)
	writes := left.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, payload, writes[1])
	assert.Len(t, right.Writes(), 1, "right arm must wait out the stagger")

	clock.Advance(50 * time.Millisecond)
	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, 2, res.sent)
	case <-time.After(2 * time.Second):
		t.Fatal("fan-out did not finish after the stagger elapsed")
	}
	assert.Equal(t, payload, right.Writes()[1])
}

func TestManagerSendTextSequence(t *testing.T) {
	t.Parallel()

	transport := mock.NewTransport()
	m := glasspick.NewManager(g1.New(), transport)
	require.NoError(t, m.Connect(context.Background(), leftDev))

	_, err := m.SendText("first", true)
	require.NoError(t, err)
	_, err = m.SendText("second", false)
	require.NoError(t, err)

	link, ok := transport.Link("dev-l")
	require.True(t, ok)
	writes := link.Writes()
	require.Len(t, writes, 3) // init + two text frames
	assert.Equal(t, byte(1), writes[1][1])
	assert.Equal(t, byte(0x51), writes[1][4])
	assert.Equal(t, byte(2), writes[2][1])
	assert.Equal(t, byte(0x71), writes[2][4])
}

func TestManagerClearDisplays(t *testing.T) {
	t.Parallel()

	transport := mock.NewTransport()
	m := glasspick.NewManager(g1.New(), transport)
	require.NoError(t, m.Connect(context.Background(), leftDev))

	sent, err := m.ClearDisplays()
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	link, _ := transport.Link("dev-l")
	writes := link.Writes()
	assert.Equal(t, []byte{0x18}, writes[len(writes)-1])

	// The mock protocol has no clear command.
	mm := glasspick.NewManager(mock.New(), mock.NewTransport())
	_, err = mm.ClearDisplays()
	assert.Error(t, err)
}

func TestManagerUnsolicitedDisconnect(t *testing.T) {
	t.Parallel()

	transport := mock.NewTransport()
	recorder := &fakeRecorder{}
	m := glasspick.NewManager(g1.New(), transport,
		glasspick.WithStatusRecorder(recorder))
	ctx := context.Background()

	require.NoError(t, m.Connect(ctx, leftDev))
	require.NoError(t, m.Connect(ctx, rightDev))
	require.True(t, m.FullyConnected())

	transport.DropLink("dev-r")
	assert.False(t, m.FullyConnected())
	state := m.State()
	assert.NotNil(t, state.LeftArm)
	assert.Nil(t, state.RightArm)

	var sawOffline bool
	for _, call := range recorder.snapshot() {
		if call.kind == "connectivity" && !call.online {
			sawOffline = true
		}
	}
	assert.True(t, sawOffline, "dropping an arm must record the device offline")
}

func TestManagerUseSingleArm(t *testing.T) {
	t.Parallel()

	m := glasspick.NewManager(g1.New(), mock.NewTransport())
	require.NoError(t, m.Connect(context.Background(), leftDev))
	require.False(t, m.FullyConnected())

	m.UseSingleArm()
	assert.True(t, m.FullyConnected())
}

func TestManagerRestoreSkipsInit(t *testing.T) {
	t.Parallel()

	transport := mock.NewTransport()
	transport.AddPreconnected(leftDev)
	transport.AddPreconnected(rightDev)
	m := glasspick.NewManager(g1.New(), transport)

	restored := m.Restore(context.Background())
	assert.Equal(t, 2, restored)
	assert.True(t, m.FullyConnected())

	link, ok := transport.Link("dev-l")
	require.True(t, ok)
	assert.Empty(t, link.Writes(), "restore must not replay the init handshake")
}

func TestManagerBatteryAggregation(t *testing.T) {
	t.Parallel()

	transport := mock.NewTransport()
	recorder := &fakeRecorder{}
	m := glasspick.NewManager(g1.New(), transport,
		glasspick.WithStatusRecorder(recorder))
	ctx := context.Background()

	require.NoError(t, m.Connect(ctx, leftDev))
	require.NoError(t, m.Connect(ctx, rightDev))

	left, _ := transport.Link("dev-l")
	left.Notify([]byte{0xF5, 15, 77})             // case battery
	left.Notify([]byte{0x2C, 0x66, 0x03, 81, 79}) // both arms

	batt := m.Battery()
	require.NotNil(t, batt.CaseBattery)
	assert.Equal(t, 77, *batt.CaseBattery)
	require.NotNil(t, batt.LeftBattery)
	assert.Equal(t, 81, *batt.LeftBattery)
	require.NotNil(t, batt.RightBattery)
	assert.Equal(t, 79, *batt.RightBattery)

	left.Notify([]byte{0xF5, 6}) // glasses on
	assert.Equal(t, "on", m.Battery().GlassesState)

	var sawOnline bool
	for _, call := range recorder.snapshot() {
		if call.kind == "connectivity" && call.online && call.state == "on" {
			sawOnline = true
		}
	}
	assert.True(t, sawOnline)
}

func TestManagerEventHandler(t *testing.T) {
	t.Parallel()

	transport := mock.NewTransport()
	var mu sync.Mutex
	var got []glasspick.Event
	m := glasspick.NewManager(g1.New(), transport,
		glasspick.WithEventHandler(func(_ glasspick.ArmSide, ev glasspick.Event) {
			mu.Lock()
			got = append(got, ev)
			mu.Unlock()
		}))

	require.NoError(t, m.Connect(context.Background(), leftDev))
	link, _ := transport.Link("dev-l")
	link.Notify([]byte{0xF5, 0})
	link.Notify([]byte{0xF5, 1})
	link.Notify([]byte{0xF5}) // too short, dropped

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []glasspick.Event{glasspick.SingleTap{}, glasspick.DoubleTap{}}, got)
}
