package picking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickline/glasspick/pkg/barcode"
)

type fakeValidator struct {
	mu          sync.Mutex
	scans       []string
	scanResult  ScanResult
	scanErr     error
	completions int
	completeErr error
	block       chan struct{}
	entered     chan struct{}
}

func (v *fakeValidator) SubmitScan(_ context.Context, _, upc string) (ScanResult, error) {
	if v.entered != nil {
		select {
		case v.entered <- struct{}{}:
		default:
		}
	}
	if v.block != nil {
		<-v.block
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scans = append(v.scans, upc)
	return v.scanResult, v.scanErr
}

func (v *fakeValidator) CompleteOrder(context.Context, string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.completions++
	return v.completeErr
}

func (v *fakeValidator) scanCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.scans)
}

func (v *fakeValidator) completionCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.completions
}

type feedbackSink struct {
	mu  sync.Mutex
	got []Feedback
}

func (f *feedbackSink) record(fb Feedback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, fb)
}

func (f *feedbackSink) outcomes() []Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Outcome, len(f.got))
	for i, fb := range f.got {
		out[i] = fb.Outcome
	}
	return out
}

func detection(code string) barcode.Detection {
	return barcode.Detection{Type: "upc_a", Data: code, Confidence: 1, Timestamp: time.Now()}
}

func TestReconcilerHappyPath(t *testing.T) {
	t.Parallel()

	session := NewSession(twoItemOrder(), nil)
	validator := &fakeValidator{scanResult: ScanResult{Success: true}}
	sink := &feedbackSink{}
	r := NewReconciler(session, validator, sink.record, zerolog.Nop())
	ctx := context.Background()

	require.True(t, r.HandleDetection(ctx, detection("111111111111")))
	require.True(t, r.HandleDetection(ctx, detection("222222222222")))

	assert.Equal(t, []Outcome{OutcomeMatched, OutcomeOrderCompleted}, sink.outcomes())
	assert.Equal(t, []string{"111111111111", "222222222222"}, validator.scans)
	assert.Equal(t, 1, validator.completionCount())
	assert.True(t, session.Completed())

	// A stray scan after completion neither re-submits nor re-completes.
	require.True(t, r.HandleDetection(ctx, detection("111111111111")))
	assert.Equal(t, 2, validator.scanCount())
	assert.Equal(t, 1, validator.completionCount())
	assert.Equal(t, OutcomeNoCurrentItem, sink.outcomes()[2])
}

func TestReconcilerWrongItem(t *testing.T) {
	t.Parallel()

	session := NewSession(twoItemOrder(), nil)
	validator := &fakeValidator{scanResult: ScanResult{Success: true}}
	sink := &feedbackSink{}
	r := NewReconciler(session, validator, sink.record, zerolog.Nop())

	// Scanning the second item's code while the first is current is a local
	// mismatch: the server is never consulted.
	require.True(t, r.HandleDetection(context.Background(), detection("222222222222")))
	assert.Equal(t, []Outcome{OutcomeWrongItem}, sink.outcomes())
	assert.Zero(t, validator.scanCount())

	item, ok := session.CurrentItem()
	require.True(t, ok)
	assert.Equal(t, "p1", item.ProductID)
}

func TestReconcilerServerReject(t *testing.T) {
	t.Parallel()

	session := NewSession(twoItemOrder(), nil)
	validator := &fakeValidator{scanResult: ScanResult{Success: false, Message: "wrong item"}}
	sink := &feedbackSink{}
	r := NewReconciler(session, validator, sink.record, zerolog.Nop())

	require.True(t, r.HandleDetection(context.Background(), detection("111111111111")))
	assert.Equal(t, []Outcome{OutcomeWrongItem}, sink.outcomes())

	// The item only advances on server confirmation.
	item, ok := session.CurrentItem()
	require.True(t, ok)
	assert.Equal(t, "p1", item.ProductID)
}

func TestReconcilerValidationFailure(t *testing.T) {
	t.Parallel()

	session := NewSession(twoItemOrder(), nil)
	cause := errors.New("service unavailable")
	validator := &fakeValidator{scanErr: cause}
	sink := &feedbackSink{}
	r := NewReconciler(session, validator, sink.record, zerolog.Nop())

	require.True(t, r.HandleDetection(context.Background(), detection("111111111111")))
	require.Equal(t, []Outcome{OutcomeValidationFailed}, sink.outcomes())
	sink.mu.Lock()
	assert.ErrorIs(t, sink.got[0].Err, cause)
	sink.mu.Unlock()

	item, ok := session.CurrentItem()
	require.True(t, ok)
	assert.Equal(t, "p1", item.ProductID, "a failed validation leaves the item current")
}

func TestReconcilerNormalizesEAN13(t *testing.T) {
	t.Parallel()

	order := twoItemOrder()
	order.Items = order.Items[:1]
	session := NewSession(order, nil)
	validator := &fakeValidator{scanResult: ScanResult{Success: true}}
	r := NewReconciler(session, validator, nil, zerolog.Nop())

	require.True(t, r.HandleDetection(context.Background(), detection("1111111111113")))
	require.Equal(t, []string{"111111111111"}, validator.scans,
		"the normalized code is what gets submitted")
}

func TestReconcilerDropsConcurrentDetections(t *testing.T) {
	t.Parallel()

	session := NewSession(twoItemOrder(), nil)
	validator := &fakeValidator{
		scanResult: ScanResult{Success: true},
		block:      make(chan struct{}),
		entered:    make(chan struct{}, 1),
	}
	r := NewReconciler(session, validator, nil, zerolog.Nop())
	ctx := context.Background()

	done := make(chan bool, 1)
	go func() { done <- r.HandleDetection(ctx, detection("111111111111")) }()

	// Wait for the first detection to reach the validator, then race a second.
	<-validator.entered
	assert.False(t, r.HandleDetection(ctx, detection("111111111111")),
		"detections during an in-flight scan are dropped")

	close(validator.block)
	assert.True(t, <-done)
	assert.Equal(t, 1, validator.scanCount())
}

func TestReconcilerCompletionRetriedAfterFailure(t *testing.T) {
	t.Parallel()

	order := twoItemOrder()
	order.Items = order.Items[:1]
	session := NewSession(order, nil)
	validator := &fakeValidator{
		scanResult:  ScanResult{Success: true},
		completeErr: errors.New("service unavailable"),
	}
	sink := &feedbackSink{}
	r := NewReconciler(session, validator, sink.record, zerolog.Nop())
	ctx := context.Background()

	require.True(t, r.HandleDetection(ctx, detection("111111111111")))
	assert.Equal(t, 1, validator.completionCount())
	assert.False(t, session.Completed())
	assert.Equal(t, []Outcome{OutcomeMatched}, sink.outcomes())

	// The next scan retries the failed completion.
	validator.mu.Lock()
	validator.completeErr = nil
	validator.mu.Unlock()
	require.True(t, r.HandleDetection(ctx, detection("111111111111")))
	assert.Equal(t, 2, validator.completionCount())
	assert.True(t, session.Completed())
	assert.Equal(t, OutcomeOrderCompleted, sink.outcomes()[1])
}

func TestReconcilerRun(t *testing.T) {
	t.Parallel()

	session := NewSession(twoItemOrder(), nil)
	validator := &fakeValidator{scanResult: ScanResult{Success: true}}
	sink := &feedbackSink{}
	r := NewReconciler(session, validator, sink.record, zerolog.Nop())

	detections := make(chan barcode.Detection, 2)
	detections <- detection("111111111111")
	detections <- detection("222222222222")
	close(detections)

	require.NoError(t, r.Run(context.Background(), detections))
	assert.True(t, session.Completed())
}
