package picking

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/pickline/glasspick/pkg/barcode"
)

// Validator checks scans against the authoritative order state. The remote
// pick-pack service implements it in production; tests supply fakes.
type Validator interface {
	// SubmitScan validates a code against the order's current item.
	SubmitScan(ctx context.Context, orderID, upc string) (ScanResult, error)
	// CompleteOrder marks the order done on the server.
	CompleteOrder(ctx context.Context, orderID string) error
}

// Outcome classifies what a detection led to.
type Outcome int

const (
	// OutcomeMatched means the code matched the current item and the server
	// confirmed the scan.
	OutcomeMatched Outcome = iota
	// OutcomeNoCurrentItem means every item was already scanned when the
	// detection arrived.
	OutcomeNoCurrentItem
	// OutcomeWrongItem means the code did not match the current item's UPC,
	// or the server rejected the scan.
	OutcomeWrongItem
	// OutcomeValidationFailed means the validation call itself failed; the
	// item stays unscanned and the operator should rescan.
	OutcomeValidationFailed
	// OutcomeOrderCompleted means this scan finished the last item and the
	// order was completed.
	OutcomeOrderCompleted
)

// Feedback is delivered to the operator-facing layer after each processed
// detection. Err is set only for OutcomeValidationFailed.
type Feedback struct {
	Outcome   Outcome
	Item      Item
	Detection barcode.Detection
	Result    ScanResult
	Err       error
}

// FeedbackFunc receives reconciliation feedback. Implementations must not
// block; they run on the detection-processing goroutine.
type FeedbackFunc func(Feedback)

// Reconciler bridges the detection stream to a pick session. One detection
// is processed at a time; codes arriving while a validation round trip is in
// flight are dropped rather than queued, since the operator is still looking
// at the feedback for the first one.
type Reconciler struct {
	session   *Session
	validator Validator
	feedback  FeedbackFunc
	log       zerolog.Logger

	busy      atomic.Bool
	completed atomic.Bool
}

// NewReconciler wires a session to its validator. feedback may be nil.
func NewReconciler(session *Session, validator Validator, feedback FeedbackFunc, log zerolog.Logger) *Reconciler {
	if feedback == nil {
		feedback = func(Feedback) {}
	}
	return &Reconciler{
		session:   session,
		validator: validator,
		feedback:  feedback,
		log:       log.With().Str("orderId", session.Order().ID).Logger(),
	}
}

// Run consumes detections until the order completes, the channel closes, or
// ctx is done. Returning right after the completing scan leaves any queued
// detections in the channel for the next order's reconciler.
func (r *Reconciler) Run(ctx context.Context, detections <-chan barcode.Detection) error {
	for {
		select {
		case det, ok := <-detections:
			if !ok {
				return nil
			}
			r.HandleDetection(ctx, det)
			if r.session.Completed() {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// HandleDetection processes one decoded code. It returns true when the
// detection was processed and false when it was dropped because another
// detection was already in flight.
func (r *Reconciler) HandleDetection(ctx context.Context, det barcode.Detection) bool {
	if !r.busy.CompareAndSwap(false, true) {
		r.log.Debug().Str("code", det.Data).Msg("dropping detection, scan in flight")
		return false
	}
	defer r.busy.Store(false)
	r.process(ctx, det)
	return true
}

func (r *Reconciler) process(ctx context.Context, det barcode.Detection) {
	item, ok := r.session.CurrentItem()
	if !ok {
		// All items scanned. If an earlier completion call failed, any
		// further scan retries it rather than going to waste.
		if !r.session.Completed() && r.completeOrder(ctx, r.session.Order().ID) {
			r.feedback(Feedback{Outcome: OutcomeOrderCompleted, Detection: det})
			return
		}
		r.feedback(Feedback{Outcome: OutcomeNoCurrentItem, Detection: det})
		return
	}

	code, matched := MatchUPC(det.Data, item.UPC)
	if !matched {
		r.log.Info().
			Str("code", det.Data).
			Str("expected", item.UPC).
			Msg("scanned code does not match current item")
		r.feedback(Feedback{Outcome: OutcomeWrongItem, Item: item, Detection: det})
		return
	}

	order := r.session.Order()
	result, err := r.validator.SubmitScan(ctx, order.ID, code)
	if err != nil {
		r.log.Error().Err(err).Str("code", code).Msg("scan validation failed")
		r.feedback(Feedback{Outcome: OutcomeValidationFailed, Item: item, Detection: det, Err: err})
		return
	}
	if !result.Success {
		r.feedback(Feedback{Outcome: OutcomeWrongItem, Item: item, Detection: det, Result: result})
		return
	}

	// Only a confirmed scan advances the queue. A validation failure above
	// leaves the item as the current one so the operator can rescan.
	if err := r.session.MarkScanned(item.ProductID); err != nil {
		r.log.Error().Err(err).Str("productId", item.ProductID).Msg("recording scan locally")
		r.feedback(Feedback{Outcome: OutcomeValidationFailed, Item: item, Detection: det, Err: err})
		return
	}

	if result.Completed || r.session.IsComplete() {
		if r.completeOrder(ctx, order.ID) {
			r.feedback(Feedback{Outcome: OutcomeOrderCompleted, Item: item, Detection: det, Result: result})
			return
		}
	}
	r.feedback(Feedback{Outcome: OutcomeMatched, Item: item, Detection: det, Result: result})
}

// completeOrder runs the completion call at most once. On failure the guard
// resets so the next successful scan cycle can retry.
func (r *Reconciler) completeOrder(ctx context.Context, orderID string) bool {
	if !r.completed.CompareAndSwap(false, true) {
		return r.session.Completed()
	}
	if err := r.validator.CompleteOrder(ctx, orderID); err != nil {
		r.log.Error().Err(err).Msg("completing order")
		r.completed.Store(false)
		return false
	}
	if err := r.session.Complete(); err != nil {
		r.log.Warn().Err(err).Msg("local completion after server confirm")
	}
	r.log.Info().Msg("pick order completed")
	return true
}
