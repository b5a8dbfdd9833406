package glasspick

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	defaultScanTimeout = 20 * time.Second
	// connectDebounce lets the other arm of the same pair surface in the
	// scan before the first connection attempt commits.
	connectDebounce = 500 * time.Millisecond
	// singleArmGrace is how long to wait for the second arm before asking
	// the caller whether to proceed with one.
	singleArmGrace = 1500 * time.Millisecond
)

// ConnectDecision is the caller's answer to the single-arm prompt.
type ConnectDecision int

const (
	// DecisionWait keeps scanning for the other arm.
	DecisionWait ConnectDecision = iota
	// DecisionSingleArm proceeds with the one connected arm.
	DecisionSingleArm
)

// SingleArmPrompt is asked when one arm of a dual-arm pair connected but the
// other has not appeared after the grace period. Whether single-arm
// operation is acceptable is a policy decision that belongs to the caller,
// not to the scanner.
type SingleArmPrompt func(connected, missing ArmSide) ConnectDecision

// SavedArms carries previously persisted arm device IDs. Matching
// peripherals are connected without the usual debounce.
type SavedArms struct {
	LeftID  string
	RightID string
}

// Scanner discovers advertising peripherals and auto-pairs them through a
// Manager. A Scanner runs one scan at a time.
type Scanner struct {
	manager   *Manager
	transport ScanTransport
	clock     clockwork.Clock
	timeout   time.Duration
	debounce  time.Duration
	grace     time.Duration
	prompt    SingleArmPrompt
	saved     SavedArms

	mu     sync.Mutex
	cancel context.CancelFunc
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithScanTimeout overrides the scan timeout.
func WithScanTimeout(d time.Duration) ScannerOption {
	return func(s *Scanner) { s.timeout = d }
}

// WithScannerClock substitutes the clock used for debounce, grace and
// timeout.
func WithScannerClock(c clockwork.Clock) ScannerOption {
	return func(s *Scanner) { s.clock = c }
}

// WithSingleArmPrompt installs the single-arm policy callback. Without one
// the scanner keeps waiting for the other arm.
func WithSingleArmPrompt(fn SingleArmPrompt) ScannerOption {
	return func(s *Scanner) { s.prompt = fn }
}

// WithSavedArms supplies previously persisted arm device IDs.
func WithSavedArms(saved SavedArms) ScannerOption {
	return func(s *Scanner) { s.saved = saved }
}

// NewScanner creates a Scanner that feeds discoveries to the given Manager.
func NewScanner(manager *Manager, transport ScanTransport, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		manager:   manager,
		transport: transport,
		clock:     clockwork.NewRealClock(),
		timeout:   defaultScanTimeout,
		debounce:  connectDebounce,
		grace:     singleArmGrace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scans until the device is fully connected, the timeout elapses, Stop
// is called, or ctx is done. Before scanning it restores any peripherals the
// transport already reports as connected.
func (s *Scanner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if n := s.manager.Restore(ctx); n > 0 {
		log.Info().Int("arms", n).Msg("restored already-connected arms")
	}
	if s.manager.FullyConnected() {
		return nil
	}

	go func() {
		select {
		case <-s.clock.After(s.timeout):
			log.Info().Dur("timeout", s.timeout).Msg("scan timeout reached")
			cancel()
		case <-ctx.Done():
		}
	}()

	proto := s.manager.protocol
	var seenMu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup

	err := s.transport.Scan(ctx, func(dev FoundDevice) {
		if s.manager.FullyConnected() {
			cancel()
			return
		}
		if !proto.IsCompatibleDevice(dev.Name) {
			return
		}
		side := proto.ArmFromDeviceName(dev.Name)
		if side == ArmUndetermined {
			log.Debug().Str("device", dev.Name).Msg("cannot determine arm from device name")
			return
		}
		if s.manager.armConnected(side) || s.manager.busyWith(dev.ID) {
			return
		}

		seenMu.Lock()
		if seen[dev.ID] {
			seenMu.Unlock()
			return
		}
		seen[dev.ID] = true
		seenMu.Unlock()

		delay := s.debounce
		if dev.ID == s.saved.LeftID || dev.ID == s.saved.RightID {
			// Known arm from a previous pairing, no need to wait for its
			// sibling to surface first.
			delay = 0
		}
		log.Info().
			Str("device", dev.Name).
			Str("side", side.String()).
			Int("rssi", dev.RSSI).
			Msg("queuing arm for connection")

		wg.Add(1)
		go func() {
			defer wg.Done()
			if delay > 0 {
				select {
				case <-s.clock.After(delay):
				case <-ctx.Done():
					return
				}
			}
			if err := s.manager.Connect(ctx, dev); err != nil {
				log.Error().Err(err).Str("device", dev.Name).Msg("arm connection failed")
				seenMu.Lock()
				delete(seen, dev.ID)
				seenMu.Unlock()
				return
			}
			s.afterConnect(ctx, side, cancel)
		}()
	})

	wg.Wait()
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Stop terminates a running scan.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scanner) afterConnect(ctx context.Context, side ArmSide, cancel context.CancelFunc) {
	if s.manager.FullyConnected() {
		cancel()
		return
	}
	if !s.manager.protocol.RequiresDualArm() {
		return
	}

	select {
	case <-s.clock.After(s.grace):
	case <-ctx.Done():
		return
	}
	if s.manager.FullyConnected() || s.manager.armConnected(side.Other()) {
		return
	}
	if s.prompt == nil {
		return
	}
	if s.prompt(side, side.Other()) == DecisionSingleArm {
		s.manager.UseSingleArm()
		cancel()
	}
}
