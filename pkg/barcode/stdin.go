package barcode

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
)

// ReaderSource turns newline-delimited codes from an io.Reader into
// detections. It backs the development workflow where codes are typed on
// stdin instead of decoded from the glasses camera.
type ReaderSource struct {
	r     io.Reader
	clock clockwork.Clock

	once   sync.Once
	cancel context.CancelFunc
	out    chan Detection
}

// NewReaderSource wraps r. A nil clock selects the real clock.
func NewReaderSource(r io.Reader, clock clockwork.Clock) *ReaderSource {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ReaderSource{
		r:     r,
		clock: clock,
		out:   make(chan Detection, 8),
	}
}

// Start implements Source. Blank lines are ignored.
func (s *ReaderSource) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	go func() {
		defer s.close()
		scanner := bufio.NewScanner(s.r)
		for scanner.Scan() {
			code := strings.TrimSpace(scanner.Text())
			if code == "" {
				continue
			}
			det := Detection{
				Type:       "manual",
				Data:       code,
				Confidence: 1,
				Timestamp:  s.clock.Now(),
			}
			select {
			case s.out <- det:
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop implements Source.
func (s *ReaderSource) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// Detections implements Source.
func (s *ReaderSource) Detections() <-chan Detection {
	return s.out
}

func (s *ReaderSource) close() {
	s.once.Do(func() { close(s.out) })
}
