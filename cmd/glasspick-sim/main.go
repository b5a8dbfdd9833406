// glasspick-sim runs the full picking flow against simulated glasses and an
// in-memory order, with no Bluetooth hardware or order service. Barcodes are
// typed on stdin; display writes are echoed to the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pickline/glasspick"
	"github.com/pickline/glasspick/pkg/barcode"
	"github.com/pickline/glasspick/pkg/devicestore"
	"github.com/pickline/glasspick/pkg/picking"
	"github.com/pickline/glasspick/pkg/protocols/mock"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transport := mock.NewTransport()
	store := devicestore.NewMemoryStore()
	recorder := devicestore.NewRecorder(store, nil, log.Logger)

	manager := glasspick.NewManager(mock.New(), transport,
		glasspick.WithStatusRecorder(recorder))

	transport.AddPeripheral(glasspick.FoundDevice{Name: "MOCK-G1-SIM", ID: "sim-0"})

	scanner := glasspick.NewScanner(manager, transport,
		glasspick.WithScanTimeout(5*time.Second))
	if err := scanner.Run(ctx); err != nil {
		return err
	}
	if !manager.FullyConnected() {
		return fmt.Errorf("simulated glasses did not connect")
	}
	log.Info().Msg("simulated glasses connected")

	// Feed battery readings the way real hardware would.
	link, _ := transport.Link("sim-0")
	go func() {
		for pct := 90; pct > 0; pct -= 5 {
			link.Notify([]byte{0xB0, byte(pct)})
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
		}
	}()

	order := picking.Order{
		ID:     "sim-order",
		UserID: "sim-user",
		Status: picking.StatusPending,
		Items: []picking.Item{
			{ProductID: "p1", UPC: "012345678905", ProductName: "Widget, 12 pack", Quantity: 1,
				Location: picking.Location{Aisle: "A1", Shelf: "2", Bin: "3"}},
			{ProductID: "p2", UPC: "036000291452", ProductName: "Gadget, single", Quantity: 2,
				Location: picking.Location{Aisle: "B4", Shelf: "1", Bin: "7"}},
		},
		CreatedAt: time.Now(),
	}
	session := picking.NewSession(order, nil)

	reconciler := picking.NewReconciler(session, &localValidator{session: session},
		func(fb picking.Feedback) {
			switch fb.Outcome {
			case picking.OutcomeMatched:
				echo(manager, fmt.Sprintf("OK: %s", fb.Item.ProductName))
				prompt(manager, session)
			case picking.OutcomeWrongItem:
				echo(manager, fmt.Sprintf("Wrong item, expected UPC %s", fb.Item.UPC))
			case picking.OutcomeValidationFailed:
				echo(manager, "Scan not recorded, rescan")
			case picking.OutcomeOrderCompleted:
				echo(manager, "Order complete!")
				stop()
			case picking.OutcomeNoCurrentItem:
				echo(manager, "All items scanned")
			}
		}, log.Logger)

	fmt.Println("Type a UPC and press enter to simulate a scan. Ctrl+C to quit.")
	prompt(manager, session)

	source := barcode.NewReaderSource(os.Stdin, nil)
	if err := source.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = source.Stop() }()

	err := reconciler.Run(ctx, source.Detections())
	if err == context.Canceled {
		return nil
	}
	return err
}

func prompt(m *glasspick.Manager, s *picking.Session) {
	item, ok := s.CurrentItem()
	if !ok {
		return
	}
	scanned, total := s.Progress()
	echo(m, fmt.Sprintf("Item %d/%d: %s (UPC %s) @ %s-%s-%s",
		scanned+1, total, item.ProductName, item.UPC,
		item.Location.Aisle, item.Location.Shelf, item.Location.Bin))
}

// echo writes through the manager so the simulated link sees the real
// payloads, and mirrors the text to the terminal.
func echo(m *glasspick.Manager, text string) {
	if _, err := m.SendText(text, true); err != nil {
		log.Warn().Err(err).Msg("display write failed")
	}
	fmt.Println("[display]", text)
}

// localValidator approves any scan that reaches it; matching against the
// current item already happened upstream.
type localValidator struct {
	mu      sync.Mutex
	session *picking.Session
}

func (v *localValidator) SubmitScan(_ context.Context, _, _ string) (picking.ScanResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	scanned, total := v.session.Progress()
	return picking.ScanResult{
		Success:   true,
		Message:   "ok",
		Completed: scanned+1 == total,
	}, nil
}

func (v *localValidator) CompleteOrder(context.Context, string) error { return nil }
