// glasspick is the warehouse picking client: it pairs Even Realities G1
// glasses over BLE, pulls the operator's active pick orders, and reconciles
// scanned barcodes against them, pushing prompts and results to the displays.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/pickline/glasspick"
	"github.com/pickline/glasspick/pkg/barcode"
	"github.com/pickline/glasspick/pkg/config"
	"github.com/pickline/glasspick/pkg/devicestore"
	"github.com/pickline/glasspick/pkg/logging"
	"github.com/pickline/glasspick/pkg/pickpack"
	"github.com/pickline/glasspick/pkg/picking"
	"github.com/pickline/glasspick/pkg/protocols/g1"
)

const (
	orderPollInterval      = 10 * time.Second
	batteryRefreshInterval = time.Minute
)

func main() {
	dataDir := flag.String("data", defaultDataDir(), "data directory for config, logs and device state")
	flag.Parse()

	if err := run(*dataDir); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "glasspick")
}

func run(dataDir string) error {
	cfg, err := config.Load(dataDir, config.Defaults())
	if err != nil {
		return err
	}
	vals := cfg.Values()

	logCfg := vals.Log
	if logCfg.Dir == "" {
		logCfg.Dir = filepath.Join(dataDir, "logs")
	}
	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recordPath := vals.BLE.DeviceRecordPath
	if recordPath == "" {
		recordPath = filepath.Join(dataDir, "devices.db")
	}
	store, err := devicestore.OpenBolt(recordPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	recorder := devicestore.NewRecorder(store, nil, log.Logger)

	protocol := g1.New()
	transport := glasspick.NewBLETransport()
	manager := glasspick.NewManager(protocol, transport,
		glasspick.WithStatusRecorder(recorder),
		glasspick.WithEventHandler(func(side glasspick.ArmSide, ev glasspick.Event) {
			log.Debug().Str("side", side.String()).Type("event", ev).Msg("device event")
		}),
	)

	saved := glasspick.SavedArms{LeftID: vals.BLE.SavedLeftID, RightID: vals.BLE.SavedRightID}
	if saved.LeftID == "" && saved.RightID == "" {
		saved.LeftID, saved.RightID = recorder.SavedArms()
	}
	scannerOpts := []glasspick.ScannerOption{glasspick.WithSavedArms(saved)}
	if vals.BLE.ScanTimeoutSeconds > 0 {
		scannerOpts = append(scannerOpts,
			glasspick.WithScanTimeout(time.Duration(vals.BLE.ScanTimeoutSeconds)*time.Second))
	}
	if vals.BLE.AllowSingleArm {
		scannerOpts = append(scannerOpts,
			glasspick.WithSingleArmPrompt(func(connected, missing glasspick.ArmSide) glasspick.ConnectDecision {
				log.Warn().
					Str("connected", connected.String()).
					Str("missing", missing.String()).
					Msg("proceeding with a single arm")
				return glasspick.DecisionSingleArm
			}))
	}
	scanner := glasspick.NewScanner(manager, transport, scannerOpts...)

	log.Info().Msg("scanning for glasses")
	if err := scanner.Run(ctx); err != nil {
		return fmt.Errorf("device discovery: %w", err)
	}
	if !manager.FullyConnected() {
		return errors.New("no glasses found")
	}
	defer func() {
		_ = manager.Disconnect(glasspick.ArmLeft)
		_ = manager.Disconnect(glasspick.ArmRight)
	}()

	state := manager.State()
	if left := state.LeftArm; left != nil {
		if right := state.RightArm; right != nil {
			if err := cfg.SetSavedArms(left.DeviceID, right.DeviceID); err != nil {
				log.Warn().Err(err).Msg("saving arm ids")
			}
		}
	}

	if _, err := manager.RequestBattery(); err != nil {
		log.Warn().Err(err).Msg("requesting battery")
	}
	if _, err := manager.EnterManualMode(); err != nil {
		return fmt.Errorf("entering display mode: %w", err)
	}
	defer func() {
		_, _ = manager.ClearDisplays()
		_, _ = manager.ExitDisplay()
	}()

	source := barcode.NewReaderSource(os.Stdin, nil)
	if err := source.Start(ctx); err != nil {
		return fmt.Errorf("starting barcode source: %w", err)
	}
	defer func() { _ = source.Stop() }()

	ctrl := &pickController{
		manager: manager,
		service: pickpack.New(vals.PickPack.BaseURL, log.Logger),
		userID:  vals.PickPack.UserID,
		poll:    orderPollInterval,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return batteryLoop(gctx, manager, batteryRefreshInterval) })
	g.Go(func() error { return ctrl.run(gctx, source.Detections()) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// batteryLoop refreshes battery readings so the persisted device record
// stays current over a long shift.
func batteryLoop(ctx context.Context, manager *glasspick.Manager, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := manager.RequestBattery(); err != nil {
				log.Warn().Err(err).Msg("requesting battery")
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// errSourceClosed signals the barcode stream ended, which means the operator
// closed the input and the client should shut down.
var errSourceClosed = errors.New("barcode source closed")

// orderService is the slice of the pick-pack API the run loop needs.
type orderService interface {
	picking.Validator
	GetActiveOrder(ctx context.Context, userID string) (*picking.Order, error)
}

// pickController runs pick orders back to back: wait for an order, work it
// to completion, then fetch the next one.
type pickController struct {
	manager *glasspick.Manager
	service orderService
	userID  string
	poll    time.Duration
}

func (c *pickController) run(ctx context.Context, detections <-chan barcode.Detection) error {
	for {
		order, err := c.waitForOrder(ctx)
		if err != nil {
			return err
		}
		if err := c.runOrder(ctx, *order, detections); err != nil {
			if errors.Is(err, errSourceClosed) {
				log.Info().Msg("barcode source closed, exiting")
				return nil
			}
			return err
		}
	}
}

// waitForOrder polls until the user has an active pick order or ctx ends.
func (c *pickController) waitForOrder(ctx context.Context) (*picking.Order, error) {
	for {
		order, err := c.service.GetActiveOrder(ctx, c.userID)
		if err != nil {
			log.Warn().Err(err).Msg("fetching active order")
		} else if order != nil {
			log.Info().Str("orderId", order.ID).Int("items", len(order.Items)).Msg("active pick order loaded")
			return order, nil
		} else {
			log.Info().Msg("no active pick order, waiting")
			_, _ = c.manager.SendText("No pick orders assigned.\nWaiting...", true)
		}
		select {
		case <-time.After(c.poll):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// runOrder reconciles detections against one order. It returns nil once the
// order completes so the caller can load the next one.
func (c *pickController) runOrder(ctx context.Context, order picking.Order, detections <-chan barcode.Detection) error {
	session := picking.NewSession(order, nil)
	display := &glassesDisplay{manager: c.manager, session: session}
	reconciler := picking.NewReconciler(session, c.service, display.onFeedback, log.Logger)

	display.showCurrentItem()

	err := reconciler.Run(ctx, detections)
	switch {
	case session.Completed():
		return nil
	case err == nil:
		return errSourceClosed
	default:
		return err
	}
}

// glassesDisplay renders reconciliation feedback onto the lenses.
type glassesDisplay struct {
	manager *glasspick.Manager
	session *picking.Session
}

func (d *glassesDisplay) showCurrentItem() {
	item, ok := d.session.CurrentItem()
	if !ok {
		return
	}
	scanned, total := d.session.Progress()
	text := fmt.Sprintf("Item %d/%d\n%s\nQty %d  UPC %s\nAisle %s  Shelf %s  Bin %s",
		scanned+1, total, item.ProductName, item.Quantity, item.UPC,
		item.Location.Aisle, item.Location.Shelf, item.Location.Bin)
	if _, err := d.manager.SendText(text, true); err != nil {
		log.Warn().Err(err).Msg("displaying item prompt")
	}
}

func (d *glassesDisplay) onFeedback(fb picking.Feedback) {
	switch fb.Outcome {
	case picking.OutcomeMatched:
		if fb.Result.Recall != nil {
			d.send(fmt.Sprintf("RECALL: %s\n%s", fb.Result.Recall.ProductName, fb.Result.Recall.Instructions))
		} else {
			d.send(fmt.Sprintf("OK: %s", fb.Item.ProductName))
		}
		d.showCurrentItem()
	case picking.OutcomeWrongItem:
		d.send(fmt.Sprintf("Wrong item!\nExpected %s\nUPC %s", fb.Item.ProductName, fb.Item.UPC))
	case picking.OutcomeValidationFailed:
		d.send("Scan not recorded.\nPlease rescan.")
	case picking.OutcomeOrderCompleted:
		scanned, total := d.session.Progress()
		d.send(fmt.Sprintf("Order complete!\n%d/%d items picked", scanned, total))
	case picking.OutcomeNoCurrentItem:
		d.send("All items scanned.")
	}
}

func (d *glassesDisplay) send(text string) {
	if _, err := d.manager.SendText(text, true); err != nil {
		log.Warn().Err(err).Msg("displaying feedback")
	}
}
