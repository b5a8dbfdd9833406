package glasspick

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"tinygo.org/x/bluetooth"
)

// BLETransport implements Transport and ScanTransport over the system
// Bluetooth adapter. One instance wraps the process-wide adapter; the
// adapter is enabled lazily, exactly once.
type BLETransport struct {
	adapter   *bluetooth.Adapter
	enableOne sync.Once
	enableErr error

	mu           sync.Mutex
	onDisconnect DisconnectHandler
}

// NewBLETransport returns a transport over the default system adapter.
func NewBLETransport() *BLETransport {
	return &BLETransport{adapter: bluetooth.DefaultAdapter}
}

func (t *BLETransport) enable() error {
	t.enableOne.Do(func() {
		t.enableErr = t.adapter.Enable()
		if t.enableErr != nil {
			return
		}
		t.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
			if connected {
				return
			}
			t.mu.Lock()
			fn := t.onDisconnect
			t.mu.Unlock()
			if fn != nil {
				fn(device.Address.String())
			}
		})
	})
	return t.enableErr
}

// SetDisconnectHandler implements Transport.
func (t *BLETransport) SetDisconnectHandler(fn DisconnectHandler) {
	t.mu.Lock()
	t.onDisconnect = fn
	t.mu.Unlock()
}

// Connect implements Transport. It connects, discovers the profile's
// service and characteristics, and subscribes to notifications before
// returning, so no early device event is lost.
func (t *BLETransport) Connect(ctx context.Context, dev FoundDevice, profile GATTProfile, onNotify NotificationHandler) (Link, error) {
	if err := t.enable(); err != nil {
		return nil, fmt.Errorf("failed to enable bluetooth adapter: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("connect aborted: %w", err)
	}

	device, err := t.adapter.Connect(dev.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("transport connect to %q failed: %w", dev.Name, err)
	}

	services, err := device.DiscoverServices(nil)
	if err != nil {
		_ = device.Disconnect()
		return nil, fmt.Errorf("could not discover services on %q: %w", dev.Name, err)
	}

	var service bluetooth.DeviceService
	serviceFound := false
	observed := make([]string, 0, len(services))
	for _, s := range services {
		observed = append(observed, s.UUID().String())
		if s.UUID() == profile.Service {
			service = s
			serviceFound = true
		}
	}
	if !serviceFound {
		_ = device.Disconnect()
		// Firmware variance is common on this hardware; the observed UUID
		// list is the only useful diagnostic.
		return nil, fmt.Errorf("service %s not found, available: [%s]",
			profile.Service.String(), strings.Join(observed, ", "))
	}

	chars, err := service.DiscoverCharacteristics(nil)
	if err != nil {
		_ = device.Disconnect()
		return nil, fmt.Errorf("could not discover characteristics on %q: %w", dev.Name, err)
	}

	var writeChar, notifyChar bluetooth.DeviceCharacteristic
	writeFound, notifyFound := false, false
	observedChars := make([]string, 0, len(chars))
	for _, c := range chars {
		observedChars = append(observedChars, c.UUID().String())
		switch c.UUID() {
		case profile.Write:
			writeChar = c
			writeFound = true
		case profile.Notify:
			notifyChar = c
			notifyFound = true
		}
	}
	if !writeFound {
		_ = device.Disconnect()
		return nil, fmt.Errorf("write characteristic %s not found, available: [%s]",
			profile.Write.String(), strings.Join(observedChars, ", "))
	}

	if notifyFound && onNotify != nil {
		if err := notifyChar.EnableNotifications(onNotify); err != nil {
			_ = device.Disconnect()
			return nil, fmt.Errorf("failed to enable notifications on %q: %w", dev.Name, err)
		}
	} else if !notifyFound {
		log.Warn().Str("device", dev.Name).Msg("notify characteristic absent, device events unavailable")
	}

	return &bleLink{device: device, write: writeChar}, nil
}

// ConnectedPeripherals implements Transport. The adapter API offers no way
// to enumerate OS-level connections, so restoration from prior pairings is
// only available on transports that can report them.
func (t *BLETransport) ConnectedPeripherals(GATTProfile) []FoundDevice {
	return nil
}

// Scan implements ScanTransport, streaming every named advertisement until
// ctx is done.
func (t *BLETransport) Scan(ctx context.Context, fn func(FoundDevice)) error {
	if err := t.enable(); err != nil {
		return fmt.Errorf("failed to enable bluetooth adapter: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- t.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			name := result.LocalName()
			if name == "" {
				return
			}
			fn(FoundDevice{
				Name:    name,
				ID:      result.Address.String(),
				Address: result.Address,
				RSSI:    int(result.RSSI),
			})
		})
	}()

	select {
	case <-ctx.Done():
		if err := t.adapter.StopScan(); err != nil {
			log.Warn().Err(err).Msg("failed to stop scan cleanly")
		}
		if err := <-done; err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		return nil
	case err := <-done:
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		return nil
	}
}

type bleLink struct {
	device bluetooth.Device
	write  bluetooth.DeviceCharacteristic
}

func (l *bleLink) Write(data []byte) (int, error) {
	n, err := l.write.WriteWithoutResponse(data)
	if err != nil {
		return n, fmt.Errorf("characteristic write failed: %w", err)
	}
	return n, nil
}

func (l *bleLink) Disconnect() error {
	if err := l.device.Disconnect(); err != nil {
		return fmt.Errorf("transport disconnect failed: %w", err)
	}
	return nil
}
