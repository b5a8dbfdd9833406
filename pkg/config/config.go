// Package config loads and saves the client's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// CfgFile is the configuration file name inside the data directory.
const CfgFile = "glasspick.toml"

// Values is the full configuration tree.
type Values struct {
	PickPack PickPack `toml:"pickpack"`
	BLE      BLE      `toml:"ble"`
	Log      Log      `toml:"log,omitempty"`
}

// PickPack configures the order service connection.
type PickPack struct {
	BaseURL string `toml:"base_url" validate:"required,url"`
	UserID  string `toml:"user_id" validate:"required"`
}

// BLE configures discovery and connection behavior.
type BLE struct {
	ScanTimeoutSeconds int    `toml:"scan_timeout_seconds,omitempty" validate:"gte=0,lte=300"`
	AllowSingleArm     bool   `toml:"allow_single_arm,omitempty"`
	SavedLeftID        string `toml:"saved_left_id,omitempty"`
	SavedRightID       string `toml:"saved_right_id,omitempty"`
	DeviceRecordPath   string `toml:"device_record_path,omitempty"`
}

// Log configures log output.
type Log struct {
	Dir     string `toml:"dir,omitempty"`
	Level   string `toml:"level,omitempty" validate:"omitempty,oneof=trace debug info warn error"`
	Console bool   `toml:"console,omitempty"`
}

// Defaults returns the baseline configuration written on first run.
func Defaults() Values {
	return Values{
		PickPack: PickPack{
			BaseURL: "http://localhost:3000",
			UserID:  "operator",
		},
		BLE: BLE{
			ScanTimeoutSeconds: 20,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Instance is a loaded configuration bound to its file path.
type Instance struct {
	path string
	vals Values
}

// Load reads the configuration at dir/glasspick.toml, creating it from
// defaults when absent, and validates the result.
func Load(dir string, defaults Values) (*Instance, error) {
	path := filepath.Join(dir, CfgFile)
	inst := &Instance{path: path, vals: defaults}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := inst.Save(); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := toml.Unmarshal(raw, &inst.vals); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := validator.New().Struct(inst.vals); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return inst, nil
}

// Save writes the current values back to disk.
func (i *Instance) Save() error {
	if err := os.MkdirAll(filepath.Dir(i.path), 0o755); err != nil {
		return err
	}
	raw, err := toml.Marshal(i.vals)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(i.path, raw, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Values returns a copy of the loaded configuration.
func (i *Instance) Values() Values { return i.vals }

// SetSavedArms records the last connected arm device IDs and persists them.
func (i *Instance) SetSavedArms(leftID, rightID string) error {
	i.vals.BLE.SavedLeftID = leftID
	i.vals.BLE.SavedRightID = rightID
	return i.Save()
}

// Path returns the config file path.
func (i *Instance) Path() string { return i.path }
