// Package barcode defines the detection stream contract between a scanning
// source (glasses camera, handheld scanner, simulator) and the reconciliation
// engine that consumes detected codes.
package barcode

import (
	"context"
	"time"
)

// Detection is one decoded barcode observation.
type Detection struct {
	// Type is the symbology, e.g. "upc_a", "ean_13", "code_128".
	Type string
	// Data is the decoded payload.
	Data string
	// Confidence is the decoder's confidence in [0, 1]. Sources that do not
	// report confidence use 1.
	Confidence float64
	// Timestamp is when the code was decoded.
	Timestamp time.Time
}

// Source produces barcode detections. Implementations own their device
// lifecycle; Detections returns a channel that is closed when the stream
// ends.
type Source interface {
	// Start begins producing detections. It returns once the stream is
	// established; detections arrive on the Detections channel.
	Start(ctx context.Context) error
	// Stop tears the stream down and closes the Detections channel.
	Stop() error
	// Detections is the stream of decoded codes.
	Detections() <-chan Detection
}
