package glasspick

import (
	"strings"
	"time"
)

// RetryPolicy bounds reconnection attempts after a failed connect.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first
	// failure.
	MaxRetries int
	// Backoff is the wait between attempts.
	Backoff time.Duration
}

var (
	// PairingRetryPolicy applies when the error text suggests a
	// pairing/bonding problem. The peripheral may be waiting on a user
	// confirmation, so more attempts with a longer wait.
	PairingRetryPolicy = RetryPolicy{MaxRetries: 4, Backoff: 3 * time.Second}
	// GeneralRetryPolicy applies to every other transport error.
	GeneralRetryPolicy = RetryPolicy{MaxRetries: 2, Backoff: 2 * time.Second}
)

var pairingKeywords = []string{"pair", "bond", "authentication", "encrypt"}

// IsPairingError classifies an error by its text. BLE stacks don't expose a
// structured cause for bonding failures, keyword matching is the best
// available signal.
func IsPairingError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range pairingKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// RetryClassifier picks the retry policy for a given connect error.
type RetryClassifier func(err error) RetryPolicy

// DefaultRetryClassifier routes pairing-flavored errors to
// PairingRetryPolicy and everything else to GeneralRetryPolicy.
func DefaultRetryClassifier(err error) RetryPolicy {
	if IsPairingError(err) {
		return PairingRetryPolicy
	}
	return GeneralRetryPolicy
}
