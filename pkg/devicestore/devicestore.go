// Package devicestore persists the glasses' last known status so the client
// can resume with battery levels, arm identities, and connectivity state
// from the previous run.
package devicestore

import (
	"sync"
	"time"
)

// Record is the persisted device status snapshot.
type Record struct {
	Status       string `json:"status"`
	GlassesState string `json:"glassesState"`
	Protocol     string `json:"protocol,omitempty"`

	BatteryLeft  *int `json:"batteryLeft,omitempty"`
	BatteryRight *int `json:"batteryRight,omitempty"`
	BatteryCase  *int `json:"batteryCase,omitempty"`

	LeftDeviceID    string `json:"leftDeviceId,omitempty"`
	LeftDeviceName  string `json:"leftDeviceName,omitempty"`
	RightDeviceID   string `json:"rightDeviceId,omitempty"`
	RightDeviceName string `json:"rightDeviceName,omitempty"`

	LastSeen time.Time `json:"lastSeen"`
}

// Connectivity states stored in Record.Status.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Store persists the single device record.
type Store interface {
	Get() (Record, bool, error)
	Put(Record) error
}

// MemoryStore keeps the record in memory and fans updates out to
// subscribers. It backs tests and the simulator.
type MemoryStore struct {
	mu   sync.Mutex
	rec  Record
	set  bool
	subs []func(Record)
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Get implements Store.
func (s *MemoryStore) Get() (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec, s.set, nil
}

// Put implements Store.
func (s *MemoryStore) Put(rec Record) error {
	s.mu.Lock()
	s.rec = rec
	s.set = true
	subs := make([]func(Record), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(rec)
	}
	return nil
}

// Subscribe registers fn to run after every Put.
func (s *MemoryStore) Subscribe(fn func(Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}
