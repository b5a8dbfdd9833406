// Package picking holds the pick-order domain model and the barcode
// reconciliation engine that bridges camera-detected codes to the expected
// item queue.
package picking

import "time"

// Status is the lifecycle state of a pick order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Location is a warehouse position.
type Location struct {
	Aisle string `json:"aisle"`
	Shelf string `json:"shelf"`
	Bin   string `json:"bin"`
}

// Item is one product an operator must locate and scan. Items are processed
// in list order; the current item is the first one not yet scanned.
type Item struct {
	ProductID   string     `json:"productId"`
	UPC         string     `json:"upc"`
	ProductName string     `json:"productName"`
	Quantity    int        `json:"quantity"`
	Location    Location   `json:"location"`
	Scanned     bool       `json:"scanned"`
	ScannedAt   *time.Time `json:"scannedAt,omitempty"`
}

// Order is a queued list of items assigned to one operator.
type Order struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	UserName       string     `json:"userName"`
	OrganizationID string     `json:"organizationId"`
	Items          []Item     `json:"items"`
	CurrentStep    int        `json:"currentStep"`
	Status         Status     `json:"status"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// RecallAlert flags a product recall surfaced by the validation service
// during a scan.
type RecallAlert struct {
	ID           string    `json:"id"`
	UPC          string    `json:"upc"`
	ProductName  string    `json:"productName"`
	Reason       string    `json:"reason"`
	RecallDate   time.Time `json:"recallDate"`
	Instructions string    `json:"instructions"`
	Severity     string    `json:"severity"`
}

// ScanResult is the validation service's verdict on a submitted code.
type ScanResult struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	Recall    *RecallAlert `json:"recall,omitempty"`
	Completed bool         `json:"completed,omitempty"`
}
