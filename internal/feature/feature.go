// Package feature normalizes raw transactions into feature records for
// rule evaluation, behavioral baselining, and risk scoring.
package feature

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Transaction is the immutable input to the scoring pipeline.
type Transaction struct {
	ID        string  `json:"transaction_id"`
	AccountID string  `json:"account_id"`
	Amount    float64 `json:"amount"`
	Timestamp string  `json:"timestamp"` // RFC 3339 or bare ISO 8601
	Location  string  `json:"location"`
	Merchant  string  `json:"merchant"`
	Type      string  `json:"type"`
	Method    string  `json:"method"`
	DeviceID  string  `json:"device_id,omitempty"`
}

// KnownTypes lists the transaction types the default rule set is tuned
// for. Validation does not reject others; the list feeds tool and API
// descriptions.
var KnownTypes = []string{"purchase", "withdrawal", "transfer", "wire", "deposit", "refund"}

// Validate checks required fields at the request boundary. Malformed
// timestamps are NOT an error here; extraction absorbs them.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction_id is required")
	}
	if t.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}
	if t.Amount < 0 {
		return fmt.Errorf("amount must be non-negative, got %v", t.Amount)
	}
	return nil
}

// Field looks up a named transaction field for rule matching. Empty string
// fields report absent, mirroring a missing key in the wire payload.
func (t *Transaction) Field(name string) (any, bool) {
	switch name {
	case "amount":
		return t.Amount, true
	case "transaction_id":
		return strOrAbsent(t.ID)
	case "account_id":
		return strOrAbsent(t.AccountID)
	case "timestamp":
		return strOrAbsent(t.Timestamp)
	case "location":
		return strOrAbsent(t.Location)
	case "merchant":
		return strOrAbsent(t.Merchant)
	case "type":
		return strOrAbsent(t.Type)
	case "method":
		return strOrAbsent(t.Method)
	case "device_id":
		return strOrAbsent(t.DeviceID)
	}
	return nil, false
}

func strOrAbsent(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	return s, true
}

// Record is the normalized feature set derived from one transaction.
// Call-scoped; never persisted.
type Record struct {
	LogAmount float64 `json:"log_amount"`
	Hour      int     `json:"hour"`        // [0,23]
	DayOfWeek int     `json:"day_of_week"` // Monday=0 .. Sunday=6
	IsWeekend bool    `json:"is_weekend"`
	Location  string  `json:"location"`
	Merchant  string  `json:"merchant"`
	TxnType   string  `json:"txn_type"`
	HasDevice bool    `json:"has_device_id"`
}

// Timestamp layouts accepted by the pipeline, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses a transaction timestamp.
func ParseTime(ts string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", ts)
}

// Extract derives a feature record from a transaction. It never fails:
// an unparseable timestamp defaults to noon on a Monday so that feature
// extraction cannot block the pipeline. The anomaly model takes the
// opposite policy for the same input; see baseline.IsAnomalous.
func Extract(t *Transaction) Record {
	rec := Record{
		Location:  lowerOrUnknown(t.Location),
		Merchant:  lowerOrUnknown(t.Merchant),
		TxnType:   lowerOrUnknown(t.Type),
		HasDevice: t.DeviceID != "",
	}

	if t.Amount > 0 {
		rec.LogAmount = math.Round(math.Log1p(t.Amount)*1e4) / 1e4
	}

	if ts, err := ParseTime(t.Timestamp); err == nil {
		rec.Hour = ts.Hour()
		rec.DayOfWeek = mondayIndexed(ts.Weekday())
		rec.IsWeekend = rec.DayOfWeek >= 5
	} else {
		rec.Hour = 12
		rec.DayOfWeek = 0
		rec.IsWeekend = false
	}

	return rec
}

// mondayIndexed converts Go's Sunday=0 weekday to Monday=0.
func mondayIndexed(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func lowerOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s)
}
