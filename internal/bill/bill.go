package bill

import (
	"strings"
	"time"
)

// Party is the sender or receiver printed on a billing document
type Party struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	TaxID   string `json:"taxId,omitempty"` // GSTIN or PAN
}

// LineItem is one row of a document's items table. Values are passed through verbatim.
type LineItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Rate        string `json:"rate"`
	Amount      string `json:"amount"`
}

// Record is the normalized rendition of one scanned billing document
type Record struct {
	DocumentType   string     `json:"documentType"`
	DocumentNumber string     `json:"documentNumber"`
	Date           string     `json:"date"`
	Sender         Party      `json:"sender"`
	Receiver       Party      `json:"receiver"`
	Items          []LineItem `json:"items"`
	Subtotal       string     `json:"subtotal"`
	TaxAmount      string     `json:"taxAmount"`
	TotalAmount    string     `json:"totalAmount"`
	Currency       string     `json:"currency"`
	Notes          string     `json:"notes,omitempty"`
}

// DisplayTotal returns the total prefixed with the currency, e.g. "USD 500"
func (r *Record) DisplayTotal() string {
	return Money(r.Currency, r.TotalAmount)
}

// Money joins a currency and an amount the way the preview prints them
func Money(currency, amount string) string {
	return strings.TrimSpace(currency + " " + amount)
}

// Entry is a persisted, immutable wrapper around one past Record
type Entry struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
	Data      Record `json:"data"`
}

// CreatedAt returns the entry timestamp as a time.Time
func (e Entry) CreatedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}
