package scanning

import (
	"context"

	"github.com/zombor/cfd-invoice/internal/bill"
)

// Scanner defines the interface for billing document extraction
type Scanner interface {
	// Extract sends one document to the provider and returns the structured record.
	// Each call is independent: no retry, no caching.
	Extract(ctx context.Context, data []byte, mimeType string) (*bill.Record, error)
	// Close closes the scanner and releases resources
	Close() error
}
