package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Platform Order Value Objects
// ---------------------------------------------------------------------------

// PlatformOrder is an order as reported by the external API, already decoded
// into typed fields at the adapter boundary.
type PlatformOrder struct {
	// ExternalID is the order identifier on the external system
	ExternalID string
	// Number is the human-facing order number
	Number string
	// OrderedAt is the order date reported by the external system (zero if absent)
	OrderedAt time.Time
	// StatusID is the raw external status id, if present
	StatusID *int
	// StatusText is the raw external status text, if present
	StatusText *string
	// CustomerName is the contact name snapshot
	CustomerName string
	// Total is the order total amount
	Total decimal.Decimal
	// Items are the order lines
	Items []PlatformOrderItem
}

// PlatformOrderItem is one line of a platform order
type PlatformOrderItem struct {
	// Code is the item code used as SKU; may be blank
	Code string `json:"code"`
	// Description is the item description, if reported
	Description string `json:"description,omitempty"`
	// Quantity is the ordered quantity
	Quantity int64 `json:"quantity"`
}

// Status classifies the raw status of this order
func (o PlatformOrder) Status() CanonicalStatus {
	return Classify(o.StatusID, o.StatusText)
}

// ParsedOrder is the tagged result of decoding one order element.
// Exactly one of Order or Err is meaningful: Err is nil for a good order.
type ParsedOrder struct {
	Order PlatformOrder
	// Err wraps ErrMalformedOrder when the element could not be decoded
	Err error
}

// OK returns true if the order decoded successfully
func (p ParsedOrder) OK() bool {
	return p.Err == nil
}

// ParsedOK wraps a decoded order
func ParsedOK(order PlatformOrder) ParsedOrder {
	return ParsedOrder{Order: order}
}

// ParsedMalformed wraps a decode failure. ExternalID may be set when the
// element carried one, for logging.
func ParsedMalformed(externalID string, err error) ParsedOrder {
	return ParsedOrder{Order: PlatformOrder{ExternalID: externalID}, Err: err}
}

// FetchResult is what an order fetch for one account produced
type FetchResult struct {
	// Orders are the decoded orders in page order
	Orders []ParsedOrder
	// Partial is true when the page ceiling was reached or a page failed
	Partial bool
	// Pages is the number of pages successfully fetched
	Pages int
	// Err is the page error that aborted pagination, if any
	Err error
}
