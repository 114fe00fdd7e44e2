package integration

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Canonical Status
// ---------------------------------------------------------------------------

// StatusCode is the closed set of order statuses known to the sync engine.
// StatusCodeRaw marks a status carried through verbatim from the external system.
type StatusCode string

const (
	StatusCodeOpen               StatusCode = "OPEN"
	StatusCodeInProgress         StatusCode = "IN_PROGRESS"
	StatusCodeAwaitingPayment    StatusCode = "AWAITING_PAYMENT"
	StatusCodeReadyToShip        StatusCode = "READY_TO_SHIP"
	StatusCodeVerified           StatusCode = "VERIFIED"
	StatusCodeShipped            StatusCode = "SHIPPED"
	StatusCodeDelivered          StatusCode = "DELIVERED"
	StatusCodeCanceled           StatusCode = "CANCELED"
	StatusCodeReturned           StatusCode = "RETURNED"
	StatusCodeCompleted          StatusCode = "COMPLETED"
	StatusCodeAwaitingProcessing StatusCode = "AWAITING_PROCESSING"
	StatusCodeRaw                StatusCode = "RAW"
)

// IsValid returns true if the code is one of the defined codes
func (c StatusCode) IsValid() bool {
	if c == StatusCodeRaw || c == StatusCodeAwaitingProcessing {
		return true
	}
	_, ok := statusNames[c]
	return ok
}

// String returns the string representation of StatusCode
func (c StatusCode) String() string {
	return string(c)
}

// awaitingProcessingName is returned when neither id nor text identify a status
const awaitingProcessingName = "Awaiting Processing"

// statusTable maps external status ids to canonical statuses
var statusTable = map[int]StatusCode{
	1:  StatusCodeOpen,
	2:  StatusCodeInProgress,
	3:  StatusCodeAwaitingPayment,
	4:  StatusCodeReadyToShip,
	5:  StatusCodeVerified,
	6:  StatusCodeShipped,
	7:  StatusCodeDelivered,
	8:  StatusCodeCanceled,
	9:  StatusCodeReturned,
	10: StatusCodeCompleted,
}

var statusNames = map[StatusCode]string{
	StatusCodeOpen:            "Open",
	StatusCodeInProgress:      "In Progress",
	StatusCodeAwaitingPayment: "Awaiting Payment",
	StatusCodeReadyToShip:     "Ready to Ship",
	StatusCodeVerified:        "Verified",
	StatusCodeShipped:         "Shipped",
	StatusCodeDelivered:       "Delivered",
	StatusCodeCanceled:        "Canceled",
	StatusCodeReturned:        "Returned",
	StatusCodeCompleted:       "Completed",
}

// CanonicalStatus is the normalized status of an order.
// Raw is only set when Code is StatusCodeRaw.
type CanonicalStatus struct {
	Code StatusCode
	Raw  string
}

// StatusOf returns the canonical status for a known code
func StatusOf(code StatusCode) CanonicalStatus {
	return CanonicalStatus{Code: code}
}

// RawStatus returns a passthrough status carrying the given text
func RawStatus(text string) CanonicalStatus {
	return CanonicalStatus{Code: StatusCodeRaw, Raw: text}
}

// Name returns the display name persisted and compared by the sync engine
func (s CanonicalStatus) Name() string {
	switch s.Code {
	case StatusCodeRaw:
		return s.Raw
	case StatusCodeAwaitingProcessing:
		return awaitingProcessingName
	}
	if name, ok := statusNames[s.Code]; ok {
		return name
	}
	return string(s.Code)
}

// String implements fmt.Stringer
func (s CanonicalStatus) String() string {
	return s.Name()
}

// IsRaw returns true if the status was passed through from the external system
func (s CanonicalStatus) IsRaw() bool {
	return s.Code == StatusCodeRaw
}

// Equal compares statuses by display name, so a raw text matching a known
// name equals the known status.
func (s CanonicalStatus) Equal(other CanonicalStatus) bool {
	return s.Name() == other.Name()
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

// Classify maps a raw external status to a canonical status. First match wins:
//  1. a known id returns its table entry
//  2. non-blank text returns the trimmed text
//  3. an unknown id returns "Status {id}"
//  4. otherwise "Awaiting Processing"
func Classify(statusID *int, statusText *string) CanonicalStatus {
	if statusID != nil {
		if code, ok := statusTable[*statusID]; ok {
			return StatusOf(code)
		}
	}

	if statusText != nil {
		if text := strings.TrimSpace(*statusText); text != "" {
			return ParseCanonicalStatus(text)
		}
	}

	if statusID != nil {
		return RawStatus(fmt.Sprintf("Status %d", *statusID))
	}

	return StatusOf(StatusCodeAwaitingProcessing)
}

// ParseCanonicalStatus resolves a display name to its status. Names outside
// the table become raw statuses with the trimmed text.
func ParseCanonicalStatus(name string) CanonicalStatus {
	name = strings.TrimSpace(name)
	for code, known := range statusNames {
		if known == name {
			return StatusOf(code)
		}
	}
	if name == awaitingProcessingName {
		return StatusOf(StatusCodeAwaitingProcessing)
	}
	return RawStatus(name)
}
