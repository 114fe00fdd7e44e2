package integration

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SalesOrder is the local mirror of one external order.
// (ExternalOrderID, AccountID) is unique. Processed moves from false to true
// once and ProcessedAt is written with it.
type SalesOrder struct {
	shared.Entity
	ExternalOrderID   string
	AccountID         uuid.UUID
	OrderNumber       string
	Status            CanonicalStatus
	StatusID          *int
	CustomerName      string
	TotalAmount       decimal.Decimal
	Items             []PlatformOrderItem
	Processed         bool
	ProcessedAt       *time.Time
	ExternalCreatedAt *time.Time
}

// NewSalesOrder creates the local mirror of a platform order on first sighting
func NewSalesOrder(accountID uuid.UUID, order PlatformOrder, status CanonicalStatus) (*SalesOrder, error) {
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	if strings.TrimSpace(order.ExternalID) == "" {
		return nil, shared.NewDomainError("INVALID_EXTERNAL_ID", "External order ID cannot be empty")
	}

	so := &SalesOrder{
		Entity:          shared.NewEntity(),
		ExternalOrderID: order.ExternalID,
		AccountID:       accountID,
	}
	so.applySnapshot(order, status)
	return so, nil
}

// ApplySnapshot refreshes the fields that follow the external order.
// Processed and ProcessedAt are never touched here.
func (o *SalesOrder) ApplySnapshot(order PlatformOrder, status CanonicalStatus) {
	o.applySnapshot(order, status)
	o.Touch(time.Now())
}

func (o *SalesOrder) applySnapshot(order PlatformOrder, status CanonicalStatus) {
	o.OrderNumber = order.Number
	o.Status = status
	o.StatusID = order.StatusID
	o.CustomerName = order.CustomerName
	o.TotalAmount = order.Total
	o.Items = append([]PlatformOrderItem(nil), order.Items...)
	if !order.OrderedAt.IsZero() {
		orderedAt := order.OrderedAt
		o.ExternalCreatedAt = &orderedAt
	}
}

// MarkProcessed flips the processed flag. It fails if the order was already processed.
func (o *SalesOrder) MarkProcessed(at time.Time) error {
	if o.Processed {
		return ErrOrderAlreadyProcessed
	}
	o.Processed = true
	o.ProcessedAt = &at
	o.Touch(at)
	return nil
}

// ItemsJSON serializes the line-item snapshot
func (o *SalesOrder) ItemsJSON() (string, error) {
	items := o.Items
	if items == nil {
		items = []PlatformOrderItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
