package ecommerce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/ordersync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

// ordersEnvelope is the order listing response body
type ordersEnvelope struct {
	Data *[]json.RawMessage `json:"data"`
}

// orderPayload is one element of the listing
type orderPayload struct {
	ID      flexString      `json:"id"`
	Number  flexString      `json:"number"`
	Date    string          `json:"date"`
	Status  *statusPayload  `json:"status"`
	Contact *contactPayload `json:"contact"`
	Total   flexDecimal     `json:"total"`
	Items   []itemPayload   `json:"items"`
}

// statusPayload carries the status id and a text under one of several keys
type statusPayload struct {
	ID          *flexInt `json:"id"`
	Value       string   `json:"value"`
	Name        string   `json:"name"`
	Text        string   `json:"text"`
	Description string   `json:"description"`
}

type contactPayload struct {
	Name string `json:"name"`
}

type itemPayload struct {
	Code        flexString  `json:"code"`
	Description string      `json:"description"`
	Quantity    flexDecimal `json:"quantity"`
}

// text returns the first non-blank status text
func (s *statusPayload) text() string {
	for _, candidate := range []string{s.Value, s.Name, s.Text, s.Description} {
		if t := strings.TrimSpace(candidate); t != "" {
			return t
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// Lenient scalars
// ---------------------------------------------------------------------------

// flexString accepts a JSON string or number
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts a JSON integer or an integer string
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	n, err := strconv.Atoi(string(s))
	if err != nil {
		return fmt.Errorf("expected integer, got %s", data)
	}
	*f = flexInt(n)
	return nil
}

// flexDecimal accepts a JSON number or a numeric string. Null and "" are zero.
type flexDecimal struct {
	decimal.Decimal
	Set bool
}

func (f *flexDecimal) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*f = flexDecimal{}
		return nil
	}
	d, err := decimal.NewFromString(string(s))
	if err != nil {
		return fmt.Errorf("expected decimal, got %s", data)
	}
	*f = flexDecimal{Decimal: d, Set: true}
	return nil
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

var orderDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// decodeEnvelope decodes a listing body into its raw order elements
func decodeEnvelope(body []byte) ([]json.RawMessage, error) {
	var env ordersEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrMalformedPayload, err)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("%w: missing data array", integration.ErrMalformedPayload)
	}
	return *env.Data, nil
}

// decodeOrder turns one listing element into a tagged result
func decodeOrder(raw json.RawMessage) integration.ParsedOrder {
	var payload orderPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return integration.ParsedMalformed(peekOrderID(raw), fmt.Errorf("%w: %v", integration.ErrMalformedOrder, err))
	}

	id := string(payload.ID)
	if id == "" {
		return integration.ParsedMalformed("", fmt.Errorf("%w: missing id", integration.ErrMalformedOrder))
	}
	number := string(payload.Number)
	if number == "" {
		return integration.ParsedMalformed(id, fmt.Errorf("%w: missing number", integration.ErrMalformedOrder))
	}

	orderedAt, err := parseOrderDate(payload.Date)
	if err != nil {
		return integration.ParsedMalformed(id, fmt.Errorf("%w: %v", integration.ErrMalformedOrder, err))
	}

	order := integration.PlatformOrder{
		ExternalID: id,
		Number:     number,
		OrderedAt:  orderedAt,
		Total:      payload.Total.Decimal,
		Items:      make([]integration.PlatformOrderItem, 0, len(payload.Items)),
	}

	if payload.Status != nil {
		if payload.Status.ID != nil {
			statusID := int(*payload.Status.ID)
			order.StatusID = &statusID
		}
		if text := payload.Status.text(); text != "" {
			order.StatusText = &text
		}
	}
	if payload.Contact != nil {
		order.CustomerName = strings.TrimSpace(payload.Contact.Name)
	}

	for i, item := range payload.Items {
		qty := item.Quantity.Decimal
		if !item.Quantity.Set || !qty.IsInteger() || !qty.IsPositive() || !qty.BigInt().IsInt64() {
			return integration.ParsedMalformed(id, fmt.Errorf("%w: item %d has invalid quantity %q", integration.ErrMalformedOrder, i, qty.String()))
		}
		order.Items = append(order.Items, integration.PlatformOrderItem{
			Code:        string(item.Code),
			Description: strings.TrimSpace(item.Description),
			Quantity:    qty.IntPart(),
		})
	}

	return integration.ParsedOK(order)
}

func parseOrderDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range orderDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// peekOrderID recovers the id of an element that failed to decode, for logging
func peekOrderID(raw json.RawMessage) string {
	var probe struct {
		ID flexString `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return string(probe.ID)
}
