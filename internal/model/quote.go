package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rates are written as plain JSON numbers. Both numbers and strings are
// accepted on input.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// QuoteRequest is the input to preview and submission.
type QuoteRequest struct {
	BaseItemID   int64           `json:"baseItemId" validate:"required,gt=0"`
	Quantity     int             `json:"quantity"`
	OptionIDs    []int64         `json:"optionIds" validate:"omitempty,dive,gt=0"`
	DiscountRate decimal.Decimal `json:"discountRate"`
	TaxRate      decimal.Decimal `json:"taxRate"`
}

// OptionLine is one selected option inside a breakdown.
type OptionLine struct {
	OptionID  int64  `json:"optionId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"lineTotal"`
}

// QuoteBreakdown is the itemised result of a computation. DiscountAmount and
// TaxAmount are display values derived from the other fields.
type QuoteBreakdown struct {
	BaseItemID     int64           `json:"baseItemId"`
	ItemName       string          `json:"itemName"`
	BaseUnitPrice  int64           `json:"baseUnitPrice"`
	Quantity       int             `json:"quantity"`
	Options        []OptionLine    `json:"options"`
	ItemsTotal     int64           `json:"itemsTotal"`
	OptionsTotal   int64           `json:"optionsTotal"`
	Subtotal       int64           `json:"subtotal"`
	DiscountRate   decimal.Decimal `json:"discountRate"`
	TaxRate        decimal.Decimal `json:"taxRate"`
	DiscountAmount int64           `json:"discountAmount"`
	TaxAmount      int64           `json:"taxAmount"`
	FinalTotal     int64           `json:"finalTotal"`
}

// PersistedQuote is a breakdown stored under an idempotency key. It is never
// updated after creation.
type PersistedQuote struct {
	ID             uuid.UUID `json:"id"`
	IdempotencyKey string    `json:"idempotencyKey"`
	CreatedAt      time.Time `json:"createdAt"`
	QuoteBreakdown
}

// KeyState is the lifecycle of an idempotency key.
type KeyState int

const (
	KeyUnseen KeyState = iota
	KeyInProgress
	KeyCompleted
)

func (s KeyState) String() string {
	switch s {
	case KeyInProgress:
		return "in_progress"
	case KeyCompleted:
		return "completed"
	default:
		return "unseen"
	}
}
