// Package pricing turns a quote request and a catalog price snapshot into an
// itemised breakdown. Everything here is pure: no I/O, no shared state.
package pricing

import (
	"fmt"
	"math"

	"estimate-api/internal/model"

	"github.com/shopspring/decimal"
)

var (
	one      = decimal.NewFromInt(1)
	maxMoney = decimal.NewFromInt(math.MaxInt64)
)

// Compute builds the breakdown for req against prices.
//
// Discount is applied before tax and the final total is rounded half-up to a
// whole currency unit exactly once, after tax. Option lines keep the order in
// which options first appear in the request; repeated ids collapse to one line.
func Compute(req model.QuoteRequest, prices model.ResolvedPrices) (model.QuoteBreakdown, error) {
	if err := ValidateRequest(req); err != nil {
		return model.QuoteBreakdown{}, err
	}

	base := prices.BaseItem
	if base.ID != req.BaseItemID {
		return model.QuoteBreakdown{}, model.NewValidationError("baseItemId",
			fmt.Sprintf("prices resolved for base item %d, request names %d", base.ID, req.BaseItemID))
	}
	if base.UnitPrice < 0 {
		return model.QuoteBreakdown{}, model.NewValidationError("baseUnitPrice", "unit price must not be negative")
	}

	itemsTotal, ok := mulInt64(base.UnitPrice, int64(req.Quantity))
	if !ok {
		return model.QuoteBreakdown{}, model.NewValidationError("quantity", "items total overflows")
	}

	ids := DistinctOptionIDs(req.OptionIDs)
	lines := make([]model.OptionLine, 0, len(ids))
	var optionsTotal int64
	for _, id := range ids {
		opt, found := prices.Options[id]
		if !found {
			return model.QuoteBreakdown{}, model.NewValidationError("optionIds",
				fmt.Sprintf("option %d was not resolved", id))
		}
		if opt.BaseItemID != base.ID {
			return model.QuoteBreakdown{}, model.NewMismatchError("optionIds",
				fmt.Sprintf("option %d belongs to base item %d, not %d", id, opt.BaseItemID, base.ID))
		}
		if opt.UnitPrice < 0 {
			return model.QuoteBreakdown{}, model.NewValidationError("optionIds",
				fmt.Sprintf("option %d has a negative unit price", id))
		}
		line := model.OptionLine{
			OptionID:  opt.ID,
			Name:      opt.Name,
			UnitPrice: opt.UnitPrice,
			Quantity:  1,
			LineTotal: opt.UnitPrice,
		}
		lines = append(lines, line)
		if optionsTotal, ok = addInt64(optionsTotal, line.LineTotal); !ok {
			return model.QuoteBreakdown{}, model.NewValidationError("optionIds", "options total overflows")
		}
	}

	subtotal, ok := addInt64(itemsTotal, optionsTotal)
	if !ok {
		return model.QuoteBreakdown{}, model.NewValidationError("quantity", "subtotal overflows")
	}

	afterDiscount := decimal.NewFromInt(subtotal).Mul(one.Sub(req.DiscountRate))
	final := afterDiscount.Mul(one.Add(req.TaxRate)).Round(0)
	if final.GreaterThan(maxMoney) {
		return model.QuoteBreakdown{}, model.NewValidationError("taxRate", "final total overflows")
	}
	finalTotal := final.IntPart()
	preTax := afterDiscount.Round(0).IntPart()

	return model.QuoteBreakdown{
		BaseItemID:     base.ID,
		ItemName:       base.Name,
		BaseUnitPrice:  base.UnitPrice,
		Quantity:       req.Quantity,
		Options:        lines,
		ItemsTotal:     itemsTotal,
		OptionsTotal:   optionsTotal,
		Subtotal:       subtotal,
		DiscountRate:   req.DiscountRate,
		TaxRate:        req.TaxRate,
		DiscountAmount: subtotal - preTax,
		TaxAmount:      finalTotal - preTax,
		FinalTotal:     finalTotal,
	}, nil
}

// ValidateRequest checks the scalar preconditions of a request. Catalog
// membership is checked by Compute against the resolved prices.
func ValidateRequest(req model.QuoteRequest) error {
	if req.BaseItemID <= 0 {
		return model.NewValidationError("baseItemId", "base item id is required")
	}
	if req.Quantity < 1 {
		return model.NewValidationError("quantity", "quantity must be at least 1")
	}
	if req.DiscountRate.IsNegative() || req.DiscountRate.GreaterThanOrEqual(one) {
		return model.NewValidationError("discountRate", "discount rate must be in [0, 1)")
	}
	if req.TaxRate.IsNegative() {
		return model.NewValidationError("taxRate", "tax rate must not be negative")
	}
	for _, id := range req.OptionIDs {
		if id <= 0 {
			return model.NewValidationError("optionIds", fmt.Sprintf("invalid option id %d", id))
		}
	}
	return nil
}

// DistinctOptionIDs removes repeated ids, keeping first-appearance order.
func DistinctOptionIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}

func addInt64(a, b int64) (int64, bool) {
	c := a + b
	if (c > a) != (b > 0) {
		return 0, false
	}
	return c, true
}
