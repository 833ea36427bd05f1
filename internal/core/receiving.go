package core

import (
	"sort"

	"github.com/shopspring/decimal"

	"procurecore/pkg/domain"
)

// Quantities maps order item numbers to the quantity received in one goods
// receipt. A nil map receives every line in full; a non-nil map receives
// nothing for lines it does not mention.
type Quantities map[int]decimal.Decimal

// planReceipt computes the per-line increment for a receipt without mutating
// the order. Any unknown item, negative increment or over-receipt rejects the
// whole receipt.
func planReceipt(o domain.Order, quantities Quantities) ([]decimal.Decimal, error) {
	if quantities != nil {
		unknown := make([]int, 0)
		for number := range quantities {
			if _, _, ok := o.FindItem(number); !ok {
				unknown = append(unknown, number)
			}
		}
		if len(unknown) > 0 {
			sort.Ints(unknown)
			e := receiptError(o, domain.NewValidation(domain.CodeUnknownItem, "order %s has no item %d", o.DocumentNumber, unknown[0]))
			e.ItemNumber = unknown[0]
			return nil, e
		}
	}

	increments := make([]decimal.Decimal, len(o.Items))
	for i, item := range o.Items {
		var inc decimal.Decimal
		switch {
		case quantities == nil:
			if item.Status != domain.ItemStatusCanceled {
				inc = item.RemainingQuantity()
			}
		default:
			inc = quantities[item.ItemNumber]
		}
		if inc.IsNegative() {
			e := receiptError(o, domain.NewValidation(domain.CodeNegativeQuantity,
				"item %d: received quantity %s must not be negative", item.ItemNumber, inc))
			e.ItemNumber = item.ItemNumber
			return nil, e
		}
		if inc.IsPositive() && item.Status == domain.ItemStatusCanceled {
			e := receiptError(o, domain.NewValidation(domain.CodeInvalidField, "item %d is canceled", item.ItemNumber))
			e.ItemNumber = item.ItemNumber
			return nil, e
		}
		if item.ReceivedQuantity.Add(inc).GreaterThan(item.Quantity) {
			maxAllowed := item.RemainingQuantity()
			e := receiptError(o, domain.NewValidation(domain.CodeQuantityExceeded,
				"item %d: receiving %s exceeds ordered %s (already received %s, max %s)",
				item.ItemNumber, inc, item.Quantity, item.ReceivedQuantity, maxAllowed))
			e.ItemNumber = item.ItemNumber
			e.Quantity = &domain.QuantityDetail{
				Ordered:         item.Quantity,
				AlreadyReceived: item.ReceivedQuantity,
				Attempted:       inc,
				MaxAllowed:      maxAllowed,
			}
			return nil, e
		}
		increments[i] = inc
	}
	return increments, nil
}

func receiptError(o domain.Order, e *domain.Error) *domain.Error {
	return detailed(e, OpReceive, domain.EntityOrder, o.DocumentNumber, string(o.Status))
}

// applyReceipt adds increments to the order lines and derives line and order
// statuses. A line is RECEIVED once fully received and PARTIALLY_RECEIVED
// while partly received. The order is RECEIVED when every line that is not
// canceled is RECEIVED, otherwise PARTIALLY_RECEIVED.
func applyReceipt(o *domain.Order, increments []decimal.Decimal) {
	allReceived := true
	for i := range o.Items {
		item := &o.Items[i]
		item.ReceivedQuantity = item.ReceivedQuantity.Add(increments[i])
		switch {
		case item.ReceivedQuantity.Equal(item.Quantity):
			item.Status = domain.ItemStatusReceived
		case item.ReceivedQuantity.IsPositive():
			item.Status = domain.ItemStatusPartiallyReceived
		}
		if item.Status != domain.ItemStatusReceived && item.Status != domain.ItemStatusCanceled {
			allReceived = false
		}
	}
	if allReceived {
		o.Status = domain.OrderStatusReceived
	} else {
		o.Status = domain.OrderStatusPartiallyReceived
	}
}
