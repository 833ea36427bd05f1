package core

import (
	"strings"

	"procurecore/pkg/domain"
)

// HeaderPatch lists header fields to change. Nil fields are left untouched;
// an empty Department clears it.
type HeaderPatch struct {
	Description *string
	Requester   *string
	Department  *string
	Type        *domain.DocumentType
	Urgent      *bool
	Notes       *string
}

// headerField names the first set field that is frozen outside DRAFT.
func (p HeaderPatch) headerField() string {
	switch {
	case p.Description != nil:
		return "description"
	case p.Requester != nil:
		return "requester"
	case p.Department != nil:
		return "department"
	case p.Type != nil:
		return "type"
	case p.Urgent != nil:
		return "urgent"
	}
	return ""
}

func (p HeaderPatch) apply(h *domain.Header) {
	if p.Description != nil {
		h.Description = *p.Description
	}
	if p.Requester != nil {
		h.Requester = *p.Requester
	}
	if p.Department != nil {
		if *p.Department == "" {
			h.Department = nil
		} else {
			d := *p.Department
			h.Department = &d
		}
	}
	if p.Type != nil {
		h.Type = *p.Type
	}
	if p.Urgent != nil {
		h.Urgent = *p.Urgent
	}
	if p.Notes != nil {
		h.Notes = *p.Notes
	}
}

// RequisitionPatch describes an update of a requisition. Replaced items keep
// the order assignment of the stored line with the same item number.
type RequisitionPatch struct {
	HeaderPatch
	Status *domain.RequisitionStatus
	Items  *[]domain.RequisitionItem
}

func (p RequisitionPatch) apply(r *domain.Requisition) {
	p.HeaderPatch.apply(&r.Header)
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Items != nil {
		assigned := make(map[int]*string, len(r.Items))
		for _, item := range r.Items {
			assigned[item.ItemNumber] = item.AssignedToOrder
		}
		items := cloneRequisitionItems(*p.Items)
		for i := range items {
			items[i].AssignedToOrder = assigned[items[i].ItemNumber]
		}
		r.Items = items
	}
}

// OrderPatch describes an update of an order. Replaced items keep the
// requisition lineage of the stored line with the same item number.
type OrderPatch struct {
	HeaderPatch
	Vendor       *string
	PaymentTerms *string
	Status       *domain.OrderStatus
	Items        *[]domain.OrderItem
}

func (p OrderPatch) headerField() string {
	if f := p.HeaderPatch.headerField(); f != "" {
		return f
	}
	switch {
	case p.Vendor != nil:
		return "vendor"
	case p.PaymentTerms != nil:
		return "payment_terms"
	}
	return ""
}

func (p OrderPatch) apply(o *domain.Order) {
	p.HeaderPatch.apply(&o.Header)
	if p.Vendor != nil {
		o.Vendor = *p.Vendor
	}
	if p.PaymentTerms != nil {
		if *p.PaymentTerms == "" {
			o.PaymentTerms = nil
		} else {
			t := *p.PaymentTerms
			o.PaymentTerms = &t
		}
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.Items != nil {
		lineage := make(map[int]domain.OrderItem, len(o.Items))
		for _, item := range o.Items {
			lineage[item.ItemNumber] = item
		}
		items := cloneOrderItems(*p.Items)
		for i := range items {
			prev := lineage[items[i].ItemNumber]
			items[i].RequisitionReference = prev.RequisitionReference
			items[i].RequisitionItem = prev.RequisitionItem
		}
		o.Items = items
	}
}

func cloneRequisitionItems(items []domain.RequisitionItem) []domain.RequisitionItem {
	return domain.Requisition{Items: items}.Clone().Items
}

func cloneOrderItems(items []domain.OrderItem) []domain.OrderItem {
	return domain.Order{Items: items}.Clone().Items
}

const defaultCurrency = "EUR"

// normalizeItems fills item defaults: numbers in steps of ten after the
// highest explicit number, OPEN status and the document currency.
func normalizeItems(items []*domain.Item) {
	highest := 0
	currency := ""
	for _, item := range items {
		if item.ItemNumber > highest {
			highest = item.ItemNumber
		}
		if currency == "" && strings.TrimSpace(item.Currency) != "" {
			currency = strings.TrimSpace(item.Currency)
		}
	}
	if currency == "" {
		currency = defaultCurrency
	}
	next := (highest/10 + 1) * 10
	for _, item := range items {
		if item.ItemNumber == 0 {
			item.ItemNumber = next
			next += 10
		}
		if item.Status == "" {
			item.Status = domain.ItemStatusOpen
		}
		if strings.TrimSpace(item.Currency) == "" {
			item.Currency = currency
		}
	}
}

func normalizeRequisitionItems(items []domain.RequisitionItem) []domain.RequisitionItem {
	out := cloneRequisitionItems(items)
	ptrs := make([]*domain.Item, len(out))
	for i := range out {
		ptrs[i] = &out[i].Item
	}
	normalizeItems(ptrs)
	return out
}

func normalizeOrderItems(items []domain.OrderItem) []domain.OrderItem {
	out := cloneOrderItems(items)
	ptrs := make([]*domain.Item, len(out))
	for i := range out {
		ptrs[i] = &out[i].Item
	}
	normalizeItems(ptrs)
	return out
}

func normalizeHeader(h *domain.Header) {
	if h.Type == "" {
		h.Type = domain.DocumentTypeStandard
	}
}

func appendNote(notes, line string) string {
	if strings.TrimSpace(notes) == "" {
		return line
	}
	return notes + "\n" + line
}
