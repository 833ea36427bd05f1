// Package domain defines the procurement documents, their status machines,
// material master references, and the typed error model shared by every
// procurecore layer.
package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the procurement domain.
type EntityType string

// Supported entity type identifiers used in errors, audit entries, and persistence keys.
const (
	// EntityRequisition identifies a purchase requisition aggregate.
	EntityRequisition EntityType = "requisition"
	// EntityOrder identifies a purchase order aggregate.
	EntityOrder EntityType = "order"
	// EntityMaterial identifies a material master record owned by the external catalog.
	EntityMaterial EntityType = "material"
)

// Action indicates the type of modification performed on a document.
type Action string

// Document actions recorded in the audit trail.
const (
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionTransition Action = "transition"
)

// DocumentType classifies the procurement scenario a document belongs to.
type DocumentType string

// Canonical document types.
const (
	DocumentTypeStandard    DocumentType = "STANDARD"
	DocumentTypeStock       DocumentType = "STOCK"
	DocumentTypeDirect      DocumentType = "DIRECT"
	DocumentTypeService     DocumentType = "SERVICE"
	DocumentTypeConsignment DocumentType = "CONSIGNMENT"
)

// Valid reports whether t is one of the canonical document types.
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypeStandard, DocumentTypeStock, DocumentTypeDirect, DocumentTypeService, DocumentTypeConsignment:
		return true
	}
	return false
}

// ItemStatus captures the receipt state of a single line item.
type ItemStatus string

// Line item statuses.
const (
	ItemStatusOpen              ItemStatus = "OPEN"
	ItemStatusPartiallyReceived ItemStatus = "PARTIALLY_RECEIVED"
	ItemStatusReceived          ItemStatus = "RECEIVED"
	ItemStatusCanceled          ItemStatus = "CANCELED"
)

// Item holds the fields shared by requisition and order line items.
type Item struct {
	ItemNumber     int             `json:"item_number"`
	MaterialNumber *string         `json:"material_number,omitempty"`
	Description    string          `json:"description"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           string          `json:"unit"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	DeliveryDate   *time.Time      `json:"delivery_date,omitempty"`
	Status         ItemStatus      `json:"status"`
}

// Value returns quantity * price.
func (i Item) Value() decimal.Decimal {
	return i.Quantity.Mul(i.Price)
}

func (i Item) clone() Item {
	cp := i
	cp.MaterialNumber = cloneString(i.MaterialNumber)
	cp.DeliveryDate = cloneTime(i.DeliveryDate)
	return cp
}

// RequisitionItem is a requested line. AssignedToOrder is set once the line
// has been transferred into a purchase order.
type RequisitionItem struct {
	Item
	AssignedToOrder *string `json:"assigned_to_order,omitempty"`
}

// OrderItem is an ordered line with optional lineage back to the requisition
// line it was created from.
type OrderItem struct {
	Item
	RequisitionReference *string        `json:"requisition_reference,omitempty"`
	RequisitionItem      *int           `json:"requisition_item,omitempty"`
	ReceivedQuantity     decimal.Decimal `json:"received_quantity"`
}

// RemainingQuantity returns the quantity still open for receipt.
func (i OrderItem) RemainingQuantity() decimal.Decimal {
	return i.Quantity.Sub(i.ReceivedQuantity)
}

// Header contains the fields shared by all procurement documents.
type Header struct {
	DocumentNumber string       `json:"document_number"`
	Description    string       `json:"description"`
	Requester      string       `json:"requester"`
	Department     *string      `json:"department,omitempty"`
	Type           DocumentType `json:"type"`
	Urgent         bool         `json:"urgent"`
	Notes          string       `json:"notes"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func (h Header) clone() Header {
	cp := h
	cp.Department = cloneString(h.Department)
	return cp
}

// Requisition is a purchase requisition aggregate.
type Requisition struct {
	Header
	Status RequisitionStatus `json:"status"`
	Items  []RequisitionItem `json:"items"`
}

// Key returns the document number used as the collection key.
func (r Requisition) Key() string { return r.DocumentNumber }

// TotalValue sums the value of every line item.
func (r Requisition) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Value())
	}
	return total
}

// FindItem returns the item with the given number and its index.
func (r Requisition) FindItem(number int) (RequisitionItem, int, bool) {
	for i, item := range r.Items {
		if item.ItemNumber == number {
			return item, i, true
		}
	}
	return RequisitionItem{}, -1, false
}

// Clone returns a deep copy safe to mutate independently.
func (r Requisition) Clone() Requisition {
	cp := r
	cp.Header = r.Header.clone()
	if r.Items != nil {
		cp.Items = make([]RequisitionItem, len(r.Items))
		for i, item := range r.Items {
			cp.Items[i] = RequisitionItem{Item: item.Item.clone(), AssignedToOrder: cloneString(item.AssignedToOrder)}
		}
	}
	return cp
}

type requisitionAlias Requisition

// MarshalJSON adds the derived total_value to the persisted representation.
func (r Requisition) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		requisitionAlias
		TotalValue decimal.Decimal `json:"total_value"`
	}{requisitionAlias(r), r.TotalValue()})
}

// Order is a purchase order aggregate.
type Order struct {
	Header
	Status               OrderStatus `json:"status"`
	Items                []OrderItem `json:"items"`
	Vendor               string      `json:"vendor"`
	PaymentTerms         *string     `json:"payment_terms,omitempty"`
	RequisitionReference *string     `json:"requisition_reference,omitempty"`
}

// Key returns the document number used as the collection key.
func (o Order) Key() string { return o.DocumentNumber }

// TotalValue sums the value of every line item.
func (o Order) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Value())
	}
	return total
}

// FindItem returns the item with the given number and its index.
func (o Order) FindItem(number int) (OrderItem, int, bool) {
	for i, item := range o.Items {
		if item.ItemNumber == number {
			return item, i, true
		}
	}
	return OrderItem{}, -1, false
}

// Clone returns a deep copy safe to mutate independently.
func (o Order) Clone() Order {
	cp := o
	cp.Header = o.Header.clone()
	cp.PaymentTerms = cloneString(o.PaymentTerms)
	cp.RequisitionReference = cloneString(o.RequisitionReference)
	if o.Items != nil {
		cp.Items = make([]OrderItem, len(o.Items))
		for i, item := range o.Items {
			cp.Items[i] = OrderItem{
				Item:                 item.Item.clone(),
				RequisitionReference: cloneString(item.RequisitionReference),
				RequisitionItem:      cloneInt(item.RequisitionItem),
				ReceivedQuantity:     item.ReceivedQuantity,
			}
		}
	}
	return cp
}

type orderAlias Order

// MarshalJSON adds the derived total_value to the persisted representation.
func (o Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		orderAlias
		TotalValue decimal.Decimal `json:"total_value"`
	}{orderAlias(o), o.TotalValue()})
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
