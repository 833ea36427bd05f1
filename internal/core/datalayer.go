package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"procurecore/internal/store"
	"procurecore/pkg/domain"
)

// Store keys of the two document collections.
const (
	RequisitionsKey = "requisitions"
	OrdersKey       = "orders"
)

// Document number prefixes.
const (
	RequisitionPrefix = "PR"
	OrderPrefix       = "PO"
)

// ErrAbsent signals that a document does not exist. The service converts it
// into a NotFound *domain.Error.
var ErrAbsent = errors.New("document absent")

// DataLayer provides typed CRUD over the requisition and order collections.
// Status changes made through it are checked against the transition table of
// the document's own status type.
type DataLayer struct {
	store *store.Store
	nowFn func() time.Time
	newID func() string
}

// NewDataLayer returns a data layer over s. A nil now defaults to time.Now.
func NewDataLayer(s *store.Store, now func() time.Time) *DataLayer {
	if now == nil {
		now = time.Now
	}
	return &DataLayer{store: s, nowFn: now, newID: uuid.NewString}
}

// Store returns the backing store.
func (d *DataLayer) Store() *store.Store { return d.store }

func (d *DataLayer) now() time.Time { return d.nowFn().UTC() }

// NewDocumentNumber returns a fresh number such as PO-1A2B3C4D.
func (d *DataLayer) NewDocumentNumber(prefix string) string {
	id := strings.ReplaceAll(d.newID(), "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return prefix + "-" + strings.ToUpper(id)
}

func (d *DataLayer) uniqueNumber(prefix string, taken func(string) bool) string {
	for {
		n := d.NewDocumentNumber(prefix)
		if !taken(n) {
			return n
		}
	}
}

// requisitions returns the collection, materializing it empty on first access.
func (d *DataLayer) requisitions(ctx context.Context) (store.Collection[domain.Requisition], error) {
	return materialize[domain.Requisition](ctx, d.store, RequisitionsKey)
}

func (d *DataLayer) orders(ctx context.Context) (store.Collection[domain.Order], error) {
	return materialize[domain.Order](ctx, d.store, OrdersKey)
}

func materialize[T store.Entity[T]](ctx context.Context, s *store.Store, key string) (store.Collection[T], error) {
	c, ok, err := store.GetCollection[T](s, key)
	if err != nil || ok {
		return c, err
	}
	err = s.Update(ctx, key, func(current any, ok bool) (any, error) {
		return store.CollectionFrom[T](key, current, ok)
	})
	if err != nil {
		return c, err
	}
	c, _, err = store.GetCollection[T](s, key)
	return c, err
}

// GetRequisition returns the requisition with the given number.
func (d *DataLayer) GetRequisition(ctx context.Context, number string) (domain.Requisition, error) {
	c, err := d.requisitions(ctx)
	if err != nil {
		return domain.Requisition{}, err
	}
	r, ok := c.Get(number)
	if !ok {
		return domain.Requisition{}, ErrAbsent
	}
	return r, nil
}

// ListRequisitions returns every requisition ordered by creation time then number.
func (d *DataLayer) ListRequisitions(ctx context.Context) ([]domain.Requisition, error) {
	c, err := d.requisitions(ctx)
	if err != nil {
		return nil, err
	}
	out := c.GetAll()
	sort.SliceStable(out, func(i, j int) bool {
		return createdBefore(out[i].Header, out[j].Header)
	})
	return out, nil
}

// CreateRequisition stores r as a new document. An empty document number is
// replaced by a generated one; an existing number is a Conflict.
func (d *DataLayer) CreateRequisition(ctx context.Context, r domain.Requisition) (domain.Requisition, error) {
	var created domain.Requisition
	err := store.UpdateCollection(ctx, d.store, RequisitionsKey, func(c *store.Collection[domain.Requisition]) error {
		if r.DocumentNumber == "" {
			r.DocumentNumber = d.uniqueNumber(RequisitionPrefix, c.Has)
		} else if c.Has(r.DocumentNumber) {
			return domain.NewConflict(domain.EntityRequisition, r.DocumentNumber)
		}
		now := d.now()
		r.CreatedAt, r.UpdatedAt = now, now
		c.Put(r)
		created = r.Clone()
		return nil
	})
	return created, err
}

// UpdateRequisition applies mutator to a copy of the requisition inside the
// collection lock. The document number cannot change and any status change
// must be an edge of the requisition transition table.
func (d *DataLayer) UpdateRequisition(ctx context.Context, number string, mutator func(*domain.Requisition) error) (domain.Requisition, error) {
	var updated domain.Requisition
	err := store.UpdateCollection(ctx, d.store, RequisitionsKey, func(c *store.Collection[domain.Requisition]) error {
		current, ok := c.Get(number)
		if !ok {
			return ErrAbsent
		}
		next := current.Clone()
		if err := mutator(&next); err != nil {
			return err
		}
		next.DocumentNumber = current.DocumentNumber
		next.CreatedAt = current.CreatedAt
		if next.Status != current.Status && !current.Status.CanTransitionTo(next.Status) {
			return illegalTransition(domain.EntityRequisition, number, string(current.Status), string(next.Status), statusStrings(current.Status.Next()))
		}
		next.UpdatedAt = d.now()
		c.Put(next)
		updated = next.Clone()
		return nil
	})
	return updated, err
}

// DeleteRequisition removes the requisition after guard accepts it. guard
// runs inside the collection lock and may be nil.
func (d *DataLayer) DeleteRequisition(ctx context.Context, number string, guard func(domain.Requisition) error) error {
	return store.UpdateCollection(ctx, d.store, RequisitionsKey, func(c *store.Collection[domain.Requisition]) error {
		current, ok := c.Get(number)
		if !ok {
			return ErrAbsent
		}
		if guard != nil {
			if err := guard(current); err != nil {
				return err
			}
		}
		c.Remove(number)
		return nil
	})
}

// GetOrder returns the order with the given number.
func (d *DataLayer) GetOrder(ctx context.Context, number string) (domain.Order, error) {
	c, err := d.orders(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	o, ok := c.Get(number)
	if !ok {
		return domain.Order{}, ErrAbsent
	}
	return o, nil
}

// ListOrders returns every order ordered by creation time then number.
func (d *DataLayer) ListOrders(ctx context.Context) ([]domain.Order, error) {
	c, err := d.orders(ctx)
	if err != nil {
		return nil, err
	}
	out := c.GetAll()
	sort.SliceStable(out, func(i, j int) bool {
		return createdBefore(out[i].Header, out[j].Header)
	})
	return out, nil
}

// CreateOrder stores o as a new document.
func (d *DataLayer) CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	var created domain.Order
	err := store.UpdateCollection(ctx, d.store, OrdersKey, func(c *store.Collection[domain.Order]) error {
		if o.DocumentNumber == "" {
			o.DocumentNumber = d.uniqueNumber(OrderPrefix, c.Has)
		} else if c.Has(o.DocumentNumber) {
			return domain.NewConflict(domain.EntityOrder, o.DocumentNumber)
		}
		now := d.now()
		o.CreatedAt, o.UpdatedAt = now, now
		c.Put(o)
		created = o.Clone()
		return nil
	})
	return created, err
}

// UpdateOrder applies mutator to a copy of the order inside the collection
// lock, enforcing the order transition table.
func (d *DataLayer) UpdateOrder(ctx context.Context, number string, mutator func(*domain.Order) error) (domain.Order, error) {
	var updated domain.Order
	err := store.UpdateCollection(ctx, d.store, OrdersKey, func(c *store.Collection[domain.Order]) error {
		current, ok := c.Get(number)
		if !ok {
			return ErrAbsent
		}
		next := current.Clone()
		if err := mutator(&next); err != nil {
			return err
		}
		next.DocumentNumber = current.DocumentNumber
		next.CreatedAt = current.CreatedAt
		if next.Status != current.Status && !current.Status.CanTransitionTo(next.Status) {
			return illegalTransition(domain.EntityOrder, number, string(current.Status), string(next.Status), statusStrings(current.Status.Next()))
		}
		next.UpdatedAt = d.now()
		c.Put(next)
		updated = next.Clone()
		return nil
	})
	return updated, err
}

// DeleteOrder removes the order after guard accepts it.
func (d *DataLayer) DeleteOrder(ctx context.Context, number string, guard func(domain.Order) error) error {
	return store.UpdateCollection(ctx, d.store, OrdersKey, func(c *store.Collection[domain.Order]) error {
		current, ok := c.Get(number)
		if !ok {
			return ErrAbsent
		}
		if guard != nil {
			if err := guard(current); err != nil {
				return err
			}
		}
		c.Remove(number)
		return nil
	})
}

// OrderDraft carries the caller-supplied header fields of an order created
// from a requisition.
type OrderDraft struct {
	Vendor       string
	PaymentTerms *string
}

// CreateOrderFromRequisition converts an approved requisition into a DRAFT
// order. Every transferable line (not canceled, not yet assigned) becomes an
// order line with lineage back to the requisition; the requisition becomes
// ORDERED. Both collections are locked in key order and both new values are
// published together. guard runs against the locked requisition.
func (d *DataLayer) CreateOrderFromRequisition(ctx context.Context, reqNumber string, draft OrderDraft, guard func(domain.Requisition) error) (domain.Order, domain.Requisition, error) {
	var (
		order domain.Order
		req   domain.Requisition
	)
	err := d.store.UpdateMany(ctx, []string{OrdersKey, RequisitionsKey}, func(current map[string]any) (map[string]any, error) {
		reqs, err := store.CollectionFrom[domain.Requisition](RequisitionsKey, current[RequisitionsKey], current[RequisitionsKey] != nil)
		if err != nil {
			return nil, err
		}
		orders, err := store.CollectionFrom[domain.Order](OrdersKey, current[OrdersKey], current[OrdersKey] != nil)
		if err != nil {
			return nil, err
		}
		source, ok := reqs.Get(reqNumber)
		if !ok {
			return nil, ErrAbsent
		}
		if guard != nil {
			if err := guard(source); err != nil {
				return nil, err
			}
		}
		if !source.Status.CanTransitionTo(domain.RequisitionStatusOrdered) {
			return nil, illegalTransition(domain.EntityRequisition, reqNumber, string(source.Status), string(domain.RequisitionStatusOrdered), statusStrings(source.Status.Next()))
		}

		now := d.now()
		number := d.uniqueNumber(OrderPrefix, orders.Has)
		next := source.Clone()
		o := domain.Order{
			Header: domain.Header{
				DocumentNumber: number,
				Description:    source.Description,
				Requester:      source.Requester,
				Department:     source.Department,
				Type:           source.Type,
				Urgent:         source.Urgent,
				Notes:          fmt.Sprintf("Created from requisition %s", source.DocumentNumber),
				CreatedAt:      now,
				UpdatedAt:      now,
			},
			Status:               domain.OrderStatusDraft,
			Vendor:               draft.Vendor,
			PaymentTerms:         draft.PaymentTerms,
			RequisitionReference: &next.DocumentNumber,
		}
		for i, item := range next.Items {
			if item.Status == domain.ItemStatusCanceled || item.AssignedToOrder != nil {
				continue
			}
			reqItem := item.ItemNumber
			line := domain.OrderItem{
				Item:                 item.Item,
				RequisitionReference: &next.DocumentNumber,
				RequisitionItem:      &reqItem,
				ReceivedQuantity:     decimal.Zero,
			}
			line.Status = domain.ItemStatusOpen
			o.Items = append(o.Items, line)
			assigned := number
			next.Items[i].AssignedToOrder = &assigned
		}
		if len(o.Items) == 0 {
			e := domain.NewValidation(domain.CodeNoTransferableItems, "requisition %s has no transferable items", reqNumber)
			e.Entity = domain.EntityRequisition
			e.DocumentNumber = reqNumber
			e.CurrentStatus = string(source.Status)
			return nil, e
		}
		next.Status = domain.RequisitionStatusOrdered
		next.UpdatedAt = now

		orders.Put(o)
		reqs.Put(next)
		order, req = o.Clone(), next.Clone()
		return map[string]any{OrdersKey: orders, RequisitionsKey: reqs}, nil
	})
	return order, req, err
}

func createdBefore(a, b domain.Header) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.DocumentNumber < b.DocumentNumber
}

func statusStrings[S ~string](statuses []S) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func illegalTransition(entity domain.EntityType, number, from, to string, allowed []string) *domain.Error {
	e := domain.NewValidation(domain.CodeIllegalTransition, "%s %s cannot move from %s to %s", entity, number, from, to)
	e.Entity = entity
	e.DocumentNumber = number
	e.CurrentStatus = from
	e.RequiredStatus = allowed
	return e
}
