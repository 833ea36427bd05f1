package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"procurecore/internal/infra/catalog"
	"procurecore/internal/store"
	"procurecore/pkg/domain"
)

var testEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// steppingClock advances one second per call so creation order is stable.
type steppingClock struct {
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(number int, qty, price string) domain.Item {
	return domain.Item{
		ItemNumber:  number,
		Description: fmt.Sprintf("line %d", number),
		Quantity:    dec(qty),
		Unit:        "EA",
		Price:       dec(price),
		Currency:    "EUR",
	}
}

func withMaterial(item domain.Item, material string) domain.Item {
	item.MaterialNumber = &material
	return item
}

func requisition(number string, items ...domain.Item) domain.Requisition {
	r := domain.Requisition{
		Header: domain.Header{DocumentNumber: number, Description: "office supplies", Requester: "alice", Type: domain.DocumentTypeStandard},
	}
	for _, item := range items {
		r.Items = append(r.Items, domain.RequisitionItem{Item: item})
	}
	return r
}

func order(number, vendor string, items ...domain.Item) domain.Order {
	o := domain.Order{
		Header: domain.Header{DocumentNumber: number, Description: "supplies", Requester: "bob", Type: domain.DocumentTypeStandard},
		Vendor: vendor,
	}
	for _, item := range items {
		o.Items = append(o.Items, domain.OrderItem{Item: item})
	}
	return o
}

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	base := []ServiceOption{
		WithClock(&steppingClock{now: testEpoch}),
		WithMaterialLookup(catalog.Demo()),
	}
	return NewService(store.New(context.Background()), append(base, opts...)...)
}

// seedRequisition stores r with its status as given, bypassing the workflow.
func seedRequisition(t *testing.T, svc *Service, r domain.Requisition) {
	t.Helper()
	if r.Status == "" {
		r.Status = domain.RequisitionStatusDraft
	}
	for i := range r.Items {
		if r.Items[i].Status == "" {
			r.Items[i].Status = domain.ItemStatusOpen
		}
	}
	err := store.UpdateCollection(context.Background(), svc.Store(), RequisitionsKey, func(c *store.Collection[domain.Requisition]) error {
		c.Put(r)
		return nil
	})
	if err != nil {
		t.Fatalf("seed requisition: %v", err)
	}
}

func seedOrder(t *testing.T, svc *Service, o domain.Order) {
	t.Helper()
	if o.Status == "" {
		o.Status = domain.OrderStatusDraft
	}
	for i := range o.Items {
		if o.Items[i].Status == "" {
			o.Items[i].Status = domain.ItemStatusOpen
		}
	}
	err := store.UpdateCollection(context.Background(), svc.Store(), OrdersKey, func(c *store.Collection[domain.Order]) error {
		c.Put(o)
		return nil
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
}

func requireKind(t *testing.T, err error, kind domain.ErrorKind, code domain.Code) *domain.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s/%s error, got nil", kind, code)
	}
	var e *domain.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *domain.Error, got %T: %v", err, err)
	}
	if e.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, e.Kind, err)
	}
	if code != "" && e.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, e.Code, err)
	}
	return e
}
