package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"procurecore/internal/store"
	"procurecore/pkg/domain"
)

func approvedRequisition(t *testing.T, svc *Service, number string, items ...domain.Item) {
	t.Helper()
	r := requisition(number, items...)
	r.Department = strPtr("maintenance")
	r.Urgent = true
	r.Status = domain.RequisitionStatusApproved
	seedRequisition(t, svc, r)
}

func TestCreateOrderFromRequisitionTransfersLines(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	approvedRequisition(t, svc, "PR-1", line(10, "2", "5"), line(20, "1", "7"), line(30, "3", "1"))
	err := store.UpdateCollection(ctx, svc.Store(), RequisitionsKey, func(c *store.Collection[domain.Requisition]) error {
		r, _ := c.Get("PR-1")
		r.Items[1].Status = domain.ItemStatusCanceled
		r.Items[2].AssignedToOrder = strPtr("PO-OLD")
		c.Put(r)
		return nil
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	o, err := svc.CreateOrderFromRequisition(ctx, "PR-1", "ACME", strPtr("NET30"))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.HasPrefix(o.DocumentNumber, "PO-") || o.Status != domain.OrderStatusDraft {
		t.Fatalf("unexpected order %s/%s", o.DocumentNumber, o.Status)
	}
	if o.Vendor != "ACME" || o.PaymentTerms == nil || *o.PaymentTerms != "NET30" {
		t.Fatalf("order header not taken from draft: %+v", o)
	}
	if o.RequisitionReference == nil || *o.RequisitionReference != "PR-1" || o.Notes != "Created from requisition PR-1" {
		t.Fatalf("missing lineage on header: %+v", o.Header)
	}
	if o.Department == nil || *o.Department != "maintenance" || !o.Urgent || o.Requester != "alice" {
		t.Fatalf("header fields not copied: %+v", o.Header)
	}
	if len(o.Items) != 1 {
		t.Fatalf("expected only the transferable line, got %d", len(o.Items))
	}
	item := o.Items[0]
	if item.ItemNumber != 10 || *item.RequisitionReference != "PR-1" || *item.RequisitionItem != 10 ||
		!item.ReceivedQuantity.IsZero() || item.Status != domain.ItemStatusOpen {
		t.Fatalf("unexpected transferred line %+v", item)
	}

	r, _ := svc.GetRequisition(ctx, "PR-1")
	if r.Status != domain.RequisitionStatusOrdered {
		t.Fatalf("expected ORDERED, got %s", r.Status)
	}
	if r.Items[0].AssignedToOrder == nil || *r.Items[0].AssignedToOrder != o.DocumentNumber {
		t.Fatalf("source line not assigned: %+v", r.Items[0])
	}
	if r.Items[1].AssignedToOrder != nil || *r.Items[2].AssignedToOrder != "PO-OLD" {
		t.Fatalf("non-transferable lines must keep their assignment")
	}
}

func TestCreateOrderFromRequisitionPreconditions(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seedRequisition(t, svc, requisition("PR-D", line(10, "1", "1")))
	_, err := svc.CreateOrderFromRequisition(ctx, "PR-D", "ACME", nil)
	e := requireKind(t, err, domain.KindValidation, domain.CodeInvalidStatus)
	if e.Op != "create_order_from_requisition" || e.CurrentStatus != "DRAFT" {
		t.Fatalf("unexpected detail %+v", e)
	}

	approvedRequisition(t, svc, "PR-1", line(10, "1", "1"))
	_, err = svc.CreateOrderFromRequisition(ctx, "PR-1", " ", nil)
	requireKind(t, err, domain.KindValidation, domain.CodeVendorRequired)

	r := requisition("PR-C", line(10, "1", "1"))
	r.Status = domain.RequisitionStatusApproved
	r.Items[0].Status = domain.ItemStatusCanceled
	seedRequisition(t, svc, r)
	_, err = svc.CreateOrderFromRequisition(ctx, "PR-C", "ACME", nil)
	requireKind(t, err, domain.KindValidation, domain.CodeNoTransferableItems)

	if orders, _ := svc.ListOrders(ctx, OrderFilter{}); len(orders) != 0 {
		t.Fatalf("failed conversions must not create orders, got %d", len(orders))
	}
	if got, _ := svc.GetRequisition(ctx, "PR-C"); got.Status != domain.RequisitionStatusApproved {
		t.Fatalf("failed conversion must leave the requisition APPROVED")
	}
}

func TestConcurrentConversionsSucceedOnce(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, WithClock(ClockFunc(func() time.Time { return testEpoch })))
	approvedRequisition(t, svc, "PR-1", line(10, "1", "1"))

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CreateOrderFromRequisition(ctx, "PR-1", "ACME", nil); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if successes != 1 {
		t.Fatalf("expected exactly one conversion, got %d", successes)
	}
	orders, _ := svc.ListOrders(ctx, OrderFilter{})
	if len(orders) != 1 {
		t.Fatalf("expected one order, got %d", len(orders))
	}
}

func TestConversionIsAtomicForReaders(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, WithClock(ClockFunc(func() time.Time { return testEpoch })))
	const docs = 20
	for i := 0; i < docs; i++ {
		approvedRequisition(t, svc, fmt.Sprintf("PR-%02d", i), line(10, "1", "1"))
	}

	done := make(chan struct{})
	errs := make(chan string, 1)
	go func() {
		defer close(errs)
		for {
			select {
			case <-done:
				return
			default:
			}
			snap := svc.Store().Snapshot(RequisitionsKey, OrdersKey)
			reqs, err := store.CollectionFrom[domain.Requisition](RequisitionsKey, snap[RequisitionsKey], snap[RequisitionsKey] != nil)
			if err != nil {
				errs <- err.Error()
				return
			}
			orders, err := store.CollectionFrom[domain.Order](OrdersKey, snap[OrdersKey], snap[OrdersKey] != nil)
			if err != nil {
				errs <- err.Error()
				return
			}
			ordered := 0
			for _, r := range reqs.GetAll() {
				if r.Status == domain.RequisitionStatusOrdered {
					ordered++
				}
			}
			if ordered != orders.Count() {
				errs <- fmt.Sprintf("reader saw %d ordered requisitions but %d orders", ordered, orders.Count())
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < docs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.CreateOrderFromRequisition(ctx, fmt.Sprintf("PR-%02d", i), "ACME", nil); err != nil {
				t.Errorf("convert %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(done)
	if msg, ok := <-errs; ok {
		t.Fatal(msg)
	}
	orders, _ := svc.ListOrders(ctx, OrderFilter{})
	if len(orders) != docs {
		t.Fatalf("expected %d orders, got %d", docs, len(orders))
	}
}

func TestConcurrentUpdatesOnOneDocumentAreSerialized(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, WithClock(ClockFunc(func() time.Time { return testEpoch })))
	seedRequisition(t, svc, requisition("PR-1", line(10, "1", "1")))

	const writers = 40
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Data().UpdateRequisition(ctx, "PR-1", func(r *domain.Requisition) error {
				r.Notes = appendNote(r.Notes, fmt.Sprintf("note %d", i))
				return nil
			})
			if err != nil {
				t.Errorf("update %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	r, _ := svc.GetRequisition(ctx, "PR-1")
	if got := len(strings.Split(r.Notes, "\n")); got != writers {
		t.Fatalf("expected %d notes, lost updates left %d", writers, got)
	}
}

func TestConcurrentUpdatesOnDifferentDocuments(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, WithClock(ClockFunc(func() time.Time { return testEpoch })))
	const n = 25
	for i := 0; i < n; i++ {
		seedRequisition(t, svc, requisition(fmt.Sprintf("PR-%02d", i), line(10, "1", "1")))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			notes := fmt.Sprintf("checked %d", i)
			urgent := true
			_, err := svc.UpdateRequisition(ctx, fmt.Sprintf("PR-%02d", i), RequisitionPatch{
				HeaderPatch: HeaderPatch{Notes: &notes, Urgent: &urgent},
			})
			if err != nil {
				t.Errorf("update %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	reqs, _ := svc.ListRequisitions(ctx, RequisitionFilter{})
	if len(reqs) != n {
		t.Fatalf("expected %d requisitions, got %d", n, len(reqs))
	}
	for i := 0; i < n; i++ {
		r, err := svc.GetRequisition(ctx, fmt.Sprintf("PR-%02d", i))
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if r.Notes != fmt.Sprintf("checked %d", i) || !r.Urgent {
			t.Fatalf("update of %s lost: notes=%q urgent=%v", r.DocumentNumber, r.Notes, r.Urgent)
		}
	}
}

func TestConcurrentCreatesOnDifferentDocuments(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, WithClock(ClockFunc(func() time.Time { return testEpoch })))
	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CreateOrder(ctx, order("", "ACME", line(10, "1", "1"))); err != nil {
				t.Errorf("create: %v", err)
			}
		}()
	}
	wg.Wait()
	orders, _ := svc.ListOrders(ctx, OrderFilter{})
	if len(orders) != n {
		t.Fatalf("expected %d orders, got %d", n, len(orders))
	}
	seen := make(map[string]struct{}, n)
	for _, o := range orders {
		seen[o.DocumentNumber] = struct{}{}
	}
	if len(seen) != n {
		t.Fatalf("document numbers must be unique")
	}
}

func TestDocumentNumberRetriesOnCollision(t *testing.T) {
	d := NewDataLayer(store.New(context.Background()), nil)
	ids := []string{"aaaaaaaa-0000", "aaaaaaaa-1111", "bbbbbbbb-2222"}
	d.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	taken := map[string]bool{"PO-AAAAAAAA": true}
	if got := d.uniqueNumber(OrderPrefix, func(n string) bool { return taken[n] }); got != "PO-BBBBBBBB" {
		t.Fatalf("expected retry past collisions, got %s", got)
	}
}

func TestListOnEmptyStoreMaterializesCollections(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	reqs, err := svc.ListRequisitions(ctx, RequisitionFilter{})
	if err != nil || len(reqs) != 0 {
		t.Fatalf("expected empty list, got %v %v", reqs, err)
	}
	if _, ok := svc.Store().Get(RequisitionsKey); !ok {
		t.Fatalf("expected requisitions collection to be materialized")
	}
}
