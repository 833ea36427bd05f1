package core

import (
	"context"

	"github.com/shopspring/decimal"

	"procurecore/pkg/domain"
)

// OrderFilter narrows ListOrders. Zero fields match everything.
type OrderFilter struct {
	Status               domain.OrderStatus
	Requester            string
	Department           string
	Type                 domain.DocumentType
	Urgent               *bool
	Vendor               string
	RequisitionReference string
}

func (f OrderFilter) match(o domain.Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.Vendor != "" && o.Vendor != f.Vendor {
		return false
	}
	if f.RequisitionReference != "" && (o.RequisitionReference == nil || *o.RequisitionReference != f.RequisitionReference) {
		return false
	}
	return matchHeader(o.Header, f.Requester, f.Department, f.Type, f.Urgent)
}

// GetOrder returns one order.
func (s *Service) GetOrder(ctx context.Context, number string) (domain.Order, error) {
	ctx, done := s.begin(ctx, "get", domain.EntityOrder, "")
	o, err := s.data.GetOrder(ctx, number)
	return o, done(number, err)
}

// ListOrders returns the orders matching filter, oldest first.
func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, error) {
	ctx, done := s.begin(ctx, "list", domain.EntityOrder, "")
	all, err := s.data.ListOrders(ctx)
	if err != nil {
		return nil, done("", err)
	}
	out := make([]domain.Order, 0, len(all))
	for _, o := range all {
		if filter.match(o) {
			out = append(out, o)
		}
	}
	return out, done("", nil)
}

// CreateOrder stores a new DRAFT order. Received quantities start at zero and
// requisition lineage is only ever set by CreateOrderFromRequisition.
func (s *Service) CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	ctx, done := s.begin(ctx, OpCreate, domain.EntityOrder, domain.ActionCreate)
	o = o.Clone()
	normalizeHeader(&o.Header)
	if o.Status == "" {
		o.Status = domain.OrderStatusDraft
	}
	o.RequisitionReference = nil
	o.Items = normalizeOrderItems(o.Items)
	for i := range o.Items {
		o.Items[i].ReceivedQuantity = decimal.Zero
		o.Items[i].RequisitionReference = nil
		o.Items[i].RequisitionItem = nil
	}
	if err := ValidateOrderCreate(o); err != nil {
		return domain.Order{}, done(o.DocumentNumber, err)
	}
	if err := s.checkMaterials(ctx, orderLines(o.Items)); err != nil {
		return domain.Order{}, done(o.DocumentNumber, err)
	}
	created, err := s.data.CreateOrder(ctx, o)
	if err != nil {
		return domain.Order{}, done(o.DocumentNumber, err)
	}
	return created, done(created.DocumentNumber, nil)
}

// UpdateOrder applies patch. In DRAFT every field may change; later only
// status (along the transition table) and notes may.
func (s *Service) UpdateOrder(ctx context.Context, number string, patch OrderPatch) (domain.Order, error) {
	ctx, done := s.begin(ctx, OpUpdate, domain.EntityOrder, domain.ActionUpdate)
	if patch.Items != nil {
		items := normalizeOrderItems(*patch.Items)
		for i := range items {
			items[i].ReceivedQuantity = decimal.Zero
		}
		patch.Items = &items
	}
	updated, err := s.data.UpdateOrder(ctx, number, func(o *domain.Order) error {
		if err := ValidateOrderUpdate(*o, patch); err != nil {
			return err
		}
		if patch.Items != nil {
			if err := s.checkMaterials(ctx, orderLines(*patch.Items)); err != nil {
				return err
			}
		}
		patch.apply(o)
		return nil
	})
	return updated, done(number, err)
}

// DeleteOrder removes a DRAFT order.
func (s *Service) DeleteOrder(ctx context.Context, number string) error {
	ctx, done := s.begin(ctx, OpDelete, domain.EntityOrder, domain.ActionDelete)
	err := s.data.DeleteOrder(ctx, number, ValidateOrderDelete)
	return done(number, err)
}

func (s *Service) transitionOrder(ctx context.Context, op, number string, mutate func(*domain.Order) error) (domain.Order, error) {
	ctx, done := s.begin(ctx, op, domain.EntityOrder, domain.ActionTransition)
	updated, err := s.data.UpdateOrder(ctx, number, mutate)
	return updated, done(number, err)
}

// SubmitOrder moves a DRAFT order with items and a vendor to SUBMITTED.
func (s *Service) SubmitOrder(ctx context.Context, number string) (domain.Order, error) {
	return s.transitionOrder(ctx, OpSubmit, number, func(o *domain.Order) error {
		if err := ValidateOrderSubmit(*o); err != nil {
			return err
		}
		o.Status = domain.OrderStatusSubmitted
		return nil
	})
}

// ApproveOrder moves a SUBMITTED order to APPROVED.
func (s *Service) ApproveOrder(ctx context.Context, number string) (domain.Order, error) {
	return s.transitionOrder(ctx, OpApprove, number, func(o *domain.Order) error {
		if err := ValidateOrderApprove(*o); err != nil {
			return err
		}
		o.Status = domain.OrderStatusApproved
		return nil
	})
}

// RejectOrder moves a SUBMITTED order to REJECTED.
func (s *Service) RejectOrder(ctx context.Context, number, reason string) (domain.Order, error) {
	return s.transitionOrder(ctx, OpReject, number, func(o *domain.Order) error {
		if err := ValidateOrderReject(*o, reason); err != nil {
			return err
		}
		o.Status = domain.OrderStatusRejected
		o.Notes = appendNote(o.Notes, "Rejected: "+reason)
		return nil
	})
}

// ReceiveOrder books a goods receipt against an APPROVED order. See
// Quantities for how the map is interpreted. The receipt is applied in full
// or not at all.
func (s *Service) ReceiveOrder(ctx context.Context, number string, quantities Quantities) (domain.Order, error) {
	return s.transitionOrder(ctx, OpReceive, number, func(o *domain.Order) error {
		if err := ValidateOrderReceive(*o, quantities); err != nil {
			return err
		}
		increments, err := planReceipt(*o, quantities)
		if err != nil {
			return err
		}
		applyReceipt(o, increments)
		return nil
	})
}

// CompleteOrder closes a RECEIVED or PARTIALLY_RECEIVED order.
func (s *Service) CompleteOrder(ctx context.Context, number string) (domain.Order, error) {
	return s.transitionOrder(ctx, OpComplete, number, func(o *domain.Order) error {
		if err := ValidateOrderComplete(*o); err != nil {
			return err
		}
		o.Status = domain.OrderStatusCompleted
		return nil
	})
}

// CancelOrder moves the order to CANCELED. Lines keep their receipt state.
func (s *Service) CancelOrder(ctx context.Context, number, reason string) (domain.Order, error) {
	return s.transitionOrder(ctx, OpCancel, number, func(o *domain.Order) error {
		if err := ValidateOrderCancel(*o, reason); err != nil {
			return err
		}
		o.Status = domain.OrderStatusCanceled
		o.Notes = appendNote(o.Notes, "Canceled: "+reason)
		return nil
	})
}

// ReopenOrder returns a REJECTED or CANCELED order to DRAFT.
func (s *Service) ReopenOrder(ctx context.Context, number string) (domain.Order, error) {
	return s.transitionOrder(ctx, OpReopen, number, func(o *domain.Order) error {
		if err := ValidateOrderReopen(*o); err != nil {
			return err
		}
		o.Status = domain.OrderStatusDraft
		return nil
	})
}
