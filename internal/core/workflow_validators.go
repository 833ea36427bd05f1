package core

import (
	"slices"
	"strings"

	"procurecore/pkg/domain"
)

// Workflow operation names used in validation failures, audit entries,
// metrics and traces.
const (
	OpSubmit      = "submit"
	OpApprove     = "approve"
	OpReject      = "reject"
	OpCancel      = "cancel"
	OpReopen      = "reopen"
	OpReceive     = "receive"
	OpComplete    = "complete"
	OpDelete      = "delete"
	OpUpdate      = "update"
	OpCreate      = "create"
	OpCreateOrder = "create_order_from_requisition"
)

func requireStatus[S ~string](entity domain.EntityType, number, op string, current S, allowed ...S) error {
	if slices.Contains(allowed, current) {
		return nil
	}
	required := statusStrings(allowed)
	e := domain.NewValidation(domain.CodeInvalidStatus, "cannot %s %s %s in status %s (requires %s)",
		op, entity, number, current, strings.Join(required, " or "))
	e.Op = op
	e.Entity = entity
	e.DocumentNumber = number
	e.CurrentStatus = string(current)
	e.RequiredStatus = required
	return e
}

func detailed(e *domain.Error, op string, entity domain.EntityType, number, status string) *domain.Error {
	e.Op = op
	e.Entity = entity
	e.DocumentNumber = number
	e.CurrentStatus = status
	return e
}

func requireReason(op string, entity domain.EntityType, number, status, reason string) error {
	if strings.TrimSpace(reason) != "" {
		return nil
	}
	return detailed(domain.NewValidation(domain.CodeReasonRequired, "a reason is required to %s %s %s", op, entity, number), op, entity, number, status)
}

// ValidateItems checks line content shared by both document types. Lines
// supplied by callers start OPEN or CANCELED; receipt states are only reached
// through goods receiving.
func ValidateItems(items []domain.Item) error {
	seen := make(map[int]struct{}, len(items))
	for _, item := range items {
		var e *domain.Error
		switch {
		case item.ItemNumber <= 0:
			e = domain.NewValidation(domain.CodeInvalidField, "item number must be positive, got %d", item.ItemNumber)
			e.Field = "item_number"
		case strings.TrimSpace(item.Description) == "":
			e = domain.NewValidation(domain.CodeInvalidField, "item %d requires a description", item.ItemNumber)
			e.Field = "description"
		case !item.Quantity.IsPositive():
			e = domain.NewValidation(domain.CodeInvalidField, "item %d quantity must be greater than zero", item.ItemNumber)
			e.Field = "quantity"
		case item.Price.IsNegative():
			e = domain.NewValidation(domain.CodeInvalidField, "item %d price must not be negative", item.ItemNumber)
			e.Field = "price"
		case item.Status != domain.ItemStatusOpen && item.Status != domain.ItemStatusCanceled:
			e = domain.NewValidation(domain.CodeInvalidField, "item %d cannot be supplied in status %q", item.ItemNumber, item.Status)
			e.Field = "status"
		}
		if e == nil {
			if _, dup := seen[item.ItemNumber]; dup {
				e = domain.NewValidation(domain.CodeDuplicateItemNumber, "item number %d is used more than once", item.ItemNumber)
				e.Field = "item_number"
			}
		}
		if e != nil {
			e.ItemNumber = item.ItemNumber
			return e
		}
		seen[item.ItemNumber] = struct{}{}
	}
	return nil
}

func requisitionLines(items []domain.RequisitionItem) []domain.Item {
	out := make([]domain.Item, len(items))
	for i, item := range items {
		out[i] = item.Item
	}
	return out
}

func orderLines(items []domain.OrderItem) []domain.Item {
	out := make([]domain.Item, len(items))
	for i, item := range items {
		out[i] = item.Item
	}
	return out
}

func validateHeader(h domain.Header) error {
	if !h.Type.Valid() {
		e := domain.NewValidation(domain.CodeInvalidField, "unknown document type %q", h.Type)
		e.Field = "type"
		return e
	}
	return nil
}

// ValidateRequisitionCreate checks a new requisition.
func ValidateRequisitionCreate(r domain.Requisition) error {
	if r.Status != domain.RequisitionStatusDraft {
		return requireStatus(domain.EntityRequisition, r.DocumentNumber, OpCreate, r.Status, domain.RequisitionStatusDraft)
	}
	if err := validateHeader(r.Header); err != nil {
		return err
	}
	return ValidateItems(requisitionLines(r.Items))
}

// ValidateOrderCreate checks a new order.
func ValidateOrderCreate(o domain.Order) error {
	if o.Status != domain.OrderStatusDraft {
		return requireStatus(domain.EntityOrder, o.DocumentNumber, OpCreate, o.Status, domain.OrderStatusDraft)
	}
	if err := validateHeader(o.Header); err != nil {
		return err
	}
	return ValidateItems(orderLines(o.Items))
}

// ValidateRequisitionSubmit requires DRAFT and at least one item.
func ValidateRequisitionSubmit(r domain.Requisition) error {
	if err := requireStatus(domain.EntityRequisition, r.DocumentNumber, OpSubmit, r.Status, domain.RequisitionStatusDraft); err != nil {
		return err
	}
	if len(r.Items) == 0 {
		return detailed(domain.NewValidation(domain.CodeItemsRequired, "requisition %s has no items", r.DocumentNumber),
			OpSubmit, domain.EntityRequisition, r.DocumentNumber, string(r.Status))
	}
	return nil
}

// ValidateOrderSubmit requires DRAFT, at least one item and a vendor.
func ValidateOrderSubmit(o domain.Order) error {
	if err := requireStatus(domain.EntityOrder, o.DocumentNumber, OpSubmit, o.Status, domain.OrderStatusDraft); err != nil {
		return err
	}
	if len(o.Items) == 0 {
		return detailed(domain.NewValidation(domain.CodeItemsRequired, "order %s has no items", o.DocumentNumber),
			OpSubmit, domain.EntityOrder, o.DocumentNumber, string(o.Status))
	}
	if strings.TrimSpace(o.Vendor) == "" {
		e := detailed(domain.NewValidation(domain.CodeVendorRequired, "order %s has no vendor", o.DocumentNumber),
			OpSubmit, domain.EntityOrder, o.DocumentNumber, string(o.Status))
		e.Field = "vendor"
		return e
	}
	return nil
}

// ValidateRequisitionApprove requires SUBMITTED.
func ValidateRequisitionApprove(r domain.Requisition) error {
	return requireStatus(domain.EntityRequisition, r.DocumentNumber, OpApprove, r.Status, domain.RequisitionStatusSubmitted)
}

// ValidateOrderApprove requires SUBMITTED.
func ValidateOrderApprove(o domain.Order) error {
	return requireStatus(domain.EntityOrder, o.DocumentNumber, OpApprove, o.Status, domain.OrderStatusSubmitted)
}

// ValidateRequisitionReject requires SUBMITTED and a reason.
func ValidateRequisitionReject(r domain.Requisition, reason string) error {
	if err := requireStatus(domain.EntityRequisition, r.DocumentNumber, OpReject, r.Status, domain.RequisitionStatusSubmitted); err != nil {
		return err
	}
	return requireReason(OpReject, domain.EntityRequisition, r.DocumentNumber, string(r.Status), reason)
}

// ValidateOrderReject requires SUBMITTED and a reason.
func ValidateOrderReject(o domain.Order, reason string) error {
	if err := requireStatus(domain.EntityOrder, o.DocumentNumber, OpReject, o.Status, domain.OrderStatusSubmitted); err != nil {
		return err
	}
	return requireReason(OpReject, domain.EntityOrder, o.DocumentNumber, string(o.Status), reason)
}

func cancelableRequisition() []domain.RequisitionStatus {
	var out []domain.RequisitionStatus
	for _, s := range domain.RequisitionStatuses() {
		if s != domain.RequisitionStatusCanceled {
			out = append(out, s)
		}
	}
	return out
}

func cancelableOrder() []domain.OrderStatus {
	var out []domain.OrderStatus
	for _, s := range domain.OrderStatuses() {
		if s != domain.OrderStatusCanceled && s != domain.OrderStatusCompleted {
			out = append(out, s)
		}
	}
	return out
}

// ValidateRequisitionCancel requires a non-canceled requisition and a reason.
func ValidateRequisitionCancel(r domain.Requisition, reason string) error {
	if err := requireStatus(domain.EntityRequisition, r.DocumentNumber, OpCancel, r.Status, cancelableRequisition()...); err != nil {
		return err
	}
	return requireReason(OpCancel, domain.EntityRequisition, r.DocumentNumber, string(r.Status), reason)
}

// ValidateOrderCancel requires an order that is neither COMPLETED nor
// CANCELED and a reason.
func ValidateOrderCancel(o domain.Order, reason string) error {
	if err := requireStatus(domain.EntityOrder, o.DocumentNumber, OpCancel, o.Status, cancelableOrder()...); err != nil {
		return err
	}
	return requireReason(OpCancel, domain.EntityOrder, o.DocumentNumber, string(o.Status), reason)
}

// ValidateRequisitionReopen requires REJECTED or CANCELED.
func ValidateRequisitionReopen(r domain.Requisition) error {
	return requireStatus(domain.EntityRequisition, r.DocumentNumber, OpReopen, r.Status,
		domain.RequisitionStatusRejected, domain.RequisitionStatusCanceled)
}

// ValidateOrderReopen requires REJECTED or CANCELED.
func ValidateOrderReopen(o domain.Order) error {
	return requireStatus(domain.EntityOrder, o.DocumentNumber, OpReopen, o.Status,
		domain.OrderStatusRejected, domain.OrderStatusCanceled)
}

// ValidateOrderComplete requires RECEIVED or PARTIALLY_RECEIVED.
func ValidateOrderComplete(o domain.Order) error {
	return requireStatus(domain.EntityOrder, o.DocumentNumber, OpComplete, o.Status,
		domain.OrderStatusReceived, domain.OrderStatusPartiallyReceived)
}

// ValidateRequisitionDelete allows DRAFT or REJECTED.
func ValidateRequisitionDelete(r domain.Requisition) error {
	return requireStatus(domain.EntityRequisition, r.DocumentNumber, OpDelete, r.Status,
		domain.RequisitionStatusDraft, domain.RequisitionStatusRejected)
}

// ValidateOrderDelete allows DRAFT only.
func ValidateOrderDelete(o domain.Order) error {
	return requireStatus(domain.EntityOrder, o.DocumentNumber, OpDelete, o.Status, domain.OrderStatusDraft)
}

// ValidateCreateOrderFromRequisition requires an APPROVED requisition and a vendor.
func ValidateCreateOrderFromRequisition(r domain.Requisition, vendor string) error {
	if err := requireStatus(domain.EntityRequisition, r.DocumentNumber, OpCreateOrder, r.Status, domain.RequisitionStatusApproved); err != nil {
		return err
	}
	if strings.TrimSpace(vendor) == "" {
		e := detailed(domain.NewValidation(domain.CodeVendorRequired, "a vendor is required to order requisition %s", r.DocumentNumber),
			OpCreateOrder, domain.EntityRequisition, r.DocumentNumber, string(r.Status))
		e.Field = "vendor"
		return e
	}
	return nil
}

// ValidateOrderReceive requires APPROVED and receipt quantities within the
// open quantity of every line.
func ValidateOrderReceive(o domain.Order, quantities Quantities) error {
	if err := requireStatus(domain.EntityOrder, o.DocumentNumber, OpReceive, o.Status, domain.OrderStatusApproved); err != nil {
		return err
	}
	_, err := planReceipt(o, quantities)
	return err
}

// ValidateRequisitionUpdate checks patch against the current requisition.
// Outside DRAFT only status and notes may change. A patch that submits the
// document must leave it submittable.
func ValidateRequisitionUpdate(r domain.Requisition, patch RequisitionPatch) error {
	if r.Status != domain.RequisitionStatusDraft {
		if patch.Items != nil {
			return itemsLocked(domain.EntityRequisition, r.DocumentNumber, string(r.Status))
		}
		if field := patch.headerField(); field != "" {
			return documentLocked(domain.EntityRequisition, r.DocumentNumber, string(r.Status), field)
		}
	}
	if patch.Type != nil {
		if err := validateHeader(domain.Header{Type: *patch.Type}); err != nil {
			return err
		}
	}
	if patch.Status != nil && *patch.Status != r.Status && !r.Status.CanTransitionTo(*patch.Status) {
		return illegalTransition(domain.EntityRequisition, r.DocumentNumber, string(r.Status), string(*patch.Status), statusStrings(r.Status.Next()))
	}
	if patch.Items != nil {
		if err := ValidateItems(requisitionLines(*patch.Items)); err != nil {
			return err
		}
	}
	if r.Status == domain.RequisitionStatusDraft && patch.Status != nil && *patch.Status == domain.RequisitionStatusSubmitted {
		next := r.Clone()
		patch.apply(&next)
		next.Status = r.Status
		return ValidateRequisitionSubmit(next)
	}
	return nil
}

// ValidateOrderUpdate checks patch against the current order.
func ValidateOrderUpdate(o domain.Order, patch OrderPatch) error {
	if o.Status != domain.OrderStatusDraft {
		if patch.Items != nil {
			return itemsLocked(domain.EntityOrder, o.DocumentNumber, string(o.Status))
		}
		if field := patch.headerField(); field != "" {
			return documentLocked(domain.EntityOrder, o.DocumentNumber, string(o.Status), field)
		}
	}
	if patch.Type != nil {
		if err := validateHeader(domain.Header{Type: *patch.Type}); err != nil {
			return err
		}
	}
	if patch.Status != nil && *patch.Status != o.Status && !o.Status.CanTransitionTo(*patch.Status) {
		return illegalTransition(domain.EntityOrder, o.DocumentNumber, string(o.Status), string(*patch.Status), statusStrings(o.Status.Next()))
	}
	if patch.Items != nil {
		if err := ValidateItems(orderLines(*patch.Items)); err != nil {
			return err
		}
	}
	if o.Status == domain.OrderStatusDraft && patch.Status != nil && *patch.Status == domain.OrderStatusSubmitted {
		next := o.Clone()
		patch.apply(&next)
		next.Status = o.Status
		return ValidateOrderSubmit(next)
	}
	return nil
}

func itemsLocked(entity domain.EntityType, number, status string) error {
	e := detailed(domain.NewValidation(domain.CodeItemsLocked, "items of %s %s can only change in DRAFT", entity, number),
		OpUpdate, entity, number, status)
	e.RequiredStatus = []string{"DRAFT"}
	e.Field = "items"
	return e
}

func documentLocked(entity domain.EntityType, number, status, field string) error {
	e := detailed(domain.NewValidation(domain.CodeDocumentLocked, "%s of %s %s can only change in DRAFT", field, entity, number),
		OpUpdate, entity, number, status)
	e.RequiredStatus = []string{"DRAFT"}
	e.Field = field
	return e
}
