// Package core implements the procurement workflow: the document data layer,
// workflow validators, goods receiving and the instrumented Service facade.
package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"procurecore/internal/store"
	"procurecore/pkg/domain"
)

// Service is the procurement facade: it loads documents, validates the
// requested operation and delegates mutation to the data layer. Every
// failure is returned as a *domain.Error.
type Service struct {
	data *DataLayer
	opts serviceOptions
}

// NewService constructs a service backed by the supplied store.
func NewService(s *store.Store, opts ...ServiceOption) *Service {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{
		data: NewDataLayer(s, cfg.clock.Now),
		opts: cfg,
	}
}

// NewInMemoryService creates a service over a fresh store without a sink.
func NewInMemoryService(opts ...ServiceOption) *Service {
	return NewService(store.New(context.Background()), opts...)
}

// Store returns the backing store.
func (s *Service) Store() *store.Store { return s.data.Store() }

// Data returns the data layer.
func (s *Service) Data() *DataLayer { return s.data }

func operationName(op string, entity domain.EntityType) string {
	if strings.HasSuffix(op, "_"+string(entity)) {
		return op
	}
	return op + "_" + string(entity)
}

// begin starts instrumentation for an operation. The returned finish func
// records the outcome and converts err into a *domain.Error carrying the
// operation context. Reads pass an empty action and are not audited.
func (s *Service) begin(ctx context.Context, op string, entity domain.EntityType, action domain.Action) (context.Context, func(id string, err error) error) {
	operation := operationName(op, entity)
	started := time.Now()
	ctx, span := s.opts.tracer.Start(ctx, operation)
	return ctx, func(id string, err error) error {
		err = contextualize(operation, entity, id, err)
		duration := time.Since(started)
		span.End(err)
		s.opts.metrics.Observe(ctx, operation, err == nil, duration)
		if action != "" {
			entry := AuditEntry{
				Operation: operation,
				Entity:    entity,
				Action:    action,
				EntityID:  id,
				Status:    AuditStatusSuccess,
				Duration:  duration,
				Timestamp: s.opts.clock.Now().UTC(),
			}
			if err != nil {
				entry.Status = AuditStatusError
				entry.Error = err.Error()
				entry.Code, _ = domain.CodeOf(err)
			}
			s.opts.audit.Record(ctx, entry)
		}
		switch {
		case err != nil:
			code, _ := domain.CodeOf(err)
			s.opts.logger.Warn("procurement operation failed", "operation", operation, "document", id, "code", code, "error", err)
		case action != "":
			s.opts.logger.Info("procurement operation completed", "operation", operation, "document", id, "duration", duration)
		default:
			s.opts.logger.Debug("procurement read completed", "operation", operation, "document", id)
		}
		return err
	}
}

// contextualize converts lower-layer failures into *domain.Error values that
// name the service operation.
func contextualize(operation string, entity domain.EntityType, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAbsent) {
		nf := domain.NewNotFound(entity, id)
		nf.Op = operation
		return nf
	}
	var e *domain.Error
	if errors.As(err, &e) {
		cp := *e
		cp.Op = operation
		if cp.Entity == "" {
			cp.Entity = entity
		}
		if cp.DocumentNumber == "" {
			cp.DocumentNumber = id
		}
		return &cp
	}
	return domain.NewBadRequest(operation, err)
}

// checkMaterials verifies every item material against the catalog. Unknown
// materials are a Validation wrapping the catalog's NotFound; deprecated
// materials are rejected; inactive ones are accepted.
func (s *Service) checkMaterials(ctx context.Context, items []domain.Item) error {
	if s.opts.material == nil {
		return nil
	}
	for _, item := range items {
		if item.MaterialNumber == nil || *item.MaterialNumber == "" {
			continue
		}
		number := *item.MaterialNumber
		m, err := s.opts.material.GetMaterial(ctx, number)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				e := domain.NewValidation(domain.CodeMaterialNotFound, "item %d references unknown material %s", item.ItemNumber, number)
				e.ItemNumber = item.ItemNumber
				e.Field = "material_number"
				e.Err = domain.WithOp(err, "lookup_material")
				return e
			}
			return err
		}
		if !m.Usable() {
			e := domain.NewValidation(domain.CodeMaterialDeprecated, "item %d references deprecated material %s", item.ItemNumber, number)
			e.ItemNumber = item.ItemNumber
			e.Field = "material_number"
			return e
		}
	}
	return nil
}

// RequisitionFilter narrows ListRequisitions. Zero fields match everything.
type RequisitionFilter struct {
	Status     domain.RequisitionStatus
	Requester  string
	Department string
	Type       domain.DocumentType
	Urgent     *bool
}

func (f RequisitionFilter) match(r domain.Requisition) bool {
	return (f.Status == "" || r.Status == f.Status) && matchHeader(r.Header, f.Requester, f.Department, f.Type, f.Urgent)
}

func matchHeader(h domain.Header, requester, department string, typ domain.DocumentType, urgent *bool) bool {
	if requester != "" && h.Requester != requester {
		return false
	}
	if department != "" && (h.Department == nil || *h.Department != department) {
		return false
	}
	if typ != "" && h.Type != typ {
		return false
	}
	if urgent != nil && h.Urgent != *urgent {
		return false
	}
	return true
}

// GetRequisition returns one requisition.
func (s *Service) GetRequisition(ctx context.Context, number string) (domain.Requisition, error) {
	ctx, done := s.begin(ctx, "get", domain.EntityRequisition, "")
	r, err := s.data.GetRequisition(ctx, number)
	return r, done(number, err)
}

// ListRequisitions returns the requisitions matching filter, oldest first.
func (s *Service) ListRequisitions(ctx context.Context, filter RequisitionFilter) ([]domain.Requisition, error) {
	ctx, done := s.begin(ctx, "list", domain.EntityRequisition, "")
	all, err := s.data.ListRequisitions(ctx)
	if err != nil {
		return nil, done("", err)
	}
	out := make([]domain.Requisition, 0, len(all))
	for _, r := range all {
		if filter.match(r) {
			out = append(out, r)
		}
	}
	return out, done("", nil)
}

// CreateRequisition stores a new DRAFT requisition.
func (s *Service) CreateRequisition(ctx context.Context, r domain.Requisition) (domain.Requisition, error) {
	ctx, done := s.begin(ctx, OpCreate, domain.EntityRequisition, domain.ActionCreate)
	r = r.Clone()
	normalizeHeader(&r.Header)
	if r.Status == "" {
		r.Status = domain.RequisitionStatusDraft
	}
	r.Items = normalizeRequisitionItems(r.Items)
	for i := range r.Items {
		r.Items[i].AssignedToOrder = nil
	}
	if err := ValidateRequisitionCreate(r); err != nil {
		return domain.Requisition{}, done(r.DocumentNumber, err)
	}
	if err := s.checkMaterials(ctx, requisitionLines(r.Items)); err != nil {
		return domain.Requisition{}, done(r.DocumentNumber, err)
	}
	created, err := s.data.CreateRequisition(ctx, r)
	if err != nil {
		return domain.Requisition{}, done(r.DocumentNumber, err)
	}
	return created, done(created.DocumentNumber, nil)
}

// UpdateRequisition applies patch. In DRAFT every field may change; later
// only status (along the transition table) and notes may.
func (s *Service) UpdateRequisition(ctx context.Context, number string, patch RequisitionPatch) (domain.Requisition, error) {
	ctx, done := s.begin(ctx, OpUpdate, domain.EntityRequisition, domain.ActionUpdate)
	if patch.Items != nil {
		items := normalizeRequisitionItems(*patch.Items)
		patch.Items = &items
	}
	updated, err := s.data.UpdateRequisition(ctx, number, func(r *domain.Requisition) error {
		if err := ValidateRequisitionUpdate(*r, patch); err != nil {
			return err
		}
		if patch.Items != nil {
			if err := s.checkMaterials(ctx, requisitionLines(*patch.Items)); err != nil {
				return err
			}
		}
		patch.apply(r)
		return nil
	})
	return updated, done(number, err)
}

// DeleteRequisition removes a DRAFT or REJECTED requisition.
func (s *Service) DeleteRequisition(ctx context.Context, number string) error {
	ctx, done := s.begin(ctx, OpDelete, domain.EntityRequisition, domain.ActionDelete)
	err := s.data.DeleteRequisition(ctx, number, ValidateRequisitionDelete)
	return done(number, err)
}

func (s *Service) transitionRequisition(ctx context.Context, op, number string, mutate func(*domain.Requisition) error) (domain.Requisition, error) {
	ctx, done := s.begin(ctx, op, domain.EntityRequisition, domain.ActionTransition)
	updated, err := s.data.UpdateRequisition(ctx, number, mutate)
	return updated, done(number, err)
}

// SubmitRequisition moves a DRAFT requisition with items to SUBMITTED.
func (s *Service) SubmitRequisition(ctx context.Context, number string) (domain.Requisition, error) {
	return s.transitionRequisition(ctx, OpSubmit, number, func(r *domain.Requisition) error {
		if err := ValidateRequisitionSubmit(*r); err != nil {
			return err
		}
		r.Status = domain.RequisitionStatusSubmitted
		return nil
	})
}

// ApproveRequisition moves a SUBMITTED requisition to APPROVED.
func (s *Service) ApproveRequisition(ctx context.Context, number string) (domain.Requisition, error) {
	return s.transitionRequisition(ctx, OpApprove, number, func(r *domain.Requisition) error {
		if err := ValidateRequisitionApprove(*r); err != nil {
			return err
		}
		r.Status = domain.RequisitionStatusApproved
		return nil
	})
}

// RejectRequisition moves a SUBMITTED requisition to REJECTED and records
// the reason in the notes.
func (s *Service) RejectRequisition(ctx context.Context, number, reason string) (domain.Requisition, error) {
	return s.transitionRequisition(ctx, OpReject, number, func(r *domain.Requisition) error {
		if err := ValidateRequisitionReject(*r, reason); err != nil {
			return err
		}
		r.Status = domain.RequisitionStatusRejected
		r.Notes = appendNote(r.Notes, "Rejected: "+reason)
		return nil
	})
}

// CancelRequisition moves the requisition to CANCELED. Lines are left as
// they are.
func (s *Service) CancelRequisition(ctx context.Context, number, reason string) (domain.Requisition, error) {
	return s.transitionRequisition(ctx, OpCancel, number, func(r *domain.Requisition) error {
		if err := ValidateRequisitionCancel(*r, reason); err != nil {
			return err
		}
		r.Status = domain.RequisitionStatusCanceled
		r.Notes = appendNote(r.Notes, "Canceled: "+reason)
		return nil
	})
}

// ReopenRequisition returns a REJECTED or CANCELED requisition to DRAFT.
func (s *Service) ReopenRequisition(ctx context.Context, number string) (domain.Requisition, error) {
	return s.transitionRequisition(ctx, OpReopen, number, func(r *domain.Requisition) error {
		if err := ValidateRequisitionReopen(*r); err != nil {
			return err
		}
		r.Status = domain.RequisitionStatusDraft
		return nil
	})
}

// CreateOrderFromRequisition converts an APPROVED requisition into a new
// DRAFT order and marks the requisition ORDERED in the same step.
func (s *Service) CreateOrderFromRequisition(ctx context.Context, reqNumber, vendor string, paymentTerms *string) (domain.Order, error) {
	ctx, done := s.begin(ctx, OpCreateOrder, domain.EntityRequisition, domain.ActionTransition)
	var terms *string
	if paymentTerms != nil && *paymentTerms != "" {
		t := *paymentTerms
		terms = &t
	}
	order, _, err := s.data.CreateOrderFromRequisition(ctx, reqNumber, OrderDraft{Vendor: vendor, PaymentTerms: terms},
		func(r domain.Requisition) error {
			return ValidateCreateOrderFromRequisition(r, vendor)
		})
	if err != nil {
		return domain.Order{}, done(reqNumber, err)
	}
	s.opts.logger.Info("order created from requisition", "requisition", reqNumber, "order", order.DocumentNumber, "items", len(order.Items))
	return order, done(reqNumber, nil)
}
