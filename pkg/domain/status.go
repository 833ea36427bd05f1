package domain

// RequisitionStatus enumerates purchase requisition workflow states.
type RequisitionStatus string

// Canonical requisition statuses.
const (
	RequisitionStatusDraft     RequisitionStatus = "DRAFT"
	RequisitionStatusSubmitted RequisitionStatus = "SUBMITTED"
	RequisitionStatusApproved  RequisitionStatus = "APPROVED"
	RequisitionStatusRejected  RequisitionStatus = "REJECTED"
	RequisitionStatusOrdered   RequisitionStatus = "ORDERED"
	RequisitionStatusCanceled  RequisitionStatus = "CANCELED"
)

// OrderStatus enumerates purchase order workflow states.
type OrderStatus string

// Canonical order statuses.
const (
	OrderStatusDraft             OrderStatus = "DRAFT"
	OrderStatusSubmitted         OrderStatus = "SUBMITTED"
	OrderStatusApproved          OrderStatus = "APPROVED"
	OrderStatusRejected          OrderStatus = "REJECTED"
	OrderStatusPartiallyReceived OrderStatus = "PARTIALLY_RECEIVED"
	OrderStatusReceived          OrderStatus = "RECEIVED"
	OrderStatusCompleted         OrderStatus = "COMPLETED"
	OrderStatusCanceled          OrderStatus = "CANCELED"
)

var requisitionTransitions = map[RequisitionStatus][]RequisitionStatus{
	RequisitionStatusDraft:     {RequisitionStatusSubmitted, RequisitionStatusCanceled},
	RequisitionStatusSubmitted: {RequisitionStatusApproved, RequisitionStatusRejected, RequisitionStatusCanceled},
	RequisitionStatusApproved:  {RequisitionStatusOrdered, RequisitionStatusCanceled},
	RequisitionStatusRejected:  {RequisitionStatusDraft, RequisitionStatusCanceled},
	RequisitionStatusOrdered:   {RequisitionStatusCanceled},
	RequisitionStatusCanceled:  {RequisitionStatusDraft},
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusDraft:             {OrderStatusSubmitted, OrderStatusCanceled},
	OrderStatusSubmitted:         {OrderStatusApproved, OrderStatusRejected, OrderStatusCanceled},
	OrderStatusApproved:          {OrderStatusReceived, OrderStatusPartiallyReceived, OrderStatusCanceled},
	OrderStatusRejected:          {OrderStatusDraft, OrderStatusCanceled},
	OrderStatusReceived:          {OrderStatusCompleted, OrderStatusCanceled},
	OrderStatusPartiallyReceived: {OrderStatusReceived, OrderStatusCompleted, OrderStatusCanceled},
	OrderStatusCompleted:         {},
	OrderStatusCanceled:          {OrderStatusDraft},
}

// RequisitionStatuses returns every requisition status in workflow order.
func RequisitionStatuses() []RequisitionStatus {
	return []RequisitionStatus{
		RequisitionStatusDraft,
		RequisitionStatusSubmitted,
		RequisitionStatusApproved,
		RequisitionStatusRejected,
		RequisitionStatusOrdered,
		RequisitionStatusCanceled,
	}
}

// OrderStatuses returns every order status in workflow order.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusDraft,
		OrderStatusSubmitted,
		OrderStatusApproved,
		OrderStatusRejected,
		OrderStatusPartiallyReceived,
		OrderStatusReceived,
		OrderStatusCompleted,
		OrderStatusCanceled,
	}
}

// Valid reports whether s is a known requisition status.
func (s RequisitionStatus) Valid() bool {
	_, ok := requisitionTransitions[s]
	return ok
}

// Next returns the statuses directly reachable from s.
func (s RequisitionStatus) Next() []RequisitionStatus {
	return append([]RequisitionStatus(nil), requisitionTransitions[s]...)
}

// CanTransitionTo reports whether the requisition table permits s -> target.
func (s RequisitionStatus) CanTransitionTo(target RequisitionStatus) bool {
	for _, next := range requisitionTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Next returns the statuses directly reachable from s.
func (s OrderStatus) Next() []OrderStatus {
	return append([]OrderStatus(nil), orderTransitions[s]...)
}

// CanTransitionTo reports whether the order table permits s -> target.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}
