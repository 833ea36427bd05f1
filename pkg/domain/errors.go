package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrorKind is the coarse failure taxonomy surfaced to callers.
type ErrorKind string

// Error kinds.
const (
	KindNotFound   ErrorKind = "not_found"
	KindValidation ErrorKind = "validation"
	KindConflict   ErrorKind = "conflict"
	KindBadRequest ErrorKind = "bad_request"
)

// Code is a stable machine-readable reason attached to every Error.
type Code string

// Reason codes. Values are part of the public contract and must not change.
const (
	CodeDocumentNotFound    Code = "document_not_found"
	CodeMaterialNotFound    Code = "material_not_found"
	CodeMaterialDeprecated  Code = "material_deprecated"
	CodeInvalidStatus       Code = "invalid_status"
	CodeIllegalTransition   Code = "illegal_transition"
	CodeItemsRequired       Code = "items_required"
	CodeVendorRequired      Code = "vendor_required"
	CodeReasonRequired      Code = "reason_required"
	CodeItemsLocked         Code = "items_locked"
	CodeDocumentLocked      Code = "document_locked"
	CodeInvalidField        Code = "invalid_field"
	CodeDuplicateItemNumber Code = "duplicate_item_number"
	CodeUnknownItem         Code = "unknown_item"
	CodeNegativeQuantity    Code = "negative_quantity"
	CodeQuantityExceeded    Code = "quantity_exceeded"
	CodeNoTransferableItems Code = "no_transferable_items"
	CodeDuplicateDocument   Code = "duplicate_document"
	CodeOperationFailed     Code = "operation_failed"
)

// QuantityDetail describes a receipt that would exceed the ordered quantity.
type QuantityDetail struct {
	Ordered         decimal.Decimal `json:"ordered"`
	AlreadyReceived decimal.Decimal `json:"already_received"`
	Attempted       decimal.Decimal `json:"attempted"`
	MaxAllowed      decimal.Decimal `json:"max_allowed"`
}

// Error is the typed failure returned across layers. Kind and Code are meant
// for programmatic branching; Message is for humans.
type Error struct {
	Kind           ErrorKind       `json:"kind"`
	Code           Code            `json:"code"`
	Message        string          `json:"message"`
	Op             string          `json:"op,omitempty"`
	Entity         EntityType      `json:"entity,omitempty"`
	DocumentNumber string          `json:"document_number,omitempty"`
	CurrentStatus  string          `json:"current_status,omitempty"`
	RequiredStatus []string        `json:"required_status,omitempty"`
	ItemNumber     int             `json:"item_number,omitempty"`
	Field          string          `json:"field,omitempty"`
	Quantity       *QuantityDetail `json:"quantity,omitempty"`
	Err            error           `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels (ErrNotFound, ErrValidation, ...).
func (e *Error) Is(target error) bool {
	var s kindSentinel
	if errors.As(target, &s) {
		return e.Kind == s.kind
	}
	return false
}

type kindSentinel struct{ kind ErrorKind }

func (s kindSentinel) Error() string { return string(s.kind) }

// Kind sentinels usable with errors.Is.
var (
	ErrNotFound   error = kindSentinel{KindNotFound}
	ErrValidation error = kindSentinel{KindValidation}
	ErrConflict   error = kindSentinel{KindConflict}
	ErrBadRequest error = kindSentinel{KindBadRequest}
)

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// CodeOf returns the code of the outermost *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// NewNotFound reports an unknown document or material.
func NewNotFound(entity EntityType, number string) *Error {
	code := CodeDocumentNotFound
	if entity == EntityMaterial {
		code = CodeMaterialNotFound
	}
	return &Error{
		Kind:           KindNotFound,
		Code:           code,
		Message:        fmt.Sprintf("%s %s not found", entity, number),
		Entity:         entity,
		DocumentNumber: number,
	}
}

// NewConflict reports a duplicate document number.
func NewConflict(entity EntityType, number string) *Error {
	return &Error{
		Kind:           KindConflict,
		Code:           CodeDuplicateDocument,
		Message:        fmt.Sprintf("%s %s already exists", entity, number),
		Entity:         entity,
		DocumentNumber: number,
	}
}

// NewValidation builds a validation failure with the given reason code.
func NewValidation(code Code, format string, args ...any) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewBadRequest wraps an unexpected failure with operation context.
func NewBadRequest(op string, err error) *Error {
	return &Error{
		Kind:    KindBadRequest,
		Code:    CodeOperationFailed,
		Message: "operation failed",
		Op:      op,
		Err:     err,
	}
}

// WithOp returns a copy of err annotated with op when err is an *Error;
// other errors are returned unchanged.
func WithOp(err error, op string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	cp := *e
	if cp.Op == "" {
		cp.Op = op
	} else {
		cp.Op = op + ": " + cp.Op
	}
	return &cp
}
