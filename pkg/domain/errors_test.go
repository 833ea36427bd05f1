package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorKindsAndCodes(t *testing.T) {
	nf := NewNotFound(EntityOrder, "PO-1")
	if !errors.Is(nf, ErrNotFound) || errors.Is(nf, ErrValidation) {
		t.Fatalf("not found kind mismatch")
	}
	if code, _ := CodeOf(nf); code != CodeDocumentNotFound {
		t.Fatalf("unexpected code %s", code)
	}
	if NewNotFound(EntityMaterial, "M-1").Code != CodeMaterialNotFound {
		t.Fatalf("material not found must use material code")
	}

	wrapped := &Error{Kind: KindValidation, Code: CodeMaterialNotFound, Message: "line 10 references unknown material", Err: NewNotFound(EntityMaterial, "M-1")}
	if !errors.Is(wrapped, ErrValidation) || !errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("validation wrapping not found should match both kinds")
	}
	if kind, _ := KindOf(wrapped); kind != KindValidation {
		t.Fatalf("outermost kind should be validation, got %s", kind)
	}
	if !strings.Contains(wrapped.Error(), "material M-1 not found") {
		t.Fatalf("cause missing from message: %s", wrapped.Error())
	}
}

func TestWithOpAnnotatesCopy(t *testing.T) {
	base := NewConflict(EntityRequisition, "PR-1")
	annotated := WithOp(base, "create requisition")
	if base.Op != "" {
		t.Fatalf("WithOp must not mutate the original")
	}
	if !strings.HasPrefix(annotated.Error(), "create requisition: ") {
		t.Fatalf("unexpected message %q", annotated.Error())
	}
	twice := WithOp(annotated, "import")
	if !strings.HasPrefix(twice.Error(), "import: create requisition: ") {
		t.Fatalf("unexpected nested op %q", twice.Error())
	}
	plain := fmt.Errorf("boom")
	if WithOp(plain, "x") != plain {
		t.Fatalf("non-domain errors pass through unchanged")
	}
	if _, ok := KindOf(plain); ok {
		t.Fatalf("plain errors have no kind")
	}
}

func TestBadRequestWrapsCause(t *testing.T) {
	cause := errors.New("sink exploded")
	err := NewBadRequest("create order from requisition PR-1", cause)
	if !errors.Is(err, ErrBadRequest) || !errors.Is(err, cause) {
		t.Fatalf("bad request should match kind and cause")
	}
}
