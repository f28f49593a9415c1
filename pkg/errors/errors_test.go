package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestWrap(t *testing.T) {
	err := Wrap(ErrOverload, "dropping message")
	if err == nil {
		t.Fatal("Wrap() returned nil")
	}

	if !strings.Contains(err.Error(), "dropping message") {
		t.Errorf("Expected error message to contain 'dropping message', got: %s", err.Error())
	}

	if !strings.Contains(err.Error(), ErrOverload.Error()) {
		t.Errorf("Expected error message to contain the sentinel, got: %s", err.Error())
	}

	if !errors.Is(err, ErrOverload) {
		t.Error("Wrapped error should match its sentinel via errors.Is")
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if err := Wrap(nil, "ignored"); err != nil {
		t.Errorf("Wrap(nil) should return nil, got: %v", err)
	}
}

func TestWithFields(t *testing.T) {
	err := Wrap(ErrNotBooted, "rejecting").WithFields(map[string]interface{}{
		"call_id": "abc@host",
	})

	fields := err.Fields()
	if len(fields) != 1 {
		t.Fatalf("Expected 1 field, got %d", len(fields))
	}
	if fields["call_id"] != "abc@host" {
		t.Errorf("Expected field['call_id'] = 'abc@host', got: %v", fields["call_id"])
	}
}

func TestWithFieldsDoesNotMutateOriginal(t *testing.T) {
	base := Wrap(ErrEnqueueFailed, "enqueue")
	derived := base.WithFields(map[string]interface{}{"method": "INVITE"})

	if len(base.Fields()) != 0 {
		t.Errorf("Original error's fields changed: %v", base.Fields())
	}
	if len(derived.Fields()) != 1 {
		t.Errorf("Derived error should carry the new field, got: %v", derived.Fields())
	}
}
