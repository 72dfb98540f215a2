package domain

import (
	"errors"
	"testing"
)

func TestVector_ValueScan(t *testing.T) {
	in := Vector{0.5, -1.25, 3}
	raw, err := in.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	b, ok := raw.([]byte)
	if !ok || len(b) != 12 {
		t.Fatalf("expected 12 bytes, got %T len=%d", raw, len(b))
	}

	var out Vector
	if err := out.Scan(b); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if out.Dim() != 3 || out[0] != 0.5 || out[1] != -1.25 || out[2] != 3 {
		t.Fatalf("decoded %v", out)
	}
}

func TestVector_NilAndErrors(t *testing.T) {
	var v Vector
	raw, err := v.Value()
	if err != nil || raw != nil {
		t.Fatalf("nil vector should store NULL, got %v %v", raw, err)
	}
	if err := v.Scan(nil); err != nil || v != nil {
		t.Fatalf("Scan(nil) = %v, %v", v, err)
	}
	if err := v.Scan([]byte{1, 2, 3}); !errors.Is(err, ErrVectorFormat) {
		t.Fatalf("expected ErrVectorFormat for ragged blob, got %v", err)
	}
	if err := v.Scan(42); !errors.Is(err, ErrVectorFormat) {
		t.Fatalf("expected ErrVectorFormat for int source, got %v", err)
	}
}
