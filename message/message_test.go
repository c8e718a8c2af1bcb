package message

import (
	"errors"
	"testing"
)

func TestMetaCloneIsIndependent(t *testing.T) {
	orig := &Meta{
		Service:    "Arith",
		Method:     "Add",
		IsRequest:  true,
		ModuleData: ModuleData{"trace-id": "abc"},
	}

	clone := orig.Clone()
	clone.ModuleData.Set("trace-id", "mutated")
	clone.Service = "Other"

	if orig.ModuleData["trace-id"] != "abc" {
		t.Fatalf("mutating clone's module-data leaked into original: %v", orig.ModuleData)
	}
	if orig.Service != "Arith" {
		t.Fatalf("mutating clone's Service leaked into original: %v", orig.Service)
	}
}

func TestMetaCloneNil(t *testing.T) {
	var m *Meta
	if m.Clone() != nil {
		t.Fatal("Clone of nil Meta must return nil")
	}
}

func TestModuleDataRoundTrip(t *testing.T) {
	var md ModuleData
	md.Set("a", "1")
	md.Set("b", "2")

	encoded := EncodeModuleData(md)
	decoded, err := DecodeModuleData(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != 2 || decoded["a"] != "1" || decoded["b"] != "2" {
		t.Fatalf("round trip mismatch: %v", decoded)
	}
}

func TestModuleDataRoundTripMaxValue(t *testing.T) {
	big := make([]byte, MaxModuleValueLen)
	for i := range big {
		big[i] = 'x'
	}
	var md ModuleData
	md.Set("blob", string(big))

	decoded, err := DecodeModuleData(EncodeModuleData(md))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded["blob"]) != MaxModuleValueLen {
		t.Fatalf("expected %d-byte value, got %d", MaxModuleValueLen, len(decoded["blob"]))
	}
}

func TestModuleDataEncodeEmpty(t *testing.T) {
	if got := EncodeModuleData(nil); got != nil {
		t.Fatalf("expected nil encoding for empty module-data, got %v", got)
	}
	decoded, err := DecodeModuleData(nil)
	if err != nil || decoded != nil {
		t.Fatalf("expected nil,nil for empty input, got %v, %v", decoded, err)
	}
}

func TestModuleDataDecodeTruncated(t *testing.T) {
	if _, err := DecodeModuleData([]byte{0x00}); err == nil {
		t.Fatal("expected error decoding truncated module-data")
	}
}

func TestModuleDataMergeAndClone(t *testing.T) {
	var base ModuleData
	base.Set("x", "1")
	base.Merge(ModuleData{"y": "2"})

	clone := base.Clone()
	clone.Set("x", "mutated")
	if base["x"] != "1" {
		t.Fatalf("Clone is not independent of base: %v", base)
	}
	if clone["y"] != "2" {
		t.Fatalf("Merge did not carry over into clone: %v", clone)
	}
}

func TestStatusErrorUnwrapAndString(t *testing.T) {
	cause := errNotFound{}
	err := NewStatusError(StatusMethodNotFound, cause)
	if AsStatus(err) != StatusMethodNotFound {
		t.Fatalf("AsStatus: expected method_not_found, got %v", AsStatus(err))
	}
	if errors.Unwrap(err) != error(cause) {
		t.Fatalf("Unwrap: expected the cause, got %v", errors.Unwrap(err))
	}
	if err.Error() != "method_not_found: not found" {
		t.Fatalf("Error: expected %q, got %q", "method_not_found: not found", err.Error())
	}
	if NewStatusError(StatusOK, nil) != nil {
		t.Fatal("NewStatusError(StatusOK, nil) must return nil, a successful call has no error")
	}
}

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

func TestAsStatusPlainError(t *testing.T) {
	if AsStatus(errNotFound{}) != StatusUndefinedError {
		t.Fatalf("expected undefined_error for a plain error, got %v", AsStatus(errNotFound{}))
	}
	if AsStatus(nil) != StatusOK {
		t.Fatalf("expected ok for nil error, got %v", AsStatus(nil))
	}
}
