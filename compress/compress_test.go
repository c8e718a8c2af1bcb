package compress

import (
	"bytes"
	"fmt"
	"testing"

	"srpcgo/message"
)

func bigPayload() []byte {
	buf := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 100)
	return buf
}

func TestApplyBelowThresholdStaysUncompressed(t *testing.T) {
	payload := []byte("short")
	out, ct, err := Apply(message.CompressGzip, payload, DefaultThreshold)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if ct != message.CompressNone {
		t.Fatalf("expected CompressNone below threshold, got %v", ct)
	}
	if !bytes.Equal(out, payload) {
		t.Fatal("payload below threshold must pass through unchanged")
	}
}

func TestApplyNoneIsAlwaysNoop(t *testing.T) {
	payload := bigPayload()
	out, ct, err := Apply(message.CompressNone, payload, 0)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if ct != message.CompressNone || !bytes.Equal(out, payload) {
		t.Fatal("CompressNone must always pass the payload through unchanged")
	}
}

func TestApplyReverseRoundTrip(t *testing.T) {
	payload := bigPayload()
	for _, ct := range []message.CompressType{
		message.CompressGzip,
		message.CompressZlib,
		message.CompressSnappy,
		message.CompressLZ4,
	} {
		t.Run(fmt.Sprintf("type-%d", ct), func(t *testing.T) {
			compressed, outType, err := Apply(ct, payload, 0)
			if err != nil {
				t.Fatalf("Apply(%v): %v", ct, err)
			}
			if outType != ct {
				t.Fatalf("expected CompressType %v preserved, got %v", ct, outType)
			}
			if bytes.Equal(compressed, payload) {
				t.Fatal("compressed output should differ from input for a repetitive payload")
			}

			decompressed, err := Reverse(outType, compressed, len(payload))
			if err != nil {
				t.Fatalf("Reverse(%v): %v", ct, err)
			}
			if !bytes.Equal(decompressed, payload) {
				t.Fatalf("round trip mismatch for %v", ct)
			}
		})
	}
}

func TestGetUnknownCompressType(t *testing.T) {
	if _, err := Get(message.CompressType(99)); err == nil {
		t.Fatal("expected error for unregistered compress type")
	}
}

func TestReverseNoneIsNoop(t *testing.T) {
	payload := []byte("hello")
	out, err := Reverse(message.CompressNone, payload, 0)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatal("Reverse(CompressNone) must pass through unchanged")
	}
}
