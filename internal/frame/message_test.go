package frame

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Message{
		OpenModal{},
		CloseModal{},
		GetProductImage{ContainerSelector: "#product"},
		ProductImageData{ImageSrc: "https://shop.example/dress.png"},
	}

	for _, msg := range cases {
		raw, err := EncodeMessage(msg)
		if err != nil {
			t.Fatalf("encode %T: %v", msg, err)
		}
		decoded, err := DecodeMessage(raw)
		if err != nil {
			t.Fatalf("decode %T: %v", msg, err)
		}
		if decoded != msg {
			t.Fatalf("round trip mismatch: sent %#v got %#v", msg, decoded)
		}
	}
}

func TestEncodeWireShape(t *testing.T) {
	raw, err := EncodeMessage(GetProductImage{ContainerSelector: "#product"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var wire map[string]string
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("unmarshal wire form: %v", err)
	}
	if wire["type"] != "getProductImage" || wire["containerSelector"] != "#product" {
		t.Fatalf("unexpected wire form %v", wire)
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := DecodeMessage([]byte(`{"type":"stealCookies"}`))
	if !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected ErrUnknownMessage, got %v", err)
	}
}

func TestDecodeRejectsMissingFields(t *testing.T) {
	if _, err := DecodeMessage([]byte(`{"type":"getProductImage"}`)); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected rejection of getProductImage without selector, got %v", err)
	}
	if _, err := DecodeMessage([]byte(`{"type":"productImageData"}`)); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected rejection of productImageData without imageSrc, got %v", err)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, err := DecodeMessage([]byte(`{"type":`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestEncodeRejectsEmptyFields(t *testing.T) {
	if _, err := EncodeMessage(GetProductImage{}); err == nil {
		t.Fatal("expected error encoding empty selector")
	}
	if _, err := EncodeMessage(ProductImageData{}); err == nil {
		t.Fatal("expected error encoding empty image source")
	}
}
