package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestDecodeContentPerKind(t *testing.T) {
	cases := []struct {
		kind MessageKind
		raw  string
		want Content
	}{
		{MessageText, `{"text":"hello"}`, TextContent{Text: "hello"}},
		{MessageImage, `{"url":"https://files/x.png","mime_type":"image/png"}`, MediaContent{URL: "https://files/x.png", MimeType: "image/png"}},
		{MessageLocation, `{"lat":50.45,"lon":30.52}`, LocationContent{Lat: 50.45, Lon: 30.52}},
		{MessageSystem, `{"code":"participant_left"}`, SystemContent{Code: "participant_left"}},
	}
	for _, tc := range cases {
		got, err := DecodeContent(tc.kind, []byte(tc.raw))
		if err != nil {
			t.Fatalf("%s: %v", tc.kind, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %#v want %#v", tc.kind, got, tc.want)
		}
	}
}

func TestDecodeContentRejectsGarbage(t *testing.T) {
	if _, err := DecodeContent(MessageText, []byte(`not json`)); !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := DecodeContent(MessageKind("carrier-pigeon"), []byte(`{}`)); !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error for unknown kind, got %v", err)
	}
	if _, err := DecodeContent(MessageText, nil); !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error for empty payload, got %v", err)
	}
}

func TestContentValidate(t *testing.T) {
	if err := (TextContent{Text: "  "}).Validate(); !IsKind(err, KindValidation) {
		t.Fatal("blank text should not validate")
	}
	if err := (TextContent{Text: strings.Repeat("a", maxTextLen+1)}).Validate(); !IsKind(err, KindValidation) {
		t.Fatal("oversized text should not validate")
	}
	if err := (MediaContent{}).Validate(); !IsKind(err, KindValidation) {
		t.Fatal("media without url should not validate")
	}
	if err := (LocationContent{Lat: 91}).Validate(); !IsKind(err, KindValidation) {
		t.Fatal("out-of-range latitude should not validate")
	}
	if err := (TextContent{Text: "ok"}).Validate(); err != nil {
		t.Fatalf("valid text rejected: %v", err)
	}
}

func TestDirectKeyCanonical(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	if DirectKey(a, b) != DirectKey(b, a) {
		t.Fatal("direct key must not depend on argument order")
	}
	if DirectKey(a, b) == DirectKey(a, uuid.New()) {
		t.Fatal("different pairs must produce different keys")
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(ErrNotFound("x")) != KindNotFound {
		t.Fatal("wrong kind for not-found")
	}
	if KindOf(ErrAccessDenied("x")) != KindAccessDenied {
		t.Fatal("wrong kind for access-denied")
	}
	// Unknown errors are fatal by default, never silently retried.
	if KindOf(errors.New("boom")) != KindFatal {
		t.Fatal("unknown errors should map to the fatal kind")
	}
	if KindOf(WrapError(KindTransientStorage, "op", errors.New("busy"))) != KindTransientStorage {
		t.Fatal("wrapped transient error lost its kind")
	}
}
