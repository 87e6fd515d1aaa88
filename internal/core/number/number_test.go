package number

import (
	"strings"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Shape
	}{
		{"bare padded", "000042", ShapeBare},
		{"bare single digit", "7", ShapeBare},
		{"bare max digits", "999999", ShapeBare},
		{"bare too long", "1000000", ShapeInvalid},
		{"draft placeholder", "000042-DRAFT", ShapePlaceholder},
		{"timestamp placeholder", "000042-1724600000123", ShapePlaceholder},
		{"timestamp too short", "000042-123", ShapeInvalid},
		{"temp", "TEMP-0191e9a0-0000-7000-8000-000000000000", ShapeTemp},
		{"temp bare token", "TEMP-x", ShapeTemp},
		{"empty", "", ShapeInvalid},
		{"draft without base", "-DRAFT", ShapeInvalid},
		{"lowercase draft", "000042-draft", ShapeInvalid},
		{"leading space", " 000042", ShapeInvalid},
		{"base too long in placeholder", "1000000-DRAFT", ShapeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.in); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestShapePredicates(t *testing.T) {
	if !IsBare("000001") {
		t.Error("000001 must be bare")
	}
	if IsBare("000001-DRAFT") {
		t.Error("placeholder must not be bare")
	}
	if !IsPlaceholder("000001-DRAFT") {
		t.Error("000001-DRAFT must be a placeholder")
	}
	if !IsPlaceholder("42-1724600000123") {
		t.Error("timestamp suffix must be a placeholder")
	}
	if IsPlaceholder("TEMP-abc") {
		t.Error("temp must not be a placeholder")
	}
	if !IsTemp("TEMP-abc") {
		t.Error("TEMP- prefix must classify as temp")
	}
}

func TestFormatAndParse(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{1, "000001"},
		{42, "000042"},
		{999999, "999999"},
	}

	for _, tt := range tests {
		got := Format(tt.n)
		if got != tt.want {
			t.Errorf("Format(%d) = %q, want %q", tt.n, got, tt.want)
		}
		back, err := Parse(got)
		if err != nil {
			t.Fatalf("Parse(%q): %v", got, err)
		}
		if back != tt.n {
			t.Errorf("Parse(Format(%d)) = %d", tt.n, back)
		}
	}

	// Unpadded manual input parses too: the grammar allows 1..6 digits.
	n, err := Parse("7")
	if err != nil || n != 7 {
		t.Errorf("Parse(\"7\") = %d, %v; want 7, nil", n, err)
	}

	if _, err := Parse("000042-DRAFT"); err == nil {
		t.Error("Parse must reject placeholders")
	}
	if _, err := Parse("1234567"); err == nil {
		t.Error("Parse must reject more than six digits")
	}
}

func TestBase(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"000042", 42, true},
		{"000042-DRAFT", 42, true},
		{"000042-1724600000123", 42, true},
		{"7", 7, true},
		{"TEMP-abc", 0, false},
		{"garbage", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := Base(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Base(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestPlaceholder(t *testing.T) {
	if got := Placeholder(42); got != "000042-DRAFT" {
		t.Errorf("Placeholder(42) = %q", got)
	}
	if !IsPlaceholder(Placeholder(1)) {
		t.Error("Placeholder output must satisfy its own grammar")
	}
}

func TestTimestampPlaceholder(t *testing.T) {
	now := time.Now()
	got := TimestampPlaceholder(42, now)

	if !IsPlaceholder(got) {
		t.Fatalf("TimestampPlaceholder produced invalid shape: %q", got)
	}
	if base, ok := Base(got); !ok || base != 42 {
		t.Errorf("base of %q = %d, want 42", got, base)
	}
	if !strings.HasPrefix(got, "000042-") {
		t.Errorf("want zero-padded base prefix, got %q", got)
	}
	// Jitter keeps same-millisecond issuers apart. With 1000 possible
	// offsets a handful of draws colliding every time is effectively
	// impossible; accept at least one divergence across 20 draws.
	distinct := map[string]bool{got: true}
	for i := 0; i < 20; i++ {
		distinct[TimestampPlaceholder(42, now)] = true
	}
	if len(distinct) < 2 {
		t.Error("expected jitter to disambiguate same-millisecond placeholders")
	}
}

func TestNewTempToken(t *testing.T) {
	a := NewTempToken()
	b := NewTempToken()

	if !IsTemp(a) {
		t.Fatalf("temp token %q must carry the TEMP- prefix", a)
	}
	if Classify(a) != ShapeTemp {
		t.Errorf("Classify(%q) = %v, want temp", a, Classify(a))
	}
	if a == b {
		t.Error("temp tokens must be unique")
	}
}
