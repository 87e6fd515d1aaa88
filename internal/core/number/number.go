// Package number defines the grammar of document numbers.
//
// Three shapes exist on the wire and at rest:
//   - bare:        "000042"            official, sequence-consuming
//   - placeholder: "000042-DRAFT" or   held by drafts, never consumes
//     "000042-1724600000123"
//   - temporary:   "TEMP-<token>"      transient mid-swap value only
//
// The grammar is pure string work; allocation semantics live in
// internal/domain/numbering.
package number

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"numerus/internal/core/id"
)

const (
	// DefaultWidth is the zero-padded width of bare numbers.
	// A formatting constant, not a hard law: parsing accepts 1..MaxDigits digits.
	DefaultWidth = 6

	// MaxDigits bounds the bare shape (^\d{1,6}$).
	MaxDigits = 6

	// MaxValue is the largest representable bare number.
	MaxValue int64 = 999999

	// DraftSuffix marks the preferred draft placeholder shape.
	DraftSuffix = "-DRAFT"

	// TempPrefix marks transient swap values. Must never be observable at rest.
	TempPrefix = "TEMP-"
)

var (
	bareRe = regexp.MustCompile(`^\d{1,6}$`)
	// Placeholder: base + "-DRAFT" or base + "-" + epoch-milliseconds(+jitter).
	// 10..16 digits covers every plausible millisecond timestamp.
	placeholderRe = regexp.MustCompile(`^(\d{1,6})-(?:DRAFT|\d{10,16})$`)
)

// Shape classifies a persisted number string.
type Shape string

const (
	ShapeBare        Shape = "bare"
	ShapePlaceholder Shape = "placeholder"
	ShapeTemp        Shape = "temp"
	ShapeInvalid     Shape = "invalid"
)

// Classify returns the shape of s.
func Classify(s string) Shape {
	switch {
	case bareRe.MatchString(s):
		return ShapeBare
	case strings.HasPrefix(s, TempPrefix):
		return ShapeTemp
	case placeholderRe.MatchString(s):
		return ShapePlaceholder
	default:
		return ShapeInvalid
	}
}

// IsBare reports whether s is an official, sequence-consuming number.
func IsBare(s string) bool {
	return bareRe.MatchString(s)
}

// IsPlaceholder reports whether s is a draft placeholder (either suffix form).
func IsPlaceholder(s string) bool {
	return placeholderRe.MatchString(s)
}

// IsTemp reports whether s is a transient swap value.
func IsTemp(s string) bool {
	return strings.HasPrefix(s, TempPrefix)
}

// Format renders n as a bare number, left-zero-padded to DefaultWidth.
func Format(n int64) string {
	return fmt.Sprintf("%0*d", DefaultWidth, n)
}

// Parse converts a bare number to its integer value.
func Parse(s string) (int64, error) {
	if !bareRe.MatchString(s) {
		return 0, fmt.Errorf("not a bare number: %q", s)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse bare number %q: %w", s, err)
	}
	return n, nil
}

// Base extracts the numeric base of a bare number or a draft placeholder.
// Returns false for TEMP and invalid shapes.
func Base(s string) (int64, bool) {
	if bareRe.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err == nil
	}
	m := placeholderRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	return n, err == nil
}

// Placeholder returns the preferred draft placeholder for base: "000042-DRAFT".
func Placeholder(base int64) string {
	return Format(base) + DraftSuffix
}

// TimestampPlaceholder returns the fallback placeholder used when the
// preferred "-DRAFT" string is already taken: base suffixed with epoch
// milliseconds plus a small random jitter, so two issuers colliding within
// the same millisecond still diverge.
func TimestampPlaceholder(base int64, at time.Time) string {
	millis := at.UnixMilli() + rand.Int64N(1000)
	return Format(base) + "-" + strconv.FormatInt(millis, 10)
}

// NewTempToken mints a fresh transient value for the swap protocol.
func NewTempToken() string {
	return TempPrefix + id.New().String()
}
