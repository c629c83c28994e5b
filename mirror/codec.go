// Package mirror decodes the ASCII mirror emitted by NTAG21x-family chips.
// The mirror is the chip UID followed immediately by the 24-bit NFC scan
// counter, both hex-encoded.
package mirror

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// UIDLength is the hex-encoded length of the 7-byte chip UID.
	UIDLength = 14
	// CounterLength is the hex-encoded length of the 24-bit scan counter.
	CounterLength = 6
	// MirrorLength is the total length of a well-formed ASCII mirror.
	MirrorLength = UIDLength + CounterLength
)

// FormatError reports a malformed UID or ASCII mirror. It is a client-input
// error, never an infrastructure failure.
type FormatError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// IsFormatError reports whether err is a mirror format error
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// ParseMirror decodes an ASCII mirror into its UID and scan counter. The UID
// is returned in canonical (uppercase) form. The counter is decoded but its
// monotonicity is not checked here; replay protection is a concern of the
// scan endpoint when a counter guard is configured.
func ParseMirror(raw string) (uid string, counter uint32, err error) {
	if len(raw) != MirrorLength {
		return "", 0, &FormatError{
			Field:  "ascii_mirror",
			Value:  raw,
			Reason: fmt.Sprintf("expected %d characters, got %d", MirrorLength, len(raw)),
		}
	}

	uid = raw[:UIDLength]
	if err := ValidateUID(uid); err != nil {
		return "", 0, err
	}

	counterPart := raw[UIDLength:]
	if !isHex(counterPart) {
		return "", 0, &FormatError{
			Field:  "ascii_mirror",
			Value:  raw,
			Reason: "counter segment is not hexadecimal",
		}
	}

	parsed, err := strconv.ParseUint(counterPart, 16, 32)
	if err != nil {
		return "", 0, &FormatError{
			Field:  "ascii_mirror",
			Value:  raw,
			Reason: "counter segment is not hexadecimal",
		}
	}

	return CanonicalUID(uid), uint32(parsed), nil
}

// ValidateUID checks that uid is a hex string of the expected chip-UID
// length. Both cases are accepted; persistence uses CanonicalUID.
func ValidateUID(uid string) error {
	if len(uid) != UIDLength {
		return &FormatError{
			Field:  "uid",
			Value:  uid,
			Reason: fmt.Sprintf("expected %d characters, got %d", UIDLength, len(uid)),
		}
	}
	if !isHex(uid) {
		return &FormatError{
			Field:  "uid",
			Value:  uid,
			Reason: "contains non-hexadecimal characters",
		}
	}
	return nil
}

// CanonicalUID returns the canonical (uppercase) form of a UID. It does not
// validate; call ValidateUID first.
func CanonicalUID(uid string) string {
	return strings.ToUpper(uid)
}

// EncodeMirror builds the ASCII mirror for a UID and counter. Used by tests
// and tooling; chips emit this themselves in production.
func EncodeMirror(uid string, counter uint32) string {
	return CanonicalUID(uid) + fmt.Sprintf("%06X", counter)
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'F':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
