// Package serial implements credential serial numbers: allocation of the
// underlying sequence and the human-readable encoded form.
//
// A serial looks like BCH-26-0001B7K: a 3-letter level prefix, the two-digit
// issue year, a 6-character base-36 body carrying the sequence number, and a
// trailing checksum character computed over the body.
package serial

import (
	"fmt"
	"regexp"
	"strings"

	dErrors "attesta/pkg/domain-errors"
)

// Level identifies the academic level a credential attests.
type Level string

const (
	LevelBachelor  Level = "BACHELOR"
	LevelMaster    Level = "MASTER"
	LevelDoctorate Level = "DOCTORATE"
)

// levelPrefixes is the fixed level-to-prefix table. Serials carry the prefix,
// so entries must never be changed or reused once credentials exist.
var levelPrefixes = map[Level]string{
	LevelBachelor:  "BCH",
	LevelMaster:    "MST",
	LevelDoctorate: "DOC",
}

var prefixLevels = func() map[string]Level {
	m := make(map[string]Level, len(levelPrefixes))
	for level, prefix := range levelPrefixes {
		m[prefix] = level
	}
	return m
}()

// IsValid reports whether the level is one of the known levels.
func (l Level) IsValid() bool {
	_, ok := levelPrefixes[l]
	return ok
}

// Prefix returns the serial prefix for the level.
func (l Level) Prefix() (string, bool) {
	p, ok := levelPrefixes[l]
	return p, ok
}

// ParseLevel validates a raw level string from a trust boundary.
func ParseLevel(s string) (Level, error) {
	level := Level(strings.ToUpper(strings.TrimSpace(s)))
	if !level.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown credential level: %s", s))
	}
	return level, nil
}

const (
	base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	bodyLength     = 6

	// MaxSequence is the largest sequence number the 6-character body can
	// carry (36^6 - 1). Larger values are a hard error, never truncated.
	MaxSequence = int64(36*36*36*36*36*36 - 1)
)

// checksumWeights are the fixed positional weights applied to the body.
// The scheme is a typo detector, not a forgery-resistant signature.
var checksumWeights = [bodyLength]int{7, 3, 1, 7, 3, 1}

// serialPattern is the strict wire format: PREFIX-YY-BODY6+CHECK.
var serialPattern = regexp.MustCompile(`^([A-Z]{3})-(\d{2})-([0-9A-Z]{6})([0-9A-Z])$`)

// Encode renders a serial for the given level, two- or four-digit year, and
// sequence number.
func Encode(level Level, year int, sequence int64) (string, error) {
	prefix, ok := level.Prefix()
	if !ok {
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown credential level: %s", level))
	}
	if sequence < 1 {
		return "", dErrors.New(dErrors.CodeValidation, "sequence number must be positive")
	}
	if sequence > MaxSequence {
		return "", dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("sequence number %d exceeds serial capacity", sequence))
	}
	if year < 0 {
		return "", dErrors.New(dErrors.CodeValidation, "year must not be negative")
	}

	body := encodeBody(sequence)
	check := checksumChar(body)
	return fmt.Sprintf("%s-%02d-%s%c", prefix, year%100, body, check), nil
}

// Validate re-parses a serial with a strict format check, recomputes the
// checksum from the body, and compares. It never errors: any malformed input
// is simply not a valid serial.
func Validate(serial string) bool {
	m := serialPattern.FindStringSubmatch(serial)
	if m == nil {
		return false
	}
	if _, ok := prefixLevels[m[1]]; !ok {
		return false
	}
	return checksumChar(m[3]) == m[4][0]
}

// LevelOf extracts the level encoded in a serial's prefix. The serial must
// already have passed Validate.
func LevelOf(serial string) (Level, bool) {
	m := serialPattern.FindStringSubmatch(serial)
	if m == nil {
		return "", false
	}
	level, ok := prefixLevels[m[1]]
	return level, ok
}

// encodeBody renders the sequence in base-36, zero-padded to the body length.
func encodeBody(sequence int64) string {
	var buf [bodyLength]byte
	for i := bodyLength - 1; i >= 0; i-- {
		buf[i] = base36Alphabet[sequence%36]
		sequence /= 36
	}
	return string(buf[:])
}

// checksumChar computes the weighted mod-36 checksum over a 6-character body.
func checksumChar(body string) byte {
	sum := 0
	for i := 0; i < bodyLength; i++ {
		sum += base36Value(body[i]) * checksumWeights[i]
	}
	return base36Alphabet[sum%36]
}

func base36Value(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	default:
		return int(c-'A') + 10
	}
}
