package serial

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "attesta/pkg/domain-errors"
)

func TestEncode_Format(t *testing.T) {
	t.Run("renders prefix, year, padded body, and checksum", func(t *testing.T) {
		serial, err := Encode(LevelBachelor, 2026, 1)
		require.NoError(t, err)
		// body 000001: checksum = 1*1 mod 36 = '1'
		assert.Equal(t, "BCH-26-0000011", serial)
	})

	t.Run("uses only the last two digits of the year", func(t *testing.T) {
		serial, err := Encode(LevelMaster, 2103, 42)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(serial, "MST-03-"))
	})

	t.Run("encodes the maximum sequence", func(t *testing.T) {
		serial, err := Encode(LevelDoctorate, 2026, MaxSequence)
		require.NoError(t, err)
		assert.Contains(t, serial, "ZZZZZZ")
		assert.True(t, Validate(serial))
	})
}

func TestEncode_Rejections(t *testing.T) {
	t.Run("unknown level", func(t *testing.T) {
		_, err := Encode(Level("DIPLOMA"), 2026, 1)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("non-positive sequence", func(t *testing.T) {
		_, err := Encode(LevelBachelor, 2026, 0)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("sequence past capacity is a hard error, not truncated", func(t *testing.T) {
		_, err := Encode(LevelBachelor, 2026, MaxSequence+1)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// TestValidate_RoundTrip asserts validate(encode(x)) == true across levels,
// years, and a spread of sequence magnitudes.
func TestValidate_RoundTrip(t *testing.T) {
	sequences := []int64{1, 35, 36, 1295, 46655, 1_000_000, MaxSequence - 1, MaxSequence}
	for _, level := range []Level{LevelBachelor, LevelMaster, LevelDoctorate} {
		for _, year := range []int{1999, 2026, 2099} {
			for _, seq := range sequences {
				serial, err := Encode(level, year, seq)
				require.NoError(t, err)
				assert.True(t, Validate(serial), "expected %s to validate", serial)
			}
		}
	}
}

func TestValidate_Rejections(t *testing.T) {
	valid, err := Encode(LevelBachelor, 2026, 12345)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":             "",
		"lowercase":         strings.ToLower(valid),
		"unknown prefix":    "XYZ" + valid[3:],
		"missing checksum":  valid[:len(valid)-1],
		"extra character":   valid + "0",
		"mangled separator": strings.Replace(valid, "-", "_", 1),
		"flipped checksum":  valid[:len(valid)-1] + flipChar(valid[len(valid)-1]),
	}
	for name, serial := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, Validate(serial))
		})
	}
}

// TestValidate_SingleCharacterEdits checks the typo-detection property at the
// weight-1 and weight-7 body positions, where every single-character
// substitution shifts the checksum. Weight-3 positions have known blind spots
// (value shifts that are multiples of twelve) and are not asserted here.
func TestValidate_SingleCharacterEdits(t *testing.T) {
	serial, err := Encode(LevelMaster, 2026, 987654)
	require.NoError(t, err)
	require.True(t, Validate(serial))

	bodyStart := len("MST-26-")
	for _, offset := range []int{0, 2, 3, 5} { // weights 7, 1, 7, 1
		pos := bodyStart + offset
		original := serial[pos]
		for _, c := range base36Alphabet {
			if byte(c) == original {
				continue
			}
			edited := serial[:pos] + string(c) + serial[pos+1:]
			assert.False(t, Validate(edited),
				"single edit at body offset %d (%c->%c) escaped the checksum", offset, original, c)
		}
	}
}

func TestLevelOf(t *testing.T) {
	serial, err := Encode(LevelDoctorate, 2026, 7)
	require.NoError(t, err)

	level, ok := LevelOf(serial)
	require.True(t, ok)
	assert.Equal(t, LevelDoctorate, level)

	_, ok = LevelOf("garbage")
	assert.False(t, ok)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("  bachelor ")
	require.NoError(t, err)
	assert.Equal(t, LevelBachelor, level)

	_, err = ParseLevel("ASSOCIATE")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func flipChar(c byte) string {
	if c == '0' {
		return "1"
	}
	return "0"
}

// Guard against accidental alphabet edits: the checksum table is part of the
// external serial format.
func TestBase36Alphabet(t *testing.T) {
	require.Len(t, base36Alphabet, 36)
	for i := 0; i < 36; i++ {
		assert.Equal(t, i, base36Value(base36Alphabet[i]), fmt.Sprintf("alphabet position %d", i))
	}
}
