package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_EquivalentForms(t *testing.T) {
	inputs := []string{
		"05461234567",
		"5461234567",
		"905461234567",
		"+905461234567",
		"0546 123 45 67",
		"+90 546 123 45 67",
	}
	for _, in := range inputs {
		got, err := Normalize(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, "5461234567", got, "input %q", in)
	}
}

func TestNormalize_Rejections(t *testing.T) {
	inputs := []string{
		"",
		"abc",
		"123",
		"2121234567",   // 10 digits but not a GSM number
		"02121234567",  // landline with trunk zero
		"546123456",    // too short
		"+1 555 01234", // foreign
	}
	for _, in := range inputs {
		_, err := Normalize(in)
		assert.ErrorIs(t, err, ErrNormalization, "input %q", in)
	}
}

func TestNormalize_TrailingRecovery(t *testing.T) {
	// Extra garbage prefix but the trailing 10 digits form a valid number.
	got, err := Normalize("009005461234567")
	require.NoError(t, err)
	assert.Equal(t, "5461234567", got)
}

func TestNormalize_Idempotent(t *testing.T) {
	once, err := Normalize("+905461234567")
	require.NoError(t, err)
	twice, err := Normalize(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}
