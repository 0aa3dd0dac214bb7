package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandSimplePattern(t *testing.T) {
	eps, err := Expand("224.0.1.42:5004", 5004, true)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, "224.0.1.42:5004", eps[0].String())
}

func TestExpandRangePattern(t *testing.T) {
	// scenario 4: 224.0.1.{1-3}:{5004-5005} -> 6 endpoints in lexicographic order
	eps, err := Expand("224.0.1.{1-3}:{5004-5005}", 5004, true)
	require.NoError(t, err)
	require.Len(t, eps, 6)

	want := []string{
		"224.0.1.1:5004", "224.0.1.1:5005",
		"224.0.1.2:5004", "224.0.1.2:5005",
		"224.0.1.3:5004", "224.0.1.3:5005",
	}
	for i, w := range want {
		assert.Equal(t, w, eps[i].String())
	}
}

func TestExpandRejectsNonMulticastInMonitorMode(t *testing.T) {
	_, err := Expand("10.0.0.1:5004", 5004, true)
	require.Error(t, err)
}

func TestExpandAllowsUnicastForTransmit(t *testing.T) {
	eps, err := Expand("10.0.0.1:5004", 5004, false)
	require.NoError(t, err)
	require.Len(t, eps, 1)
}

func TestExpandRejectsEmbeddedWhitespace(t *testing.T) {
	_, err := Expand("224.0.1. 42:5004", 5004, true)
	require.Error(t, err)
}

func TestExpandTrimsSurroundingWhitespace(t *testing.T) {
	eps, err := Expand("  224.0.1.42:5004  ", 5004, true)
	require.NoError(t, err)
	require.Len(t, eps, 1)
}

func TestExpandRejectsOutOfRangeOctet(t *testing.T) {
	_, err := Expand("224.0.1.256:5004", 5004, true)
	require.Error(t, err)
}

func TestExpandRejectsBackwardsRange(t *testing.T) {
	_, err := Expand("224.0.1.{5-1}:5004", 5004, true)
	require.Error(t, err)
}

func TestExpandRejectsRangeTooLarge(t *testing.T) {
	_, err := Expand("224.{0-255}.{0-255}.{0-255}:5004", 5004, true)
	require.Error(t, err)
	var domainErr interface{ Error() string }
	require.ErrorAs(t, err, &domainErr)
}

func TestExpandDefaultPort(t *testing.T) {
	eps, err := Expand("224.0.1.42", 5004, true)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.EqualValues(t, 5004, eps[0].Port)
}

func TestExpandIdempotent(t *testing.T) {
	eps, err := Expand("224.0.1.{1-3}:{5004-5005}", 5004, true)
	require.NoError(t, err)
	for _, e := range eps {
		again, err := Expand(Render(e), 5004, true)
		require.NoError(t, err)
		require.Len(t, again, 1)
		assert.Equal(t, e, again[0])
	}
}
