package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInt(t *testing.T) {
	assert.Equal(t, 5, ParseInt("5", 10))
	assert.Equal(t, 5, ParseInt(" 5 ", 10))
	assert.Equal(t, 10, ParseInt("five", 10))
	assert.Equal(t, 10, ParseInt("", 10))
}

func TestParseOptionalInt(t *testing.T) {
	v, err := ParseOptionalInt("")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ParseOptionalInt("30")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 30, *v)

	_, err = ParseOptionalInt("thirty")
	assert.Error(t, err)
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"tomato", "basil", "garlic"},
		ParseList([]string{"tomato", "basil, garlic"}))
	assert.Equal(t, []string{}, ParseList([]string{" ", ","}))
	assert.Equal(t, []string{}, ParseList(nil))
}
