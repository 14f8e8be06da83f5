package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	t.Run("valid checksummed address", func(t *testing.T) {
		addr, err := ParseAddress("0x627306090abaB3A6e1400e9345bC60c78a8BEf57")
		require.NoError(t, err)
		assert.Equal(t, "0x627306090abaB3A6e1400e9345bC60c78a8BEf57", addr.Hex())
	})

	t.Run("missing prefix still parses", func(t *testing.T) {
		_, err := ParseAddress("627306090abaB3A6e1400e9345bC60c78a8BEf57")
		assert.NoError(t, err)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := ParseAddress("0xnothex")
		assert.Error(t, err)
	})

	t.Run("short hex rejected", func(t *testing.T) {
		_, err := ParseAddress("0x1234")
		assert.Error(t, err)
	})
}

func TestParseAmount(t *testing.T) {
	t.Run("decimal parses", func(t *testing.T) {
		n, err := ParseAmount("12000")
		require.NoError(t, err)
		assert.Equal(t, int64(12000), n.Int64())
	})

	t.Run("values beyond 64 bits parse", func(t *testing.T) {
		n, err := ParseAmount("833333333000000000000000000")
		require.NoError(t, err)
		assert.Equal(t, "833333333000000000000000000", n.String())
	})

	t.Run("negative rejected", func(t *testing.T) {
		_, err := ParseAmount("-1")
		assert.Error(t, err)
	})

	t.Run("empty rejected", func(t *testing.T) {
		_, err := ParseAmount("")
		assert.Error(t, err)
	})

	t.Run("hex rejected", func(t *testing.T) {
		_, err := ParseAmount("0xff")
		assert.Error(t, err)
	})
}

func TestAmountString(t *testing.T) {
	assert.Equal(t, "0", AmountString(nil))
}
