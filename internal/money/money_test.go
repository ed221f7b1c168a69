package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvault/custody-ledger/internal/money"
)

func TestToMinorUnits(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0.01", 1},
		{"1", 100},
		{"12.50", 1250},
		{"12.5", 1250},
		{"-3.07", -307},
		{"0", 0},
	}
	for _, tc := range cases {
		d, err := decimal.NewFromString(tc.in)
		require.NoError(t, err)
		got, err := money.ToMinorUnits(d)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestToMinorUnitsInexact(t *testing.T) {
	d, err := decimal.NewFromString("12.505")
	require.NoError(t, err)
	_, err = money.ToMinorUnits(d)
	require.ErrorIs(t, err, money.ErrInexact)
}

func TestToMinorUnitsOverflow(t *testing.T) {
	d, err := decimal.NewFromString("100000000000000000000")
	require.NoError(t, err)
	_, err = money.ToMinorUnits(d)
	require.ErrorIs(t, err, money.ErrOverflow)
}

func TestFromMinorUnits(t *testing.T) {
	assert.Equal(t, "12.5", money.FromMinorUnits(1250).String())
	assert.Equal(t, "0.01", money.FromMinorUnits(1).String())
	assert.Equal(t, "0", money.FromMinorUnits(0).String())
}

func TestRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, 99, 1250, -307} {
		got, err := money.ToMinorUnits(money.FromMinorUnits(n))
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
}
