package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" usd ")
	require.NoError(t, err)
	assert.Equal(t, USD, c)

	_, err = ParseCurrency("BTC")
	assert.ErrorIs(t, err, ErrUnknownCurrency)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("12,50")
	assert.Error(t, err)
}

func TestPercent_RoundsToCents(t *testing.T) {
	assert.True(t, MustParse("6").Equal(Percent(MustParse("60"), MustParse("10"))))
	assert.True(t, MustParse("3.33").Equal(Percent(MustParse("33.33"), MustParse("10"))))
	assert.True(t, MustParse("0.17").Equal(Percent(MustParse("0.33"), MustParse("50"))))
}

func TestInCents(t *testing.T) {
	assert.True(t, InCents(MustParse("19.99")))
	assert.True(t, InCents(MustParse("19.900")))
	assert.True(t, InCents(MustParse("-3")))
	assert.False(t, InCents(MustParse("19.999")))
	assert.False(t, InCents(MustParse("0.0000000000000000000000000000000000001")))
}

func TestClamp(t *testing.T) {
	lo, hi := decimal.Zero, MustParse("10")
	assert.True(t, hi.Equal(Clamp(MustParse("12"), lo, hi)))
	assert.True(t, lo.Equal(Clamp(MustParse("-1"), lo, hi)))
	assert.True(t, MustParse("4").Equal(Clamp(MustParse("4"), lo, hi)))
	// inverted bounds resolve to the lower bound
	assert.True(t, lo.Equal(Clamp(MustParse("4"), lo, MustParse("-5"))))
}

func TestCapAt(t *testing.T) {
	limit := MustParse("5")
	assert.True(t, limit.Equal(CapAt(MustParse("8"), &limit)))
	assert.True(t, MustParse("8").Equal(CapAt(MustParse("8"), nil)))
}

func TestSumAndNonNegative(t *testing.T) {
	assert.True(t, MustParse("3.5").Equal(Sum(MustParse("1.25"), MustParse("2.25"))))
	assert.True(t, Zero().Equal(Sum()))
	assert.True(t, Zero().Equal(NonNegative(MustParse("-0.01"))))
}
