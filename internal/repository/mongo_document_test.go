package repository

import (
	"testing"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDocument_RoundTrip(t *testing.T) {
	c := newTestCart("alice")

	doc, err := toDocument(c)
	require.NoError(t, err)
	back, err := doc.toDomain()
	require.NoError(t, err)

	assert.Equal(t, c.ID, back.ID)
	require.Len(t, back.Items, len(c.Items))
	assert.True(t, c.TotalAmount.Equal(back.TotalAmount))
	assert.True(t, c.Items[0].ListPrice.Equal(back.Items[0].ListPrice))
}

func TestToDocument_UnrepresentableAmountIsAnError(t *testing.T) {
	c := newTestCart("alice")
	// 39 significant digits, Decimal128 holds 34
	c.Items = append(c.Items, domain.CartItem{
		ItemID:    "wide",
		UnitPrice: money.MustParse("1.23456789012345678901234567890123456789"),
		ListPrice: money.MustParse("1"),
	})

	assert.NotPanics(t, func() {
		_, err := toDocument(c)
		assert.ErrorContains(t, err, "decimal128")
	})
}
