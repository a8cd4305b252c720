package estimate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCompute_WorkedExample(t *testing.T) {
	// GIVEN: two lines, 10% markup, one install at 100, misc 25
	lines := []LineItem{
		WriteInLine("Base cabinet", 2, dec("50")),
		WriteInLine("Filler", 1, dec("30")),
	}
	adj := Adjustments{
		MarkupPercent:    dec("10"),
		InstallQty:       dec("1"),
		InstallUnitPrice: dec("100"),
		MiscCharge:       dec("25"),
	}

	// WHEN
	got := Compute(lines, adj)

	// THEN
	assert.True(t, got.Subtotal.Equal(dec("130")), "subtotal %s", got.Subtotal)
	assert.True(t, got.MarkupAmount.Equal(dec("13")), "markup %s", got.MarkupAmount)
	assert.True(t, got.InstallTotal.Equal(dec("100")), "install %s", got.InstallTotal)
	assert.True(t, got.MiscCharge.Equal(dec("25")))
	assert.Equal(t, "268.00", got.GrandTotal.StringFixed(2))
}

func TestCompute_MarkupOnlyOnSubtotal(t *testing.T) {
	got := Compute(nil, Adjustments{
		MarkupPercent:    dec("50"),
		InstallQty:       dec("2"),
		InstallUnitPrice: dec("40"),
		MiscCharge:       dec("-5"),
	})
	assert.True(t, got.MarkupAmount.IsZero())
	assert.Equal(t, "75.00", got.GrandTotal.StringFixed(2))
}

func TestCompute_EmptyIsZero(t *testing.T) {
	got := Compute(nil, Adjustments{})
	assert.True(t, got.GrandTotal.IsZero())
}

func TestParseOrZero(t *testing.T) {
	tests := map[string]string{
		"":          "0",
		"   ":       "0",
		"abc":       "0",
		"12.5":      "12.5",
		" $1,250 ":  "1250",
		"15%":       "15",
		"-3":        "-3",
		"1.2.3":     "0",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.True(t, ParseOrZero(in).Equal(dec(want)), "ParseOrZero(%q) = %s", in, ParseOrZero(in))
		})
	}
}

func TestParseAdjustments_BlankInstallQtyIsZero(t *testing.T) {
	// GIVEN: an install price with no quantity
	adj := ParseAdjustments(AdjustmentInput{InstallUnitPrice: "150"})

	// THEN: the install term is zero, as is the grand total
	assert.True(t, adj.InstallQty.IsZero())
	assert.True(t, adj.InstallTotal().IsZero())
	assert.True(t, Compute(nil, adj).GrandTotal.IsZero())

	adj = ParseAdjustments(AdjustmentInput{InstallQty: "3", InstallUnitPrice: "150"})
	assert.True(t, adj.InstallQty.Equal(dec("3")))

	adj = ParseAdjustments(AdjustmentInput{MarkupPercent: "ten"})
	assert.True(t, adj.MarkupPercent.IsZero())
	assert.True(t, adj.InstallQty.IsZero())
}

func TestResolveInstall(t *testing.T) {
	null := decimal.NullDecimal{}
	some := func(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }

	qty, price := ResolveInstall(some("2"), some("75"), dec("150"))
	assert.True(t, qty.Equal(dec("2")))
	assert.True(t, price.Equal(dec("75")))

	// Legacy row: only the single total was stored.
	qty, price = ResolveInstall(null, null, dec("320"))
	assert.True(t, qty.Equal(dec("1")))
	assert.True(t, price.Equal(dec("320")))

	// Zero qty falls back to the legacy total as well.
	qty, price = ResolveInstall(some("0"), some("75"), dec("320"))
	assert.True(t, qty.Equal(dec("1")))
	assert.True(t, price.Equal(dec("320")))

	qty, price = ResolveInstall(null, null, decimal.Zero)
	assert.True(t, qty.IsZero())
	assert.True(t, price.IsZero())
}

func TestParseQuantityAndPrice(t *testing.T) {
	n, err := ParseQuantity(" 4 ")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = ParseQuantity("2.5")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParsePrice("")
	assert.ErrorIs(t, err, ErrInvalidInput)

	p, err := ParsePrice("$12.50")
	require.NoError(t, err)
	assert.True(t, p.Equal(dec("12.5")))
}

func TestKindFromStored(t *testing.T) {
	assert.Equal(t, KindCatalog, KindFromStored("catalog", "Write-in"))
	assert.Equal(t, KindWriteIn, KindFromStored("", "Write-in"))
	assert.Equal(t, KindWriteIn, KindFromStored("", ""))
	assert.Equal(t, KindCatalog, KindFromStored("", "Hardware"))
}
