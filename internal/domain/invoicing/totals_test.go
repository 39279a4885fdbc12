package invoicing

import (
	"testing"

	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeInvoiceTotals(t *testing.T) {
	t.Run("sums lines and perceptions into the grand total", func(t *testing.T) {
		lines := []InvoiceLine{
			{Description: "Service", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1000), DiscountPercent: decimal.Zero, TaxRate: mustRate(t, 21)},
		}
		perceptions := []Perception{
			{Type: PerceptionTypeIIBB, Name: "IIBB CABA", Rate: decimal.NewFromInt(3), Base: PerceptionBaseNet},
		}

		totals, err := ComputeInvoiceTotals(lines, perceptions, valueobject.ARS)
		require.NoError(t, err)

		assert.Equal(t, "1000.00", totals.Subtotal.StringFixed(2))
		assert.Equal(t, "210.00", totals.TaxTotal.StringFixed(2))
		assert.Equal(t, "30.00", totals.PerceptionTotal.StringFixed(2))
		assert.Equal(t, "1240.00", totals.GrandTotal.StringFixed(2))
		require.Len(t, totals.Perceptions, 1)
		assert.Equal(t, "30.00", totals.Perceptions[0].Amount.StringFixed(2))
	})

	t.Run("grand total equals subtotal plus tax plus perceptions", func(t *testing.T) {
		lines := []InvoiceLine{
			{Description: "A", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(100), DiscountPercent: decimal.NewFromInt(10), TaxRate: mustRate(t, 21)},
			{Description: "B", Quantity: decimal.NewFromInt(5), UnitPrice: decimal.NewFromFloat(49.90), DiscountPercent: decimal.Zero, TaxRate: mustRate(t, 10.5)},
			{Description: "C", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(300), DiscountPercent: decimal.Zero, TaxRate: ExemptTaxRate()},
		}
		perceptions := []Perception{
			{Type: PerceptionTypeIIBB, Name: "IIBB", Rate: decimal.NewFromFloat(2.5), Base: PerceptionBaseNet},
			{Type: PerceptionTypeIVA, Name: "Percepción IVA", Rate: decimal.NewFromInt(10), Base: PerceptionBaseVAT},
		}

		totals, err := ComputeInvoiceTotals(lines, perceptions, valueobject.ARS)
		require.NoError(t, err)

		expected := totals.Subtotal.MustAdd(totals.TaxTotal).MustAdd(totals.PerceptionTotal)
		assert.True(t, totals.GrandTotal.Equals(expected))
	})

	t.Run("line order does not change the result", func(t *testing.T) {
		a := InvoiceLine{Description: "A", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromFloat(33.33), TaxRate: mustRate(t, 21)}
		b := InvoiceLine{Description: "B", Quantity: decimal.NewFromInt(7), UnitPrice: decimal.NewFromFloat(14.29), TaxRate: mustRate(t, 10.5)}

		forward, err := ComputeInvoiceTotals([]InvoiceLine{a, b}, nil, valueobject.ARS)
		require.NoError(t, err)
		backward, err := ComputeInvoiceTotals([]InvoiceLine{b, a}, nil, valueobject.ARS)
		require.NoError(t, err)

		assert.True(t, forward.GrandTotal.Equals(backward.GrandTotal))
		assert.True(t, forward.TaxTotal.Equals(backward.TaxTotal))
	})

	t.Run("rejects an empty line list", func(t *testing.T) {
		_, err := ComputeInvoiceTotals(nil, nil, valueobject.ARS)
		assert.Error(t, err)
	})

	t.Run("rejects an unknown currency", func(t *testing.T) {
		lines := []InvoiceLine{
			{Description: "A", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10), TaxRate: mustRate(t, 21)},
		}
		_, err := ComputeInvoiceTotals(lines, nil, "BRL")
		assert.Error(t, err)
	})

	t.Run("rejects an invalid line before computing anything", func(t *testing.T) {
		lines := []InvoiceLine{
			{Description: "Bad", Quantity: decimal.NewFromInt(-1), UnitPrice: decimal.NewFromInt(10), TaxRate: mustRate(t, 21)},
		}
		_, err := ComputeInvoiceTotals(lines, nil, valueobject.ARS)
		assert.Error(t, err)
	})

	t.Run("rejects an invalid perception", func(t *testing.T) {
		lines := []InvoiceLine{
			{Description: "A", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10), TaxRate: mustRate(t, 21)},
		}
		perceptions := []Perception{
			{Type: PerceptionTypeIIBB, Name: "", Rate: decimal.NewFromInt(3), Base: PerceptionBaseNet},
		}
		_, err := ComputeInvoiceTotals(lines, perceptions, valueobject.ARS)
		assert.Error(t, err)
	})
}
