package invoicing

import (
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
)

// PerceptionAmount is a computed perception amount alongside its definition
type PerceptionAmount struct {
	Perception Perception
	Amount     valueobject.Money
}

// InvoiceTotals is the full monetary breakdown of an invoice
type InvoiceTotals struct {
	Subtotal        valueobject.Money
	TaxTotal        valueobject.Money
	PerceptionTotal valueobject.Money
	GrandTotal      valueobject.Money
	Perceptions     []PerceptionAmount
}

// ComputeInvoiceTotals computes the invoice breakdown from its lines and
// perceptions. The result is order-independent over the lines. All math
// happens in the invoice's own currency; cross-currency aggregation is the
// balance aggregator's job, never this function's.
func ComputeInvoiceTotals(lines []InvoiceLine, perceptions []Perception, currency valueobject.Currency) (InvoiceTotals, error) {
	if len(lines) == 0 {
		return InvoiceTotals{}, shared.NewDomainError("VALIDATION_ERROR", "An invoice must have at least one line")
	}
	if !currency.IsValid() {
		return InvoiceTotals{}, shared.NewDomainErrorf("VALIDATION_ERROR", "Unknown currency %q", currency)
	}

	subtotal := valueobject.Zero(currency)
	taxTotal := valueobject.Zero(currency)
	for _, line := range lines {
		if err := line.Validate(); err != nil {
			return InvoiceTotals{}, err
		}
		lineTotals := line.Totals(currency)
		subtotal = subtotal.MustAdd(lineTotals.Subtotal)
		taxTotal = taxTotal.MustAdd(lineTotals.Tax)
	}

	perceptionTotal := valueobject.Zero(currency)
	amounts := make([]PerceptionAmount, 0, len(perceptions))
	for _, perception := range perceptions {
		if err := perception.Validate(); err != nil {
			return InvoiceTotals{}, err
		}
		amount := perception.AmountOn(subtotal, taxTotal)
		perceptionTotal = perceptionTotal.MustAdd(amount)
		amounts = append(amounts, PerceptionAmount{Perception: perception, Amount: amount})
	}

	return InvoiceTotals{
		Subtotal:        subtotal,
		TaxTotal:        taxTotal,
		PerceptionTotal: perceptionTotal,
		GrandTotal:      subtotal.MustAdd(taxTotal).MustAdd(perceptionTotal),
		Perceptions:     amounts,
	}, nil
}
