package balance

import (
	"sort"

	"github.com/facturante/backend/internal/domain/invoicing"
	"github.com/facturante/backend/internal/domain/settlement"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceType tags which side of the relationship a net balance sits on.
// The tag is derived from the sign of the net amount AND the relationship
// direction together; a negative raw difference on a payable relationship
// means the opposite of the same difference on a receivable one, so the sign
// alone is never trusted.
type BalanceType string

const (
	BalanceTypeDebit  BalanceType = "DEBIT"  // The counterparty owes the company
	BalanceTypeCredit BalanceType = "CREDIT" // The company owes the counterparty
)

// NetBalance is the per-currency net position with its validated tag
type NetBalance struct {
	Amount decimal.Decimal `json:"amount"` // Absolute value
	Type   BalanceType     `json:"type"`
}

// EntityBalance is the derived per-counterparty position. It is recomputed on
// demand from current invoice and note state and is never a source of truth.
type EntityBalance struct {
	CounterpartyID    uuid.UUID                                `json:"counterparty_id"`
	CounterpartyName  string                                   `json:"counterparty_name"`
	Direction         invoicing.Direction                      `json:"direction"`
	PendingByCurrency map[valueobject.Currency]decimal.Decimal `json:"pending_by_currency"`
	CreditsByCurrency map[valueobject.Currency]decimal.Decimal `json:"credits_by_currency"`
	DebitsByCurrency  map[valueobject.Currency]decimal.Decimal `json:"debits_by_currency"`
	NetByCurrency     map[valueobject.Currency]NetBalance      `json:"net_by_currency"`
}

// PendingInPrimary returns the pending total in the book's primary currency,
// zero when the counterparty holds nothing in it
func (b *EntityBalance) PendingInPrimary(primary valueobject.Currency) decimal.Decimal {
	if amount, ok := b.PendingByCurrency[primary]; ok {
		return amount
	}
	return decimal.Zero
}

// AggregateEntityBalances computes one EntityBalance per counterparty from
// the given invoices and unassociated notes. Pending amounts are summed per
// currency with no conversion; only invoices and notes matching the explicit
// direction participate. The result is ranked by descending pending amount in
// the primary currency.
func AggregateEntityBalances(
	invoices []invoicing.Invoice,
	notes []settlement.Note,
	direction invoicing.Direction,
	primary valueobject.Currency,
) []EntityBalance {
	byCounterparty := make(map[uuid.UUID]*EntityBalance)

	ensure := func(counterpartyID uuid.UUID, name string) *EntityBalance {
		if b, ok := byCounterparty[counterpartyID]; ok {
			return b
		}
		b := &EntityBalance{
			CounterpartyID:    counterpartyID,
			CounterpartyName:  name,
			Direction:         direction,
			PendingByCurrency: make(map[valueobject.Currency]decimal.Decimal),
			CreditsByCurrency: make(map[valueobject.Currency]decimal.Decimal),
			DebitsByCurrency:  make(map[valueobject.Currency]decimal.Decimal),
			NetByCurrency:     make(map[valueobject.Currency]NetBalance),
		}
		byCounterparty[counterpartyID] = b
		return b
	}

	for i := range invoices {
		inv := &invoices[i]
		if inv.Direction != direction {
			continue
		}
		if !inv.Status.CanSettle() {
			continue
		}
		b := ensure(inv.CounterpartyID, inv.CounterpartyName)
		b.PendingByCurrency[inv.Currency] = b.PendingByCurrency[inv.Currency].Add(inv.PendingAmount)
	}

	for i := range notes {
		note := &notes[i]
		if note.Direction != direction {
			continue
		}
		// Linked notes flow through the settlement ledger instead
		if !note.IsUnassociated() || note.Status != settlement.NoteStatusPending {
			continue
		}
		b := ensure(note.CounterpartyID, note.CounterpartyName)
		switch note.Kind {
		case settlement.NoteKindCredit:
			b.CreditsByCurrency[note.Currency] = b.CreditsByCurrency[note.Currency].Add(note.Total)
		case settlement.NoteKindDebit:
			b.DebitsByCurrency[note.Currency] = b.DebitsByCurrency[note.Currency].Add(note.Total)
		}
	}

	result := make([]EntityBalance, 0, len(byCounterparty))
	for _, b := range byCounterparty {
		for currency := range currenciesOf(b) {
			net := b.PendingByCurrency[currency].
				Add(b.DebitsByCurrency[currency]).
				Sub(b.CreditsByCurrency[currency])
			b.NetByCurrency[currency] = NetBalance{
				Amount: net.Abs(),
				Type:   classify(net, direction),
			}
		}
		result = append(result, *b)
	}

	sort.Slice(result, func(i, j int) bool {
		left := result[i].PendingInPrimary(primary)
		right := result[j].PendingInPrimary(primary)
		if !left.Equal(right) {
			return left.GreaterThan(right)
		}
		// Stable display order for equal pending totals
		return result[i].CounterpartyID.String() < result[j].CounterpartyID.String()
	})

	return result
}

// currenciesOf collects every currency the counterparty has records in
func currenciesOf(b *EntityBalance) map[valueobject.Currency]struct{} {
	currencies := make(map[valueobject.Currency]struct{})
	for c := range b.PendingByCurrency {
		currencies[c] = struct{}{}
	}
	for c := range b.CreditsByCurrency {
		currencies[c] = struct{}{}
	}
	for c := range b.DebitsByCurrency {
		currencies[c] = struct{}{}
	}
	return currencies
}

// classify derives the balance tag from the net sign and the relationship
// direction together
func classify(net decimal.Decimal, direction invoicing.Direction) BalanceType {
	positive := !net.IsNegative()
	if direction == invoicing.DirectionReceivable {
		if positive {
			return BalanceTypeDebit
		}
		return BalanceTypeCredit
	}
	// Payable: a positive net means the company owes the counterparty
	if positive {
		return BalanceTypeCredit
	}
	return BalanceTypeDebit
}
