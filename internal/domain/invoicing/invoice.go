package invoicing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft            InvoiceStatus = "DRAFT"             // Editable, totals recompute on every change
	InvoiceStatusIssued           InvoiceStatus = "ISSUED"            // Frozen, full amount pending
	InvoiceStatusPartiallySettled InvoiceStatus = "PARTIALLY_SETTLED" // Some settlement events applied
	InvoiceStatusSettled          InvoiceStatus = "SETTLED"           // Pending amount reached zero
	InvoiceStatusVoided           InvoiceStatus = "VOIDED"            // Voided before any settlement
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusPartiallySettled,
		InvoiceStatusSettled, InvoiceStatusVoided:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the invoice is in a terminal state
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusSettled || s == InvoiceStatusVoided
}

// CanSettle returns true if settlement events can be applied in this status
func (s InvoiceStatus) CanSettle() bool {
	return s == InvoiceStatusIssued || s == InvoiceStatusPartiallySettled
}

// VoucherType represents the fiscal document class
type VoucherType string

const (
	VoucherTypeA VoucherType = "A"
	VoucherTypeB VoucherType = "B"
	VoucherTypeC VoucherType = "C"
	VoucherTypeE VoucherType = "E" // Export
)

// IsValid checks if the voucher type is valid
func (t VoucherType) IsValid() bool {
	switch t {
	case VoucherTypeA, VoucherTypeB, VoucherTypeC, VoucherTypeE:
		return true
	}
	return false
}

// Concept represents what the invoice bills for
type Concept string

const (
	ConceptProducts            Concept = "PRODUCTS"
	ConceptServices            Concept = "SERVICES"
	ConceptProductsAndServices Concept = "PRODUCTS_AND_SERVICES"
)

// IsValid checks if the concept is valid
func (c Concept) IsValid() bool {
	switch c {
	case ConceptProducts, ConceptServices, ConceptProductsAndServices:
		return true
	}
	return false
}

// RequiresServicePeriod reports whether invoices with this concept must
// carry a billed service-date range
func (c Concept) RequiresServicePeriod() bool {
	return c == ConceptServices || c == ConceptProductsAndServices
}

// ServicePeriod is the date range the services on an invoice were
// rendered over. Required when the concept includes services.
type ServicePeriod struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewServicePeriod creates a validated service period
func NewServicePeriod(from, to time.Time) (ServicePeriod, error) {
	p := ServicePeriod{From: from, To: to}
	if err := p.Validate(); err != nil {
		return ServicePeriod{}, err
	}
	return p, nil
}

// Validate checks the period bounds
func (p ServicePeriod) Validate() error {
	if p.From.IsZero() || p.To.IsZero() {
		return shared.NewDomainError("VALIDATION_ERROR", "Service period requires both a start and an end date")
	}
	if p.To.Before(p.From) {
		return shared.NewDomainError("VALIDATION_ERROR", "Service period end date cannot precede its start date")
	}
	return nil
}

// Direction distinguishes money owed to the company from money it owes.
// The same counterparty can hold invoices in both directions, so direction
// is always carried explicitly and never inferred from the counterparty.
type Direction string

const (
	DirectionReceivable Direction = "RECEIVABLE" // Sales: money owed to the company
	DirectionPayable    Direction = "PAYABLE"    // Purchases: money the company owes
)

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionReceivable || d == DirectionPayable
}

// SettlementEventKind identifies the kind of event applied to an invoice
type SettlementEventKind string

const (
	SettlementEventCollection SettlementEventKind = "COLLECTION"
	SettlementEventCreditNote SettlementEventKind = "CREDIT_NOTE"
	SettlementEventDebitNote  SettlementEventKind = "DEBIT_NOTE"
)

// SettlementRecordStatus represents the status of an applied settlement record
type SettlementRecordStatus string

const (
	SettlementRecordStatusActive   SettlementRecordStatus = "ACTIVE"
	SettlementRecordStatusReversed SettlementRecordStatus = "REVERSED"
)

// SettlementRecord is the trace of one settlement event applied to the
// invoice. It is a value object within the Invoice aggregate, stored as
// JSONB, and is the authoritative source for duplicate detection.
type SettlementRecord struct {
	ID             uuid.UUID              `json:"id"`
	EventID        uuid.UUID              `json:"event_id"` // Collection or note ID
	Kind           SettlementEventKind    `json:"kind"`
	Amount         decimal.Decimal        `json:"amount"`           // Amount actually applied to pending
	Excess         decimal.Decimal        `json:"excess,omitempty"` // Credit note portion floored away
	AppliedAt      time.Time              `json:"applied_at"`
	Status         SettlementRecordStatus `json:"status"`
	ReversedAt     *time.Time             `json:"reversed_at,omitempty"`
	ReversalReason string                 `json:"reversal_reason,omitempty"`
}

// IsActive returns true if the record has not been reversed
func (r *SettlementRecord) IsActive() bool {
	return r.Status == SettlementRecordStatusActive || r.Status == ""
}

// MarkReversed marks the record as reversed with the given reason
func (r *SettlementRecord) MarkReversed(reason string) {
	now := time.Now()
	r.Status = SettlementRecordStatusReversed
	r.ReversedAt = &now
	r.ReversalReason = reason
}

// SettlementRecords is a slice of SettlementRecord that implements GORM Scanner/Valuer for JSONB storage
type SettlementRecords []SettlementRecord

// Value implements driver.Valuer interface for GORM to store as JSONB
func (s SettlementRecords) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (s *SettlementRecords) Scan(value interface{}) error {
	if value == nil {
		*s = SettlementRecords{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan SettlementRecords: unsupported type")
	}

	if len(bytes) == 0 {
		*s = SettlementRecords{}
		return nil
	}

	return json.Unmarshal(bytes, s)
}

// Invoice represents an invoice aggregate root. It owns its lines and
// perceptions, carries the derived monetary breakdown, and acts as the
// settlement ledger for the pending amount.
type Invoice struct {
	shared.BaseAggregateRoot
	VoucherType      VoucherType          `json:"voucher_type"`
	SalesPoint       int                  `json:"sales_point"`
	VoucherNumber    int64                `json:"voucher_number"` // Assigned at issue, 0 while draft
	Direction        Direction            `json:"direction"`
	CounterpartyID   uuid.UUID            `json:"counterparty_id"`
	CounterpartyName string               `json:"counterparty_name"`
	Concept          Concept              `json:"concept"`
	Currency         valueobject.Currency `json:"currency"`
	ExchangeRate     decimal.Decimal      `json:"exchange_rate"` // To the book's primary currency, carried not applied
	IssueDate        *time.Time           `json:"issue_date"`
	DueDate          *time.Time           `json:"due_date"`
	ServicePeriod    *ServicePeriod       `json:"service_period,omitempty"`
	Lines            InvoiceLines         `json:"lines"`
	Perceptions      Perceptions          `json:"perceptions"`
	Subtotal         decimal.Decimal      `json:"subtotal"`
	TaxTotal         decimal.Decimal      `json:"tax_total"`
	PerceptionTotal  decimal.Decimal      `json:"perception_total"`
	GrandTotal       decimal.Decimal      `json:"grand_total"`
	PendingAmount    decimal.Decimal      `json:"pending_amount"`
	Status           InvoiceStatus        `json:"status"`
	Settlements      SettlementRecords    `json:"settlements"`
	VoidedAt         *time.Time           `json:"voided_at,omitempty"`
	VoidReason       string               `json:"void_reason,omitempty"`
	SettledAt        *time.Time           `json:"settled_at,omitempty"`
}

// NewInvoice creates a new draft invoice and computes its totals.
// Totals are recomputed on every write to the lines or perceptions while the
// invoice is a draft; they are never read back stale.
func NewInvoice(
	voucherType VoucherType,
	salesPoint int,
	direction Direction,
	counterpartyID uuid.UUID,
	counterpartyName string,
	concept Concept,
	currency valueobject.Currency,
	exchangeRate decimal.Decimal,
	lines []InvoiceLine,
	perceptions []Perception,
	dueDate *time.Time,
	servicePeriod *ServicePeriod,
) (*Invoice, error) {
	if !voucherType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Voucher type is not valid")
	}
	if salesPoint <= 0 || salesPoint > 9999 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Sales point must be between 1 and 9999")
	}
	if !direction.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Direction must be RECEIVABLE or PAYABLE")
	}
	if counterpartyID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Counterparty ID cannot be empty")
	}
	if counterpartyName == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Counterparty name cannot be empty")
	}
	if !concept.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Concept is not valid")
	}
	if !exchangeRate.IsPositive() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Exchange rate must be positive")
	}
	if concept.RequiresServicePeriod() {
		if servicePeriod == nil {
			return nil, shared.NewDomainErrorf("VALIDATION_ERROR", "Concept %s requires a service period", concept)
		}
		if err := servicePeriod.Validate(); err != nil {
			return nil, err
		}
	} else if servicePeriod != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "A service period is only valid when the concept includes services")
	}

	totals, err := ComputeInvoiceTotals(lines, perceptions, currency)
	if err != nil {
		return nil, err
	}

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		VoucherType:       voucherType,
		SalesPoint:        salesPoint,
		Direction:         direction,
		CounterpartyID:    counterpartyID,
		CounterpartyName:  counterpartyName,
		Concept:           concept,
		Currency:          currency,
		ExchangeRate:      exchangeRate,
		DueDate:           dueDate,
		ServicePeriod:     servicePeriod,
		Lines:             lines,
		Perceptions:       perceptions,
		Status:            InvoiceStatusDraft,
		Settlements:       SettlementRecords{},
	}
	inv.applyTotals(totals)

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

func (inv *Invoice) applyTotals(totals InvoiceTotals) {
	inv.Subtotal = totals.Subtotal.Amount()
	inv.TaxTotal = totals.TaxTotal.Amount()
	inv.PerceptionTotal = totals.PerceptionTotal.Amount()
	inv.GrandTotal = totals.GrandTotal.Amount()
}

// ReplaceLines replaces the draft invoice's lines and perceptions and
// recomputes every derived total
func (inv *Invoice) ReplaceLines(lines []InvoiceLine, perceptions []Perception) error {
	if inv.Status != InvoiceStatusDraft {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot edit lines of an invoice in %s status", inv.Status)
	}

	totals, err := ComputeInvoiceTotals(lines, perceptions, inv.Currency)
	if err != nil {
		return err
	}

	inv.Lines = lines
	inv.Perceptions = perceptions
	inv.applyTotals(totals)
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return nil
}

// CanIssue reports whether the invoice is in an issuable state. Callers
// reserving a voucher number check this first so a rejected issue does not
// burn a number and leave a gap in the fiscal sequence.
func (inv *Invoice) CanIssue() error {
	if inv.Status != InvoiceStatusDraft {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot issue an invoice in %s status", inv.Status)
	}
	return nil
}

// Issue freezes the invoice, assigns its voucher number and opens the full
// grand total as pending
func (inv *Invoice) Issue(voucherNumber int64, issueDate time.Time) error {
	if err := inv.CanIssue(); err != nil {
		return err
	}
	if voucherNumber <= 0 {
		return shared.NewDomainError("VALIDATION_ERROR", "Voucher number must be positive")
	}

	inv.VoucherNumber = voucherNumber
	inv.IssueDate = &issueDate
	inv.PendingAmount = inv.GrandTotal
	inv.Status = InvoiceStatusIssued
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceIssuedEvent(inv))

	return nil
}

// Void voids the invoice. Drafts can always be voided; issued invoices only
// while no settlement event has been applied.
func (inv *Invoice) Void(reason string) error {
	if inv.Status.IsTerminal() {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot void an invoice in %s status", inv.Status)
	}
	if len(inv.Settlements) > 0 {
		return shared.NewDomainError("INVALID_STATE", "Cannot void an invoice with applied settlements")
	}
	if reason == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Void reason is required")
	}

	now := time.Now()
	inv.Status = InvoiceStatusVoided
	inv.VoidedAt = &now
	inv.VoidReason = reason
	inv.PendingAmount = decimal.Zero
	inv.UpdatedAt = now
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceVoidedEvent(inv))

	return nil
}

// findSettlement returns the active settlement record for the given event ID,
// or nil when the event has not been applied
func (inv *Invoice) findSettlement(eventID uuid.UUID) *SettlementRecord {
	for i := range inv.Settlements {
		if inv.Settlements[i].EventID == eventID && inv.Settlements[i].IsActive() {
			return &inv.Settlements[i]
		}
	}
	return nil
}

// checkSettlementEvent runs the validations shared by every settlement kind
func (inv *Invoice) checkSettlementEvent(eventID uuid.UUID, amount valueobject.Money) error {
	if !inv.Status.CanSettle() {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot apply settlement to an invoice in %s status", inv.Status)
	}
	if eventID == uuid.Nil {
		return shared.NewDomainError("VALIDATION_ERROR", "Settlement event ID cannot be empty")
	}
	if !amount.IsPositive() {
		return shared.NewDomainError("VALIDATION_ERROR", "Settlement amount must be positive")
	}
	if amount.Currency() != inv.Currency {
		return shared.NewDomainErrorf("CURRENCY_MISMATCH",
			"Event currency %s does not match invoice %s currency %s",
			amount.Currency(), inv.GetID(), inv.Currency)
	}
	if inv.findSettlement(eventID) != nil {
		return shared.NewDomainErrorf("DUPLICATE_APPLICATION",
			"Event %s was already applied to invoice %s", eventID, inv.GetID())
	}
	return nil
}

// ApplyCollection reduces the pending amount by the gross amount allocated to
// this invoice. Gross, not net: withholdings reduce the cash the issuer
// receives, never what the debtor owed.
func (inv *Invoice) ApplyCollection(collectionID uuid.UUID, gross valueobject.Money) error {
	if err := inv.checkSettlementEvent(collectionID, gross); err != nil {
		return err
	}
	if gross.Amount().GreaterThan(inv.PendingAmount) {
		return shared.NewDomainErrorf("OVER_ALLOCATION",
			"Allocation %s exceeds pending amount %s on invoice %s",
			gross.Amount().StringFixed(2), inv.PendingAmount.StringFixed(2), inv.GetID())
	}

	inv.Settlements = append(inv.Settlements, SettlementRecord{
		ID:        uuid.New(),
		EventID:   collectionID,
		Kind:      SettlementEventCollection,
		Amount:    gross.Amount(),
		AppliedAt: time.Now(),
		Status:    SettlementRecordStatusActive,
	})
	inv.PendingAmount = inv.PendingAmount.Sub(gross.Amount())
	inv.refreshSettlementStatus()

	inv.AddDomainEvent(NewCollectionAppliedEvent(inv, collectionID, gross))

	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return nil
}

// ApplyCreditNote reduces the pending amount by the note total, flooring at
// zero. The floored-away portion is returned as excess so the caller can
// surface it; it is never silently discarded.
func (inv *Invoice) ApplyCreditNote(noteID uuid.UUID, total valueobject.Money) (valueobject.Money, error) {
	excess := valueobject.Zero(inv.Currency)
	if err := inv.checkSettlementEvent(noteID, total); err != nil {
		return excess, err
	}

	applied := total.Amount()
	if applied.GreaterThan(inv.PendingAmount) {
		excessAmount := applied.Sub(inv.PendingAmount)
		applied = inv.PendingAmount
		excess, _ = valueobject.NewMoney(excessAmount, inv.Currency)
	}

	inv.Settlements = append(inv.Settlements, SettlementRecord{
		ID:        uuid.New(),
		EventID:   noteID,
		Kind:      SettlementEventCreditNote,
		Amount:    applied,
		Excess:    excess.Amount(),
		AppliedAt: time.Now(),
		Status:    SettlementRecordStatusActive,
	})
	inv.PendingAmount = inv.PendingAmount.Sub(applied)
	inv.refreshSettlementStatus()

	inv.AddDomainEvent(NewCreditNoteAppliedEvent(inv, noteID, applied, excess.Amount()))

	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return excess, nil
}

// ApplyDebitNote raises the pending amount by the note total. A debit note
// can push pending above the original grand total; the upper bound in the
// ledger invariant applies to collections and credit notes only.
func (inv *Invoice) ApplyDebitNote(noteID uuid.UUID, total valueobject.Money) error {
	if !inv.Status.CanSettle() && inv.Status != InvoiceStatusSettled {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot apply debit note to an invoice in %s status", inv.Status)
	}
	if noteID == uuid.Nil {
		return shared.NewDomainError("VALIDATION_ERROR", "Settlement event ID cannot be empty")
	}
	if !total.IsPositive() {
		return shared.NewDomainError("VALIDATION_ERROR", "Settlement amount must be positive")
	}
	if total.Currency() != inv.Currency {
		return shared.NewDomainErrorf("CURRENCY_MISMATCH",
			"Event currency %s does not match invoice %s currency %s",
			total.Currency(), inv.GetID(), inv.Currency)
	}
	if inv.findSettlement(noteID) != nil {
		return shared.NewDomainErrorf("DUPLICATE_APPLICATION",
			"Event %s was already applied to invoice %s", noteID, inv.GetID())
	}

	if inv.Status == InvoiceStatusSettled {
		// A settled invoice reopens when a debit note lands on it
		inv.Status = InvoiceStatusPartiallySettled
		inv.SettledAt = nil
	}

	inv.Settlements = append(inv.Settlements, SettlementRecord{
		ID:        uuid.New(),
		EventID:   noteID,
		Kind:      SettlementEventDebitNote,
		Amount:    total.Amount(),
		AppliedAt: time.Now(),
		Status:    SettlementRecordStatusActive,
	})
	inv.PendingAmount = inv.PendingAmount.Add(total.Amount())
	inv.refreshSettlementStatus()

	inv.AddDomainEvent(NewDebitNoteAppliedEvent(inv, noteID, total))

	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return nil
}

// ReverseCollection undoes a previously applied collection, restoring the
// pending amount it had consumed
func (inv *Invoice) ReverseCollection(collectionID uuid.UUID, reason string) error {
	if reason == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Reversal reason is required")
	}

	record := inv.findSettlement(collectionID)
	if record == nil || record.Kind != SettlementEventCollection {
		return shared.NewDomainErrorf("NOT_FOUND", "No active collection %s on invoice %s", collectionID, inv.GetID())
	}

	record.MarkReversed(reason)
	inv.PendingAmount = inv.PendingAmount.Add(record.Amount)
	if inv.Status == InvoiceStatusSettled {
		inv.SettledAt = nil
	}
	inv.Status = InvoiceStatusPartiallySettled
	inv.refreshSettlementStatus()

	inv.AddDomainEvent(NewCollectionReversedEvent(inv, collectionID, record.Amount))

	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return nil
}

// refreshSettlementStatus recomputes the lifecycle status from the pending
// amount and the applied records
func (inv *Invoice) refreshSettlementStatus() {
	if !inv.Status.CanSettle() {
		return
	}
	if inv.PendingAmount.IsZero() {
		now := time.Now()
		inv.Status = InvoiceStatusSettled
		inv.SettledAt = &now
		inv.AddDomainEvent(NewInvoiceSettledEvent(inv))
		return
	}
	if inv.activeSettlementCount() > 0 {
		inv.Status = InvoiceStatusPartiallySettled
	} else {
		inv.Status = InvoiceStatusIssued
	}
}

func (inv *Invoice) activeSettlementCount() int {
	count := 0
	for i := range inv.Settlements {
		if inv.Settlements[i].IsActive() {
			count++
		}
	}
	return count
}

// IsOverdue reports whether the invoice is past due at the given time.
// Overdue is an orthogonal flag, not a lifecycle state.
func (inv *Invoice) IsOverdue(now time.Time) bool {
	if inv.DueDate == nil || inv.Status == InvoiceStatusSettled || inv.Status == InvoiceStatusVoided {
		return false
	}
	return inv.DueDate.Before(now)
}

// FormattedVoucherNumber returns the fiscal display form, e.g. "A-0001-00000042"
func (inv *Invoice) FormattedVoucherNumber() string {
	if inv.VoucherNumber == 0 {
		return ""
	}
	return fmt.Sprintf("%s-%04d-%08d", inv.VoucherType, inv.SalesPoint, inv.VoucherNumber)
}

// GetGrandTotalMoney returns the grand total as Money
func (inv *Invoice) GetGrandTotalMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(inv.GrandTotal, inv.Currency)
	return m
}

// GetPendingAmountMoney returns the pending amount as Money
func (inv *Invoice) GetPendingAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(inv.PendingAmount, inv.Currency)
	return m
}
