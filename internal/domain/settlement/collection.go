package settlement

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CollectionStatus represents the status of a collection
type CollectionStatus string

const (
	CollectionStatusDraft     CollectionStatus = "DRAFT"     // Not yet confirmed
	CollectionStatusConfirmed CollectionStatus = "CONFIRMED" // Confirmed and can be allocated
	CollectionStatusAllocated CollectionStatus = "ALLOCATED" // Fully allocated to invoices
	CollectionStatusCancelled CollectionStatus = "CANCELLED" // Cancelled
)

// IsValid checks if the status is a valid CollectionStatus
func (s CollectionStatus) IsValid() bool {
	switch s {
	case CollectionStatusDraft, CollectionStatusConfirmed, CollectionStatusAllocated, CollectionStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of CollectionStatus
func (s CollectionStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the collection is in a terminal state
func (s CollectionStatus) IsTerminal() bool {
	return s == CollectionStatusAllocated || s == CollectionStatusCancelled
}

// CanAllocate returns true if allocations can be made in this status
func (s CollectionStatus) CanAllocate() bool {
	return s == CollectionStatusConfirmed
}

// CanConfirm returns true if the collection can be confirmed in this status
func (s CollectionStatus) CanConfirm() bool {
	return s == CollectionStatusDraft
}

// CanCancel returns true if the collection can be cancelled in this status
func (s CollectionStatus) CanCancel() bool {
	return s == CollectionStatusDraft || s == CollectionStatusConfirmed
}

// PaymentMethod represents the method of payment
type PaymentMethod string

const (
	PaymentMethodTransfer PaymentMethod = "TRANSFER" // Bank transfer
	PaymentMethodCheck    PaymentMethod = "CHECK"    // Check/Cheque
	PaymentMethodCash     PaymentMethod = "CASH"     // Cash payment
	PaymentMethodCard     PaymentMethod = "CARD"     // Credit or debit card
	PaymentMethodOther    PaymentMethod = "OTHER"    // Other methods
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodTransfer, PaymentMethodCheck, PaymentMethodCash,
		PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// InvoiceAllocation represents the allocation of part of a collection's gross
// amount to one invoice
type InvoiceAllocation struct {
	ID            uuid.UUID       `json:"id"`
	CollectionID  uuid.UUID       `json:"collection_id"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	VoucherNumber string          `json:"voucher_number"` // Denormalized for display
	Amount        decimal.Decimal `json:"amount"`
	AllocatedAt   time.Time       `json:"allocated_at"`
}

// NewInvoiceAllocation creates a new invoice allocation
func NewInvoiceAllocation(collectionID, invoiceID uuid.UUID, voucherNumber string, amount valueobject.Money) *InvoiceAllocation {
	return &InvoiceAllocation{
		ID:            uuid.New(),
		CollectionID:  collectionID,
		InvoiceID:     invoiceID,
		VoucherNumber: voucherNumber,
		Amount:        amount.Amount(),
		AllocatedAt:   time.Now(),
	}
}

// InvoiceAllocations is a slice of InvoiceAllocation that implements GORM Scanner/Valuer for JSONB storage
type InvoiceAllocations []InvoiceAllocation

// Value implements driver.Valuer interface for GORM to store as JSONB
func (a InvoiceAllocations) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (a *InvoiceAllocations) Scan(value interface{}) error {
	if value == nil {
		*a = InvoiceAllocations{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan InvoiceAllocations: unsupported type")
	}

	if len(bytes) == 0 {
		*a = InvoiceAllocations{}
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// Collection represents a collection (or payment) aggregate root. It records
// money received from or paid to a counterparty: the gross amount owed, the
// withholdings retained by the payer, and the allocation of the gross amount
// across invoices.
type Collection struct {
	shared.BaseAggregateRoot
	CounterpartyID    uuid.UUID            `json:"counterparty_id"`
	CounterpartyName  string               `json:"counterparty_name"`
	Currency          valueobject.Currency `json:"currency"`
	GrossAmount       decimal.Decimal      `json:"gross_amount"`       // What the debtor's debt is reduced by
	NetAmount         decimal.Decimal      `json:"net_amount"`         // Cash actually received: gross - withholdings
	AllocatedAmount   decimal.Decimal      `json:"allocated_amount"`   // Gross amount allocated to invoices
	UnallocatedAmount decimal.Decimal      `json:"unallocated_amount"` // Remaining gross amount
	Method            PaymentMethod        `json:"method"`
	Reference         string               `json:"reference"` // Bank txn id, check number
	Status            CollectionStatus     `json:"status"`
	CollectionDate    time.Time            `json:"collection_date"`
	Withholdings      Withholdings         `json:"withholdings"`
	Allocations       InvoiceAllocations   `json:"allocations"`
	ConfirmedAt       *time.Time           `json:"confirmed_at,omitempty"`
	CancelledAt       *time.Time           `json:"cancelled_at,omitempty"`
	CancelReason      string               `json:"cancel_reason,omitempty"`
}

// NewCollection creates a new draft collection.
// net_amount = gross_amount - sum(withholdings) and must not be negative.
func NewCollection(
	counterpartyID uuid.UUID,
	counterpartyName string,
	gross valueobject.Money,
	method PaymentMethod,
	collectionDate time.Time,
	withholdings Withholdings,
) (*Collection, error) {
	if counterpartyID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Counterparty ID cannot be empty")
	}
	if counterpartyName == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Counterparty name cannot be empty")
	}
	if !gross.IsPositive() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Gross amount must be positive")
	}
	if !gross.Currency().IsValid() {
		return nil, shared.NewDomainErrorf("VALIDATION_ERROR", "Unknown currency %q", gross.Currency())
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Payment method is not valid")
	}
	if collectionDate.IsZero() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Collection date is required")
	}
	if err := withholdings.Validate(); err != nil {
		return nil, err
	}

	net := gross.Amount().Sub(withholdings.Total())
	if net.IsNegative() {
		return nil, shared.NewDomainErrorf("VALIDATION_ERROR",
			"Withholdings %s exceed the gross amount %s",
			withholdings.Total().StringFixed(2), gross.Amount().StringFixed(2))
	}

	c := &Collection{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CounterpartyID:    counterpartyID,
		CounterpartyName:  counterpartyName,
		Currency:          gross.Currency(),
		GrossAmount:       gross.Amount(),
		NetAmount:         net,
		AllocatedAmount:   decimal.Zero,
		UnallocatedAmount: gross.Amount(),
		Method:            method,
		Status:            CollectionStatusDraft,
		CollectionDate:    collectionDate,
		Withholdings:      withholdings,
		Allocations:       InvoiceAllocations{},
	}

	c.AddDomainEvent(NewCollectionRegisteredEvent(c))

	return c, nil
}

// Confirm confirms the collection, allowing allocations
func (c *Collection) Confirm() error {
	if !c.Status.CanConfirm() {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot confirm collection in %s status", c.Status)
	}

	now := time.Now()
	c.Status = CollectionStatusConfirmed
	c.ConfirmedAt = &now
	c.UpdatedAt = now
	c.IncrementVersion()

	c.AddDomainEvent(NewCollectionConfirmedEvent(c))

	return nil
}

// AllocateToInvoice allocates part or all of the gross amount to one invoice.
// Returns the allocation record created.
func (c *Collection) AllocateToInvoice(invoiceID uuid.UUID, voucherNumber string, amount valueobject.Money) (*InvoiceAllocation, error) {
	if !c.Status.CanAllocate() {
		return nil, shared.NewDomainErrorf("INVALID_STATE", "Cannot allocate collection in %s status", c.Status)
	}
	if invoiceID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Invoice ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Allocation amount must be positive")
	}
	if amount.Currency() != c.Currency {
		return nil, shared.NewDomainErrorf("CURRENCY_MISMATCH",
			"Allocation currency %s does not match collection currency %s", amount.Currency(), c.Currency)
	}
	if amount.Amount().GreaterThan(c.UnallocatedAmount) {
		return nil, shared.NewDomainErrorf("OVER_ALLOCATION",
			"Allocation %s exceeds unallocated amount %s",
			amount.Amount().StringFixed(2), c.UnallocatedAmount.StringFixed(2))
	}
	for _, alloc := range c.Allocations {
		if alloc.InvoiceID == invoiceID {
			return nil, shared.NewDomainErrorf("DUPLICATE_APPLICATION",
				"Collection already allocated to invoice %s", invoiceID)
		}
	}

	allocation := NewInvoiceAllocation(c.ID, invoiceID, voucherNumber, amount)
	c.Allocations = append(c.Allocations, *allocation)

	c.AllocatedAmount = c.AllocatedAmount.Add(amount.Amount())
	c.UnallocatedAmount = c.GrossAmount.Sub(c.AllocatedAmount)

	if c.UnallocatedAmount.IsZero() {
		c.Status = CollectionStatusAllocated
	}

	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	c.AddDomainEvent(NewCollectionAllocatedEvent(c, allocation))

	return allocation, nil
}

// Cancel cancels the collection. Only drafts and confirmed collections
// without allocations can be cancelled.
func (c *Collection) Cancel(reason string) error {
	if !c.Status.CanCancel() {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot cancel collection in %s status", c.Status)
	}
	if c.AllocatedAmount.IsPositive() {
		return shared.NewDomainError("INVALID_STATE", "Cannot cancel collection with existing allocations")
	}
	if reason == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Cancel reason is required")
	}

	now := time.Now()
	previousStatus := c.Status
	c.Status = CollectionStatusCancelled
	c.CancelledAt = &now
	c.CancelReason = reason
	c.UpdatedAt = now
	c.IncrementVersion()

	c.AddDomainEvent(NewCollectionCancelledEvent(c, previousStatus))

	return nil
}

// SetReference sets the payment reference
func (c *Collection) SetReference(reference string) error {
	if c.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Cannot modify collection in terminal state")
	}
	if len(reference) > 100 {
		return shared.NewDomainError("VALIDATION_ERROR", "Payment reference cannot exceed 100 characters")
	}

	c.Reference = reference
	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	return nil
}

// GetGrossAmountMoney returns the gross amount as Money
func (c *Collection) GetGrossAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(c.GrossAmount, c.Currency)
	return m
}

// GetNetAmountMoney returns the net cash amount as Money
func (c *Collection) GetNetAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(c.NetAmount, c.Currency)
	return m
}

// GetUnallocatedAmountMoney returns the unallocated gross amount as Money
func (c *Collection) GetUnallocatedAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(c.UnallocatedAmount, c.Currency)
	return m
}

// IsFullyAllocated returns true if the whole gross amount has been allocated
func (c *Collection) IsFullyAllocated() bool {
	return c.UnallocatedAmount.IsZero()
}

// AllocationCount returns the number of allocations
func (c *Collection) AllocationCount() int {
	return len(c.Allocations)
}
