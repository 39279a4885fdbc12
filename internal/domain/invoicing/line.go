package invoicing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// InvoiceLine is a value object within the Invoice aggregate, stored as JSONB.
// Lines are frozen once the invoice is issued.
type InvoiceLine struct {
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxRate         TaxRate         `json:"tax_rate"`
}

// NewInvoiceLine creates a validated invoice line
func NewInvoiceLine(description string, quantity, unitPrice, discountPercent decimal.Decimal, taxRate TaxRate) (InvoiceLine, error) {
	line := InvoiceLine{
		Description:     description,
		Quantity:        quantity,
		UnitPrice:       unitPrice,
		DiscountPercent: discountPercent,
		TaxRate:         taxRate,
	}
	if err := line.Validate(); err != nil {
		return InvoiceLine{}, err
	}
	return line, nil
}

// Validate checks the line against the accepted ranges
func (l InvoiceLine) Validate() error {
	if l.Description == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Line description cannot be empty")
	}
	if !l.Quantity.IsPositive() {
		return shared.NewDomainError("VALIDATION_ERROR", "Line quantity must be positive")
	}
	if l.UnitPrice.IsNegative() {
		return shared.NewDomainError("VALIDATION_ERROR", "Line unit price cannot be negative")
	}
	if l.DiscountPercent.IsNegative() || l.DiscountPercent.GreaterThan(oneHundred) {
		return shared.NewDomainError("VALIDATION_ERROR", "Line discount must be between 0 and 100")
	}
	if !l.TaxRate.IsValid() {
		return shared.NewDomainError("VALIDATION_ERROR", "Line tax rate is not valid")
	}
	return nil
}

// LineTotals is the computed monetary result for a single line
type LineTotals struct {
	Subtotal valueobject.Money
	Tax      valueobject.Money
	Total    valueobject.Money
}

// Totals computes the line subtotal and tax in the given currency.
// subtotal = quantity * unit_price * (1 - discount/100)
// tax = subtotal * effective_rate / 100
// Pure function over the line fields, rounded to 2 decimal places.
func (l InvoiceLine) Totals(currency valueobject.Currency) LineTotals {
	discountFactor := decimal.NewFromInt(1).Sub(l.DiscountPercent.Div(oneHundred))
	subtotal := l.Quantity.Mul(l.UnitPrice).Mul(discountFactor).Round(2)
	tax := subtotal.Mul(l.TaxRate.EffectiveRate()).Div(oneHundred).Round(2)

	subtotalMoney, _ := valueobject.NewMoney(subtotal, currency)
	taxMoney, _ := valueobject.NewMoney(tax, currency)
	return LineTotals{
		Subtotal: subtotalMoney,
		Tax:      taxMoney,
		Total:    subtotalMoney.MustAdd(taxMoney),
	}
}

// InvoiceLines is a slice of InvoiceLine that implements GORM Scanner/Valuer for JSONB storage
type InvoiceLines []InvoiceLine

// Value implements driver.Valuer interface for GORM to store as JSONB
func (l InvoiceLines) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (l *InvoiceLines) Scan(value interface{}) error {
	if value == nil {
		*l = InvoiceLines{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan InvoiceLines: unsupported type")
	}

	if len(bytes) == 0 {
		*l = InvoiceLines{}
		return nil
	}

	return json.Unmarshal(bytes, l)
}
