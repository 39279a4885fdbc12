package invoicing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PerceptionBase selects which invoice amount a perception rate applies to
type PerceptionBase string

const (
	PerceptionBaseNet   PerceptionBase = "NET"   // subtotal
	PerceptionBaseTotal PerceptionBase = "TOTAL" // subtotal + tax_total
	PerceptionBaseVAT   PerceptionBase = "VAT"   // tax_total
)

// IsValid checks if the base is a valid PerceptionBase
func (b PerceptionBase) IsValid() bool {
	switch b {
	case PerceptionBaseNet, PerceptionBaseTotal, PerceptionBaseVAT:
		return true
	}
	return false
}

// PerceptionType enumerates the jurisdiction/tax codes a perception can carry
type PerceptionType string

const (
	PerceptionTypeIVA       PerceptionType = "IVA"
	PerceptionTypeIIBB      PerceptionType = "IIBB"
	PerceptionTypeGanancias PerceptionType = "GANANCIAS"
	PerceptionTypeSUSS      PerceptionType = "SUSS"
	PerceptionTypeMunicipal PerceptionType = "MUNICIPAL"
	PerceptionTypeOther     PerceptionType = "OTHER"
)

// IsValid checks if the perception type is valid
func (t PerceptionType) IsValid() bool {
	switch t {
	case PerceptionTypeIVA, PerceptionTypeIIBB, PerceptionTypeGanancias,
		PerceptionTypeSUSS, PerceptionTypeMunicipal, PerceptionTypeOther:
		return true
	}
	return false
}

// Perception is a jurisdiction-specific add-on charge attached to an invoice
// at issue time. The amount is always derived from the invoice's current
// subtotal and tax total, never stored independently of its base inputs, so
// recomputation is idempotent.
type Perception struct {
	Type PerceptionType  `json:"type"`
	Name string          `json:"name"`
	Rate decimal.Decimal `json:"rate"`
	Base PerceptionBase  `json:"base"`
}

// NewPerception creates a validated perception
func NewPerception(pType PerceptionType, name string, rate decimal.Decimal, base PerceptionBase) (Perception, error) {
	p := Perception{Type: pType, Name: name, Rate: rate, Base: base}
	if err := p.Validate(); err != nil {
		return Perception{}, err
	}
	return p, nil
}

// Validate checks the perception against the accepted ranges
func (p Perception) Validate() error {
	if !p.Type.IsValid() {
		return shared.NewDomainError("VALIDATION_ERROR", "Perception type is not valid")
	}
	if p.Name == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Perception name cannot be empty")
	}
	if p.Rate.IsNegative() || p.Rate.GreaterThan(oneHundred) {
		return shared.NewDomainError("VALIDATION_ERROR", "Perception rate must be between 0 and 100")
	}
	if !p.Base.IsValid() {
		return shared.NewDomainError("VALIDATION_ERROR", "Perception base is not valid")
	}
	return nil
}

// AmountOn computes the perception amount for the given invoice subtotal and
// tax total, rounded to 2 decimal places
func (p Perception) AmountOn(subtotal, taxTotal valueobject.Money) valueobject.Money {
	var base valueobject.Money
	switch p.Base {
	case PerceptionBaseNet:
		base = subtotal
	case PerceptionBaseTotal:
		base = subtotal.MustAdd(taxTotal)
	case PerceptionBaseVAT:
		base = taxTotal
	}
	return base.CalculatePercentage(p.Rate).Round(2)
}

// Perceptions is a slice of Perception that implements GORM Scanner/Valuer for JSONB storage
type Perceptions []Perception

// Value implements driver.Valuer interface for GORM to store as JSONB
func (p Perceptions) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (p *Perceptions) Scan(value interface{}) error {
	if value == nil {
		*p = Perceptions{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan Perceptions: unsupported type")
	}

	if len(bytes) == 0 {
		*p = Perceptions{}
		return nil
	}

	return json.Unmarshal(bytes, p)
}
