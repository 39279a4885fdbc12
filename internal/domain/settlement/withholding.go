package settlement

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/facturante/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// WithholdingType enumerates the canonical withholding regimes deducted from
// a collection at payment time
type WithholdingType string

const (
	WithholdingTypeIVA       WithholdingType = "IVA"
	WithholdingTypeGanancias WithholdingType = "GANANCIAS"
	WithholdingTypeIIBB      WithholdingType = "IIBB"
	WithholdingTypeSUSS      WithholdingType = "SUSS"
	WithholdingTypeOther     WithholdingType = "OTHER"
)

// IsValid checks if the withholding type is valid
func (t WithholdingType) IsValid() bool {
	switch t {
	case WithholdingTypeIVA, WithholdingTypeGanancias, WithholdingTypeIIBB,
		WithholdingTypeSUSS, WithholdingTypeOther:
		return true
	}
	return false
}

// Withholding is one named amount retained by the payer. It reduces the net
// cash received, never the amount the debtor owed.
type Withholding struct {
	Type   WithholdingType `json:"type"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// NewWithholding creates a validated withholding entry
func NewWithholding(wType WithholdingType, name string, amount decimal.Decimal) (Withholding, error) {
	w := Withholding{Type: wType, Name: name, Amount: amount}
	if err := w.Validate(); err != nil {
		return Withholding{}, err
	}
	return w, nil
}

// Validate checks the withholding entry
func (w Withholding) Validate() error {
	if !w.Type.IsValid() {
		return shared.NewDomainError("VALIDATION_ERROR", "Withholding type is not valid")
	}
	if w.Name == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Withholding name cannot be empty")
	}
	if w.Amount.IsNegative() {
		return shared.NewDomainError("VALIDATION_ERROR", "Withholding amount cannot be negative")
	}
	return nil
}

// Withholdings is an ordered list of withholding entries, stored as JSONB
type Withholdings []Withholding

// Total sums the withholding amounts
func (w Withholdings) Total() decimal.Decimal {
	total := decimal.Zero
	for _, entry := range w {
		total = total.Add(entry.Amount)
	}
	return total
}

// Validate checks every entry
func (w Withholdings) Validate() error {
	for _, entry := range w {
		if err := entry.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// legacyWithholdings is the historical fixed-column shape, one amount per
// canonical regime. Older records stored this object instead of a list.
type legacyWithholdings struct {
	IVA       *decimal.Decimal `json:"iva"`
	Ganancias *decimal.Decimal `json:"ganancias"`
	IIBB      *decimal.Decimal `json:"iibb"`
	SUSS      *decimal.Decimal `json:"suss"`
}

func (l legacyWithholdings) toEntries() Withholdings {
	entries := Withholdings{}
	add := func(t WithholdingType, name string, amount *decimal.Decimal) {
		if amount != nil && !amount.IsZero() {
			entries = append(entries, Withholding{Type: t, Name: name, Amount: *amount})
		}
	}
	add(WithholdingTypeIVA, "Retención IVA", l.IVA)
	add(WithholdingTypeGanancias, "Retención Ganancias", l.Ganancias)
	add(WithholdingTypeIIBB, "Retención IIBB", l.IIBB)
	add(WithholdingTypeSUSS, "Retención SUSS", l.SUSS)
	return entries
}

// UnmarshalJSON implements json.Unmarshaler, accepting both the list shape
// and the historical fixed-column object. Each record holds exactly one
// shape, so decoding one can never double-count.
func (w *Withholdings) UnmarshalJSON(data []byte) error {
	var list []Withholding
	if err := json.Unmarshal(data, &list); err == nil {
		*w = list
		return nil
	}

	var legacy legacyWithholdings
	if err := json.Unmarshal(data, &legacy); err != nil {
		return errors.New("withholdings payload is neither a list nor a legacy object")
	}
	*w = legacy.toEntries()
	return nil
}

// Value implements driver.Valuer interface for GORM to store as JSONB
func (w Withholdings) Value() (driver.Value, error) {
	if w == nil {
		return "[]", nil
	}
	return json.Marshal([]Withholding(w))
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (w *Withholdings) Scan(value interface{}) error {
	if value == nil {
		*w = Withholdings{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan Withholdings: unsupported type")
	}

	if len(bytes) == 0 {
		*w = Withholdings{}
		return nil
	}

	return w.UnmarshalJSON(bytes)
}
