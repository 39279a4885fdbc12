package invoicing

import (
	"encoding/json"
	"fmt"

	"github.com/facturante/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TaxRateKind distinguishes percentage rates from the two non-taxable sentinels
type TaxRateKind string

const (
	TaxRateKindPercentage TaxRateKind = "PERCENTAGE"
	TaxRateKindExempt     TaxRateKind = "EXEMPT"
	TaxRateKindNotTaxed   TaxRateKind = "NOT_TAXED"
)

// IsValid checks if the kind is a valid TaxRateKind
func (k TaxRateKind) IsValid() bool {
	switch k {
	case TaxRateKindPercentage, TaxRateKindExempt, TaxRateKindNotTaxed:
		return true
	}
	return false
}

// Legacy numeric codes used by older records where the rate column doubled as
// a sentinel carrier. Kept for decoding only; new records store the kind.
const (
	legacyCodeExempt   = -1
	legacyCodeNotTaxed = -2
)

// allowedVATRates are the IVA percentage rates accepted on an invoice line
var allowedVATRates = []decimal.Decimal{
	decimal.Zero,
	decimal.NewFromFloat(2.5),
	decimal.NewFromInt(5),
	decimal.NewFromFloat(10.5),
	decimal.NewFromInt(21),
	decimal.NewFromInt(27),
}

// TaxRate is a value object representing the VAT treatment of an invoice line.
// A line is either taxed at one of the enumerated percentage rates, exempt, or
// outside the scope of the tax. The two sentinel kinds both contribute zero
// tax but stay distinguishable in stored data for fiscal reporting.
type TaxRate struct {
	Kind TaxRateKind     `json:"kind"`
	Rate decimal.Decimal `json:"rate"`
}

// NewPercentageTaxRate creates a percentage tax rate, validating it against
// the enumerated rate list
func NewPercentageTaxRate(rate decimal.Decimal) (TaxRate, error) {
	for _, allowed := range allowedVATRates {
		if rate.Equal(allowed) {
			return TaxRate{Kind: TaxRateKindPercentage, Rate: rate}, nil
		}
	}
	return TaxRate{}, shared.NewDomainErrorf("VALIDATION_ERROR", "Tax rate %s%% is not an accepted VAT rate", rate.String())
}

// ExemptTaxRate returns the exempt sentinel rate
func ExemptTaxRate() TaxRate {
	return TaxRate{Kind: TaxRateKindExempt, Rate: decimal.Zero}
}

// NotTaxedTaxRate returns the not-taxed sentinel rate
func NotTaxedTaxRate() TaxRate {
	return TaxRate{Kind: TaxRateKindNotTaxed, Rate: decimal.Zero}
}

// ParseLegacyTaxRate decodes the historical numeric encoding where -1 meant
// exempt, -2 meant not taxed and any other value was a percentage rate
func ParseLegacyTaxRate(code decimal.Decimal) (TaxRate, error) {
	switch {
	case code.Equal(decimal.NewFromInt(legacyCodeExempt)):
		return ExemptTaxRate(), nil
	case code.Equal(decimal.NewFromInt(legacyCodeNotTaxed)):
		return NotTaxedTaxRate(), nil
	case code.IsNegative():
		return TaxRate{}, shared.NewDomainErrorf("VALIDATION_ERROR", "Unknown tax rate code %s", code.String())
	default:
		return NewPercentageTaxRate(code)
	}
}

// IsValid returns true if the rate is a known kind with an accepted value
func (t TaxRate) IsValid() bool {
	switch t.Kind {
	case TaxRateKindExempt, TaxRateKindNotTaxed:
		return true
	case TaxRateKindPercentage:
		for _, allowed := range allowedVATRates {
			if t.Rate.Equal(allowed) {
				return true
			}
		}
	}
	return false
}

// EffectiveRate returns the percentage applied when computing tax.
// Both sentinels and the 0% rate yield zero.
func (t TaxRate) EffectiveRate() decimal.Decimal {
	if t.Kind == TaxRateKindPercentage {
		return t.Rate
	}
	return decimal.Zero
}

// IsTaxable returns true for percentage rates above zero
func (t TaxRate) IsTaxable() bool {
	return t.Kind == TaxRateKindPercentage && t.Rate.IsPositive()
}

// LegacyCode returns the historical numeric encoding of the rate
func (t TaxRate) LegacyCode() decimal.Decimal {
	switch t.Kind {
	case TaxRateKindExempt:
		return decimal.NewFromInt(legacyCodeExempt)
	case TaxRateKindNotTaxed:
		return decimal.NewFromInt(legacyCodeNotTaxed)
	default:
		return t.Rate
	}
}

// String returns a display representation of the rate
func (t TaxRate) String() string {
	switch t.Kind {
	case TaxRateKindExempt:
		return "Exento"
	case TaxRateKindNotTaxed:
		return "No Gravado"
	default:
		return fmt.Sprintf("%s%%", t.Rate.String())
	}
}

// UnmarshalJSON implements json.Unmarshaler, accepting both the structured
// form and the bare legacy numeric code
func (t *TaxRate) UnmarshalJSON(data []byte) error {
	var v struct {
		Kind TaxRateKind     `json:"kind"`
		Rate decimal.Decimal `json:"rate"`
	}
	if err := json.Unmarshal(data, &v); err == nil && v.Kind != "" {
		if !v.Kind.IsValid() {
			return fmt.Errorf("unknown tax rate kind %q", v.Kind)
		}
		t.Kind = v.Kind
		t.Rate = v.Rate
		return nil
	}

	var code decimal.Decimal
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("invalid tax rate payload: %w", err)
	}
	parsed, err := ParseLegacyTaxRate(code)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
