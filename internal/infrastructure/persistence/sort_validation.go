package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// CommonSortFields contains fields common to most entities
var CommonSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// InvoiceSortFields contains allowed sort fields for invoices
var InvoiceSortFields = map[string]bool{
	"id":                true,
	"created_at":        true,
	"updated_at":        true,
	"voucher_type":      true,
	"sales_point":       true,
	"voucher_number":    true,
	"issue_date":        true,
	"due_date":          true,
	"counterparty_id":   true,
	"counterparty_name": true,
	"currency":          true,
	"net_total":         true,
	"tax_total":         true,
	"grand_total":       true,
	"pending_amount":    true,
	"status":            true,
}

// CollectionSortFields contains allowed sort fields for collections
var CollectionSortFields = map[string]bool{
	"id":                 true,
	"created_at":         true,
	"updated_at":         true,
	"counterparty_id":    true,
	"counterparty_name":  true,
	"collection_date":    true,
	"method":             true,
	"gross_amount":       true,
	"net_amount":         true,
	"allocated_amount":   true,
	"unallocated_amount": true,
	"status":             true,
}

// NoteSortFields contains allowed sort fields for credit and debit notes
var NoteSortFields = map[string]bool{
	"id":                true,
	"created_at":        true,
	"updated_at":        true,
	"kind":              true,
	"voucher_type":      true,
	"sales_point":       true,
	"voucher_number":    true,
	"issue_date":        true,
	"due_date":          true,
	"counterparty_id":   true,
	"counterparty_name": true,
	"total":             true,
	"status":            true,
}
