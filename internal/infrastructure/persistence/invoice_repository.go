package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/facturante/backend/internal/domain/invoicing"
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByVoucher finds an issued invoice by its fiscal identity
func (r *GormInvoiceRepository) FindByVoucher(ctx context.Context, voucherType invoicing.VoucherType, salesPoint int, voucherNumber int64) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("voucher_type = ? AND sales_point = ? AND voucher_number = ?", voucherType, salesPoint, voucherNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds invoices with filtering and pagination
func (r *GormInvoiceRepository) FindAll(ctx context.Context, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{})
	query = r.applyFilter(query, filter)

	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return toInvoices(invoiceModels), nil
}

// FindByCounterparty finds invoices for a counterparty in one direction
func (r *GormInvoiceRepository) FindByCounterparty(ctx context.Context, counterpartyID uuid.UUID, direction invoicing.Direction, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("counterparty_id = ? AND direction = ?", counterpartyID, direction)
	query = r.applyFilter(query, filter)

	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return toInvoices(invoiceModels), nil
}

// FindOutstanding finds issued or partially settled invoices for a
// counterparty in one direction, oldest issue date first
func (r *GormInvoiceRepository) FindOutstanding(ctx context.Context, counterpartyID uuid.UUID, direction invoicing.Direction) ([]invoicing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("counterparty_id = ? AND direction = ? AND status IN ?", counterpartyID, direction,
			[]invoicing.InvoiceStatus{invoicing.InvoiceStatusIssued, invoicing.InvoiceStatusPartiallySettled}).
		Order("issue_date ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return toInvoices(invoiceModels), nil
}

// FindOverdue finds invoices past their due date and not yet settled
func (r *GormInvoiceRepository) FindOverdue(ctx context.Context, asOf time.Time, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("due_date < ? AND status IN ?", asOf,
			[]invoicing.InvoiceStatus{invoicing.InvoiceStatusIssued, invoicing.InvoiceStatusPartiallySettled})
	query = r.applyFilter(query, filter)

	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return toInvoices(invoiceModels), nil
}

// NextVoucherNumber reserves the next sequential voucher number for a voucher
// type and sales point. Concurrent issuers serialize on the sequence row.
func (r *GormInvoiceRepository) NextVoucherNumber(ctx context.Context, voucherType invoicing.VoucherType, salesPoint int) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO voucher_sequences (voucher_type, sales_point, last_number, updated_at)
		VALUES (?, ?, 1, NOW())
		ON CONFLICT (voucher_type, sales_point)
		DO UPDATE SET last_number = voucher_sequences.last_number + 1, updated_at = NOW()
		RETURNING last_number`,
		voucherType, salesPoint).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Save creates or updates an invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking on the aggregate version.
// Returns shared.ErrConcurrencyConflict when the stored version moved.
// Select("*") forces every column into the UPDATE so fields the aggregate
// cleared (emptied perceptions, a nil settled_at) are not skipped as
// zero values.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *invoicing.Invoice, expectedVersion int) error {
	model := models.InvoiceModelFromDomain(invoice)
	result := r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Where("id = ? AND version = ?", invoice.ID, expectedVersion).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Count counts invoices matching the filter
func (r *GormInvoiceRepository) Count(ctx context.Context, filter invoicing.InvoiceFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{})
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormInvoiceRepository) applyFilter(query *gorm.DB, filter invoicing.InvoiceFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, InvoiceSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormInvoiceRepository) applyFilterWithoutPagination(query *gorm.DB, filter invoicing.InvoiceFilter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("counterparty_name ILIKE ?", searchPattern)
	}

	if filter.CounterpartyID != nil {
		query = query.Where("counterparty_id = ?", *filter.CounterpartyID)
	}
	if filter.Direction != nil {
		query = query.Where("direction = ?", *filter.Direction)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.VoucherType != nil {
		query = query.Where("voucher_type = ?", *filter.VoucherType)
	}
	if filter.Currency != nil {
		query = query.Where("currency = ?", *filter.Currency)
	}
	if filter.IssuedFrom != nil {
		query = query.Where("issue_date >= ?", *filter.IssuedFrom)
	}
	if filter.IssuedTo != nil {
		query = query.Where("issue_date <= ?", *filter.IssuedTo)
	}
	if filter.DueFrom != nil {
		query = query.Where("due_date >= ?", *filter.DueFrom)
	}
	if filter.DueTo != nil {
		query = query.Where("due_date <= ?", *filter.DueTo)
	}
	if filter.Overdue != nil && *filter.Overdue {
		query = query.Where("due_date < ? AND status IN ?", time.Now(),
			[]invoicing.InvoiceStatus{invoicing.InvoiceStatusIssued, invoicing.InvoiceStatusPartiallySettled})
	}
	if filter.MinPending != nil {
		query = query.Where("pending_amount >= ?", *filter.MinPending)
	}
	if filter.MaxPending != nil {
		query = query.Where("pending_amount <= ?", *filter.MaxPending)
	}

	return query
}

func toInvoices(invoiceModels []models.InvoiceModel) []invoicing.Invoice {
	invoices := make([]invoicing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)
