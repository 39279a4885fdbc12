package persistence

import (
	"context"
	"errors"

	"github.com/facturante/backend/internal/domain/invoicing"
	"github.com/facturante/backend/internal/domain/settlement"
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormNoteRepository implements NoteRepository using GORM
type GormNoteRepository struct {
	db *gorm.DB
}

// NewGormNoteRepository creates a new GormNoteRepository
func NewGormNoteRepository(db *gorm.DB) *GormNoteRepository {
	return &GormNoteRepository{db: db}
}

// FindByID finds a note by its ID
func (r *GormNoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Note, error) {
	var model models.NoteModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds notes with filtering and pagination
func (r *GormNoteRepository) FindAll(ctx context.Context, filter settlement.NoteFilter) ([]settlement.Note, error) {
	var noteModels []models.NoteModel
	query := r.db.WithContext(ctx).Model(&models.NoteModel{})
	query = r.applyFilter(query, filter)

	if err := query.Find(&noteModels).Error; err != nil {
		return nil, err
	}
	return toNotes(noteModels), nil
}

// FindByCounterparty finds notes for a counterparty in one direction
func (r *GormNoteRepository) FindByCounterparty(ctx context.Context, counterpartyID uuid.UUID, direction invoicing.Direction, filter settlement.NoteFilter) ([]settlement.Note, error) {
	var noteModels []models.NoteModel
	query := r.db.WithContext(ctx).Model(&models.NoteModel{}).
		Where("counterparty_id = ? AND direction = ?", counterpartyID, direction)
	query = r.applyFilter(query, filter)

	if err := query.Find(&noteModels).Error; err != nil {
		return nil, err
	}
	return toNotes(noteModels), nil
}

// FindUnassociated finds pending notes with no linked invoice for a
// counterparty in one direction
func (r *GormNoteRepository) FindUnassociated(ctx context.Context, counterpartyID uuid.UUID, direction invoicing.Direction) ([]settlement.Note, error) {
	var noteModels []models.NoteModel
	if err := r.db.WithContext(ctx).
		Where("counterparty_id = ? AND direction = ? AND linked_invoice_id IS NULL AND status = ?",
			counterpartyID, direction, settlement.NoteStatusPending).
		Order("issue_date ASC").
		Find(&noteModels).Error; err != nil {
		return nil, err
	}
	return toNotes(noteModels), nil
}

// Save creates or updates a note
func (r *GormNoteRepository) Save(ctx context.Context, note *settlement.Note) error {
	model := models.NoteModelFromDomain(note)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking on the aggregate version.
// Select("*") keeps cleared fields (a nil applied_at, a zero excess) in
// the UPDATE instead of being skipped as zero values.
func (r *GormNoteRepository) SaveWithLock(ctx context.Context, note *settlement.Note, expectedVersion int) error {
	model := models.NoteModelFromDomain(note)
	result := r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Where("id = ? AND version = ?", note.ID, expectedVersion).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Count counts notes matching the filter
func (r *GormNoteRepository) Count(ctx context.Context, filter settlement.NoteFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.NoteModel{})
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormNoteRepository) applyFilter(query *gorm.DB, filter settlement.NoteFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, NoteSortFields, "issue_date")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormNoteRepository) applyFilterWithoutPagination(query *gorm.DB, filter settlement.NoteFilter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("counterparty_name ILIKE ?", searchPattern)
	}

	if filter.CounterpartyID != nil {
		query = query.Where("counterparty_id = ?", *filter.CounterpartyID)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Direction != nil {
		query = query.Where("direction = ?", *filter.Direction)
	}
	if filter.Currency != nil {
		query = query.Where("currency = ?", *filter.Currency)
	}
	if filter.Unassociated != nil {
		if *filter.Unassociated {
			query = query.Where("linked_invoice_id IS NULL")
		} else {
			query = query.Where("linked_invoice_id IS NOT NULL")
		}
	}

	return query
}

func toNotes(noteModels []models.NoteModel) []settlement.Note {
	notes := make([]settlement.Note, len(noteModels))
	for i, model := range noteModels {
		notes[i] = *model.ToDomain()
	}
	return notes
}

// Ensure GormNoteRepository implements NoteRepository
var _ settlement.NoteRepository = (*GormNoteRepository)(nil)
