package persistence

import (
	"context"
	"errors"

	"github.com/facturante/backend/internal/domain/settlement"
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCollectionRepository implements CollectionRepository using GORM
type GormCollectionRepository struct {
	db *gorm.DB
}

// NewGormCollectionRepository creates a new GormCollectionRepository
func NewGormCollectionRepository(db *gorm.DB) *GormCollectionRepository {
	return &GormCollectionRepository{db: db}
}

// FindByID finds a collection by its ID
func (r *GormCollectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Collection, error) {
	var model models.CollectionModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds collections with filtering and pagination
func (r *GormCollectionRepository) FindAll(ctx context.Context, filter settlement.CollectionFilter) ([]settlement.Collection, error) {
	var collectionModels []models.CollectionModel
	query := r.db.WithContext(ctx).Model(&models.CollectionModel{})
	query = r.applyFilter(query, filter)

	if err := query.Find(&collectionModels).Error; err != nil {
		return nil, err
	}
	return toCollections(collectionModels), nil
}

// FindByCounterparty finds collections for a counterparty
func (r *GormCollectionRepository) FindByCounterparty(ctx context.Context, counterpartyID uuid.UUID, filter settlement.CollectionFilter) ([]settlement.Collection, error) {
	var collectionModels []models.CollectionModel
	query := r.db.WithContext(ctx).Model(&models.CollectionModel{}).
		Where("counterparty_id = ?", counterpartyID)
	query = r.applyFilter(query, filter)

	if err := query.Find(&collectionModels).Error; err != nil {
		return nil, err
	}
	return toCollections(collectionModels), nil
}

// Save creates or updates a collection
func (r *GormCollectionRepository) Save(ctx context.Context, collection *settlement.Collection) error {
	model := models.CollectionModelFromDomain(collection)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking on the aggregate version.
// Select("*") keeps cleared fields (a nil cancelled_at, an emptied
// allocation list) in the UPDATE instead of being skipped as zero values.
func (r *GormCollectionRepository) SaveWithLock(ctx context.Context, collection *settlement.Collection, expectedVersion int) error {
	model := models.CollectionModelFromDomain(collection)
	result := r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Where("id = ? AND version = ?", collection.ID, expectedVersion).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Count counts collections matching the filter
func (r *GormCollectionRepository) Count(ctx context.Context, filter settlement.CollectionFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.CollectionModel{})
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormCollectionRepository) applyFilter(query *gorm.DB, filter settlement.CollectionFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, CollectionSortFields, "collection_date")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormCollectionRepository) applyFilterWithoutPagination(query *gorm.DB, filter settlement.CollectionFilter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("counterparty_name ILIKE ? OR reference ILIKE ?", searchPattern, searchPattern)
	}

	if filter.CounterpartyID != nil {
		query = query.Where("counterparty_id = ?", *filter.CounterpartyID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Method != nil {
		query = query.Where("method = ?", *filter.Method)
	}
	if filter.Currency != nil {
		query = query.Where("currency = ?", *filter.Currency)
	}
	if filter.FromDate != nil {
		query = query.Where("collection_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("collection_date <= ?", *filter.ToDate)
	}

	return query
}

func toCollections(collectionModels []models.CollectionModel) []settlement.Collection {
	collections := make([]settlement.Collection, len(collectionModels))
	for i, model := range collectionModels {
		collections[i] = *model.ToDomain()
	}
	return collections
}

// Ensure GormCollectionRepository implements CollectionRepository
var _ settlement.CollectionRepository = (*GormCollectionRepository)(nil)
