package repository

import (
	"context"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
	"gorm.io/gorm"
)

// ContentRepository handles content item data operations.
type ContentRepository struct {
	db *gorm.DB
}

// NewContentRepository creates a new ContentRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ContentRepository: repository instance bound to db.
func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Create inserts a new content item record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - item: content item to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *ContentRepository) Create(ctx context.Context, item *domain.ContentItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// GetByID retrieves a content item by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: content item ID.
// Returns:
//   - *domain.ContentItem: record if found.
//   - error: non-nil if lookup fails.
func (r *ContentRepository) GetByID(ctx context.Context, id string) (*domain.ContentItem, error) {
	var item domain.ContentItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ListBySource retrieves content items for a knowledge source with pagination.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - knowledgeSourceID: owning knowledge source ID.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.ContentItem: matching records.
//   - error: non-nil if the query fails.
func (r *ContentRepository) ListBySource(ctx context.Context, knowledgeSourceID string, limit, offset int) ([]domain.ContentItem, error) {
	var items []domain.ContentItem
	if err := r.db.WithContext(ctx).
		Where("knowledge_source_id = ?", knowledgeSourceID).
		Limit(limit).
		Offset(offset).
		Order("created_at DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// CountBySource counts content items in a knowledge source.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - knowledgeSourceID: owning knowledge source ID.
// Returns:
//   - int64: number of matching records.
//   - error: non-nil if the query fails.
func (r *ContentRepository) CountBySource(ctx context.Context, knowledgeSourceID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.ContentItem{}).
		Where("knowledge_source_id = ?", knowledgeSourceID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Delete removes a content item by ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: content item ID to delete.
// Returns:
//   - error: non-nil if the delete fails.
func (r *ContentRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&domain.ContentItem{}, "id = ?", id).Error
}
