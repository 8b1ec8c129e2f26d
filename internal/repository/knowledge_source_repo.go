package repository

import (
	"context"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
	"gorm.io/gorm"
)

// KnowledgeSourceRepository handles knowledge source data operations.
type KnowledgeSourceRepository struct {
	db *gorm.DB
}

// NewKnowledgeSourceRepository creates a new KnowledgeSourceRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *KnowledgeSourceRepository: repository instance bound to db.
func NewKnowledgeSourceRepository(db *gorm.DB) *KnowledgeSourceRepository {
	return &KnowledgeSourceRepository{db: db}
}

// Create inserts a new knowledge source record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - source: knowledge source record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *KnowledgeSourceRepository) Create(ctx context.Context, source *domain.KnowledgeSource) error {
	return r.db.WithContext(ctx).Create(source).Error
}

// GetByID retrieves a knowledge source by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: knowledge source ID.
// Returns:
//   - *domain.KnowledgeSource: record if found.
//   - error: non-nil if lookup fails.
func (r *KnowledgeSourceRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
	var source domain.KnowledgeSource
	if err := r.db.WithContext(ctx).First(&source, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &source, nil
}

// Exists checks if a knowledge source with the given ID exists.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: knowledge source ID.
// Returns:
//   - bool: true if a record exists.
//   - error: non-nil if the lookup fails.
func (r *KnowledgeSourceRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.KnowledgeSource{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByUser retrieves knowledge sources owned by a user.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owning user ID.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.KnowledgeSource: matching records.
//   - error: non-nil if the query fails.
func (r *KnowledgeSourceRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.KnowledgeSource, error) {
	var sources []domain.KnowledgeSource
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Limit(limit).
		Offset(offset).
		Order("created_at DESC").
		Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

// Delete removes a knowledge source by ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: knowledge source ID to delete.
// Returns:
//   - error: non-nil if the delete fails.
func (r *KnowledgeSourceRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&domain.KnowledgeSource{}, "id = ?", id).Error
}
