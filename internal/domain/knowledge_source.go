package domain

import "time"

// KnowledgeSource is a tenant-scoped container grouping ingested content
// for one searchable corpus.
type KnowledgeSource struct {
	ID                  string    `gorm:"type:text;primaryKey" json:"id"`
	UserID              string    `gorm:"type:text;not null;index:idx_knowledge_sources_user" json:"user_id"`
	Name                string    `gorm:"type:text;not null" json:"name"`
	EmbeddingModel      string    `gorm:"type:text;not null" json:"embedding_model"`
	EmbeddingDimensions int       `gorm:"default:1024" json:"embedding_dimensions"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TableName returns the database table name for KnowledgeSource.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (KnowledgeSource) TableName() string {
	return "knowledge_sources"
}
