package domain

import (
	"errors"
	"time"
)

// ContentType discriminates the variant of a ContentItem.
// Values include ContentTypeText, ContentTypeQA, ContentTypeWebsite, and
// ContentTypeFile.
type ContentType string

const (
	ContentTypeText    ContentType = "text"
	ContentTypeQA      ContentType = "qa"
	ContentTypeWebsite ContentType = "website"
	ContentTypeFile    ContentType = "file"
)

// ErrInvalidContent is returned when a ContentItem does not carry exactly
// the payload its variant requires.
var ErrInvalidContent = errors.New("content item payload does not match its type")

// TextPayload holds the payload for the text variant.
type TextPayload struct {
	Body string `gorm:"type:text" json:"body,omitempty"`
}

// QAPayload holds the payload for the question/answer variant.
type QAPayload struct {
	Question string `gorm:"type:text" json:"question,omitempty"`
	Answer   string `gorm:"type:text" json:"answer,omitempty"`
}

// WebsitePayload holds the payload for the website-reference variant.
type WebsitePayload struct {
	URL string `gorm:"type:text" json:"url,omitempty"`
}

// FilePayload holds the payload for the uploaded-file variant. StorageKey
// is the object-store path owned by this item.
type FilePayload struct {
	StorageKey string `gorm:"type:text" json:"storage_key,omitempty"`
	MimeType   string `gorm:"type:text" json:"mime_type,omitempty"`
	FileName   string `gorm:"type:text" json:"file_name,omitempty"`
}

// ContentItem is one ingested unit of knowledge. It is a closed variant
// union: Type selects which embedded payload is populated, and exactly one
// payload is populated per record.
type ContentItem struct {
	ID                string      `gorm:"type:text;primaryKey" json:"id"`
	KnowledgeSourceID string      `gorm:"type:text;not null;index:idx_content_items_source" json:"knowledge_source_id"`
	Type              ContentType `gorm:"type:text;not null;index:idx_content_items_type" json:"type"`
	Text              TextPayload `gorm:"embedded;embeddedPrefix:text_" json:"text,omitempty"`
	QA                QAPayload   `gorm:"embedded;embeddedPrefix:qa_" json:"qa,omitempty"`
	Website           WebsitePayload `gorm:"embedded;embeddedPrefix:website_" json:"website,omitempty"`
	File              FilePayload `gorm:"embedded;embeddedPrefix:file_" json:"file,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// TableName returns the database table name for ContentItem.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (ContentItem) TableName() string {
	return "content_items"
}

// NewTextContent builds a text content item for the given knowledge source.
func NewTextContent(id, knowledgeSourceID, body string) *ContentItem {
	return &ContentItem{
		ID:                id,
		KnowledgeSourceID: knowledgeSourceID,
		Type:              ContentTypeText,
		Text:              TextPayload{Body: body},
	}
}

// NewQAContent builds a question/answer content item.
func NewQAContent(id, knowledgeSourceID, question, answer string) *ContentItem {
	return &ContentItem{
		ID:                id,
		KnowledgeSourceID: knowledgeSourceID,
		Type:              ContentTypeQA,
		QA:                QAPayload{Question: question, Answer: answer},
	}
}

// NewWebsiteContent builds a website-reference content item.
func NewWebsiteContent(id, knowledgeSourceID, url string) *ContentItem {
	return &ContentItem{
		ID:                id,
		KnowledgeSourceID: knowledgeSourceID,
		Type:              ContentTypeWebsite,
		Website:           WebsitePayload{URL: url},
	}
}

// NewFileContent builds a file content item referencing an object-store key.
func NewFileContent(id, knowledgeSourceID, storageKey, mimeType, fileName string) *ContentItem {
	return &ContentItem{
		ID:                id,
		KnowledgeSourceID: knowledgeSourceID,
		Type:              ContentTypeFile,
		File:              FilePayload{StorageKey: storageKey, MimeType: mimeType, FileName: fileName},
	}
}

// Validate checks that exactly the payload selected by Type is populated.
// Parameters: none.
// Returns:
//   - error: ErrInvalidContent if the variant invariant is violated.
func (c *ContentItem) Validate() error {
	populated := 0
	if c.Text.Body != "" {
		populated++
	}
	if c.QA.Question != "" || c.QA.Answer != "" {
		populated++
	}
	if c.Website.URL != "" {
		populated++
	}
	if c.File.StorageKey != "" {
		populated++
	}
	if populated != 1 {
		return ErrInvalidContent
	}

	switch c.Type {
	case ContentTypeText:
		if c.Text.Body == "" {
			return ErrInvalidContent
		}
	case ContentTypeQA:
		if c.QA.Question == "" && c.QA.Answer == "" {
			return ErrInvalidContent
		}
	case ContentTypeWebsite:
		if c.Website.URL == "" {
			return ErrInvalidContent
		}
	case ContentTypeFile:
		if c.File.StorageKey == "" {
			return ErrInvalidContent
		}
	default:
		return ErrInvalidContent
	}
	return nil
}
