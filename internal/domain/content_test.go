package domain

import (
	"errors"
	"testing"
)

// TestContentItemValidate verifies the exactly-one-payload invariant
func TestContentItemValidate(t *testing.T) {
	testCases := []struct {
		name    string
		item    *ContentItem
		wantErr bool
	}{
		{
			name: "valid text",
			item: NewTextContent("c1", "ks1", "hello world"),
		},
		{
			name: "valid qa",
			item: NewQAContent("c2", "ks1", "What is it?", "A thing."),
		},
		{
			name: "qa with only question",
			item: NewQAContent("c3", "ks1", "What is it?", ""),
		},
		{
			name: "valid website",
			item: NewWebsiteContent("c4", "ks1", "https://example.com"),
		},
		{
			name: "valid file",
			item: NewFileContent("c5", "ks1", "knowledge-sources/ks1/files/a.pdf", "application/pdf", "a.pdf"),
		},
		{
			name:    "text with empty body",
			item:    NewTextContent("c6", "ks1", ""),
			wantErr: true,
		},
		{
			name: "two payloads populated",
			item: &ContentItem{
				ID:                "c7",
				KnowledgeSourceID: "ks1",
				Type:              ContentTypeText,
				Text:              TextPayload{Body: "hello"},
				Website:           WebsitePayload{URL: "https://example.com"},
			},
			wantErr: true,
		},
		{
			name: "type does not match payload",
			item: &ContentItem{
				ID:                "c8",
				KnowledgeSourceID: "ks1",
				Type:              ContentTypeWebsite,
				Text:              TextPayload{Body: "hello"},
			},
			wantErr: true,
		},
		{
			name: "unknown type",
			item: &ContentItem{
				ID:                "c9",
				KnowledgeSourceID: "ks1",
				Type:              ContentType("image"),
				Text:              TextPayload{Body: "hello"},
			},
			wantErr: true,
		},
		{
			name:    "file without storage key",
			item:    NewFileContent("c10", "ks1", "", "application/pdf", "a.pdf"),
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.item.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected validation error, got nil")
				}
				if !errors.Is(err, ErrInvalidContent) {
					t.Errorf("expected ErrInvalidContent, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
