package repository

import (
	"testing"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
)

// TestVectorKeyPointID verifies that the same key always produces the same UUID
func TestVectorKeyPointID(t *testing.T) {
	key := VectorKey{
		KnowledgeSourceID: "ks-1",
		ContentID:         "content-1",
		ContentType:       domain.ContentTypeText,
	}

	id1 := key.PointID()
	id2 := key.PointID()

	if id1 != id2 {
		t.Errorf("PointID not deterministic: %s != %s", id1, id2)
	}
	if len(id1) != 36 {
		t.Errorf("Invalid UUID length: got %d, want 36", len(id1))
	}
}

// TestVectorKeyPointIDUniqueness verifies that different keys produce different UUIDs
func TestVectorKeyPointIDUniqueness(t *testing.T) {
	base := VectorKey{
		KnowledgeSourceID: "ks-1",
		ContentID:         "content-1",
		ContentType:       domain.ContentTypeText,
	}

	variants := []VectorKey{
		{KnowledgeSourceID: "ks-2", ContentID: "content-1", ContentType: domain.ContentTypeText},
		{KnowledgeSourceID: "ks-1", ContentID: "content-2", ContentType: domain.ContentTypeText},
		{KnowledgeSourceID: "ks-1", ContentID: "content-1", ContentType: domain.ContentTypeQA},
	}

	baseID := base.PointID()
	for _, v := range variants {
		if v.PointID() == baseID {
			t.Errorf("keys %+v and %+v produced the same point ID", base, v)
		}
	}
}

func strValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func TestParsePayload(t *testing.T) {
	payload := map[string]*pb.Value{
		"knowledge_source_id": strValue("ks-1"),
		"content_id":          strValue("content-1"),
		"content_type":        strValue("text"),
		"snippet":             strValue("Hello world"),
		"metadata": {
			Kind: &pb.Value_StructValue{
				StructValue: &pb.Struct{
					Fields: map[string]*pb.Value{
						"file_name": strValue("notes.txt"),
					},
				},
			},
		},
	}

	p := parsePayload(payload)
	if p == nil {
		t.Fatal("expected parsed payload, got nil")
	}
	if p.KnowledgeSourceID != "ks-1" || p.ContentID != "content-1" {
		t.Errorf("unexpected identity fields: %+v", p)
	}
	if p.ContentType != "text" || p.Snippet != "Hello world" {
		t.Errorf("unexpected content fields: %+v", p)
	}
	if p.Metadata["file_name"] != "notes.txt" {
		t.Errorf("unexpected metadata: %v", p.Metadata)
	}
}

func TestParsePayloadNil(t *testing.T) {
	if got := parsePayload(nil); got != nil {
		t.Errorf("expected nil for nil payload, got %+v", got)
	}
}

func TestParsePayloadMissingFields(t *testing.T) {
	p := parsePayload(map[string]*pb.Value{
		"snippet": strValue("partial"),
	})
	if p == nil {
		t.Fatal("expected parsed payload, got nil")
	}
	if p.Snippet != "partial" || p.KnowledgeSourceID != "" || p.Metadata != nil {
		t.Errorf("unexpected payload: %+v", p)
	}
}
