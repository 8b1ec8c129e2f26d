package repository

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
)

const (
	defaultVectorDimension = 1024
)

// QdrantConnectionConfig holds configuration for Qdrant connection
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API Key (enables TLS automatically)
	UseTLS          bool   // Explicitly enable TLS without API Key
	VectorDimension int
}

// apiKeyInterceptor creates a unary interceptor that adds API key to metadata
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// VectorKey is the composite identity of a vector document. Two upserts
// with the same key overwrite the same point.
type VectorKey struct {
	KnowledgeSourceID string
	ContentID         string
	ContentType       domain.ContentType
}

// PointID derives a deterministic UUID from the key parts, so reprocessing
// the same content always lands on the same Qdrant point.
// Parameters: none.
// Returns:
//   - string: UUID string stable for this key.
func (k VectorKey) PointID() string {
	name := fmt.Sprintf("%s/%s/%s", k.KnowledgeSourceID, k.ContentID, k.ContentType)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// VectorPayload is the payload stored with each vector document.
type VectorPayload struct {
	KnowledgeSourceID string            `json:"knowledge_source_id"`
	ContentID         string            `json:"content_id"`
	ContentType       string            `json:"content_type"`
	Snippet           string            `json:"snippet"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// QdrantRepository handles vector operations with Qdrant
type QdrantRepository struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
}

// NewQdrantRepository creates a new QdrantRepository
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API Key)
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	vectorDimension := cfg.VectorDimension
	if vectorDimension <= 0 {
		vectorDimension = defaultVectorDimension
	}

	var opts []grpc.DialOption

	// TLS is enabled if an API key is set or UseTLS is explicitly true.
	useTLS := cfg.UseTLS || cfg.APIKey != ""

	if useTLS {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
		creds := credentials.NewTLS(tlsConfig)
		opts = append(opts, grpc.WithTransportCredentials(creds))

		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: vectorDimension,
	}, nil
}

// Close closes the gRPC connection
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok {
			if size != uint64(r.vectorDimension) {
				return fmt.Errorf("collection %s has vector size %d, expected %d", r.collectionName, size, r.vectorDimension)
			}
		}
		return nil // Collection exists
	}

	_, err = r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:                 optionalUint64(16),
			EfConstruct:       optionalUint64(128),
			FullScanThreshold: optionalUint64(10000),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	if info == nil {
		return 0, false
	}

	config := info.GetConfig()
	if config == nil {
		return 0, false
	}

	params := config.GetParams()
	if params == nil {
		return 0, false
	}

	vectors := params.GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}

	if single := vectors.GetParams(); single != nil {
		if size := single.GetSize(); size > 0 {
			return size, true
		}
	}

	if paramsMap := vectors.GetParamsMap(); paramsMap != nil {
		for _, vectorParams := range paramsMap.GetMap() {
			if vectorParams == nil {
				continue
			}
			if size := vectorParams.GetSize(); size > 0 {
				return size, true
			}
		}
	}

	return 0, false
}

// Upsert inserts or updates a vector document keyed by content identity.
// Repeating the call with the same key overwrites the existing point.
func (r *QdrantRepository) Upsert(ctx context.Context, key VectorKey, vector []float32, payload *VectorPayload) error {
	uid, err := uuid.Parse(key.PointID())
	if err != nil {
		return fmt.Errorf("invalid point ID: %w", err)
	}

	fields := map[string]*pb.Value{
		"knowledge_source_id": {Kind: &pb.Value_StringValue{StringValue: payload.KnowledgeSourceID}},
		"content_id":          {Kind: &pb.Value_StringValue{StringValue: payload.ContentID}},
		"content_type":        {Kind: &pb.Value_StringValue{StringValue: payload.ContentType}},
		"snippet":             {Kind: &pb.Value_StringValue{StringValue: payload.Snippet}},
	}
	if len(payload.Metadata) > 0 {
		fields["metadata"] = metadataToValue(payload.Metadata)
	}

	points := []*pb.PointStruct{
		{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{
					Uuid: uid.String(),
				},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{
						Data: vector,
					},
				},
			},
			Payload: fields,
		},
	}

	_, err = r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}

	return nil
}

func metadataToValue(meta map[string]string) *pb.Value {
	fields := make(map[string]*pb.Value, len(meta))
	for k, v := range meta {
		fields[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
	}
	return &pb.Value{
		Kind: &pb.Value_StructValue{
			StructValue: &pb.Struct{Fields: fields},
		},
	}
}

// SearchResult represents a search result from Qdrant
type SearchResult struct {
	ID      string
	Score   float32
	Payload *VectorPayload
}

// Search performs a vector similarity search scoped to one knowledge source.
func (r *QdrantRepository) Search(ctx context.Context, knowledgeSourceID string, vector []float32, topK int) ([]SearchResult, error) {
	req := &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
		Filter: &pb.Filter{
			Must: []*pb.Condition{
				{
					ConditionOneOf: &pb.Condition_Field{
						Field: &pb.FieldCondition{
							Key: "knowledge_source_id",
							Match: &pb.Match{
								MatchValue: &pb.Match_Keyword{Keyword: knowledgeSourceID},
							},
						},
					},
				},
			},
		},
	}

	resp, err := r.pointsClient.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, len(resp.Result))
	for i, scored := range resp.Result {
		results[i] = SearchResult{
			ID:      scored.Id.GetUuid(),
			Score:   scored.Score,
			Payload: parsePayload(scored.Payload),
		}
	}

	return results, nil
}

func parsePayload(payload map[string]*pb.Value) *VectorPayload {
	if payload == nil {
		return nil
	}

	p := &VectorPayload{}
	if v, ok := payload["knowledge_source_id"]; ok {
		p.KnowledgeSourceID = v.GetStringValue()
	}
	if v, ok := payload["content_id"]; ok {
		p.ContentID = v.GetStringValue()
	}
	if v, ok := payload["content_type"]; ok {
		p.ContentType = v.GetStringValue()
	}
	if v, ok := payload["snippet"]; ok {
		p.Snippet = v.GetStringValue()
	}
	if v, ok := payload["metadata"]; ok {
		if s := v.GetStructValue(); s != nil {
			p.Metadata = make(map[string]string, len(s.Fields))
			for k, field := range s.Fields {
				p.Metadata[k] = field.GetStringValue()
			}
		}
	}

	return p
}

// Delete deletes the vector document for a content key.
func (r *QdrantRepository) Delete(ctx context.Context, key VectorKey) error {
	uid, err := uuid.Parse(key.PointID())
	if err != nil {
		return fmt.Errorf("invalid point ID: %w", err)
	}

	_, err = r.pointsClient.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collectionName,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{
						{PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}

	return nil
}
