package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the embedding job ID
	FieldJobID = "job_id"

	// FieldKnowledgeSourceID is the knowledge source container ID
	FieldKnowledgeSourceID = "knowledge_source_id"

	// FieldContentID is the content item ID
	FieldContentID = "content_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldQueueBackend identifies which queue backend served a cycle
	FieldQueueBackend = "queue_backend"

	// FieldUserID is the owning user ID
	FieldUserID = "user_id"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
