package models

// KnowledgeChunk is a fragment of prior bid content with its embedding.
// TenantID optionally partitions chunks further inside the company
// (for example by business line).
type KnowledgeChunk struct {
	TenantRecord
	Content   string         `json:"content"`
	Embedding []float32      `json:"embedding,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	TenantID  string         `json:"tenant_id,omitempty"`
}

// ScoredChunk is a search hit. Score is cosine similarity in [-1, 1].
type ScoredChunk struct {
	Chunk *KnowledgeChunk `json:"chunk"`
	Score float64         `json:"score"`
}
