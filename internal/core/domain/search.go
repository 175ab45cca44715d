package domain

// SearchOptions configures a similarity search.
type SearchOptions struct {
	// K is the maximum number of results to return.
	K int

	// DocumentID restricts results to a single document when non-nil.
	DocumentID *int64

	// MinSimilarity excludes results scoring below it. Range [0,1].
	MinSimilarity float64
}

// SearchResult is a single retrieval hit.
// Results are ordered by descending similarity; ties break by ascending
// chunk index so ranking is deterministic across backends.
type SearchResult struct {
	Content    string  `json:"content"`
	DocumentID int64   `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
}

// StoreStats summarises the contents of a vector store.
type StoreStats struct {
	ChunkCount           int `json:"chunk_count"`
	ChunksWithEmbeddings int `json:"chunks_with_embeddings"`
	DocumentCount        int `json:"document_count"`
}
