// Package domain contains the core business entities of the retrieval
// pipeline: documents, chunks, search results, the entity/relation graph,
// and the sentinel errors shared by all layers.
package domain
