// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): extraction, chunking, embedding and storage.
package driven
