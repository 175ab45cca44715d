package domain

// Entity is a multi-word capitalized phrase extracted from text.
// The type is left unclassified; extraction is a co-occurrence heuristic,
// not NLP-grade recognition.
type Entity struct {
	Name         string `json:"name"`
	MentionCount int    `json:"mention_count"`
	Type         string `json:"type"`
}

// EntityTypeUnknown is the default entity classification.
const EntityTypeUnknown = "unknown"

// Relation is an undirected co-occurrence edge between two entities that
// appear in the same sentence.
type Relation struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// RelationTypeCooccurrence is the only relation type the extractor emits.
const RelationTypeCooccurrence = "co-occurrence"
