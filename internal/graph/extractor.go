// Package graph extracts a lightweight entity and relation graph from text.
// Entities are runs of consecutive capitalised tokens; relations are
// sentence-level co-occurrences. This is a heuristic pass, not NER: it
// degrades to empty output rather than failing.
package graph

import (
	"sort"
	"strings"
	"unicode"

	"github.com/archivemind/corpus/internal/core/domain"
)

// Entity span bounds and retention threshold.
const (
	minEntityTokens = 2
	maxEntityTokens = 4
	minMentions     = 2
)

// RelationConfidence is the fixed confidence assigned to co-occurrence
// relations. The heuristic has no signal to grade individual pairs.
const RelationConfidence = 0.3

// Extractor finds capitalised entity spans and their co-occurrences.
type Extractor struct{}

// NewExtractor creates a graph extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the entities mentioned more than once and the relations
// between entities co-occurring in one sentence. Entities are sorted by
// descending mention count, ties alphabetically; relations come ordered by
// source then target name.
func (e *Extractor) Extract(text string) ([]domain.Entity, []domain.Relation) {
	sentences := splitSentences(text)

	mentions := make(map[string]int)
	perSentence := make([][]string, 0, len(sentences))

	for _, sentence := range sentences {
		spans := entitySpans(sentence)
		perSentence = append(perSentence, spans)
		for _, span := range spans {
			mentions[span]++
		}
	}

	retained := make(map[string]bool, len(mentions))
	entities := make([]domain.Entity, 0, len(mentions))
	for name, count := range mentions {
		if count < minMentions {
			continue
		}
		retained[name] = true
		entities = append(entities, domain.Entity{
			Name:         name,
			MentionCount: count,
			Type:         domain.EntityTypeUnknown,
		})
	}

	sort.Slice(entities, func(i, j int) bool {
		if entities[i].MentionCount != entities[j].MentionCount {
			return entities[i].MentionCount > entities[j].MentionCount
		}
		return entities[i].Name < entities[j].Name
	})

	relations := e.relations(perSentence, retained)
	return entities, relations
}

// relations pairs retained entities that share a sentence. Each unordered
// pair appears once, with source and target in lexical order.
func (e *Extractor) relations(perSentence [][]string, retained map[string]bool) []domain.Relation {
	seen := make(map[[2]string]bool)
	var relations []domain.Relation

	for _, spans := range perSentence {
		var present []string
		dedup := make(map[string]bool, len(spans))
		for _, span := range spans {
			if retained[span] && !dedup[span] {
				dedup[span] = true
				present = append(present, span)
			}
		}
		sort.Strings(present)

		for i := 0; i < len(present); i++ {
			for j := i + 1; j < len(present); j++ {
				pair := [2]string{present[i], present[j]}
				if seen[pair] {
					continue
				}
				seen[pair] = true
				relations = append(relations, domain.Relation{
					Source:     pair[0],
					Target:     pair[1],
					Type:       domain.RelationTypeCooccurrence,
					Confidence: RelationConfidence,
				})
			}
		}
	}

	sort.Slice(relations, func(i, j int) bool {
		if relations[i].Source != relations[j].Source {
			return relations[i].Source < relations[j].Source
		}
		return relations[i].Target < relations[j].Target
	})
	return relations
}

// Entities returns only the retained entities of the text.
func (e *Extractor) Entities(text string) []domain.Entity {
	entities, _ := e.Extract(text)
	return entities
}

// Relations returns only the co-occurrence relations of the text.
func (e *Extractor) Relations(text string) []domain.Relation {
	_, relations := e.Extract(text)
	return relations
}

// splitSentences breaks text on sentence-ending punctuation.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// entitySpans finds runs of 2 to 4 consecutive capitalised tokens. Longer
// runs emit their leading window rather than splitting into fragments.
func entitySpans(sentence string) []string {
	tokens := strings.Fields(sentence)

	var spans []string
	var run []string

	flush := func() {
		if len(run) >= minEntityTokens {
			end := len(run)
			if end > maxEntityTokens {
				end = maxEntityTokens
			}
			spans = append(spans, strings.Join(run[:end], " "))
		}
		run = run[:0]
	}

	for _, token := range tokens {
		cleaned := strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if isCapitalized(cleaned) {
			run = append(run, cleaned)
			continue
		}
		flush()
	}
	flush()

	return spans
}

// isCapitalized reports whether the token starts with an upper-case letter.
func isCapitalized(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		return unicode.IsUpper(r)
	}
	return false
}
