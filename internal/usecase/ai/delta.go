package ai

import (
	"strings"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
)

const maxDecisionNameRunes = 50

// RelationshipExtractor proposes edges between the entities extracted from one analysis
type RelationshipExtractor func(result *entities.AnalysisResult, nodes []entities.Entity) []entities.Relationship

// NoRelationships proposes no edges
func NoRelationships(*entities.AnalysisResult, []entities.Entity) []entities.Relationship {
	return []entities.Relationship{}
}

// ExtractKnowledgeDelta derives graph nodes from the topics and decisions of a result.
// Entities are unique by (name, type); relationships come from extractor, or none when it is nil.
func ExtractKnowledgeDelta(result *entities.AnalysisResult, extractor RelationshipExtractor) entities.KnowledgeDelta {
	delta := entities.KnowledgeDelta{
		Entities:      []entities.Entity{},
		Relationships: []entities.Relationship{},
	}
	if result == nil {
		return delta
	}

	seen := make(map[entities.Entity]struct{})
	add := func(name, typ string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		e := entities.Entity{Name: name, Type: typ}
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		delta.Entities = append(delta.Entities, e)
	}

	for _, topic := range result.KeyTopics {
		add(topic, entities.EntityTypeTopic)
	}
	for _, decision := range result.Decisions {
		add(truncateRunes(strings.TrimSpace(decision), maxDecisionNameRunes), entities.EntityTypeDecision)
	}

	if extractor == nil {
		extractor = NoRelationships
	}
	if rels := extractor(result, delta.Entities); len(rels) > 0 {
		delta.Relationships = rels
	}
	return delta
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
