package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	repo "github.com/johnquangdev/meetingmind/internal/domain/repositories"
)

// KnowledgeRepository stores the organization-scoped knowledge graph
type KnowledgeRepository struct {
	db *gorm.DB
}

var _ repo.KnowledgeRepository = (*KnowledgeRepository)(nil)

// NewKnowledgeRepository creates a new knowledge graph repository
func NewKnowledgeRepository(db *gorm.DB) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

type nodeKey struct {
	name     string
	nodeType string
}

// Merge upserts every entity as a node and inserts every relationship as an edge.
// Existing nodes win and duplicate edges are ignored.
func (r *KnowledgeRepository) Merge(ctx context.Context, organizationID, meetingID uuid.UUID, delta entities.KnowledgeDelta) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make(map[nodeKey]uuid.UUID)

		for _, e := range delta.Entities {
			if _, err := r.ensureNode(tx, ids, organizationID, meetingID, e); err != nil {
				return err
			}
		}

		for _, rel := range delta.Relationships {
			if strings.TrimSpace(rel.Type) == "" {
				continue
			}
			source, err := r.ensureNode(tx, ids, organizationID, meetingID, rel.Source)
			if err != nil {
				return err
			}
			target, err := r.ensureNode(tx, ids, organizationID, meetingID, rel.Target)
			if err != nil {
				return err
			}
			if source == uuid.Nil || target == uuid.Nil {
				continue
			}

			edge := entities.NewKnowledgeEdge(organizationID, meetingID, source, target, rel.Type, rel.Strength)
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "source_node_id"}, {Name: "target_node_id"}, {Name: "edge_type"}},
				DoNothing: true,
			}).Create(edge).Error; err != nil {
				return fmt.Errorf("failed to insert edge %s: %w", rel.Type, err)
			}
		}
		return nil
	})
}

// ensureNode returns the id of the (organization, name, type) node, creating it if absent.
// Entities without a name or type resolve to uuid.Nil.
func (r *KnowledgeRepository) ensureNode(tx *gorm.DB, ids map[nodeKey]uuid.UUID, organizationID, meetingID uuid.UUID, e entities.Entity) (uuid.UUID, error) {
	e.Name = strings.TrimSpace(e.Name)
	e.Type = strings.TrimSpace(e.Type)
	if e.Name == "" || e.Type == "" {
		return uuid.Nil, nil
	}

	key := nodeKey{name: e.Name, nodeType: e.Type}
	if id, ok := ids[key]; ok {
		return id, nil
	}

	node := entities.NewKnowledgeNode(organizationID, meetingID, e)
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "name"}, {Name: "node_type"}},
		DoNothing: true,
	}).Create(node).Error; err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert node %q: %w", e.Name, err)
	}

	var existing entities.KnowledgeNode
	if err := tx.
		Where("organization_id = ? AND name = ? AND node_type = ?", organizationID, e.Name, e.Type).
		First(&existing).Error; err != nil {
		return uuid.Nil, fmt.Errorf("failed to load node %q: %w", e.Name, err)
	}

	ids[key] = existing.ID
	return existing.ID, nil
}

// ListNodes returns an organization's nodes
func (r *KnowledgeRepository) ListNodes(ctx context.Context, organizationID uuid.UUID) ([]*entities.KnowledgeNode, error) {
	var nodes []*entities.KnowledgeNode
	if err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("node_type ASC, name ASC").
		Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

// ListEdges returns an organization's edges
func (r *KnowledgeRepository) ListEdges(ctx context.Context, organizationID uuid.UUID) ([]*entities.KnowledgeEdge, error) {
	var edges []*entities.KnowledgeEdge
	if err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("created_at ASC").
		Find(&edges).Error; err != nil {
		return nil, err
	}
	return edges, nil
}
