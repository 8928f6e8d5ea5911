package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DefaultEdgeStrength is used when a relationship carries no strength
const DefaultEdgeStrength = 1.0

// KnowledgeNode is an organization-scoped graph node, unique by (organization, name, type)
type KnowledgeNode struct {
	ID             uuid.UUID         `json:"id" gorm:"type:uuid;primary_key"`
	OrganizationID uuid.UUID         `json:"organization_id" gorm:"type:uuid;not null;uniqueIndex:uq_knowledge_node,priority:1"`
	Name           string            `json:"name" gorm:"type:varchar(255);not null;uniqueIndex:uq_knowledge_node,priority:2"`
	NodeType       string            `json:"node_type" gorm:"type:varchar(50);not null;uniqueIndex:uq_knowledge_node,priority:3"`
	Description    string            `json:"description,omitempty" gorm:"type:text"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time         `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (KnowledgeNode) TableName() string {
	return "knowledge_nodes"
}

// NewKnowledgeNode creates a node for an entity first seen in the given meeting
func NewKnowledgeNode(organizationID, meetingID uuid.UUID, e Entity) *KnowledgeNode {
	return &KnowledgeNode{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		Name:           e.Name,
		NodeType:       e.Type,
		Description:    e.Description,
		Metadata:       datatypes.JSONMap{"first_meeting_id": meetingID.String()},
		CreatedAt:      time.Now(),
	}
}

// KnowledgeEdge links two nodes, unique by (source, target, type)
type KnowledgeEdge struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	OrganizationID uuid.UUID `json:"organization_id" gorm:"type:uuid;not null;index"`
	SourceNodeID   uuid.UUID `json:"source_node_id" gorm:"type:uuid;not null;uniqueIndex:uq_knowledge_edge,priority:1"`
	TargetNodeID   uuid.UUID `json:"target_node_id" gorm:"type:uuid;not null;uniqueIndex:uq_knowledge_edge,priority:2"`
	EdgeType       string    `json:"edge_type" gorm:"type:varchar(50);not null;uniqueIndex:uq_knowledge_edge,priority:3"`
	Strength       float64   `json:"strength" gorm:"not null;default:1"`
	MeetingID      uuid.UUID `json:"meeting_id" gorm:"type:uuid;index"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (KnowledgeEdge) TableName() string {
	return "knowledge_edges"
}

// NewKnowledgeEdge creates an edge. Strength is clamped to [0,1] and defaults to 1.
func NewKnowledgeEdge(organizationID, meetingID, source, target uuid.UUID, edgeType string, strength float64) *KnowledgeEdge {
	switch {
	case strength <= 0:
		strength = DefaultEdgeStrength
	case strength > 1:
		strength = 1
	}
	return &KnowledgeEdge{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		SourceNodeID:   source,
		TargetNodeID:   target,
		EdgeType:       edgeType,
		Strength:       strength,
		MeetingID:      meetingID,
		CreatedAt:      time.Now(),
	}
}
