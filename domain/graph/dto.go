package graph

import "encoding/json"

// DefaultStrength is used when a relationship is created without one.
const DefaultStrength = 0.5

// NodeInput carries the fields of a node to create or upsert.
type NodeInput struct {
	Type         string
	Name         string
	Data         Data
	SourceModule string
}

// NodeUpdate changes a node. Nil fields are left untouched.
type NodeUpdate struct {
	Name *string
	Type *string
	Data DataPatch
}

// RelationshipInput carries the fields of a relationship to create or
// upsert. A nil Strength means DefaultStrength.
type RelationshipInput struct {
	SourceNodeID string
	TargetNodeID string
	Type         string
	Strength     *float64
	Data         Data
	SourceModule string
}

// RelationshipUpdate changes a relationship. Nil fields are left untouched.
type RelationshipUpdate struct {
	Type     *string
	Strength *float64
	Data     DataPatch
}

// NodeFilter selects a page of an investigation's nodes.
type NodeFilter struct {
	Skip  int
	Limit int // 0 means unbounded
	Type  string
	Query string // case-insensitive substring of name or data
}

// RelationshipFilter selects a page of an investigation's relationships.
type RelationshipFilter struct {
	Skip  int
	Limit int // 0 means unbounded
	Type  string
}

// CreateNodeRequest is the body of POST /api/investigations/:id/nodes and
// of the upsert endpoint. Data is a JSON object, or a string holding one.
type CreateNodeRequest struct {
	Type         string          `json:"type" validate:"required,max=100"`
	Name         string          `json:"name" validate:"required,max=255"`
	Data         json.RawMessage `json:"data,omitempty"`
	SourceModule string          `json:"source_module,omitempty" validate:"max=100"`
}

// UpdateNodeRequest is the body of PUT /api/nodes/:id
type UpdateNodeRequest struct {
	Name *string         `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Type *string         `json:"type,omitempty" validate:"omitempty,min=1,max=100"`
	Data json.RawMessage `json:"data,omitempty"`
}

// CreateRelationshipRequest is the body of
// POST /api/investigations/:id/relationships and of the upsert endpoint.
type CreateRelationshipRequest struct {
	SourceNodeID string          `json:"source_node_id" validate:"required"`
	TargetNodeID string          `json:"target_node_id" validate:"required"`
	Type         string          `json:"type" validate:"required,max=100"`
	Strength     *float64        `json:"strength,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	SourceModule string          `json:"source_module,omitempty" validate:"max=100"`
}

// UpdateRelationshipRequest is the body of PUT /api/relationships/:id
type UpdateRelationshipRequest struct {
	Type     *string         `json:"type,omitempty" validate:"omitempty,min=1,max=100"`
	Strength *float64        `json:"strength,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// CountResponse wraps a count.
type CountResponse struct {
	Count int `json:"count"`
}

// ExistsResponse is returned by GET /api/relationships/exists
type ExistsResponse struct {
	Exists bool `json:"exists"`
}
