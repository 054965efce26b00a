package graph

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Data is the open-ended key/value payload carried by nodes and
// relationships. It is opaque to the store and persisted as JSON.
type Data map[string]any

// Value implements driver.Valuer.
func (d Data) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(d))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner. NULL scans as an empty map.
func (d *Data) Scan(value any) error {
	m := make(map[string]any)
	switch v := value.(type) {
	case nil:
	case []byte:
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
	case string:
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return err
		}
	default:
		return fmt.Errorf("graph: cannot scan %T into Data", value)
	}
	*d = m
	return nil
}

// Clone returns a shallow copy that is never nil.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Node is a typed, named entity inside one investigation (nodes table).
type Node struct {
	bun.BaseModel `bun:"table:nodes,alias:n"`

	ID              string    `bun:"id,pk" json:"id"`
	InvestigationID string    `bun:"investigation_id,notnull" json:"investigation_id"`
	Type            string    `bun:"type,notnull" json:"type"`
	Name            string    `bun:"name,notnull" json:"name"`
	Data            Data      `bun:"data,type:jsonb" json:"data"`
	CreatedBy       *string   `bun:"created_by" json:"created_by,omitempty"`
	SourceModule    *string   `bun:"source_module" json:"source_module,omitempty"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Relationship is a directed, typed, weighted edge between two nodes of the
// same investigation (relationships table).
type Relationship struct {
	bun.BaseModel `bun:"table:relationships,alias:r"`

	ID              string    `bun:"id,pk" json:"id"`
	InvestigationID string    `bun:"investigation_id,notnull" json:"investigation_id"`
	SourceNodeID    string    `bun:"source_node_id,notnull" json:"source_node_id"`
	TargetNodeID    string    `bun:"target_node_id,notnull" json:"target_node_id"`
	Type            string    `bun:"type,notnull" json:"type"`
	Strength        float64   `bun:"strength,notnull" json:"strength"`
	Data            Data      `bun:"data,type:jsonb" json:"data"`
	CreatedBy       *string   `bun:"created_by" json:"created_by,omitempty"`
	SourceModule    *string   `bun:"source_module" json:"source_module,omitempty"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Touches reports whether nodeID is either endpoint of r.
func (r *Relationship) Touches(nodeID string) bool {
	return r.SourceNodeID == nodeID || r.TargetNodeID == nodeID
}

// TypeCount is the number of nodes or relationships carrying one type label.
type TypeCount struct {
	Type  string `bun:"type" json:"type"`
	Count int    `bun:"count" json:"count"`
}

// Direction selects which edges a one-hop traversal follows.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// ParseDirection accepts outgoing, incoming or both. Empty means both.
func ParseDirection(s string) (Direction, bool) {
	switch d := Direction(s); d {
	case DirectionOutgoing, DirectionIncoming, DirectionBoth:
		return d, true
	case "":
		return DirectionBoth, true
	default:
		return d, false
	}
}
