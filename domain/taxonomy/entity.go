package taxonomy

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// EntityType says which kind of graph element a Type labels.
type EntityType string

const (
	EntityNode         EntityType = "node"
	EntityRelationship EntityType = "relationship"
)

// Valid reports whether e is one of the known entity types.
func (e EntityType) Valid() bool {
	return e == EntityNode || e == EntityRelationship
}

// ParseEntityType accepts "node" or "relationship" in any case.
func ParseEntityType(s string) (EntityType, bool) {
	e := EntityType(strings.ToLower(strings.TrimSpace(s)))
	return e, e.Valid()
}

// Type is an entry of the node/relationship taxonomy (types table).
// Value is always stored normalized; (value, entity_type) is unique.
type Type struct {
	bun.BaseModel `bun:"table:types,alias:t"`

	ID          string     `bun:"id,pk" json:"id"`
	Value       string     `bun:"value,notnull" json:"value"`
	EntityType  EntityType `bun:"entity_type,notnull" json:"entity_type"`
	Description *string    `bun:"description" json:"description"`
	IsSystem    bool       `bun:"is_system,notnull" json:"is_system"`
	CreatedAt   time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// DescriptionOrEmpty dereferences Description.
func (t *Type) DescriptionOrEmpty() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

// NormalizeValue canonicalizes a type label: surrounding whitespace is
// trimmed, letters are upper-cased and every internal whitespace run becomes
// a single underscore. "  social   profile " -> "SOCIAL_PROFILE".
func NormalizeValue(value string) string {
	return strings.Join(strings.Fields(strings.ToUpper(value)), "_")
}
