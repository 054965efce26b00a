package investigations

import (
	"time"

	"github.com/uptrace/bun"
)

// Investigation is the container that owns a set of nodes and
// relationships (investigations table).
type Investigation struct {
	bun.BaseModel `bun:"table:investigations,alias:i"`

	ID          string    `bun:"id,pk" json:"id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Description string    `bun:"description" json:"description"`
	Tags        []string  `bun:"tags,type:jsonb" json:"tags"`
	CreatedBy   string    `bun:"created_by,notnull" json:"created_by"`
	IsArchived  bool      `bun:"is_archived,notnull" json:"is_archived"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull" json:"updated_at"`

	// Populated by reads only
	NodeCount         int `bun:"node_count,scanonly" json:"node_count"`
	RelationshipCount int `bun:"relationship_count,scanonly" json:"relationship_count"`
}

// OwnedBy reports whether principal owns the investigation.
func (i *Investigation) OwnedBy(principal string) bool {
	return i.CreatedBy == principal
}
