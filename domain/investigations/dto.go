package investigations

// CreateInvestigationRequest is the body of POST /api/investigations
type CreateInvestigationRequest struct {
	Title       string   `json:"title" validate:"required,min=1,max=100"`
	Description string   `json:"description" validate:"max=1000"`
	Tags        []string `json:"tags"`
}

// UpdateInvestigationRequest is the body of PUT /api/investigations/:id.
// Nil fields are left untouched.
type UpdateInvestigationRequest struct {
	Title       *string   `json:"title,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=1000"`
	Tags        *[]string `json:"tags,omitempty"`
	IsArchived  *bool     `json:"is_archived,omitempty"`
}

// Empty reports whether the request changes nothing.
func (r UpdateInvestigationRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.Tags == nil && r.IsArchived == nil
}

// ListParams filters an owner's investigations.
type ListParams struct {
	Skip            int
	Limit           int // 0 means unbounded
	IncludeArchived bool
	Query           string   // case-insensitive substring of title or description
	Tags            []string // any-tag overlap
}

// CountResponse is returned by GET /api/investigations/count
type CountResponse struct {
	Count int `json:"count"`
}
