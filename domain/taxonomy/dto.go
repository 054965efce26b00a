package taxonomy

// CreateTypeRequest is the body of POST /api/types.
type CreateTypeRequest struct {
	Value       string  `json:"value" validate:"required,max=100"`
	EntityType  string  `json:"entity_type" validate:"required,oneof=node relationship"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

// UpdateTypeRequest is the body of PATCH /api/types/:id. Absent fields are
// left unchanged.
type UpdateTypeRequest struct {
	Value       *string `json:"value,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
}
