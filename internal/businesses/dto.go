package businesses

// CreateBusinessRequest carries a new business profile.
type CreateBusinessRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,max=50"`
	Address string `json:"address" validate:"required,max=500"`
	Website string `json:"website" validate:"omitempty,url"`
	Logo    string `json:"logo" validate:"omitempty,url"`
	TaxID   string `json:"tax_id" validate:"omitempty,max=50"`
}

// UpdateBusinessRequest is a partial update; nil fields are left untouched.
type UpdateBusinessRequest struct {
	Name    *string `json:"name" validate:"omitnil,min=1,max=200"`
	Email   *string `json:"email" validate:"omitnil,email"`
	Phone   *string `json:"phone" validate:"omitnil,min=1,max=50"`
	Address *string `json:"address" validate:"omitnil,min=1,max=500"`
	Website *string `json:"website" validate:"omitempty,url"`
	Logo    *string `json:"logo" validate:"omitempty,url"`
	TaxID   *string `json:"tax_id" validate:"omitnil,max=50"`
}

func (req UpdateBusinessRequest) updates() map[string]interface{} {
	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Website != nil {
		updates["website"] = *req.Website
	}
	if req.Logo != nil {
		updates["logo"] = *req.Logo
	}
	if req.TaxID != nil {
		updates["tax_id"] = *req.TaxID
	}
	return updates
}
