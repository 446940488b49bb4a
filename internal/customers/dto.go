package customers

import "github.com/google/uuid"

// CreateCustomerRequest carries a new customer.
type CreateCustomerRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Company string `json:"company" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"omitempty,max=50"`
	Address string `json:"address" validate:"omitempty,max=500"`
}

// UpdateCustomerRequest is a partial update.
type UpdateCustomerRequest struct {
	Name    *string `json:"name" validate:"omitnil,min=1,max=200"`
	Email   *string `json:"email" validate:"omitnil,email"`
	Company *string `json:"company" validate:"omitnil,min=1,max=200"`
	Phone   *string `json:"phone" validate:"omitnil,max=50"`
	Address *string `json:"address" validate:"omitnil,max=500"`
}

// ListCustomersRequest filters a business's customers.
type ListCustomersRequest struct {
	BusinessID uuid.UUID
	Search     string
	Limit      int
	Offset     int
}

func (req UpdateCustomerRequest) updates() map[string]interface{} {
	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Company != nil {
		updates["company"] = *req.Company
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	return updates
}
