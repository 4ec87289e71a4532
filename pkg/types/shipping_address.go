package types

// ShippingAddress is the recipient block stored as jsonb on orders.
type ShippingAddress struct {
	FirstName   string `json:"first_name" validate:"required,min=2,max=100"`
	LastName    string `json:"last_name" validate:"required,min=2,max=100"`
	PhoneNumber string `json:"phone_number" validate:"required,min=10,max=20"`
	Province    string `json:"province" validate:"required,max=100"`
	City        string `json:"city" validate:"required,max=100"`
	Address     string `json:"address" validate:"required,min=10,max=500"`
	PostalCode  string `json:"postal_code" validate:"required,len=10,numeric"`
}
