// Package customers manages the billing contacts invoices are raised against.
package customers

import "time"

// Customer is a tenant-scoped billing contact.
type Customer struct {
	ID       int64  `json:"id"`
	TenantID int64  `json:"-"`
	Name     string `json:"name"`
	// NameAr is the Arabic rendering of the name, used on Arabic reminders.
	NameAr    string    `json:"name_ar,omitempty"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	// TRN is the UAE tax registration number, when the customer is VAT
	// registered.
	TRN       string    `json:"trn,omitempty"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateCustomerInput carries fields for creating a customer.
type CreateCustomerInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	NameAr   string `json:"name_ar" validate:"omitempty,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,e164"`
	TRN      string `json:"trn" validate:"omitempty,len=15,numeric"`
	Language string `json:"language" validate:"omitempty,oneof=en ar"`
}

// UpdateCustomerInput carries fields for updating a customer. Nil pointers
// leave the stored value untouched.
type UpdateCustomerInput struct {
	Name     *string `json:"name" validate:"omitempty,max=200"`
	NameAr   *string `json:"name_ar" validate:"omitempty,max=200"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,e164"`
	TRN      *string `json:"trn" validate:"omitempty,len=15,numeric"`
	Language *string `json:"language" validate:"omitempty,oneof=en ar"`
}

// ListCustomersRequest filters a customer listing.
type ListCustomersRequest struct {
	Query  string
	Limit  int
	Offset int
}
