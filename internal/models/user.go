package models

// User represents a registered user account.
type User struct {
	// ID is the unique identifier for the user ("user_..." format).
	ID string `json:"id"`

	// Email is the user's email address (unique). Used for login.
	Email string `json:"email"`

	// Phone is optional. Registering with the phone number of an existing
	// placeholder takes over that placeholder's memberships and debts.
	Phone string `json:"phone,omitempty"`

	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"-"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// PlaceholderUser is a person added to a group before they have an account.
type PlaceholderUser struct {
	// ID is the unique identifier ("temp_..." format).
	ID string `json:"id"`

	Name  string `json:"name"`
	Phone string `json:"phone"`

	// CreatedBy is the registered user who added the placeholder.
	CreatedBy string `json:"created_by"`
	CreatedAt int64  `json:"created_at"`
}
