package api

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,e164"`
	Password    string `json:"password" validate:"required,min=8"`
}

type RegisterResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
	// ClaimedGroups lists groups where a placeholder with the same phone
	// number was replaced by the new account.
	ClaimedGroups []string `json:"claimed_groups,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User User `json:"user"`
}
