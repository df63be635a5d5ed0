package domain

// ============================================================
// Auth: proxied to Supabase GoTrue
// ============================================================

// SignUpRequest is the body for POST /v1/auth/signup.
type SignUpRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=120"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	CompanyName string `json:"company_name,omitempty" validate:"max=120"`
	Phone       string `json:"phone,omitempty" validate:"max=20"`
}

// SignInRequest is the body for POST /v1/auth/signin.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the body for POST /v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// PasswordResetRequest is the body for POST /v1/auth/password/reset.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Session is the token set returned by GoTrue.
type Session struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at,omitempty"`
	User         *UserProfile `json:"user,omitempty"`
}

// AuthUser is the GoTrue user object as far as the console needs it.
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignUpResponse is returned from sign-up. Session is nil when email
// confirmation is required.
type SignUpResponse struct {
	UserID               string   `json:"user_id"`
	ConfirmationRequired bool     `json:"confirmation_required"`
	Session              *Session `json:"session,omitempty"`
	Message              string   `json:"message"`
}
