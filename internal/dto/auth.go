package dto

// ── auth ──

// SignupRequest registration
type SignupRequest struct {
	Email       string `json:"email"        binding:"required,email,max=255"`
	Password    string `json:"password"     binding:"required,min=8,max=72"`
	DisplayName string `json:"display_name" binding:"required,min=2,max=100"`
	Role        string `json:"role"         binding:"required,oneof=student company coordinator"`
	CompanyName string `json:"company_name" binding:"omitempty,max=255"`
	CompanyICO  string `json:"company_ico"  binding:"omitempty,max=32"`
}

// LoginRequest login
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest exchanges a refresh token for a new pair
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest optional refresh token to revoke alongside the access token
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}
