package models

// RequestLoginRequest asks for a magic sign-in link
type RequestLoginRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// RequestLoginResponse acknowledges the magic-link request. The response is
// the same whether or not the email exists, to avoid account enumeration.
type RequestLoginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// VerifyLoginRequest exchanges a magic-link token for a session
type VerifyLoginRequest struct {
	Token string `json:"token" binding:"required,min=32,max=128"`
}

// UserSession is the signed-in session view returned to the frontend
type UserSession struct {
	ProfileID string `json:"profileId"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	IsPro     bool   `json:"isPro"`
	Role      string `json:"role,omitempty"`
}

// AdminLoginRequest is the password-based admin sign-in payload
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}
