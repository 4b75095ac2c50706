package domain

// ============================================================
// Auth: results of the four backend auth operations
// ============================================================

// IdentifyResult answers "does this company exist".
type IdentifyResult struct {
	Exists  bool     `json:"exists"`
	Company *Company `json:"company,omitempty"`
}

// CheckUserResult answers "does this username exist for the company".
type CheckUserResult struct {
	Exists bool           `json:"exists"`
	User   *DirectoryUser `json:"user,omitempty"`
}

// AuthResult is returned by authenticate. An empty Token means the
// credentials were not accepted; Message may carry the backend's reason.
type AuthResult struct {
	Token     string         `json:"token,omitempty"`
	UserName  string         `json:"userName,omitempty"`
	UserEmail string         `json:"userEmail,omitempty"`
	UserRole  string         `json:"userRole,omitempty"`
	Company   *Company       `json:"company,omitempty"`
	User      *DirectoryUser `json:"user,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// ============================================================
// REST fallback: request bodies for /api/auth/*
// ============================================================

// IdentifyRequest is the body for POST /api/auth/identify.
type IdentifyRequest struct {
	CNPJ string `json:"cnpj"`
}

// CheckUserRequest is the body for POST /api/auth/check-user.
type CheckUserRequest struct {
	CNPJ     string `json:"cnpj"`
	Username string `json:"username"`
}

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	CNPJ     string `json:"cnpj"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// RecoverRequest is the body for POST /api/auth/recover.
type RecoverRequest struct {
	Email string `json:"email"`
}
