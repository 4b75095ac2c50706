package domain

// ============================================================
// Session: durable client-side proof of authentication
// ============================================================

// Session is the identity a client holds after a successful login.
// ExpiresAt is an absolute epoch in milliseconds; zero means no expiry was
// recorded.
type Session struct {
	AuthToken   string `json:"authToken"`
	ExpiresAt   int64  `json:"tokenExpiry,omitempty"`
	UserName    string `json:"userName"`
	CompanyCNPJ string `json:"companyCnpj"`
	UserEmail   string `json:"userEmail,omitempty"`
	UserRole    Role   `json:"userRole,omitempty"`
	UserPhoto   string `json:"userPhoto,omitempty"`
}

// RememberedCredentials pre-fill the login form on the next visit. They are
// independent of session validity.
type RememberedCredentials struct {
	CNPJ     string `json:"savedCnpj"`
	Username string `json:"savedUsuario"`
	Remember bool   `json:"savedLembrar"`
}
