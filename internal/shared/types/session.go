package types

// SessionData is the authoritative session read.
type SessionData struct {
	LoggedIn    bool   `json:"loggedIn"`
	AccessToken string `json:"accessToken,omitempty"`
	UserName    string `json:"userName,omitempty"`
}

// SessionState is returned by login.
type SessionState struct {
	NeedsChangePassword bool `json:"needsChangePassword"`
}

// PasswordCredential is the login request body.
type PasswordCredential struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

// UpdatePassword is the change-password request body.
type UpdatePassword struct {
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}
