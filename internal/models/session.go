package models

// User is a chat account as returned by the API.
type User struct {
	ID          string `json:"_id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

// Session is the authenticated identity plus its token pair.
type Session struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Authenticated reports whether the session carries an access token.
func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

// Complete reports whether every session field is populated.
func (s Session) Complete() bool {
	return s.User != nil && s.AccessToken != "" && s.RefreshToken != ""
}

// LoginResponse is the body of POST /auth/login.
type LoginResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenPair is the body of POST /auth/refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RegisterRequest is the payload of POST /auth/register.
type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
}
