package models

// UserProfile is the role-tagged profile returned by the login endpoint.
type UserProfile struct {
	Username    string `json:"username"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Department  string `json:"department,omitempty"`
	AmbulanceID string `json:"ambulanceId,omitempty"`
}

// LoginRequest carries the static credential pair.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse returns a bearer token and the matched profile.
type LoginResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Token   string       `json:"token,omitempty"`
	User    *UserProfile `json:"user,omitempty"`
	Error   string       `json:"error,omitempty"`
}
