package model

// User is the authenticated operator identity returned by login.
type User struct {
	Username string `json:"username"`
	Token    string `json:"token"`
	Role     string `json:"role,omitempty"`
}
