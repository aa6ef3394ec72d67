package models

// User is one credential record in the user store.
type User struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
