package model

// User represents a registered account.
//
// Password holds the bcrypt hash, never the plaintext. The JSON keys keep
// the usual users.json record shape; only bcrypt hashes verify.
type User struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}
