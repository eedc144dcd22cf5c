package domain

import "time"

// UserType scopes an account; (email, user type) is unique.
type UserType string

const (
	UserTypeUser   UserType = "USER"
	UserTypeAdmin  UserType = "ADMIN"
	UserTypeVendor UserType = "VENDOR"
)

// KnownUserTypes lists every accepted user type.
var KnownUserTypes = []UserType{UserTypeUser, UserTypeAdmin, UserTypeVendor}

// Valid reports whether t is one of the known user types.
func (t UserType) Valid() bool {
	for _, known := range KnownUserTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Profile holds the optional, user-editable fields of an account.
type Profile struct {
	Mobile        string     `json:"mobile,omitempty"`
	Gender        string     `json:"gender,omitempty"`
	MaritalStatus string     `json:"marital_status,omitempty"`
	BirthDate     *time.Time `json:"birth_date,omitempty"`
	Address       string     `json:"address,omitempty"`
}

// User is the stored identity. RefreshTokenHash is nil unless a token pair
// has been issued and not yet revoked by logout.
type User struct {
	ID               string
	Name             string
	Email            string
	PasswordHash     string
	RefreshTokenHash *string
	UserType         UserType
	Profile          Profile
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PublicUser is a User stripped of secrets, safe for responses and events.
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	UserType  UserType  `json:"user_type"`
	Profile   Profile   `json:"profile"`
	CreatedAt time.Time `json:"created_at"`
}

// Public returns the user without password or refresh-token hashes.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		UserType:  u.UserType,
		Profile:   u.Profile,
		CreatedAt: u.CreatedAt,
	}
}
