package dto

import (
	"time"

	"github.com/spec-kit/storefront/internal/domain"
)

// SuccessMessage is the message of every successful response envelope.
const SuccessMessage = "Successful"

// Response is the envelope of every successful response.
type Response struct {
	Message string `json:"message"`
	Result  any    `json:"result"`
}

// OK wraps result in the success envelope.
func OK(result any) Response {
	return Response{Message: SuccessMessage, Result: result}
}

// ProfileFields are the optional profile fields shared by signup and update.
type ProfileFields struct {
	Mobile        string     `json:"mobile"`
	Gender        string     `json:"gender"`
	MaritalStatus string     `json:"marital_status"`
	BirthDate     *time.Time `json:"birth_date"`
	Address       string     `json:"address"`
}

// SignupRequest payload for local signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"user_type"`
	ProfileFields
}

// Profile converts the embedded fields to the domain type.
func (r SignupRequest) Profile() domain.Profile {
	return domain.Profile{
		Mobile:        r.Mobile,
		Gender:        r.Gender,
		MaritalStatus: r.MaritalStatus,
		BirthDate:     r.BirthDate,
		Address:       r.Address,
	}
}

// SigninRequest payload for local signin.
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"user_type"`
}

// UpdateUserRequest payload for PATCH /user. Absent fields are untouched.
type UpdateUserRequest struct {
	Name          *string    `json:"name"`
	Mobile        *string    `json:"mobile"`
	Gender        *string    `json:"gender"`
	MaritalStatus *string    `json:"marital_status"`
	BirthDate     *time.Time `json:"birth_date"`
	Address       *string    `json:"address"`
}

// ValidateTokenRequest payload for POST /user/validate-token.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}
