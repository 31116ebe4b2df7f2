package models

import "time"

// Profile holds application data of an identity provider account
type Profile struct {
	ID              string    `json:"uid"`
	Email           string    `json:"email"`
	FullName        string    `json:"fullName"`
	MobileNumber    string    `json:"mobileNumber"`
	DateOfBirth     string    `json:"dateOfBirth"`
	ProfileComplete bool      `json:"profileComplete"`
	IsAdmin         bool      `json:"isAdmin"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Identity is an account resolved by an identity provider
type Identity struct {
	UID         string
	Email       string
	DisplayName string
}

// SignUp is a request to create an account
type SignUp struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6"`
	FullName     string `json:"fullName" validate:"required"`
	MobileNumber string `json:"mobileNumber" validate:"required"`
	DateOfBirth  string `json:"dateOfBirth" validate:"required"`
}

// ProfileCompletion carries the fields missing after an OAuth sign in
type ProfileCompletion struct {
	MobileNumber string `json:"mobileNumber" validate:"required"`
	DateOfBirth  string `json:"dateOfBirth" validate:"required"`
}

// TokenPayload is the verified content of a session token
type TokenPayload struct {
	UserID  string
	Email   string
	IsAdmin bool
}

// CurrentUser is the caller of an operation
type CurrentUser struct {
	ID      string
	Email   string
	IsAdmin bool
}

// Session is the result of a successful sign in
type Session struct {
	Token   string
	Profile *Profile
}

// User returns the caller described by the payload
func (p *TokenPayload) User() CurrentUser {
	return CurrentUser{ID: p.UserID, Email: p.Email, IsAdmin: p.IsAdmin}
}
