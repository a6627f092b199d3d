package domain

import (
	"strings"
	"time"
)

// MinPasswordLength is the shortest password accepted at registration and reset.
const MinPasswordLength = 8

// User is an account record. OTP and reset-token fields are present only while
// the corresponding challenge is pending; expiries are Unix seconds.
type User struct {
	UserID              string     `json:"id" dynamodbav:"user_id"`
	Name                string     `json:"name" dynamodbav:"name"`
	Email               string     `json:"email" dynamodbav:"email"`
	PasswordHash        string     `json:"-" dynamodbav:"password_hash"`
	Verified            bool       `json:"verified" dynamodbav:"verified"`
	OTP                 string     `json:"-" dynamodbav:"otp,omitempty"`
	OTPExpiresAt        int64      `json:"-" dynamodbav:"otp_expires_at,omitempty"`
	ResetToken          string     `json:"-" dynamodbav:"reset_token,omitempty"`
	ResetTokenExpiresAt int64      `json:"-" dynamodbav:"reset_token_expires_at,omitempty"`
	PasswordUpdatedAt   *time.Time `json:"password_updated_at,omitempty" dynamodbav:"password_updated_at,omitempty"`
	CreatedAt           time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt           time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// PublicUser is the subset of a User returned to clients.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{ID: u.UserID, Name: u.Name, Email: u.Email}
}

// NormalizeEmail trims and lowercases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}
