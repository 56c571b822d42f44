package domain

import "time"

// User is a marketplace account. Accounts are created lazily by the first
// successful OTP verification for an email address and are never deleted by
// this service. PasswordHash stays empty until registration completes.
type User struct {
	UserID       string    `json:"id" dynamodbav:"user_id"`
	Email        string    `json:"email" dynamodbav:"email"`
	FullName     string    `json:"full_name" dynamodbav:"full_name"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Verified     bool      `json:"verified" dynamodbav:"verified"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

type UpdateUserRequest struct {
	FullName *string `json:"full_name"`
}
