package domain

import "time"

type User struct {
	UserID       string    `json:"id" dynamodbav:"user_id"`
	// email and phone are GSI hash keys; omitempty keeps the unused channel
	// absent so the sparse indexes accept the item.
	Email        string    `json:"email,omitempty" dynamodbav:"email,omitempty"`
	Phone        string    `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Enable       bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

// HasUsablePassword reports whether the account has ever had a password set.
// Accounts created through OTP/link verification start without one.
func (u *User) HasUsablePassword() bool { return u.PasswordHash != "" }
