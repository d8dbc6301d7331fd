// Package model defines the data structures shared by the repository,
// service and handler layers.
package model

import "time"

// User is a person who has submitted at least one promise.
//
// WHY NO PASSWORD OR PROVIDER ID?
// Identity is proven by reading mail sent to Email. A user row exists from
// the first submission; EmailVerified flips to true the first time any of
// their magic links is followed and never flips back.
//
// Email is stored lowercased and is unique, so a repeat submission from the
// same address updates FullName on the existing row instead of creating a
// second user.
type User struct {
	ID            string    `json:"id"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
