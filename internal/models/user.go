package models

import "time"

type User struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserProfile is the authenticated user's own view of the account.
type UserProfile struct {
	UserID        int64              `json:"userId"`
	Email         string             `json:"email"`
	Username      string             `json:"username"`
	Subscriptions []SubscriptionView `json:"subscriptions"`
}

// Author is the public projection of a user embedded in articles.
type Author struct {
	UserID   int64  `json:"userId"`
	Email    string `json:"email"`
	Username string `json:"username"`
}
