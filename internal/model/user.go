// Package model defines the data structures shared across the application.
package model

import "time"

// User is a guest account.
//
// Email is stored lower-cased and is unique. IsSuperuser is the elevated
// privilege flag that unlocks the admin dashboard; it is never set by the
// guest, only at sign-up from the configured superuser list.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	IsSuperuser  bool      `json:"isSuperuser"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
