package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
