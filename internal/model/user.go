package model

import "time"

type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	TotalCleanings int       `json:"total_cleanings"`
	CreatedAt      time.Time `json:"created_at"`
}
