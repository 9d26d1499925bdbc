package entity

import "time"

// GeneratedImage is one output of a generation request, owned by the user
// who asked for it.
type GeneratedImage struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Model     string    `json:"model" db:"model"`
	Prompt    string    `json:"prompt" db:"prompt"`
	ImageURL  string    `json:"image_url" db:"image_url"`
	SeedURL   *string   `json:"seed_url" db:"seed_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
