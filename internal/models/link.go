package models

import "time"

// Link associates a Discord account with a Reddit account
type Link struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"` // Discord user ID
	RedditName string    `json:"reddit_name"`
	CreatedAt  time.Time `json:"created_at"`
}
