package models

import "time"

// Subscription is newsletter subscription
type Subscription struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// ContactMessage is message sent from contact form
type ContactMessage struct {
	Name    string
	Email   string
	Message string
}
