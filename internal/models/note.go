package models

import "time"

// Note is a stored snippet. Content is only ever persisted encrypted.
type Note struct {
	ID                string
	UserID            int64
	Title             string
	Language          string
	ContentCiphertext string
	ContentIV         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NoteInput carries the plaintext fields supplied by the owner
type NoteInput struct {
	Title    string
	Language string
	Content  string
}

// DecryptedNote is a note with its content in plaintext, ready for the owner
type DecryptedNote struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Language  string    `json:"language,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
