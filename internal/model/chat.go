package model

import "time"

// Chat represents a conversation record.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FileRecord represents an uploaded or generated binary asset.
type FileRecord struct {
	ID        string    `json:"id"`
	MessageID string    `json:"messageId,omitempty"`
	Key       string    `json:"key"`
	MIMEType  string    `json:"mimeType"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// APIKey is a stored per-user provider key. The plaintext key is held
// encrypted; Hash carries a SHA-256 digest of the plaintext used to verify
// integrity after decryption.
type APIKey struct {
	UserID     string    `json:"userId"`
	Provider   string    `json:"provider"`
	Ciphertext string    `json:"ciphertext"` // base64, nonce-prefixed
	Hash       string    `json:"hash"`       // hex SHA-256 of the plaintext
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
}
