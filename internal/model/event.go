package model

import "time"

// ChangeType classifies a record change event on the feed.
type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeMerged   ChangeType = "merged"
	ChangeFinished ChangeType = "finished"
	ChangeDeleted  ChangeType = "deleted"
)

// ChangeEvent is published on the reactive feed for every record mutation.
// Patch carries only the merged fields, not the whole record.
type ChangeEvent struct {
	Kind      string         `json:"kind"`
	ID        string         `json:"id"`
	ChatID    string         `json:"chatId,omitempty"`
	Type      ChangeType     `json:"type"`
	Patch     map[string]any `json:"patch,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// HeartbeatEvent keeps SSE connections alive.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
