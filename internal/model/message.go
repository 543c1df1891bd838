// Package model defines data structures for the generation backend.
package model

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ValidRole reports whether r is part of the closed role set.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

// Fragments is a sparse mapping from sequence number to a streamed text
// fragment. The store's merge-update can only add or replace keys, never
// append to a string, so streamed output is persisted as independently
// keyed fragments and reassembled in sequence order at read time.
type Fragments map[string]string

// Assemble concatenates the fragments in ascending sequence-number order.
// Gaps are tolerated: a dropped fragment write leaves a hole, not an error.
func (f Fragments) Assemble() string {
	if len(f) == 0 {
		return ""
	}

	seqs := make([]int, 0, len(f))
	for k := range f {
		if n, err := strconv.Atoi(k); err == nil {
			seqs = append(seqs, n)
		}
	}
	sort.Ints(seqs)

	var b strings.Builder
	for _, n := range seqs {
		b.WriteString(f[strconv.Itoa(n)])
	}
	return b.String()
}

// Message is the mutable message record persisted in the store.
type Message struct {
	// Identity
	ID     string `json:"id"`
	ChatID string `json:"chatId"`
	Role   Role   `json:"role"`

	// Streamed output. User messages carry a single fragment at key "0".
	Content   Fragments `json:"content,omitempty"`
	Reasoning Fragments `json:"reasoning,omitempty"`

	// Generation metadata (nullable until the terminal write)
	Model      string   `json:"model,omitempty"`
	ResponseID string   `json:"responseId,omitempty"`
	TimeMs     *int64   `json:"time,omitempty"`
	Tokens     *int     `json:"tokens,omitempty"`
	FileIDs    []string `json:"files,omitempty"`

	// Lifecycle timestamps. Finished is set exactly once; Aborted implies
	// Finished and shares its timestamp on the cancellation path.
	CreatedAt time.Time  `json:"createdAt"`
	Finished  *time.Time `json:"finished,omitempty"`
	Aborted   *time.Time `json:"aborted,omitempty"`
}

// Terminal reports whether the message has reached its terminal state.
func (m *Message) Terminal() bool {
	return m.Finished != nil
}
