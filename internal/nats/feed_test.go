package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangeSubject(t *testing.T) {
	assert.Equal(t, "chat.c1.message.m1", ChangeSubject("c1", "message", "m1"))

	// Records without a chat scope land under the placeholder token so the
	// subject stays well-formed.
	assert.Equal(t, "chat._.file.f1.png", ChangeSubject("", "file", "f1.png"))
}

func TestChatFilterCoversRecordSubjects(t *testing.T) {
	assert.Equal(t, "chat.c1.>", ChatFilter("c1"))
}
