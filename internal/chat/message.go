// Package chat holds the conversation model and runs one answer stream per
// question.
package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned when a message that already stopped streaming is
// updated or closed again.
var ErrClosed = errors.New("message is not streaming")

const (
	errorPrefix  = "\n\n❌ Ошибка: "
	unknownError = "Неизвестная ошибка"
)

type Message struct {
	ID             uuid.UUID `json:"id"`
	Text           string    `json:"text"`
	IsUserAuthored bool      `json:"is_user_authored"`
	IsStreaming    bool      `json:"is_streaming"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewUserMessage(text string) *Message {
	return &Message{ID: uuid.New(), Text: text, IsUserAuthored: true, Timestamp: time.Now()}
}

// NewBotMessage returns an empty answer that is still streaming.
func NewBotMessage() *Message {
	return &Message{ID: uuid.New(), IsStreaming: true, Timestamp: time.Now()}
}

// Update replaces the text with the latest stream snapshot.
func (m *Message) Update(snapshot string) error {
	if !m.IsStreaming {
		return ErrClosed
	}
	m.Text = snapshot
	return nil
}

// Complete ends streaming with the cleaned answer.
func (m *Message) Complete(cleaned string) error {
	if !m.IsStreaming {
		return ErrClosed
	}
	m.Text = cleaned
	m.IsStreaming = false
	return nil
}

// Fail ends streaming, keeping whatever text arrived and appending the
// error.
func (m *Message) Fail(partial string, err error) error {
	if !m.IsStreaming {
		return ErrClosed
	}
	msg := unknownError
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	m.Text = partial + errorPrefix + msg
	m.IsStreaming = false
	return nil
}

// Typing reports whether the message should show a typing indicator
// instead of text.
func (m *Message) Typing() bool {
	return m.IsStreaming && m.Text == ""
}
