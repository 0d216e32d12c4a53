package chat

import "time"

// Message is an entry of the chat log. Messages are never mutated once
// created.
type Message struct {
	Sender    Member `json:"sender"`
	Text      string `json:"text"`
	Timestamp uint64 `json:"timestamp"`
}

// NewMessage stamps text with the current unix time.
func NewMessage(sender Member, text string) Message {
	return Message{
		Sender:    sender,
		Text:      text,
		Timestamp: uint64(time.Now().Unix()),
	}
}
