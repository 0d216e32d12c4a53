package node

import "github.com/mosaicnetworks/meshchat/src/chat"

// Display is the output sink for chat messages.
type Display interface {
	// ShowMessage is called for every message received from a peer.
	ShowMessage(sender string, text string)
	// ShowHistory is called with the whole log after a Sync replaced it.
	ShowHistory(messages []chat.Message)
}

// NopDisplay discards everything.
type NopDisplay struct{}

// ShowMessage implements Display.
func (NopDisplay) ShowMessage(string, string) {}

// ShowHistory implements Display.
func (NopDisplay) ShowHistory([]chat.Message) {}
