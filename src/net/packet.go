package net

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mosaicnetworks/meshchat/src/chat"
)

// Variant names, as they appear on the wire.
const (
	userMessageTag     = "UserMessage"
	initSyncRequestTag = "InitSyncRequest"
	syncTag            = "Sync"
	identityTag        = "Identity"
)

var (
	// ErrEmptyPacket is returned when decoding a blank line.
	ErrEmptyPacket = errors.New("empty packet")

	// ErrUnknownPacket is returned when the variant tag is not one of the four
	// packets of the protocol.
	ErrUnknownPacket = errors.New("unknown packet")
)

// Packet is one of UserMessage, InitSyncRequest, Sync or Identity. The set is
// closed: only this package can add variants.
type Packet interface {
	packetTag() string
}

// UserMessage carries a chat message authored by the sender.
type UserMessage struct {
	Message chat.Message
}

// InitSyncRequest asks the remote node for a Sync.
type InitSyncRequest struct{}

// Sync carries a full snapshot of the sender's Chat.
type Sync struct {
	Chat chat.Chat
}

// Identity introduces the sender. When RequestBack is set, the receiver
// answers with its own Identity (with RequestBack unset).
type Identity struct {
	Member      chat.Member
	RequestBack bool
}

func (UserMessage) packetTag() string     { return userMessageTag }
func (InitSyncRequest) packetTag() string { return initSyncRequestTag }
func (Sync) packetTag() string            { return syncTag }
func (Identity) packetTag() string        { return identityTag }

// PacketName returns the wire name of p's variant.
func PacketName(p Packet) string {
	if p == nil {
		return "<nil>"
	}
	return p.packetTag()
}

// Encode returns the JSON encoding of p, without the trailing delimiter.
func Encode(p Packet) ([]byte, error) {
	switch p := p.(type) {
	case UserMessage:
		return json.Marshal(map[string]chat.Message{userMessageTag: p.Message})
	case InitSyncRequest:
		return json.Marshal(initSyncRequestTag)
	case Sync:
		return json.Marshal(map[string]chat.Chat{syncTag: p.Chat})
	case Identity:
		return json.Marshal(map[string][]interface{}{
			identityTag: {p.Member, p.RequestBack},
		})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownPacket, p)
	}
}

// Decode parses one encoded packet. Surrounding whitespace, including the
// newline delimiter, is ignored.
func Decode(data []byte) (Packet, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyPacket
	}

	// unit variant: a bare string
	if data[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return nil, err
		}
		if tag == initSyncRequestTag {
			return InitSyncRequest{}, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownPacket, tag)
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, err
	}
	if len(tagged) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one variant, got %d", ErrUnknownPacket, len(tagged))
	}

	for tag, body := range tagged {
		switch tag {
		case userMessageTag:
			var m chat.Message
			if err := json.Unmarshal(body, &m); err != nil {
				return nil, err
			}
			return UserMessage{Message: m}, nil
		case syncTag:
			var c chat.Chat
			if err := json.Unmarshal(body, &c); err != nil {
				return nil, err
			}
			return Sync{Chat: c}, nil
		case identityTag:
			return decodeIdentity(body)
		case initSyncRequestTag:
			return InitSyncRequest{}, nil
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownPacket, tag)
		}
	}

	// unreachable
	return nil, ErrUnknownPacket
}

func decodeIdentity(body json.RawMessage) (Packet, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if len(fields) != 2 {
		return nil, fmt.Errorf("identity: expected 2 fields, got %d", len(fields))
	}

	var id Identity
	if err := json.Unmarshal(fields[0], &id.Member); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields[1], &id.RequestBack); err != nil {
		return nil, err
	}
	return id, nil
}

// WritePacket encodes p, appends the newline delimiter and flushes w.
func WritePacket(w *bufio.Writer, p Packet) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	return writeFrame(w, data)
}
