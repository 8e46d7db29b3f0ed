// Package chat defines the identifier for a notification target: either a
// private/group chat addressed by its numeric Telegram ID, or a broadcast
// channel addressed by username.
package chat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the two identifier variants.
type Kind uint8

const (
	// KindChat is a numeric chat handle (private chat or group).
	KindChat Kind = 1
	// KindChannel is a textual channel username (stored without "@").
	KindChannel Kind = 2
)

// ID addresses a subscriber. A numeric handle and a channel username are
// never equal, even when Telegram would resolve them to the same chat.
// The zero value is invalid.
type ID struct {
	kind    Kind
	chatID  int64
	channel string
}

func Chat(id int64) ID { return ID{kind: KindChat, chatID: id} }

func Channel(username string) ID {
	return ID{kind: KindChannel, channel: strings.TrimPrefix(username, "@")}
}

func (id ID) Kind() Kind { return id.kind }

// ChatID returns the numeric handle; valid only for KindChat.
func (id ID) ChatID() int64 { return id.chatID }

// Username returns the channel username without "@"; valid only for KindChannel.
func (id ID) Username() string { return id.channel }

func (id ID) IsZero() bool { return id.kind == 0 }

func (id ID) String() string {
	switch id.kind {
	case KindChat:
		return strconv.FormatInt(id.chatID, 10)
	case KindChannel:
		return "@" + id.channel
	default:
		return "<invalid>"
	}
}

// Parse interprets a user-supplied target: "@name" is a channel, a valid
// integer is a numeric chat, anything else is rejected.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ID{}, errors.New("empty chat identifier")
	}
	if strings.HasPrefix(s, "@") {
		name := strings.TrimPrefix(s, "@")
		if name == "" {
			return ID{}, errors.New("empty channel username")
		}
		return Channel(name), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("chat identifier must be @channel or an integer: %q", s)
	}
	return Chat(n), nil
}

// Storage key layout: one tag byte followed by the payload. Numeric chats
// use a fixed 8-byte big-endian encoding, channels the raw username bytes.
// Encode/Decode form a bijection over valid IDs.
const (
	tagChat    byte = 0x01
	tagChannel byte = 0x02
)

// Encode serializes id to its storage key.
func (id ID) Encode() []byte {
	switch id.kind {
	case KindChat:
		key := make([]byte, 9)
		key[0] = tagChat
		binary.BigEndian.PutUint64(key[1:], uint64(id.chatID))
		return key
	case KindChannel:
		key := make([]byte, 1+len(id.channel))
		key[0] = tagChannel
		copy(key[1:], id.channel)
		return key
	default:
		return nil
	}
}

// Decode reverses Encode. Malformed keys are rejected rather than guessed at.
func Decode(key []byte) (ID, error) {
	if len(key) < 1 {
		return ID{}, errors.New("empty subscriber key")
	}
	switch key[0] {
	case tagChat:
		if len(key) != 9 {
			return ID{}, fmt.Errorf("numeric subscriber key must be 9 bytes, got %d", len(key))
		}
		return Chat(int64(binary.BigEndian.Uint64(key[1:]))), nil
	case tagChannel:
		if len(key) < 2 {
			return ID{}, errors.New("channel subscriber key has no username")
		}
		return Channel(string(key[1:])), nil
	default:
		return ID{}, fmt.Errorf("unknown subscriber key tag 0x%02x", key[0])
	}
}
