// Package message implements persisted private and group chat messages.
package message

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// sanitizer strips HTML/script content from message bodies. Chat bodies are plain text per the external contract, so
// pasted rich content is stripped rather than the message being rejected outright.
var sanitizer = bluemonday.StrictPolicy()

// Type distinguishes the media kind carried in a message body. Only Text is currently produced by the client
// contract; the others are accepted for forward- and admin-authored messages and persisted verbatim.
type Type int

const (
	TypeText Type = iota
	TypeImage
	TypeFile
	TypeVideo
	TypeAudio
)

// MaxBodyRunes bounds message body length.
const MaxBodyRunes = 4000

// PageSize is the fixed page size for offset-based message pagination.
const PageSize = 30

// Sentinel errors for the message package.
var (
	ErrNotFound     = errors.New("message: not found")
	ErrEmptyBody    = errors.New("message: body must not be empty")
	ErrBodyTooLong  = errors.New("message: body exceeds the maximum length")
	ErrSenderOffline = errors.New("message: sender has no active session")
)

// PrivateMessage is a one-to-one message between two users.
type PrivateMessage struct {
	ID          uint64
	SenderID    uint32
	ReceiverID  uint32
	Type        Type
	Body        string
	TimestampMS int64
}

// GroupMessage is a message broadcast to every member of a group.
type GroupMessage struct {
	ID          uint64
	SenderID    uint32
	GroupID     uint32
	Type        Type
	Body        string
	TimestampMS int64
}

// ValidateBody sanitizes content, trims it, and checks it is non-empty and within MaxBodyRunes.
func ValidateBody(body string) (string, error) {
	trimmed := strings.TrimSpace(sanitizer.Sanitize(body))
	if trimmed == "" {
		return "", ErrEmptyBody
	}
	if utf8.RuneCountInString(trimmed) > MaxBodyRunes {
		return "", ErrBodyTooLong
	}
	return trimmed, nil
}

// ClampOffset rejects negative page offsets, returning 0.
func ClampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
