// Package wire implements the big-endian binary codec for server-pushed chat messages and the JSON frame shapes
// exchanged with clients over the duplex socket.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Kind discriminates the binary push frame types. Every encoded frame begins with one Kind byte.
type Kind byte

const (
	KindSendMessage      Kind = 0
	KindSendGroupMessage Kind = 1
	KindOnlineMessage    Kind = 2
	KindOfflineMessage   Kind = 3
	KindPong             Kind = 4
)

// Sentinel errors for the push codec.
var (
	ErrUnknownKind  = errors.New("wire: unknown push frame kind")
	ErrTruncated    = errors.New("wire: truncated push frame")
	ErrBodyTooLarge = errors.New("wire: body length exceeds remaining buffer")
)

// SendMessage is a private chat push: kind 0.
type SendMessage struct {
	MessageID   uint64
	Sender      uint32
	Receiver    uint32
	TimestampMS int64
	Body        string
}

// SendGroupMessage is a group chat push: kind 1.
type SendGroupMessage struct {
	MessageID   uint64
	Sender      uint32
	GroupID     uint32
	TimestampMS int64
	Body        string
}

// OnlineMessage announces that a friend came online: kind 2.
type OnlineMessage struct {
	FriendID uint32
}

// OfflineMessage announces that a friend went offline: kind 3.
type OfflineMessage struct {
	FriendID uint32
}

// EncodeSendMessage serialises a SendMessage push frame.
func EncodeSendMessage(m SendMessage) []byte {
	body := []byte(m.Body)
	buf := make([]byte, 0, 1+8+4+4+8+4+len(body))
	buf = append(buf, byte(KindSendMessage))
	buf = binary.BigEndian.AppendUint64(buf, m.MessageID)
	buf = binary.BigEndian.AppendUint32(buf, m.Sender)
	buf = binary.BigEndian.AppendUint32(buf, m.Receiver)
	buf = binary.BigEndian.AppendUint64(buf, uint64(m.TimestampMS))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(body)))
	buf = append(buf, body...)
	return buf
}

// EncodeSendGroupMessage serialises a SendGroupMessage push frame.
func EncodeSendGroupMessage(m SendGroupMessage) []byte {
	body := []byte(m.Body)
	buf := make([]byte, 0, 1+8+4+4+8+4+len(body))
	buf = append(buf, byte(KindSendGroupMessage))
	buf = binary.BigEndian.AppendUint64(buf, m.MessageID)
	buf = binary.BigEndian.AppendUint32(buf, m.Sender)
	buf = binary.BigEndian.AppendUint32(buf, m.GroupID)
	buf = binary.BigEndian.AppendUint64(buf, uint64(m.TimestampMS))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(body)))
	buf = append(buf, body...)
	return buf
}

// EncodeOnlineMessage serialises an OnlineMessage push frame.
func EncodeOnlineMessage(m OnlineMessage) []byte {
	buf := make([]byte, 0, 5)
	buf = append(buf, byte(KindOnlineMessage))
	buf = binary.BigEndian.AppendUint32(buf, m.FriendID)
	return buf
}

// EncodeOfflineMessage serialises an OfflineMessage push frame.
func EncodeOfflineMessage(m OfflineMessage) []byte {
	buf := make([]byte, 0, 5)
	buf = append(buf, byte(KindOfflineMessage))
	buf = binary.BigEndian.AppendUint32(buf, m.FriendID)
	return buf
}

// EncodePong wraps a pong control frame's application data so it can be queued through the same mailbox as ordinary
// pushes, rather than written to the socket directly from the reader goroutine. payload is the ping frame's
// application data, echoed back verbatim.
func EncodePong(payload []byte) []byte {
	buf := make([]byte, 0, 1+len(payload))
	buf = append(buf, byte(KindPong))
	buf = append(buf, payload...)
	return buf
}

// IsPong reports whether an encoded frame is a pong queued by EncodePong, and returns its application data.
func IsPong(frame []byte) ([]byte, bool) {
	if len(frame) < 1 || Kind(frame[0]) != KindPong {
		return nil, false
	}
	return frame[1:], true
}

// Frame is the decoded form of any push frame; exactly one of the typed fields is non-nil, matching the frame's Kind.
type Frame struct {
	Kind             Kind
	SendMessage      *SendMessage
	SendGroupMessage *SendGroupMessage
	OnlineMessage    *OnlineMessage
	OfflineMessage   *OfflineMessage
}

// Decode parses a binary push frame. It rejects unknown kinds and truncated inputs; the codec is total on well-formed
// inputs, i.e. Decode(Encode(f)) reproduces f exactly.
func Decode(data []byte) (*Frame, error) {
	if len(data) < 1 {
		return nil, ErrTruncated
	}
	kind := Kind(data[0])
	rest := data[1:]

	switch kind {
	case KindSendMessage:
		m, err := decodeChatBody(rest, func(messageID uint64, sender, recv uint32, ts int64, body string) SendMessage {
			return SendMessage{MessageID: messageID, Sender: sender, Receiver: recv, TimestampMS: ts, Body: body}
		})
		if err != nil {
			return nil, err
		}
		return &Frame{Kind: kind, SendMessage: &m}, nil
	case KindSendGroupMessage:
		m, err := decodeChatBody(rest, func(messageID uint64, sender, group uint32, ts int64, body string) SendGroupMessage {
			return SendGroupMessage{MessageID: messageID, Sender: sender, GroupID: group, TimestampMS: ts, Body: body}
		})
		if err != nil {
			return nil, err
		}
		return &Frame{Kind: kind, SendGroupMessage: &m}, nil
	case KindOnlineMessage:
		if len(rest) < 4 {
			return nil, ErrTruncated
		}
		return &Frame{Kind: kind, OnlineMessage: &OnlineMessage{FriendID: binary.BigEndian.Uint32(rest[:4])}}, nil
	case KindOfflineMessage:
		if len(rest) < 4 {
			return nil, ErrTruncated
		}
		return &Frame{Kind: kind, OfflineMessage: &OfflineMessage{FriendID: binary.BigEndian.Uint32(rest[:4])}}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
}

// decodeChatBody decodes the shared (message_id, sender, second-field, timestamp, len, body) layout used by both
// SendMessage and SendGroupMessage, differing only in the meaning of the second u32 field.
func decodeChatBody[T any](rest []byte, build func(messageID uint64, sender, second uint32, ts int64, body string) T) (T, error) {
	var zero T
	const fixedLen = 8 + 4 + 4 + 8 + 4
	if len(rest) < fixedLen {
		return zero, ErrTruncated
	}
	messageID := binary.BigEndian.Uint64(rest[0:8])
	sender := binary.BigEndian.Uint32(rest[8:12])
	second := binary.BigEndian.Uint32(rest[12:16])
	ts := int64(binary.BigEndian.Uint64(rest[16:24]))
	bodyLen := binary.BigEndian.Uint32(rest[24:28])
	remaining := rest[28:]
	if uint64(bodyLen) > uint64(len(remaining)) {
		return zero, ErrBodyTooLarge
	}
	body := string(remaining[:bodyLen])
	return build(messageID, sender, second, ts, body), nil
}
