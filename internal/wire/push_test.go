package wire

import (
	"testing"
)

func TestSendMessageRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []SendMessage{
		{MessageID: 1, Sender: 7, Receiver: 7, TimestampMS: 1700000000000, Body: "hi"},
		{MessageID: 0, Sender: 0, Receiver: 0, TimestampMS: 0, Body: ""},
		{MessageID: 1<<64 - 1, Sender: 1<<32 - 1, Receiver: 42, TimestampMS: -5, Body: "unicode: héllo 日本語"},
	}

	for _, want := range cases {
		encoded := EncodeSendMessage(want)
		frame, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if frame.Kind != KindSendMessage {
			t.Fatalf("Kind = %d, want %d", frame.Kind, KindSendMessage)
		}
		if *frame.SendMessage != want {
			t.Errorf("round-trip = %+v, want %+v", *frame.SendMessage, want)
		}
	}
}

func TestSendGroupMessageRoundTrip(t *testing.T) {
	t.Parallel()

	want := SendGroupMessage{MessageID: 99, Sender: 1, GroupID: 10, TimestampMS: 1700000000123, Body: "hello"}
	frame, err := Decode(EncodeSendGroupMessage(want))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if frame.Kind != KindSendGroupMessage {
		t.Fatalf("Kind = %d, want %d", frame.Kind, KindSendGroupMessage)
	}
	if *frame.SendGroupMessage != want {
		t.Errorf("round-trip = %+v, want %+v", *frame.SendGroupMessage, want)
	}
}

func TestOnlineOfflineRoundTrip(t *testing.T) {
	t.Parallel()

	frame, err := Decode(EncodeOnlineMessage(OnlineMessage{FriendID: 5}))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if frame.Kind != KindOnlineMessage || frame.OnlineMessage.FriendID != 5 {
		t.Errorf("got %+v, want OnlineMessage{FriendID: 5}", frame)
	}

	frame, err = Decode(EncodeOfflineMessage(OfflineMessage{FriendID: 6}))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if frame.Kind != KindOfflineMessage || frame.OfflineMessage.FriendID != 6 {
		t.Errorf("got %+v, want OfflineMessage{FriendID: 6}", frame)
	}
}

func TestPongRoundTrip(t *testing.T) {
	t.Parallel()

	encoded := EncodePong([]byte("keepalive"))
	payload, ok := IsPong(encoded)
	if !ok {
		t.Fatal("IsPong() = false, want true")
	}
	if string(payload) != "keepalive" {
		t.Errorf("payload = %q, want %q", payload, "keepalive")
	}
}

func TestIsPongRejectsOtherFrames(t *testing.T) {
	t.Parallel()

	if _, ok := IsPong(EncodeOnlineMessage(OnlineMessage{FriendID: 1})); ok {
		t.Error("IsPong() = true for a non-pong frame")
	}
	if _, ok := IsPong(nil); ok {
		t.Error("IsPong() = true for an empty frame")
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte{0x7F, 0, 0, 0, 0})
	if err == nil {
		t.Fatal("Decode() expected error for unknown kind, got nil")
	}
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	t.Parallel()

	cases := [][]byte{
		{},
		{byte(KindSendMessage)},
		{byte(KindSendMessage), 0, 0, 0, 0, 0, 0, 0, 1},
		{byte(KindOnlineMessage), 0, 0},
	}

	for _, data := range cases {
		if _, err := Decode(data); err == nil {
			t.Errorf("Decode(%v) expected error, got nil", data)
		}
	}
}

func TestDecodeRejectsBodyLengthPastBuffer(t *testing.T) {
	t.Parallel()

	encoded := EncodeSendMessage(SendMessage{MessageID: 1, Sender: 1, Receiver: 2, TimestampMS: 1, Body: "ok"})
	// Corrupt the length prefix to claim more body bytes than remain.
	encoded[25] = 0xFF
	if _, err := Decode(encoded); err == nil {
		t.Fatal("Decode() expected error for oversized body length, got nil")
	}
}
