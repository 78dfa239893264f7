package wire

import "encoding/json"

// Presence pushes are the only push frames still encoded as JSON text (§4.8, §6.3); all chat message pushes use the
// binary codec in push.go.

// OnlinePush is the JSON push frame announcing that a friend came online.
type OnlinePush struct {
	Type     string `json:"type"`
	FriendID uint32 `json:"friend_id"`
}

// OfflinePush is the JSON push frame announcing that a friend went offline.
type OfflinePush struct {
	Type     string `json:"type"`
	FriendID uint32 `json:"friend_id"`
}

// EncodeOnlinePush serialises an OnlineMessage presence push as JSON text.
func EncodeOnlinePush(friendID uint32) ([]byte, error) {
	return json.Marshal(OnlinePush{Type: "OnlineMessage", FriendID: friendID})
}

// EncodeOfflinePush serialises an OfflineMessage presence push as JSON text.
func EncodeOfflinePush(friendID uint32) ([]byte, error) {
	return json.Marshal(OfflinePush{Type: "OfflineMessage", FriendID: friendID})
}
