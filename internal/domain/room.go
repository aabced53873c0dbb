package domain

import "strings"

// RoomKey names a broadcast group. Channel rooms and voice rooms share
// the same structure and differ only by key prefix and event vocabulary.
type RoomKey string

const (
	channelPrefix = "channel:"
	voicePrefix   = "voice:"
)

func ChannelRoom(channelID string) RoomKey {
	return RoomKey(channelPrefix + channelID)
}

func VoiceRoom(voiceChannelID string) RoomKey {
	return RoomKey(voicePrefix + voiceChannelID)
}

func (k RoomKey) IsVoice() bool {
	return strings.HasPrefix(string(k), voicePrefix)
}

// ChannelID strips the key prefix, whichever kind the room is.
func (k RoomKey) ChannelID() string {
	s := string(k)
	if i := strings.Index(s, ":"); i >= 0 {
		return s[i+1:]
	}
	return s
}
