package domain

import "encoding/json"

// Inbound signaling message types.
const (
	MsgHostStream   = "host-stream"
	MsgJoinStream   = "join-stream"
	MsgStreamOffer  = "stream-offer"
	MsgStreamAnswer = "stream-answer"
	MsgICECandidate = "ice-candidate"
	MsgChatMessage  = "chat-message"
	MsgPing         = "ping"
	MsgLeaveStream  = "leave-stream"
	MsgEndStream    = "end-stream"
	MsgAudioLevel   = "audio_level"
)

// Outbound event types.
const (
	EvtStreamStatus   = "stream-status"
	EvtViewerJoined   = "viewer-joined"
	EvtViewerLeft     = "viewer-left"
	EvtViewerCount    = "viewer-count"
	EvtStreamOffer    = "stream-offer"
	EvtStreamAnswer   = "stream-answer"
	EvtICECandidate   = "ice-candidate"
	EvtChatMessage    = "chat-message"
	EvtStreamEnded    = "stream-ended"
	EvtStreamNotFound = "stream-not-found"
	EvtPong           = "pong"
	EvtAudioLevel     = "audio_level"
	EvtError          = "error"
)

// Event is one outbound signaling message. Payloads are already-shaped JSON
// values; the transport writes the envelope as-is.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// StreamStatusPayload is broadcast to the room when the live state changes.
type StreamStatusPayload struct {
	IsLive      bool `json:"isLive"`
	ViewerCount int  `json:"viewerCount"`
}

// ViewerPayload identifies a joining or leaving viewer to the host.
type ViewerPayload struct {
	ViewerID ConnectionID `json:"viewerId"`
	Username string       `json:"username,omitempty"`
}

// ViewerCountPayload carries the authoritative room viewer count.
type ViewerCountPayload struct {
	Count int `json:"count"`
}

// ChatPayload fans out to every connection in the room. Chat is ephemeral;
// nothing is persisted.
type ChatPayload struct {
	SenderID  ConnectionID `json:"senderId"`
	Username  string       `json:"username,omitempty"`
	Message   string       `json:"message"`
	Timestamp int64        `json:"timestamp"`
}

// RelayPayload is the opaque passthrough for SDP offers/answers and ICE
// candidates. The relay never inspects Data.
type RelayPayload struct {
	FromConn ConnectionID    `json:"from"`
	Data     json.RawMessage `json:"data"`
}

// AudioLevelPayload mirrors the broadcaster's reported input level to the room.
type AudioLevelPayload struct {
	Level float64 `json:"level"`
}

// ErrorPayload names a rejection delivered over the signaling channel. The
// channel stays open so the client can act on it.
type ErrorPayload struct {
	Reason string `json:"reason"`
}
