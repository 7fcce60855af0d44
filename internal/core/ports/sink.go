package ports

import "github.com/toxikmusic/traxx-current-sub001/internal/core/domain"

// EventSink delivers events to named connections. The registry depends on
// this seam so it never touches the transport directly; the WebSocket server
// implements it.
type EventSink interface {
	Send(conn domain.ConnectionID, event domain.Event) error
	SendBinary(conn domain.ConnectionID, data []byte) error
}
