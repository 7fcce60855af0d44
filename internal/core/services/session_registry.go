package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
	"github.com/toxikmusic/traxx-current-sub001/internal/core/ports"
	"github.com/toxikmusic/traxx-current-sub001/pkg/cache"
	"github.com/toxikmusic/traxx-current-sub001/pkg/validation"
)

// resolveCacheTTL bounds how long a public-id mapping is reused before the
// repository is consulted again.
const resolveCacheTTL = 5 * time.Minute

// sessionRegistry is the single authoritative owner of live rooms. One mutex
// guards the rooms map so every inbound event is atomic, matching the
// one-event-at-a-time discipline the protocol assumes.
type sessionRegistry struct {
	mu    sync.Mutex
	rooms map[domain.StreamID]*domain.Session
	conns map[domain.ConnectionID]domain.StreamID

	keys      ports.KeyService
	streams   ports.StreamRepository
	sink      ports.EventSink
	keyExpiry time.Duration

	resolve *cache.Cache[domain.StreamID]

	logger  *zap.SugaredLogger
	metrics ports.Metrics
}

func NewSessionRegistry(keys ports.KeyService, streams ports.StreamRepository, sink ports.EventSink, keyExpiry time.Duration, logger *zap.SugaredLogger, metrics ports.Metrics) ports.SessionRegistry {
	if keyExpiry <= 0 {
		keyExpiry = DefaultKeyExpiry
	}
	return &sessionRegistry{
		rooms:     make(map[domain.StreamID]*domain.Session),
		conns:     make(map[domain.ConnectionID]domain.StreamID),
		keys:      keys,
		streams:   streams,
		sink:      sink,
		keyExpiry: keyExpiry,
		resolve:   cache.New[domain.StreamID](resolveCacheTTL),
		logger:    logger,
		metrics:   metrics,
	}
}

// send ignores delivery failures to individual connections; a dead socket is
// cleaned up by its own disconnect path.
func (r *sessionRegistry) send(conn domain.ConnectionID, event domain.Event) {
	if err := r.sink.Send(conn, event); err != nil {
		r.logger.Debugw("event delivery failed", "conn_id", conn, "type", event.Type, "error", err)
	}
}

func (r *sessionRegistry) broadcast(room *domain.Session, event domain.Event) {
	for _, conn := range room.ConnectionIDs() {
		r.send(conn, event)
	}
}

func (r *sessionRegistry) RegisterHost(ctx context.Context, conn domain.ConnectionID, streamID domain.StreamID, p domain.Participant, streamKey string) error {
	// Format check runs before any crypto or repository work.
	if !r.keys.HasValidFormat(streamKey) {
		return domain.ErrInvalidKey
	}

	stream, err := r.streams.GetByID(ctx, streamID)
	if err != nil {
		return domain.ErrStreamNotFound
	}

	// Admission: either the exact key stored for this stream, or a key that
	// verifies for the claiming user.
	storedMatch := stream.StreamKey != "" && stream.StreamKey == streamKey && stream.UserID == p.UserID
	if !storedMatch && !r.keys.ValidateKey(streamKey, p.UserID, r.keyExpiry) {
		return domain.ErrInvalidKey
	}

	r.mu.Lock()
	room, ok := r.rooms[streamID]
	if !ok {
		room = &domain.Session{
			StreamID:  streamID,
			Viewers:   make(map[domain.ConnectionID]*domain.Participant),
			StartedAt: time.Now(),
		}
		r.rooms[streamID] = room
		r.metrics.RoomOpened()
	}
	// Last writer wins: a second host registration replaces the first. The
	// orphaned connection stays mapped to the room, so its eventual
	// disconnect still tears the room down; callers are expected to know
	// this hazard.
	if room.HostConn != "" && room.HostConn != conn {
		r.logger.Warnw("replacing existing host connection",
			"stream_id", streamID,
			"old_conn", room.HostConn,
			"new_conn", conn,
		)
	}
	room.HostConn = conn
	room.OwnerID = p.UserID
	room.StreamKey = streamKey
	room.State = domain.SessionHosted
	r.conns[conn] = streamID
	count := room.ViewerCount()
	r.mu.Unlock()

	stream.IsLive = true
	if err := r.streams.Update(ctx, stream); err != nil {
		r.logger.Warnw("failed to mark stream live", "stream_id", streamID, "error", err)
	}

	r.mu.Lock()
	if room, ok := r.rooms[streamID]; ok {
		r.broadcast(room, domain.Event{
			Type:    domain.EvtStreamStatus,
			Payload: domain.StreamStatusPayload{IsLive: true, ViewerCount: count},
		})
	}
	r.mu.Unlock()

	r.logger.Infow("host registered", "stream_id", streamID, "conn_id", conn, "user_id", p.UserID)
	return nil
}

// resolveRef maps a stream reference to the canonical internal id. Public ids
// go through the repository scan, memoized briefly.
func (r *sessionRegistry) resolveRef(ctx context.Context, ref domain.StreamRef) (domain.StreamID, error) {
	if !ref.IsPublic() {
		return ref.Internal(), nil
	}

	key := string(ref.Public())
	if id, ok := r.resolve.Get(key); ok {
		return id, nil
	}

	stream, err := r.streams.GetByPublicID(ctx, ref.Public())
	if err != nil {
		return 0, domain.ErrStreamNotFound
	}
	r.resolve.Set(key, stream.ID)
	return stream.ID, nil
}

func (r *sessionRegistry) JoinViewer(ctx context.Context, conn domain.ConnectionID, ref domain.StreamRef, p domain.Participant) (domain.StreamID, error) {
	streamID, err := r.resolveRef(ctx, ref)
	if err != nil {
		// No room mutation on an unresolved reference.
		return 0, err
	}

	r.mu.Lock()
	room, ok := r.rooms[streamID]
	if !ok {
		// Viewer-before-host race is allowed: the room exists unhosted until
		// the host registers.
		room = &domain.Session{
			StreamID:  streamID,
			Viewers:   make(map[domain.ConnectionID]*domain.Participant),
			StartedAt: time.Now(),
		}
		r.rooms[streamID] = room
		r.metrics.RoomOpened()
	}
	participant := p
	participant.ConnID = conn
	participant.JoinedAt = time.Now()
	room.Viewers[conn] = &participant
	r.conns[conn] = streamID

	host := room.HostConn
	count := room.ViewerCount()

	if host != "" {
		r.send(host, domain.Event{
			Type:    domain.EvtViewerJoined,
			Payload: domain.ViewerPayload{ViewerID: conn, Username: p.Username},
		})
	}
	r.broadcast(room, domain.Event{
		Type:    domain.EvtViewerCount,
		Payload: domain.ViewerCountPayload{Count: count},
	})
	r.mu.Unlock()

	r.metrics.ViewerCount(streamID, count)
	r.logger.Infow("viewer joined", "stream_id", streamID, "conn_id", conn, "viewers", count)
	return streamID, nil
}

// Relay is a dumb pipe between two named connections; the payload is never
// inspected.
func (r *sessionRegistry) Relay(kind string, from, target domain.ConnectionID, data json.RawMessage) error {
	return r.sink.Send(target, domain.Event{
		Type:    kind,
		Payload: domain.RelayPayload{FromConn: from, Data: data},
	})
}

func (r *sessionRegistry) Chat(streamID domain.StreamID, from domain.ConnectionID, username, message string) error {
	if err := validation.ValidateChatMessage(message); err != nil {
		return err
	}

	payload := domain.ChatPayload{
		SenderID:  from,
		Username:  username,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}

	r.mu.Lock()
	room, ok := r.rooms[streamID]
	if !ok {
		r.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	recipients := len(room.ConnectionIDs())
	r.broadcast(room, domain.Event{Type: domain.EvtChatMessage, Payload: payload})
	r.mu.Unlock()

	r.metrics.ChatFanout(recipients)
	return nil
}

func (r *sessionRegistry) AudioLevel(streamID domain.StreamID, from domain.ConnectionID, level float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[streamID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	for _, conn := range room.ConnectionIDs() {
		if conn == from {
			continue
		}
		r.send(conn, domain.Event{
			Type:    domain.EvtAudioLevel,
			Payload: domain.AudioLevelPayload{Level: level},
		})
	}
	return nil
}

// AudioData fans raw media bytes from the host out to every viewer. Bytes are
// opaque; no inspection, no buffering.
func (r *sessionRegistry) AudioData(streamID domain.StreamID, from domain.ConnectionID, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[streamID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if room.HostConn != from {
		return domain.ErrNotOwner
	}
	for conn := range room.Viewers {
		if err := r.sink.SendBinary(conn, data); err != nil {
			r.logger.Debugw("binary delivery failed", "conn_id", conn, "error", err)
		}
	}
	return nil
}

// Leave is the voluntary form of Disconnect; same transitions.
func (r *sessionRegistry) Leave(conn domain.ConnectionID) {
	r.Disconnect(conn)
}

// Disconnect handles a dropped connection. Host disconnect is the normal
// terminal transition of a session, never an error: every viewer gets a
// terminal stream-ended event and the room is deleted. Viewer disconnect
// shrinks the set and refreshes the count.
func (r *sessionRegistry) Disconnect(conn domain.ConnectionID) {
	r.mu.Lock()
	streamID, ok := r.conns[conn]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, conn)

	room, ok := r.rooms[streamID]
	if !ok {
		r.mu.Unlock()
		return
	}

	// A connection mapped to the room that is not a viewer is a host: the
	// live one, or one superseded by a later registration. Either way its
	// disconnect ends the session.
	if _, isViewer := room.Viewers[conn]; !isViewer {
		r.teardownLocked(room)
		r.mu.Unlock()
		r.markNotLive(streamID)
		r.logger.Infow("host disconnected, session ended", "stream_id", streamID)
		return
	}

	delete(room.Viewers, conn)
	count := room.ViewerCount()
	if room.HostConn != "" {
		r.send(room.HostConn, domain.Event{
			Type:    domain.EvtViewerLeft,
			Payload: domain.ViewerPayload{ViewerID: conn},
		})
	}
	r.broadcast(room, domain.Event{
		Type:    domain.EvtViewerCount,
		Payload: domain.ViewerCountPayload{Count: count},
	})
	r.mu.Unlock()

	r.metrics.ViewerCount(streamID, count)
	r.logger.Infow("viewer left", "stream_id", streamID, "conn_id", conn, "viewers", count)
}

func (r *sessionRegistry) EndStream(streamID domain.StreamID, conn domain.ConnectionID) error {
	r.mu.Lock()
	room, ok := r.rooms[streamID]
	if !ok {
		r.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	if room.HostConn != conn {
		r.mu.Unlock()
		return domain.ErrNotOwner
	}
	r.teardownLocked(room)
	r.mu.Unlock()

	r.markNotLive(streamID)
	r.logger.Infow("stream ended by host", "stream_id", streamID)
	return nil
}

// teardownLocked notifies every viewer and removes the room. Caller holds the
// registry mutex.
func (r *sessionRegistry) teardownLocked(room *domain.Session) {
	room.State = domain.SessionEnded
	for conn := range room.Viewers {
		r.send(conn, domain.Event{Type: domain.EvtStreamEnded})
		delete(r.conns, conn)
	}
	delete(r.conns, room.HostConn)
	delete(r.rooms, room.StreamID)
	r.metrics.RoomClosed()
}

func (r *sessionRegistry) markNotLive(streamID domain.StreamID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := r.streams.GetByID(ctx, streamID)
	if err != nil {
		return
	}
	stream.IsLive = false
	if err := r.streams.Update(ctx, stream); err != nil {
		r.logger.Warnw("failed to mark stream not live", "stream_id", streamID, "error", err)
	}
}

func (r *sessionRegistry) ViewerCount(streamID domain.StreamID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[streamID]
	if !ok {
		return 0
	}
	return room.ViewerCount()
}
