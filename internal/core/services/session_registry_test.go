package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
	"github.com/toxikmusic/traxx-current-sub001/internal/core/ports"
	"github.com/toxikmusic/traxx-current-sub001/internal/infrastructure/repositories/memory"
)

type sinkEvent struct {
	conn  domain.ConnectionID
	event domain.Event
}

// fakeSink records every delivery so tests can assert on the outbound stream.
type fakeSink struct {
	mu     sync.Mutex
	events []sinkEvent
	binary map[domain.ConnectionID][][]byte
}

func newFakeSink() *fakeSink {
	return &fakeSink{binary: make(map[domain.ConnectionID][][]byte)}
}

func (s *fakeSink) Send(conn domain.ConnectionID, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{conn: conn, event: event})
	return nil
}

func (s *fakeSink) SendBinary(conn domain.ConnectionID, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.binary[conn] = append(s.binary[conn], data)
	return nil
}

func (s *fakeSink) count(conn domain.ConnectionID, eventType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.conn == conn && e.event.Type == eventType {
			n++
		}
	}
	return n
}

func (s *fakeSink) last(conn domain.ConnectionID, eventType string) (domain.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].conn == conn && s.events[i].event.Type == eventType {
			return s.events[i].event, true
		}
	}
	return domain.Event{}, false
}

type registryFixture struct {
	registry ports.SessionRegistry
	sink     *fakeSink
	keys     ports.KeyService
	repo     ports.StreamRepository
	stream   *domain.Stream
	key      string
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()

	keys := NewKeyService(testSecret, testPublicSecret)
	repo := memory.NewMemoryStreamRepository()
	sink := newFakeSink()

	key := keys.IssueKey("owner1")
	stream := &domain.Stream{
		UserID:    "owner1",
		Title:     "test stream",
		StreamKey: key,
		PublicID:  keys.DerivePublicID(key),
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), stream))

	registry := NewSessionRegistry(keys, repo, sink, DefaultKeyExpiry, zap.NewNop().Sugar(), ports.NopMetrics{})
	return &registryFixture{
		registry: registry,
		sink:     sink,
		keys:     keys,
		repo:     repo,
		stream:   stream,
		key:      key,
	}
}

func (f *registryFixture) host(t *testing.T, conn domain.ConnectionID) {
	t.Helper()
	err := f.registry.RegisterHost(context.Background(), conn, f.stream.ID, domain.Participant{
		ConnID:   conn,
		UserID:   "owner1",
		Username: "owner",
		Role:     domain.RoleHost,
	}, f.key)
	require.NoError(t, err)
}

func (f *registryFixture) join(t *testing.T, conn domain.ConnectionID, ref domain.StreamRef) {
	t.Helper()
	_, err := f.registry.JoinViewer(context.Background(), conn, ref, domain.Participant{
		UserID:   domain.UserID("viewer-" + string(conn)),
		Username: string(conn),
		Role:     domain.RoleViewer,
	})
	require.NoError(t, err)
}

func TestRegistry_RegisterHostMarksLive(t *testing.T) {
	f := newRegistryFixture(t)
	f.host(t, "host-conn")

	stream, err := f.repo.GetByID(context.Background(), f.stream.ID)
	require.NoError(t, err)
	assert.True(t, stream.IsLive)
	assert.Equal(t, 1, f.sink.count("host-conn", domain.EvtStreamStatus))
}

func TestRegistry_RegisterHostRejectsBadKey(t *testing.T) {
	f := newRegistryFixture(t)

	p := domain.Participant{UserID: "owner1", Role: domain.RoleHost}
	err := f.registry.RegisterHost(context.Background(), "host-conn", f.stream.ID, p, "not:a:key")
	assert.ErrorIs(t, err, domain.ErrInvalidKey)

	err = f.registry.RegisterHost(context.Background(), "host-conn", f.stream.ID, p, "garbage")
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
}

func TestRegistry_RegisterHostRejectsUnknownStream(t *testing.T) {
	f := newRegistryFixture(t)

	p := domain.Participant{UserID: "owner1", Role: domain.RoleHost}
	err := f.registry.RegisterHost(context.Background(), "host-conn", 999, p, f.key)
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}

func TestRegistry_RegisterHostLastWriterWins(t *testing.T) {
	f := newRegistryFixture(t)
	f.host(t, "host-a")
	f.host(t, "host-b")

	f.join(t, "viewer-1", domain.InternalRef(f.stream.ID))
	assert.Equal(t, 1, f.registry.ViewerCount(f.stream.ID))

	assert.Equal(t, 1, f.sink.count("viewer-1", domain.EvtViewerCount))
	assert.Equal(t, 1, f.sink.count("host-b", domain.EvtViewerJoined))
	assert.Equal(t, 0, f.sink.count("host-a", domain.EvtViewerJoined))

	// The replaced connection stays mapped to the room: its disconnect
	// still tears the session down under the new host.
	f.registry.Disconnect("host-a")
	assert.Equal(t, 0, f.registry.ViewerCount(f.stream.ID))
	assert.Equal(t, 1, f.sink.count("viewer-1", domain.EvtStreamEnded))

	stream, err := f.repo.GetByID(context.Background(), f.stream.ID)
	require.NoError(t, err)
	assert.False(t, stream.IsLive)
}

func TestRegistry_JoinByPublicID(t *testing.T) {
	f := newRegistryFixture(t)
	f.host(t, "host-conn")

	streamID, err := f.registry.JoinViewer(context.Background(), "viewer-1",
		domain.PublicRef(f.stream.PublicID),
		domain.Participant{Username: "v1", Role: domain.RoleViewer})
	require.NoError(t, err)
	assert.Equal(t, f.stream.ID, streamID)
	assert.Equal(t, 1, f.registry.ViewerCount(f.stream.ID))
}

func TestRegistry_JoinUnknownPublicID(t *testing.T) {
	f := newRegistryFixture(t)

	_, err := f.registry.JoinViewer(context.Background(), "viewer-1",
		domain.PublicRef("0000000000000000"),
		domain.Participant{Role: domain.RoleViewer})
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
	assert.Equal(t, 0, f.registry.ViewerCount(f.stream.ID))
}

func TestRegistry_ViewerBeforeHost(t *testing.T) {
	f := newRegistryFixture(t)

	// Joining by internal id before the host registers creates the room.
	f.join(t, "viewer-1", domain.InternalRef(f.stream.ID))
	assert.Equal(t, 1, f.registry.ViewerCount(f.stream.ID))

	f.host(t, "host-conn")
	assert.Equal(t, 1, f.registry.ViewerCount(f.stream.ID))
}

func TestRegistry_ViewerCounts(t *testing.T) {
	f := newRegistryFixture(t)
	f.host(t, "host-conn")

	f.join(t, "viewer-1", domain.InternalRef(f.stream.ID))
	f.join(t, "viewer-2", domain.InternalRef(f.stream.ID))
	assert.Equal(t, 2, f.registry.ViewerCount(f.stream.ID))

	f.registry.Leave("viewer-1")
	assert.Equal(t, 1, f.registry.ViewerCount(f.stream.ID))

	evt, ok := f.sink.last("viewer-2", domain.EvtViewerCount)
	require.True(t, ok)
	assert.Equal(t, domain.ViewerCountPayload{Count: 1}, evt.Payload)

	assert.Equal(t, 1, f.sink.count("host-conn", domain.EvtViewerLeft))
}

func TestRegistry_HostDisconnectTearsDownRoom(t *testing.T) {
	f := newRegistryFixture(t)
	f.host(t, "host-conn")
	f.join(t, "viewer-1", domain.InternalRef(f.stream.ID))
	f.join(t, "viewer-2", domain.InternalRef(f.stream.ID))
	f.join(t, "viewer-3", domain.InternalRef(f.stream.ID))

	f.registry.Disconnect("host-conn")

	for _, conn := range []domain.ConnectionID{"viewer-1", "viewer-2", "viewer-3"} {
		assert.Equal(t, 1, f.sink.count(conn, domain.EvtStreamEnded), "conn %s", conn)
	}
	assert.Equal(t, 0, f.registry.ViewerCount(f.stream.ID))

	stream, err := f.repo.GetByID(context.Background(), f.stream.ID)
	require.NoError(t, err)
	assert.False(t, stream.IsLive)
}

func TestRegistry_DisconnectUnknownConnIsNoop(t *testing.T) {
	f := newRegistryFixture(t)
	f.registry.Disconnect("never-seen")
	assert.Empty(t, f.sink.events)
}

func TestRegistry_EndStreamHostOnly(t *testing.T) {
	f := newRegistryFixture(t)
	f.host(t, "host-conn")
	f.join(t, "viewer-1", domain.InternalRef(f.stream.ID))

	err := f.registry.EndStream(f.stream.ID, "viewer-1")
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	require.NoError(t, f.registry.EndStream(f.stream.ID, "host-conn"))
	assert.Equal(t, 1, f.sink.count("viewer-1", domain.EvtStreamEnded))
	assert.Equal(t, 0, f.registry.ViewerCount(f.stream.ID))
}

func TestRegistry_RelayIsOpaque(t *testing.T) {
	f := newRegistryFixture(t)
	f.host(t, "host-conn")
	f.join(t, "viewer-1", domain.InternalRef(f.stream.ID))

	payload := json.RawMessage(`{"sdp":"v=0 fake","custom":[1,2,3]}`)
	require.NoError(t, f.registry.Relay(domain.EvtStreamOffer, "host-conn", "viewer-1", payload))

	evt, ok := f.sink.last("viewer-1", domain.EvtStreamOffer)
	require.True(t, ok)
	relay, ok := evt.Payload.(domain.RelayPayload)
	require.True(t, ok)
	assert.Equal(t, domain.ConnectionID("host-conn"), relay.FromConn)
	assert.JSONEq(t, string(payload), string(relay.Data))
}

func TestRegistry_ChatFansOutToRoom(t *testing.T) {
	f := newRegistryFixture(t)
	f.host(t, "host-conn")
	f.join(t, "viewer-1", domain.InternalRef(f.stream.ID))
	f.join(t, "viewer-2", domain.InternalRef(f.stream.ID))

	require.NoError(t, f.registry.Chat(f.stream.ID, "viewer-1", "v1", "hello room"))

	// Sender included: chat reaches every connection in the room.
	for _, conn := range []domain.ConnectionID{"host-conn", "viewer-1", "viewer-2"} {
		evt, ok := f.sink.last(conn, domain.EvtChatMessage)
		require.True(t, ok, "conn %s", conn)
		chat := evt.Payload.(domain.ChatPayload)
		assert.Equal(t, "hello room", chat.Message)
		assert.Equal(t, domain.ConnectionID("viewer-1"), chat.SenderID)
		assert.NotZero(t, chat.Timestamp)
	}
}

func TestRegistry_ChatRejectsBadInput(t *testing.T) {
	f := newRegistryFixture(t)
	f.host(t, "host-conn")

	assert.Error(t, f.registry.Chat(f.stream.ID, "host-conn", "owner", "   "))
	assert.ErrorIs(t, f.registry.Chat(999, "host-conn", "owner", "hi"), domain.ErrSessionNotFound)
}

func TestRegistry_AudioDataHostToViewersOnly(t *testing.T) {
	f := newRegistryFixture(t)
	f.host(t, "host-conn")
	f.join(t, "viewer-1", domain.InternalRef(f.stream.ID))
	f.join(t, "viewer-2", domain.InternalRef(f.stream.ID))

	chunk := []byte{0x47, 0x00, 0x01}
	require.NoError(t, f.registry.AudioData(f.stream.ID, "host-conn", chunk))

	assert.Len(t, f.sink.binary["viewer-1"], 1)
	assert.Len(t, f.sink.binary["viewer-2"], 1)
	assert.Empty(t, f.sink.binary["host-conn"])

	// A viewer cannot push media.
	assert.ErrorIs(t, f.registry.AudioData(f.stream.ID, "viewer-1", chunk), domain.ErrNotOwner)
}

func TestRegistry_AudioLevelSkipsSender(t *testing.T) {
	f := newRegistryFixture(t)
	f.host(t, "host-conn")
	f.join(t, "viewer-1", domain.InternalRef(f.stream.ID))

	require.NoError(t, f.registry.AudioLevel(f.stream.ID, "host-conn", 0.8))
	assert.Equal(t, 0, f.sink.count("host-conn", domain.EvtAudioLevel))
	assert.Equal(t, 1, f.sink.count("viewer-1", domain.EvtAudioLevel))
}
