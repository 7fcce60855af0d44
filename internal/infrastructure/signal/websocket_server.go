package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
	"github.com/toxikmusic/traxx-current-sub001/internal/core/ports"
	"github.com/toxikmusic/traxx-current-sub001/pkg/utils"
	"github.com/toxikmusic/traxx-current-sub001/pkg/validation"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// inboundMessage is the envelope every client sends over the signaling
// channel. Fields are populated per message type; Data stays opaque for the
// relayed kinds.
type inboundMessage struct {
	Type      string              `json:"type"`
	StreamID  string              `json:"streamId,omitempty"`
	PublicID  string              `json:"publicId,omitempty"`
	StreamKey string              `json:"streamKey,omitempty"`
	Target    domain.ConnectionID `json:"target,omitempty"`
	Message   string              `json:"message,omitempty"`
	Level     float64             `json:"level,omitempty"`
	Data      json.RawMessage     `json:"data,omitempty"`
}

// client is one upgraded connection. The write mutex serializes JSON, binary
// and ping writes; gorilla allows only one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex

	id       domain.ConnectionID
	userID   domain.UserID
	username string
	role     domain.Role

	// streamID is set after a successful host-stream or join-stream.
	streamID domain.StreamID
	joined   bool
}

type Options struct {
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxMessageBytes int64

	// MessagesPerSecond/Burst bound the per-connection inbound message rate.
	// Zero disables limiting.
	MessagesPerSecond float64
	Burst             int
}

func (o *Options) withDefaults() {
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 1 << 20
	}
	if o.Burst <= 0 {
		o.Burst = 20
	}
}

// WebSocketServer is the signaling transport. It owns the connection map and
// implements ports.EventSink; everything protocol-level is delegated to the
// session registry.
type WebSocketServer struct {
	registry  ports.SessionRegistry
	keys      ports.KeyService
	keyExpiry time.Duration

	clients map[domain.ConnectionID]*client
	mu      sync.RWMutex

	opts   Options
	logger *zap.SugaredLogger
}

func NewWebSocketServer(registry ports.SessionRegistry, keys ports.KeyService, keyExpiry time.Duration, opts Options, logger *zap.SugaredLogger) *WebSocketServer {
	opts.withDefaults()
	return &WebSocketServer{
		registry:  registry,
		keys:      keys,
		keyExpiry: keyExpiry,
		clients:   make(map[domain.ConnectionID]*client),
		opts:      opts,
		logger:    logger,
	}
}

// SetRegistry binds the registry after construction. The registry needs the
// server as its event sink, so one side has to be bound late; call this
// before serving traffic.
func (s *WebSocketServer) SetRegistry(registry ports.SessionRegistry) {
	s.registry = registry
}

// Send implements ports.EventSink.
func (s *WebSocketServer) Send(conn domain.ConnectionID, event domain.Event) error {
	c, ok := s.lookup(conn)
	if !ok {
		return fmt.Errorf("connection %s not found", conn)
	}
	return c.writeJSON(s.opts.WriteTimeout, event)
}

// SendBinary implements ports.EventSink.
func (s *WebSocketServer) SendBinary(conn domain.ConnectionID, data []byte) error {
	c, ok := s.lookup(conn)
	if !ok {
		return fmt.Errorf("connection %s not found", conn)
	}
	return c.writeBinary(s.opts.WriteTimeout, data)
}

func (s *WebSocketServer) lookup(conn domain.ConnectionID) (*client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[conn]
	return c, ok
}

// ConnectionCount reports the number of open signaling connections.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (c *client) writeJSON(timeout time.Duration, v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteJSON(v)
}

func (c *client) writeBinary(timeout time.Duration, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *client) writePing(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

type frame struct {
	messageType int
	data        []byte
}

// HandleWebSocket upgrades the request and runs the connection loop until the
// socket closes. Identity comes from the query string; hosting and joining
// happen either immediately from the query parameters or later via
// host-stream / join-stream messages.
func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	q := r.URL.Query()
	c := &client{
		conn:     ws,
		id:       domain.ConnectionID(utils.GenerateConnectionID()),
		userID:   domain.UserID(q.Get("userId")),
		username: q.Get("username"),
		role:     domain.Role(q.Get("role")),
	}
	if c.role == "" {
		c.role = domain.RoleViewer
	}

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	s.logger.Infow("signaling connection opened",
		"conn_id", c.id,
		"user_id", c.userID,
		"role", c.role,
	)

	ws.SetReadLimit(s.opts.MaxMessageBytes)
	ws.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
		return nil
	})

	// Hosting or joining straight from the query string keeps one round trip
	// off the connect path for clients that already know where they belong.
	s.attachFromQuery(r.Context(), c, q.Get("streamId"), q.Get("publicId"), q.Get("streamKey"))

	pingTicker := time.NewTicker(s.opts.PingInterval)
	defer pingTicker.Stop()

	frameChan := make(chan frame, 10)
	errorChan := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	// Every send races against done so the reader cannot outlive the
	// connection when the serve loop exits first (ping failure with a full
	// frame buffer).
	go func() {
		for {
			messageType, data, err := ws.ReadMessage()
			if err != nil {
				select {
				case errorChan <- err:
				case <-done:
				}
				return
			}
			ws.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
			select {
			case frameChan <- frame{messageType: messageType, data: data}:
			case <-done:
				return
			}
		}
	}()

	var limiter *rate.Limiter
	if s.opts.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.opts.MessagesPerSecond), s.opts.Burst)
	}

	for {
		select {
		case f := <-frameChan:
			if limiter != nil && !limiter.Allow() {
				s.sendError(c, "message rate limit exceeded")
				continue
			}
			s.handleFrame(r.Context(), c, f)

		case <-pingTicker.C:
			if err := c.writePing(s.opts.WriteTimeout); err != nil {
				s.logger.Debugw("ping failed", "conn_id", c.id, "error", err)
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("read error", "conn_id", c.id, "error", err)
			}
			goto cleanup
		}
	}

cleanup:
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()

	s.registry.Disconnect(c.id)
	s.logger.Infow("signaling connection closed", "conn_id", c.id)
}

func (s *WebSocketServer) attachFromQuery(ctx context.Context, c *client, streamID, publicID, streamKey string) {
	if c.role.IsBroadcasting() && streamKey != "" && streamID != "" {
		s.hostStream(ctx, c, streamID, streamKey)
		return
	}
	if streamID != "" || publicID != "" {
		s.joinStream(ctx, c, streamID, publicID)
	}
}

func (s *WebSocketServer) handleFrame(ctx context.Context, c *client, f frame) {
	if f.messageType == websocket.BinaryMessage {
		if !c.joined {
			return
		}
		if err := s.registry.AudioData(c.streamID, c.id, f.data); err != nil {
			s.logger.Debugw("audio passthrough rejected", "conn_id", c.id, "error", err)
		}
		return
	}

	var msg inboundMessage
	if err := json.Unmarshal(f.data, &msg); err != nil {
		s.sendError(c, "malformed message")
		return
	}
	if err := s.handleMessage(ctx, c, msg); err != nil {
		s.logger.Debugw("message rejected", "conn_id", c.id, "type", msg.Type, "error", err)
	}
}

func (s *WebSocketServer) handleMessage(ctx context.Context, c *client, msg inboundMessage) error {
	switch msg.Type {
	case domain.MsgHostStream:
		return s.hostStream(ctx, c, msg.StreamID, msg.StreamKey)

	case domain.MsgJoinStream:
		return s.joinStream(ctx, c, msg.StreamID, msg.PublicID)

	case domain.MsgStreamOffer, domain.MsgStreamAnswer, domain.MsgICECandidate:
		if msg.Target == "" {
			s.sendError(c, "target connection is required")
			return nil
		}
		return s.registry.Relay(msg.Type, c.id, msg.Target, msg.Data)

	case domain.MsgChatMessage:
		if !c.joined {
			s.sendError(c, "not in a stream")
			return nil
		}
		if err := s.registry.Chat(c.streamID, c.id, c.username, msg.Message); err != nil {
			s.sendError(c, "chat message rejected")
			return err
		}
		return nil

	case domain.MsgAudioLevel:
		if !c.joined {
			return nil
		}
		return s.registry.AudioLevel(c.streamID, c.id, msg.Level)

	case domain.MsgPing:
		return c.writeJSON(s.opts.WriteTimeout, domain.Event{Type: domain.EvtPong})

	case domain.MsgLeaveStream:
		s.registry.Leave(c.id)
		c.joined = false
		c.streamID = 0
		return nil

	case domain.MsgEndStream:
		if !c.joined {
			s.sendError(c, "not in a stream")
			return nil
		}
		if err := s.registry.EndStream(c.streamID, c.id); err != nil {
			s.sendError(c, "only the host can end the stream")
			return err
		}
		c.joined = false
		c.streamID = 0
		return nil

	default:
		s.sendError(c, fmt.Sprintf("unknown message type: %s", msg.Type))
		return nil
	}
}

func (s *WebSocketServer) hostStream(ctx context.Context, c *client, rawStreamID, streamKey string) error {
	streamID, err := domain.ParseStreamID(rawStreamID)
	if err != nil {
		s.sendError(c, "invalid stream id")
		return err
	}

	p := domain.Participant{
		ConnID:   c.id,
		UserID:   c.userID,
		Username: c.username,
		Role:     domain.RoleHost,
	}
	if err := s.registry.RegisterHost(ctx, c.id, streamID, p, streamKey); err != nil {
		s.rejectHost(c, streamKey, err)
		return err
	}

	c.streamID = streamID
	c.joined = true
	c.role = domain.RoleHost
	return nil
}

// rejectHost sends a category-level reason without leaking key material.
func (s *WebSocketServer) rejectHost(c *client, streamKey string, err error) {
	if errors.Is(err, domain.ErrStreamNotFound) {
		c.writeJSON(s.opts.WriteTimeout, domain.Event{Type: domain.EvtStreamNotFound})
		return
	}
	if errors.Is(err, domain.ErrInvalidKey) {
		failure := s.keys.ClassifyFailure(streamKey, c.userID, s.keyExpiry)
		s.sendError(c, failure.Message())
		return
	}
	s.sendError(c, "failed to register as host")
}

func (s *WebSocketServer) joinStream(ctx context.Context, c *client, rawStreamID, publicID string) error {
	var ref domain.StreamRef
	switch {
	case publicID != "":
		if !validation.IsPublicID(publicID) {
			s.sendError(c, "invalid public stream id")
			return nil
		}
		ref = domain.PublicRef(domain.PublicStreamID(publicID))
	case rawStreamID != "":
		id, err := domain.ParseStreamID(rawStreamID)
		if err != nil {
			s.sendError(c, "invalid stream id")
			return err
		}
		ref = domain.InternalRef(id)
	default:
		s.sendError(c, "streamId or publicId is required")
		return nil
	}

	p := domain.Participant{
		ConnID:   c.id,
		UserID:   c.userID,
		Username: c.username,
		Role:     domain.RoleViewer,
	}
	streamID, err := s.registry.JoinViewer(ctx, c.id, ref, p)
	if err != nil {
		if errors.Is(err, domain.ErrStreamNotFound) {
			c.writeJSON(s.opts.WriteTimeout, domain.Event{Type: domain.EvtStreamNotFound})
			return nil
		}
		s.sendError(c, "failed to join stream")
		return err
	}

	c.streamID = streamID
	c.joined = true
	return nil
}

func (s *WebSocketServer) sendError(c *client, reason string) {
	if err := c.writeJSON(s.opts.WriteTimeout, domain.Event{
		Type:    domain.EvtError,
		Payload: domain.ErrorPayload{Reason: reason},
	}); err != nil {
		s.logger.Debugw("error delivery failed", "conn_id", c.id, "error", err)
	}
}
