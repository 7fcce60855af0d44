package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
	"github.com/toxikmusic/traxx-current-sub001/internal/core/ports"
	"github.com/toxikmusic/traxx-current-sub001/internal/core/services"
	"github.com/toxikmusic/traxx-current-sub001/internal/infrastructure/middleware"
	"github.com/toxikmusic/traxx-current-sub001/pkg/errors"
)

// maxSegmentBytes bounds one uploaded media chunk.
const maxSegmentBytes = 32 << 20

type StreamHandler struct {
	streamService services.StreamService
	keys          ports.KeyService
	packaging     ports.Packaging
	registry      ports.SessionRegistry
}

func NewStreamHandler(
	streamService services.StreamService,
	keys ports.KeyService,
	packaging ports.Packaging,
	registry ports.SessionRegistry,
) *StreamHandler {
	return &StreamHandler{
		streamService: streamService,
		keys:          keys,
		packaging:     packaging,
		registry:      registry,
	}
}

func (h *StreamHandler) SetupRoutes(router *gin.Engine, auth, optionalAuth gin.HandlerFunc) {
	streams := router.Group("/streams")
	{
		streams.GET("/key", auth, h.IssueKey)
		streams.POST("/validate-key", h.ValidateKey)
		streams.GET("/verify-key", h.VerifyKey)
		streams.GET("/public/:publicId", h.GetPublicStream)

		streams.POST("", auth, h.CreateStream)
		streams.GET("", h.ListStreams)
		streams.GET("/:id", optionalAuth, h.GetStream)

		streams.POST("/:id/segment", auth, h.UploadSegment)
		streams.POST("/:id/hls/end", auth, h.EndStream)
		streams.POST("/:id/recording/finalize", auth, h.FinalizeRecording)
	}
}

// IssueKey mints a broadcaster key for the authenticated user and returns it
// together with the derived public stream id.
func (h *StreamHandler) IssueKey(c *gin.Context) {
	userID, ok := middleware.UserFromContext(c)
	if !ok {
		c.Error(errors.NewUnauthorized("authentication required"))
		return
	}

	key := h.keys.IssueKey(userID)
	c.JSON(http.StatusOK, gin.H{
		"streamKey":      key,
		"publicStreamId": h.keys.DerivePublicID(key),
	})
}

type validateKeyRequest struct {
	StreamID  int64  `json:"streamId" binding:"required"`
	StreamKey string `json:"streamKey" binding:"required,max=512"`
}

// ValidateKey reports whether a key authorizes broadcasting on a stream. The
// response names the rejection category, never the key material.
func (h *StreamHandler) ValidateKey(c *gin.Context) {
	var req validateKeyRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInput("invalid request format"))
		return
	}

	valid, message := h.streamService.ValidateKeyForStream(c.Request.Context(), domain.StreamID(req.StreamID), req.StreamKey)
	c.JSON(http.StatusOK, gin.H{
		"valid":   valid,
		"message": message,
	})
}

// VerifyKey resolves a stream key to its owning stream; 401 when no stream
// claims the key.
func (h *StreamHandler) VerifyKey(c *gin.Context) {
	streamKey := c.Query("streamKey")
	if streamKey == "" {
		c.Error(errors.NewInvalidInput("streamKey query parameter is required"))
		return
	}

	stream, err := h.streamService.VerifyKey(c.Request.Context(), streamKey)
	if err != nil {
		c.Error(errors.NewUnauthorized("invalid stream key"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"stream": stream})
}

func (h *StreamHandler) GetPublicStream(c *gin.Context) {
	publicID := domain.PublicStreamID(c.Param("publicId"))

	stream, err := h.streamService.GetPublicStream(c.Request.Context(), publicID)
	if err != nil {
		c.Error(errors.NewNotFound("stream"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"stream": stream})
}

type createStreamRequest struct {
	Title string `json:"title" binding:"required,min=1,max=200"`
}

func (h *StreamHandler) CreateStream(c *gin.Context) {
	userID, ok := middleware.UserFromContext(c)
	if !ok {
		c.Error(errors.NewUnauthorized("authentication required"))
		return
	}

	var req createStreamRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInput("invalid request format"))
		return
	}

	stream, err := h.streamService.CreateStream(c.Request.Context(), userID, req.Title)
	if err != nil {
		c.Error(errors.NewInternal("failed to create stream"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"stream": stream})
}

func (h *StreamHandler) GetStream(c *gin.Context) {
	streamID, err := domain.ParseStreamID(c.Param("id"))
	if err != nil {
		c.Error(errors.NewInvalidInput("invalid stream id"))
		return
	}

	stream, err := h.streamService.GetStream(c.Request.Context(), streamID)
	if err != nil {
		c.Error(errors.NewNotFound("stream"))
		return
	}

	// The owner sees the full record, stream key included; everyone else
	// gets the sanitized view.
	out := stream.Sanitized()
	if userID, ok := middleware.UserFromContext(c); ok && userID == stream.UserID {
		full := *stream
		out = &full
	}
	out.ViewerCount = h.registry.ViewerCount(streamID)
	c.JSON(http.StatusOK, gin.H{"stream": out})
}

func (h *StreamHandler) ListStreams(c *gin.Context) {
	streams, err := h.streamService.ListActive(c.Request.Context())
	if err != nil {
		c.Error(errors.NewInternal("failed to list streams"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"streams": streams})
}

// UploadSegment ingests one media chunk from the broadcaster's recorder. The
// multipart field is named "segment".
func (h *StreamHandler) UploadSegment(c *gin.Context) {
	userID, ok := middleware.UserFromContext(c)
	if !ok {
		c.Error(errors.NewUnauthorized("authentication required"))
		return
	}

	streamID, err := domain.ParseStreamID(c.Param("id"))
	if err != nil {
		c.Error(errors.NewInvalidInput("invalid stream id"))
		return
	}

	file, header, err := c.Request.FormFile("segment")
	if err != nil {
		c.Error(errors.NewInvalidInput("multipart field 'segment' is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSegmentBytes+1))
	if err != nil {
		c.Error(errors.NewInternal("failed to read segment"))
		return
	}
	if len(data) > maxSegmentBytes {
		c.Error(errors.NewInvalidInput("segment exceeds size limit"))
		return
	}

	playlistURL, err := h.packaging.Ingest(c.Request.Context(), streamID, userID, data, header.Header.Get("Content-Type"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playlistUrl": playlistURL})
}

// EndStream stops live packaging and reports whether the owner must decide
// the recording's fate.
func (h *StreamHandler) EndStream(c *gin.Context) {
	userID, ok := middleware.UserFromContext(c)
	if !ok {
		c.Error(errors.NewUnauthorized("authentication required"))
		return
	}

	streamID, err := domain.ParseStreamID(c.Param("id"))
	if err != nil {
		c.Error(errors.NewInvalidInput("invalid stream id"))
		return
	}

	result, err := h.packaging.End(c.Request.Context(), streamID, userID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type finalizeRequest struct {
	Save bool `json:"save"`
}

func (h *StreamHandler) FinalizeRecording(c *gin.Context) {
	userID, ok := middleware.UserFromContext(c)
	if !ok {
		c.Error(errors.NewUnauthorized("authentication required"))
		return
	}

	streamID, err := domain.ParseStreamID(c.Param("id"))
	if err != nil {
		c.Error(errors.NewInvalidInput("invalid stream id"))
		return
	}

	var req finalizeRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInput("invalid request format"))
		return
	}

	result, err := h.packaging.Finalize(c.Request.Context(), streamID, userID, req.Save)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
