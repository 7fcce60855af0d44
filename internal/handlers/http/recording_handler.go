package http

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
	"github.com/toxikmusic/traxx-current-sub001/internal/core/ports"
	"github.com/toxikmusic/traxx-current-sub001/pkg/errors"
	"github.com/toxikmusic/traxx-current-sub001/pkg/validation"
)

type RecordingHandler struct {
	store ports.RecordingStore
}

func NewRecordingHandler(store ports.RecordingStore) *RecordingHandler {
	return &RecordingHandler{store: store}
}

func (h *RecordingHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/recordings/:folder/:file", h.ServeRecordingFile)
}

// ServeRecordingFile serves playlist and segment files from a recording.
// Expired temporary recordings answer 410 so clients can distinguish
// "gone for good" from "never existed".
func (h *RecordingHandler) ServeRecordingFile(c *gin.Context) {
	folder := c.Param("folder")
	if err := validation.ValidateRecordingFolder(folder); err != nil {
		c.Error(errors.NewInvalidInput("invalid recording folder"))
		return
	}

	streamID, err := domain.ParseStreamID(strings.TrimPrefix(folder, "stream-"))
	if err != nil {
		c.Error(errors.NewInvalidInput("invalid recording folder"))
		return
	}

	file := c.Param("file")
	if err := validation.ValidatePlaylistFile(file); err != nil {
		c.Error(errors.NewInvalidInput("invalid recording file name"))
		return
	}

	served, err := h.store.Serve(c.Request.Context(), streamID, file)
	if err != nil {
		switch {
		case stderrors.Is(err, domain.ErrRecordingExpired):
			c.Error(errors.NewExpired("recording"))
		case stderrors.Is(err, domain.ErrRecordingNotFound):
			c.Error(errors.NewNotFound("recording"))
		default:
			c.Error(errors.NewInternal("failed to serve recording file"))
		}
		return
	}

	c.Data(http.StatusOK, served.ContentType, served.Data)
}
