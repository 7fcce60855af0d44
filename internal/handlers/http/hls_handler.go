package http

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
	"github.com/toxikmusic/traxx-current-sub001/internal/core/ports"
	"github.com/toxikmusic/traxx-current-sub001/pkg/errors"
	"github.com/toxikmusic/traxx-current-sub001/pkg/hls"
	"github.com/toxikmusic/traxx-current-sub001/pkg/validation"
)

type HLSHandler struct {
	packaging ports.Packaging
	localDir  string
}

func NewHLSHandler(packaging ports.Packaging, localDir string) *HLSHandler {
	return &HLSHandler{
		packaging: packaging,
		localDir:  localDir,
	}
}

func (h *HLSHandler) SetupRoutes(router *gin.Engine) {
	// One parameterized route; gin cannot mix static and param children at
	// the same path level.
	router.GET("/hls/:id/:file", h.ServeFile)
}

// ServeFile dispatches on the requested filename: the two playlist names
// render from live state, anything else must look like a segment file.
func (h *HLSHandler) ServeFile(c *gin.Context) {
	streamID, err := domain.ParseStreamID(c.Param("id"))
	if err != nil {
		c.Error(errors.NewInvalidInput("invalid stream id"))
		return
	}
	file := c.Param("file")

	switch file {
	case "master.m3u8":
		playlist, err := h.packaging.MasterPlaylist(c.Request.Context(), streamID)
		if err != nil {
			c.Error(err)
			return
		}
		c.Data(http.StatusOK, hls.PlaylistContentType, []byte(playlist))

	case "playlist.m3u8":
		playlist, err := h.packaging.MediaPlaylist(c.Request.Context(), streamID)
		if err != nil {
			c.Error(err)
			return
		}
		c.Data(http.StatusOK, hls.PlaylistContentType, []byte(playlist))

	default:
		h.serveSegment(c, streamID, file)
	}
}

func (h *HLSHandler) serveSegment(c *gin.Context, streamID domain.StreamID, file string) {
	if err := validation.ValidateSegmentName(file); err != nil {
		c.Error(errors.NewInvalidInput("invalid segment name"))
		return
	}

	path := filepath.Join(h.localDir, streamID.String(), file)
	data, err := os.ReadFile(path)
	if err != nil {
		c.Error(errors.NewNotFound("segment"))
		return
	}
	c.Data(http.StatusOK, hls.SegmentContentType, data)
}
