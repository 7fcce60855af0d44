package hls

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
)

func TestRenderMaster(t *testing.T) {
	out := RenderMaster(560300, "playlist.m3u8")

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Equal(t, "#EXTM3U", lines[0])
	assert.Equal(t, "#EXT-X-VERSION:3", lines[1])
	assert.Contains(t, lines[2], "BANDWIDTH=560300")
	assert.Contains(t, lines[2], "CODECS=")
	assert.Equal(t, "playlist.m3u8", lines[3])
}

func TestRenderMedia(t *testing.T) {
	segments := []domain.SegmentRef{
		{Name: "segment_2.ts", Index: 2},
		{Name: "segment_3.ts", Index: 3},
	}

	out := RenderMedia(segments, 2, false)
	assert.Contains(t, out, "#EXT-X-TARGETDURATION:6")
	assert.Contains(t, out, "#EXT-X-MEDIA-SEQUENCE:2")
	assert.Contains(t, out, "#EXTINF:6.0,\nsegment_2.ts")
	assert.Contains(t, out, "#EXTINF:6.0,\nsegment_3.ts")
	assert.NotContains(t, out, "#EXT-X-ENDLIST")

	ended := RenderMedia(segments, 2, true)
	assert.True(t, strings.HasSuffix(ended, "#EXT-X-ENDLIST\n"))
}

func TestRenderMediaEmpty(t *testing.T) {
	out := RenderMedia(nil, 0, false)
	assert.Contains(t, out, "#EXT-X-MEDIA-SEQUENCE:0")
	assert.NotContains(t, out, "#EXTINF")
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, PlaylistContentType, ContentTypeFor("playlist.m3u8"))
	assert.Equal(t, PlaylistContentType, ContentTypeFor("master.m3u8"))
	assert.Equal(t, SegmentContentType, ContentTypeFor("segment_0.ts"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("notes.txt"))
}
