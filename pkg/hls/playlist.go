package hls

import (
	"fmt"
	"strings"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
)

// Content types for the two file kinds a recording serves.
const (
	PlaylistContentType = "application/vnd.apple.mpegurl"
	SegmentContentType  = "video/mp2t"
)

// RenderMaster emits a single-variant master playlist naming one sub-playlist
// at the given bandwidth estimate.
func RenderMaster(bandwidthBps int, mediaURI string) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,CODECS=\"avc1.42e00a,mp4a.40.2\"\n", bandwidthBps)
	b.WriteString(mediaURI)
	b.WriteString("\n")
	return b.String()
}

// RenderMedia emits a sliding-window media playlist. Segments carry the fixed
// segment duration; the end marker is appended only once the stream is
// confirmed ended.
func RenderMedia(segments []domain.SegmentRef, sequence int, ended bool) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", domain.SegmentDurationSeconds)
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", sequence)

	for _, seg := range segments {
		fmt.Fprintf(&b, "#EXTINF:%d.0,\n", domain.SegmentDurationSeconds)
		b.WriteString(seg.Name)
		b.WriteString("\n")
	}

	if ended {
		b.WriteString("#EXT-X-ENDLIST\n")
	}
	return b.String()
}

// ContentTypeFor maps a recording filename to its response content type.
func ContentTypeFor(name string) string {
	switch {
	case strings.HasSuffix(name, ".m3u8"):
		return PlaylistContentType
	case strings.HasSuffix(name, ".ts"):
		return SegmentContentType
	default:
		return "application/octet-stream"
	}
}
