package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSegmentName(t *testing.T) {
	valid := []string{"segment_0.ts", "segment_42.ts", "segment_100000.ts"}
	for _, name := range valid {
		assert.NoError(t, ValidateSegmentName(name), name)
	}

	invalid := []string{
		"",
		"segment_.ts",
		"segment_a.ts",
		"segment_0.mp4",
		"segment_0.ts.bak",
		"../segment_0.ts",
		"..%2Fsegment_0.ts",
		"segment_0.ts/../../etc/passwd",
		"/etc/passwd",
		"playlist.m3u8",
	}
	for _, name := range invalid {
		assert.Error(t, ValidateSegmentName(name), name)
	}
}

func TestValidatePlaylistFile(t *testing.T) {
	assert.NoError(t, ValidatePlaylistFile("playlist.m3u8"))
	assert.NoError(t, ValidatePlaylistFile("master.m3u8"))
	assert.NoError(t, ValidatePlaylistFile("segment_3.ts"))
	assert.Error(t, ValidatePlaylistFile("other.m3u8"))
	assert.Error(t, ValidatePlaylistFile("../playlist.m3u8"))
}

func TestIsPublicID(t *testing.T) {
	assert.True(t, IsPublicID("abcDEF123456_-Zz"))
	assert.False(t, IsPublicID("short"))
	assert.False(t, IsPublicID("abcDEF123456_-Zzz"), "17 chars")
	assert.False(t, IsPublicID("abcDEF123456_-Z!"))
	assert.False(t, IsPublicID(""))
}

func TestValidateRecordingFolder(t *testing.T) {
	assert.NoError(t, ValidateRecordingFolder("stream-1"))
	assert.NoError(t, ValidateRecordingFolder("stream-123456"))
	assert.Error(t, ValidateRecordingFolder("stream-"))
	assert.Error(t, ValidateRecordingFolder("stream-abc"))
	assert.Error(t, ValidateRecordingFolder("other-1"))
	assert.Error(t, ValidateRecordingFolder("stream-1/.."))
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("user_42"))
	assert.Error(t, ValidateUsername(""))
	assert.Error(t, ValidateUsername("   "))
	assert.Error(t, ValidateUsername(strings.Repeat("a", 51)))
	assert.Error(t, ValidateUsername("user 42"))
}

func TestValidateChatMessage(t *testing.T) {
	assert.NoError(t, ValidateChatMessage("hello"))
	assert.Error(t, ValidateChatMessage(""))
	assert.Error(t, ValidateChatMessage("   "))
	assert.Error(t, ValidateChatMessage(strings.Repeat("a", 2001)))
	assert.NoError(t, ValidateChatMessage(strings.Repeat("a", 2000)))
}
