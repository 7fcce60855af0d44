package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// SegmentNameRegex is the directory-traversal guard for segment requests.
	// Anything not matching is rejected before the filesystem is touched.
	SegmentNameRegex = regexp.MustCompile(`^segment_\d+\.ts$`)

	// PublicIDRegex matches the 16-char base64url public stream id.
	PublicIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{16}$`)

	// RecordingFolderRegex matches the on-disk recording folder name.
	RecordingFolderRegex = regexp.MustCompile(`^stream-\d+$`)

	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateSegmentName rejects anything that is not a well-formed segment
// filename, including path traversal attempts.
func ValidateSegmentName(name string) error {
	if name == "" {
		return fmt.Errorf("segment name is required")
	}
	if !SegmentNameRegex.MatchString(name) {
		return fmt.Errorf("invalid segment name format")
	}
	return nil
}

// ValidatePlaylistFile accepts the playlist and segment filenames a recording
// folder may serve.
func ValidatePlaylistFile(name string) error {
	if name == "playlist.m3u8" || name == "master.m3u8" {
		return nil
	}
	return ValidateSegmentName(name)
}

// IsPublicID reports whether the identifier looks like a public stream id
// rather than an internal numeric one.
func IsPublicID(id string) bool {
	return PublicIDRegex.MatchString(id)
}

// ValidateRecordingFolder checks the "stream-<id>" folder component of a
// recording path.
func ValidateRecordingFolder(folder string) error {
	if !RecordingFolderRegex.MatchString(folder) {
		return fmt.Errorf("invalid recording folder")
	}
	return nil
}

// ValidateUsername bounds the display name carried on a signaling connection.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) > 50 {
		return fmt.Errorf("username is too long (max 50 characters)")
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateChatMessage bounds chat fan-out payloads.
func ValidateChatMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("message is empty")
	}
	if len(message) > 2000 {
		return fmt.Errorf("message is too long (max 2000 characters)")
	}
	return nil
}
