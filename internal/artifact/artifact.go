// Package artifact holds translated audio and the resource handles that
// make it playable or downloadable.
package artifact

import (
	"html"
	"strings"
)

// DefaultMimeType is assumed when the backend does not report one.
const DefaultMimeType = "audio/mpeg"

// Artifact is the result of one completed translation.
type Artifact struct {
	Audio      []byte
	MimeType   string
	Transcript string // decoded English transcript, empty when absent

	// Handle is the playback resource, set once the artifact is current.
	Handle Handle
}

// New builds an artifact from a decoded response. The transcript is
// HTML-entity encoded on the wire.
func New(audio []byte, mimeType, transcript string) *Artifact {
	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	return &Artifact{
		Audio:      audio,
		MimeType:   mimeType,
		Transcript: DecodeTranscript(transcript),
	}
}

func (a *Artifact) HasTranscript() bool {
	return a.Transcript != ""
}

// TranscriptLine is the text shown in the transcript area.
func (a *Artifact) TranscriptLine() string {
	return `English: "` + a.Transcript + `"`
}

// DecodeTranscript turns entity-encoded text (e.g. "It&#39;s fine") into plain text.
func DecodeTranscript(s string) string {
	return html.UnescapeString(s)
}

// FormatLabel names the audio format for the download control. First match wins.
func FormatLabel(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "mp3"), strings.Contains(mimeType, "mpeg"):
		return "MP3"
	case strings.Contains(mimeType, "wav"):
		return "WAV"
	case strings.Contains(mimeType, "ogg"):
		return "OGG"
	default:
		return "Audio"
	}
}

// Extension derives the file extension for a MIME type, defaulting to mp3.
func Extension(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "mp3"), strings.Contains(mimeType, "mpeg"):
		return "mp3"
	case strings.Contains(mimeType, "wav"):
		return "wav"
	case strings.Contains(mimeType, "ogg"):
		return "ogg"
	case strings.Contains(mimeType, "webm"):
		return "webm"
	default:
		return "mp3"
	}
}
