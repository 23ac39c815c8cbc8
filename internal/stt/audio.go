// Package stt wraps the speech-to-text providers.
package stt

import (
	"path/filepath"
	"strings"
)

// Audio is a recorded clip handed to a provider.
type Audio struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Ext returns the lower-case file extension, defaulting to ".wav".
func (a Audio) Ext() string {
	ext := strings.ToLower(filepath.Ext(a.Filename))
	if ext == "" {
		return ".wav"
	}
	return ext
}

// MIMEType returns the declared content type or one derived from the extension.
func (a Audio) MIMEType() string {
	if a.ContentType != "" {
		return a.ContentType
	}
	switch a.Ext() {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	case ".aiff":
		return "audio/aiff"
	default:
		return "audio/wav"
	}
}

func (a Audio) name() string {
	if a.Filename == "" {
		return "audio.wav"
	}
	return filepath.Base(a.Filename)
}
