// Package audio performs lightweight inspection of uploaded audio payloads
// before they are handed to a transcription provider.
package audio

import (
	"bytes"
	"fmt"
)

// Container identifies a recognized audio container format
type Container string

const (
	ContainerWAV     Container = "wav"
	ContainerOGG     Container = "ogg"
	ContainerWebM    Container = "webm"
	ContainerMP3     Container = "mp3"
	ContainerFLAC    Container = "flac"
	ContainerMP4     Container = "mp4"
	ContainerUnknown Container = "unknown" // treated as raw PCM downstream
)

// Sniff inspects the payload's magic bytes. Unknown payloads are not an
// error: browser extensions upload raw PCM frames with no container at all.
func Sniff(data []byte) Container {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return ContainerWAV
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("OggS")):
		return ContainerOGG
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return ContainerWebM
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return ContainerMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return ContainerMP3
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("fLaC")):
		return ContainerFLAC
	case len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")):
		return ContainerMP4
	default:
		return ContainerUnknown
	}
}

// ValidatePayload rejects payloads the gateway should not even attempt to
// transcribe
func ValidatePayload(data []byte, maxBytes int64) error {
	if len(data) == 0 {
		return fmt.Errorf("audio payload is empty")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return fmt.Errorf("audio payload of %d bytes exceeds limit of %d", len(data), maxBytes)
	}
	return nil
}
