package audio

import (
	"bytes"
	"errors"
)

// Format is a recognized audio container.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatOGG  Format = "ogg"
	FormatWebM Format = "webm"
	FormatFLAC Format = "flac"
)

// ErrUnknownFormat marks audio bytes that match no recognized container.
var ErrUnknownFormat = errors.New("unrecognized audio format")

// DetectFormat sniffs the container from the leading bytes. It is a
// plausibility check on uploads, not a decoder.
func DetectFormat(b []byte) (Format, error) {
	if len(b) < 4 {
		return "", ErrUnknownFormat
	}
	switch {
	case bytes.HasPrefix(b, []byte("RIFF")) && len(b) >= 12 && bytes.Equal(b[8:12], []byte("WAVE")):
		return FormatWAV, nil
	case bytes.HasPrefix(b, []byte("OggS")):
		return FormatOGG, nil
	case bytes.HasPrefix(b, []byte("fLaC")):
		return FormatFLAC, nil
	case bytes.HasPrefix(b, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return FormatWebM, nil
	case bytes.HasPrefix(b, []byte("ID3")):
		return FormatMP3, nil
	case len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0:
		// Raw MPEG frame sync without an ID3 header.
		return FormatMP3, nil
	default:
		return "", ErrUnknownFormat
	}
}
