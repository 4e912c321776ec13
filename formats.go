package go_ncmdump

import (
	"bytes"
	"errors"
)

// AudioFormat identifies the stream found inside a decrypted NCM payload.
type AudioFormat int

const (
	// AudioFormatMP3 is an MPEG stream, usually with a leading ID3 tag.
	AudioFormatMP3 AudioFormat = iota
	// AudioFormatFLAC is a native FLAC stream.
	AudioFormatFLAC
)

func (f AudioFormat) Extension() string {
	switch f {
	case AudioFormatFLAC:
		return "flac"
	default:
		return "mp3"
	}
}

func (f AudioFormat) Mime() string {
	switch f {
	case AudioFormatFLAC:
		return "audio/flac"
	default:
		return "audio/mpeg"
	}
}

func (f AudioFormat) String() string {
	return f.Extension()
}

// ImageFormat identifies embedded cover art.
type ImageFormat int

const (
	ImageFormatJPEG ImageFormat = iota
	ImageFormatPNG
	ImageFormatGIF
)

func (f ImageFormat) Mime() string {
	switch f {
	case ImageFormatPNG:
		return "image/png"
	case ImageFormatGIF:
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// Image is a cover picture embedded in an NCM container.
type Image struct {
	Format ImageFormat
	Data   []byte
}

var ErrUnknownImageFormat = errors.New("unknown image format")

var (
	flacHeader = []byte("fLaC")
	pngHeader  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0}
	gifHeader  = []byte("GIF")
)

// DetectAudioFormat classifies a decrypted payload from its first bytes.
// Anything that is not FLAC is treated as MP3, including streams with an
// ID3 tag and streams with no recognizable signature at all.
func DetectAudioFormat(header []byte) AudioFormat {
	if bytes.HasPrefix(header, flacHeader) {
		return AudioFormatFLAC
	}
	return AudioFormatMP3
}

// DetectImageFormat classifies cover art from its first eight bytes.
func DetectImageFormat(header []byte) (ImageFormat, error) {
	if len(header) < 8 {
		return 0, ErrUnknownImageFormat
	}

	switch {
	case bytes.Equal(header[:8], pngHeader):
		return ImageFormatPNG, nil
	case bytes.HasPrefix(header, jpegHeader):
		return ImageFormatJPEG, nil
	case bytes.HasPrefix(header, gifHeader):
		return ImageFormatGIF, nil
	default:
		return 0, ErrUnknownImageFormat
	}
}
