package go_ncmdump_test

import (
	"testing"

	ncmdump "github.com/devgianlu/go-ncmdump"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectAudioFormat(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		want   ncmdump.AudioFormat
	}{
		{
			name:   "flac signature",
			header: []byte{0x66, 0x4C, 0x61, 0x43},
			want:   ncmdump.AudioFormatFLAC,
		},
		{
			name:   "id3 tag",
			header: []byte{0x49, 0x44, 0x33, 0x04},
			want:   ncmdump.AudioFormatMP3,
		},
		{
			name:   "id3 tag with other version byte",
			header: []byte{0x49, 0x44, 0x33, 0xFF},
			want:   ncmdump.AudioFormatMP3,
		},
		{
			name:   "bare mpeg frame sync defaults to mp3",
			header: []byte{0xFF, 0xFB, 0x90, 0x00},
			want:   ncmdump.AudioFormatMP3,
		},
		{
			name:   "garbage defaults to mp3",
			header: []byte{0x00, 0x01, 0x02, 0x03},
			want:   ncmdump.AudioFormatMP3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ncmdump.DetectAudioFormat(tt.header))
		})
	}
}

func TestDetectImageFormat(t *testing.T) {
	tests := []struct {
		name    string
		header  []byte
		want    ncmdump.ImageFormat
		wantErr bool
	}{
		{
			name:   "png",
			header: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00},
			want:   ncmdump.ImageFormatPNG,
		},
		{
			name:   "jpeg",
			header: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46},
			want:   ncmdump.ImageFormatJPEG,
		},
		{
			name:   "gif",
			header: []byte{0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00},
			want:   ncmdump.ImageFormatGIF,
		},
		{
			name:    "unknown signature",
			header:  []byte{0x42, 0x4D, 0x36, 0x00, 0x00, 0x00, 0x00, 0x00},
			wantErr: true,
		},
		{
			name:    "shorter than eight bytes",
			header:  []byte{0xFF, 0xD8, 0xFF, 0xE0},
			wantErr: true,
		},
		{
			name:    "empty",
			header:  nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, err := ncmdump.DetectImageFormat(tt.header)
			if tt.wantErr {
				require.ErrorIs(t, err, ncmdump.ErrUnknownImageFormat)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, format)
		})
	}
}

func TestImageFormatMime(t *testing.T) {
	assert.Equal(t, "image/jpeg", ncmdump.ImageFormatJPEG.Mime())
	assert.Equal(t, "image/png", ncmdump.ImageFormatPNG.Mime())
	assert.Equal(t, "image/gif", ncmdump.ImageFormatGIF.Mime())
}

func TestAudioFormatExtension(t *testing.T) {
	assert.Equal(t, "flac", ncmdump.AudioFormatFLAC.Extension())
	assert.Equal(t, "mp3", ncmdump.AudioFormatMP3.Extension())
	assert.Equal(t, "audio/flac", ncmdump.AudioFormatFLAC.Mime())
	assert.Equal(t, "audio/mpeg", ncmdump.AudioFormatMP3.Mime())
}
