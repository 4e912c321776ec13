package ncm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckMagic(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{name: "valid", data: []byte("CTENFDAMrest")},
		{name: "valid exact length", data: []byte("CTENFDAM")},
		{name: "wrong signature", data: []byte("MADFNETCrest"), wantErr: true},
		{name: "short input", data: []byte("CTEN"), wantErr: true},
		{name: "empty input", data: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newContainerReader(tt.data)
			err := r.checkMagic()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNotNCMFormat)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, len(magicHeader), r.pos)
		})
	}
}

func TestReadBlob(t *testing.T) {
	r := newContainerReader([]byte{
		0x03, 0x00, 0x00, 0x00, 'a', 'b', 'c',
		0x00, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00, 'z',
	})

	blob, err := r.readBlob()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), blob)

	blob, err = r.readBlob()
	require.NoError(t, err)
	assert.Empty(t, blob)

	blob, err = r.readBlob()
	require.NoError(t, err)
	assert.Equal(t, []byte("z"), blob)

	_, err = r.readBlob()
	require.ErrorIs(t, err, ErrTruncated)
}

func TestReadBlobTruncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "length prefix cut off", data: []byte{0x03, 0x00}},
		{name: "declared length past the end", data: []byte{0x0A, 0x00, 0x00, 0x00, 'a', 'b'}},
		{name: "huge declared length", data: []byte{0xFF, 0xFF, 0xFF, 0xFF, 'a'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newContainerReader(tt.data)
			_, err := r.readBlob()
			require.ErrorIs(t, err, ErrTruncated)
		})
	}
}

func TestSkip(t *testing.T) {
	r := newContainerReader([]byte("0123456789"))

	require.NoError(t, r.skip(4))
	assert.Equal(t, []byte("456789"), r.rest())

	// small rewinds are allowed
	require.NoError(t, r.skip(-2))
	assert.Equal(t, []byte("23456789"), r.rest())

	require.NoError(t, r.skip(8))
	assert.Empty(t, r.rest())

	require.ErrorIs(t, r.skip(1), ErrTruncated)
	require.ErrorIs(t, r.skip(-11), ErrTruncated)
}
