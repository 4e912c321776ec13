package ncm

import (
	"crypto/aes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pkcs7Pad is the encrypt side counterpart of pkcs7Unpad, used to build
// test blobs.
func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, 0, len(data)+n)
	out = append(out, data...)
	for i := 0; i < n; i++ {
		out = append(out, byte(n))
	}
	return out
}

// encryptAesEcb pads and encrypts plain the way the encoder does, so the
// decode tests can build real containers.
func encryptAesEcb(t *testing.T, key, plain []byte) []byte {
	t.Helper()

	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	padded := pkcs7Pad(plain, block.BlockSize())
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += block.BlockSize() {
		block.Encrypt(out[i:i+block.BlockSize()], padded[i:i+block.BlockSize()])
	}
	return out
}

func TestDecryptAesEcbRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		plain []byte
	}{
		{name: "empty", plain: []byte{}},
		{name: "shorter than a block", plain: []byte("short")},
		{name: "exactly one block", plain: []byte("0123456789abcdef")},
		{name: "several blocks", plain: []byte("neteasecloudmusic plus some longer key material here")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := encryptAesEcb(t, coreKey, tt.plain)

			dec, err := decryptAesEcb(coreKey, enc)
			require.NoError(t, err)
			assert.Equal(t, tt.plain, dec)
		})
	}
}

func TestDecryptAesEcbRejectsBadInput(t *testing.T) {
	_, err := decryptAesEcb(coreKey, nil)
	assert.Error(t, err)

	_, err = decryptAesEcb(coreKey, make([]byte, 15))
	assert.Error(t, err)

	_, err = decryptAesEcb([]byte("wrong size"), make([]byte, 16))
	assert.Error(t, err)
}

func TestDecryptAesEcbRejectsBadPlaintextPadding(t *testing.T) {
	block, err := aes.NewCipher(coreKey)
	require.NoError(t, err)

	// a block that decrypts to a zero padding length
	enc := make([]byte, 16)
	block.Encrypt(enc, make([]byte, 16))

	_, err = decryptAesEcb(coreKey, enc)
	require.ErrorIs(t, err, ErrInvalidPadding)
}

func TestPkcs7Unpad(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    []byte
		wantErr bool
	}{
		{
			name: "one byte of padding",
			data: []byte{'a', 'b', 'c', 1},
			want: []byte{'a', 'b', 'c'},
		},
		{
			name: "full block of padding",
			data: []byte{16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16},
			want: []byte{},
		},
		{
			name:    "empty input",
			data:    []byte{},
			wantErr: true,
		},
		{
			name:    "zero padding length",
			data:    []byte{'a', 0},
			wantErr: true,
		},
		{
			name:    "padding length over the block size",
			data:    []byte{'a', 17},
			wantErr: true,
		},
		{
			name:    "padding length over the data length",
			data:    []byte{9, 9},
			wantErr: true,
		},
		{
			name:    "inconsistent padding bytes",
			data:    []byte{'a', 1, 2, 3},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := pkcs7Unpad(tt.data, 16)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPadding)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}
