package ncm

import "fmt"

// audioChunkSize is the amount of payload each keystream pass covers. The
// position index restarts at every chunk boundary, the encoder does the
// same and the output must match it byte for byte.
const audioChunkSize = 0x8000

// Cipher applies the keystream derived from the container key material to
// the audio payload. The table is immutable after construction, so a single
// Cipher may decrypt any number of chunks.
type Cipher struct {
	box [256]byte
}

// NewCipher derives the keystream table with the RC4-like key scheduling
// used by the encoder.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("empty key material")
	}

	c := &Cipher{}
	for i := range c.box {
		c.box[i] = byte(i)
	}

	var last byte
	var keyOffset int
	for i := 0; i < 256; i++ {
		// byte arithmetic wraps at 256 on its own
		swap := c.box[i] + last + key[keyOffset]
		keyOffset++
		if keyOffset >= len(key) {
			keyOffset = 0
		}

		c.box[i], c.box[swap] = c.box[swap], c.box[i]
		last = swap
	}

	return c, nil
}

// Decrypt XORs buf with the keystream in place. The position index is
// relative to the start of buf, not to previous calls: feed whole chunks
// of at most audioChunkSize bytes, in order. Applying it twice restores
// the input.
func (c *Cipher) Decrypt(buf []byte) {
	for i := range buf {
		j := (i + 1) & 0xff
		buf[i] ^= c.box[(int(c.box[j])+int(c.box[(int(c.box[j])+j)&0xff]))&0xff]
	}
}
