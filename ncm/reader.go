package ncm

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// magicHeader is the signature at the start of every NCM container.
var magicHeader = []byte("CTENFDAM")

// containerReader is a sequential cursor over a single in-memory container.
// Blobs are returned as subslices of the underlying buffer, so callers may
// mutate them in place.
type containerReader struct {
	data []byte
	pos  int
}

func newContainerReader(data []byte) *containerReader {
	return &containerReader{data: data}
}

// checkMagic validates the container signature and positions the cursor
// right after it.
func (r *containerReader) checkMagic() error {
	if len(r.data) < len(magicHeader) || !bytes.Equal(r.data[:len(magicHeader)], magicHeader) {
		return ErrNotNCMFormat
	}

	r.pos = len(magicHeader)
	return nil
}

// readBlob reads a little-endian uint32 length followed by that many bytes.
func (r *containerReader) readBlob() ([]byte, error) {
	if r.pos+4 > len(r.data) {
		return nil, fmt.Errorf("failed reading blob length: %w", ErrTruncated)
	}

	length := int(binary.LittleEndian.Uint32(r.data[r.pos:]))
	r.pos += 4

	if r.pos+length > len(r.data) {
		return nil, fmt.Errorf("failed reading blob of %d bytes: %w", length, ErrTruncated)
	}

	blob := r.data[r.pos : r.pos+length]
	r.pos += length
	return blob, nil
}

// skip moves the cursor by off bytes. Small negative offsets rewind.
func (r *containerReader) skip(off int) error {
	pos := r.pos + off
	if pos < 0 || pos > len(r.data) {
		return fmt.Errorf("failed skipping %d bytes: %w", off, ErrTruncated)
	}

	r.pos = pos
	return nil
}

// rest returns everything from the cursor to the end of the buffer.
func (r *containerReader) rest() []byte {
	return r.data[r.pos:]
}
