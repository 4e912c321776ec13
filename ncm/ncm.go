// Package ncm decodes the NCM encrypted audio container into a playable,
// tagged FLAC or MP3 stream.
package ncm

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	ncmdump "github.com/devgianlu/go-ncmdump"
	"github.com/devgianlu/go-ncmdump/tag"
)

var (
	// coreKey decrypts the embedded key blob.
	coreKey = []byte{0x68, 0x7A, 0x48, 0x52, 0x41, 0x6D, 0x73, 0x6F, 0x35, 0x6B, 0x49, 0x6E, 0x62, 0x61, 0x78, 0x57}
	// metaKey decrypts the embedded metadata blob.
	metaKey = []byte{0x23, 0x31, 0x34, 0x6C, 0x6A, 0x6B, 0x5F, 0x21, 0x5C, 0x5D, 0x26, 0x30, 0x55, 0x3C, 0x27, 0x28}
)

const (
	keyBlobXor  = 0x64
	metaBlobXor = 0x63

	keyPrefixLen   = 17 // "neteasecloudmusic"
	metaPrefixLen  = 22 // "163 key(Don't modify):"
	musicPrefixLen = 6  // "music:"
)

// DecodedAudio is the result of decoding one container. Metadata and Image
// are nil when the container does not carry them.
type DecodedAudio struct {
	Data     []byte
	Format   ncmdump.AudioFormat
	Metadata *ncmdump.Metadata
	Image    *ncmdump.Image
}

// Decoder decodes a single NCM container held in memory. Decoding is fully
// synchronous and all-or-nothing: the first failing stage aborts the whole
// decode. A Decoder is single-use.
type Decoder struct {
	log ncmdump.Logger
	r   *containerReader
}

// NewDecoder returns a decoder over data. The buffer is decrypted in place,
// the caller must not reuse it afterwards.
func NewDecoder(log ncmdump.Logger, data []byte) *Decoder {
	if log == nil {
		log = &ncmdump.NullLogger{}
	}

	return &Decoder{log: log, r: newContainerReader(data)}
}

// Decode runs the full pipeline: magic check, key blob, metadata blob,
// cover image, audio payload, tagging.
func (d *Decoder) Decode() (*DecodedAudio, error) {
	if err := d.r.checkMagic(); err != nil {
		return nil, err
	}

	// two reserved bytes carrying the format version
	if err := d.r.skip(2); err != nil {
		return nil, err
	}

	keyMaterial, err := d.readKey()
	if err != nil {
		return nil, err
	}

	cipher, err := NewCipher(keyMaterial)
	if err != nil {
		return nil, err
	}

	meta, err := d.readMetadata()
	if err != nil {
		return nil, err
	}

	// crc32 of the metadata blob plus a five byte gap, neither is checked
	if err := d.r.skip(9); err != nil {
		return nil, err
	}

	img, err := d.readImage()
	if err != nil {
		return nil, err
	}

	data, format, err := d.readAudio(cipher)
	if err != nil {
		return nil, err
	}

	switch format {
	case ncmdump.AudioFormatFLAC:
		data, err = tag.ApplyFlacTags(data, img, meta)
	default:
		data, err = tag.ApplyId3Tags(data, img, meta)
	}
	if err != nil {
		return nil, fmt.Errorf("failed writing %s tags: %w", format, err)
	}

	return &DecodedAudio{Data: data, Format: format, Metadata: meta, Image: img}, nil
}

// readKey decrypts the key blob and returns the keystream key material.
func (d *Decoder) readKey() ([]byte, error) {
	blob, err := d.r.readBlob()
	if err != nil {
		return nil, fmt.Errorf("failed reading key blob: %w", err)
	}

	for i := range blob {
		blob[i] ^= keyBlobXor
	}

	key, err := decryptAesEcb(coreKey, blob)
	if err != nil {
		return nil, fmt.Errorf("failed decrypting key blob: %w", err)
	}

	if len(key) <= keyPrefixLen {
		return nil, fmt.Errorf("decrypted key blob of %d bytes is shorter than its fixed prefix", len(key))
	}

	d.log.Debugf("decrypted key blob, %d bytes of key material", len(key)-keyPrefixLen)
	return key[keyPrefixLen:], nil
}

// readMetadata decrypts and parses the metadata blob. A zero-length blob is
// valid and yields nil.
func (d *Decoder) readMetadata() (*ncmdump.Metadata, error) {
	blob, err := d.r.readBlob()
	if err != nil {
		return nil, fmt.Errorf("failed reading metadata blob: %w", err)
	}

	if len(blob) == 0 {
		d.log.Warnf("no metadata found in file")
		return nil, nil
	}

	for i := range blob {
		blob[i] ^= metaBlobXor
	}

	if len(blob) < metaPrefixLen {
		return nil, fmt.Errorf("metadata blob of %d bytes is shorter than its fixed prefix", len(blob))
	}

	decoded, err := base64.StdEncoding.DecodeString(string(blob[metaPrefixLen:]))
	if err != nil {
		return nil, fmt.Errorf("failed decoding metadata blob: %w", err)
	}

	plain, err := decryptAesEcb(metaKey, decoded)
	if err != nil {
		return nil, fmt.Errorf("failed decrypting metadata blob: %w", err)
	}

	if len(plain) < musicPrefixLen {
		return nil, fmt.Errorf("decrypted metadata of %d bytes is shorter than its fixed prefix", len(plain))
	}

	var meta ncmdump.Metadata
	if err := json.Unmarshal(plain[musicPrefixLen:], &meta); err != nil {
		return nil, fmt.Errorf("failed unmarshalling metadata: %w", err)
	}

	d.log.Debugf("parsed metadata for %s", meta.MusicName)
	return &meta, nil
}

// readImage reads the cover blob and detects its format. A zero-length blob
// is valid and yields nil.
func (d *Decoder) readImage() (*ncmdump.Image, error) {
	blob, err := d.r.readBlob()
	if err != nil {
		return nil, fmt.Errorf("failed reading cover image: %w", err)
	}

	if len(blob) == 0 {
		d.log.Warnf("no cover image found in file")
		return nil, nil
	}

	format, err := ncmdump.DetectImageFormat(blob)
	if err != nil {
		return nil, fmt.Errorf("failed detecting cover image format: %w", err)
	}

	return &ncmdump.Image{Format: format, Data: blob}, nil
}

// readAudio decrypts the payload chunk by chunk and detects the stream
// format from the first four decrypted bytes.
func (d *Decoder) readAudio(cipher *Cipher) ([]byte, ncmdump.AudioFormat, error) {
	payload := d.r.rest()
	if len(payload) < 4 {
		return nil, 0, fmt.Errorf("failed reading audio header: %w", ErrTruncated)
	}

	for off := 0; off < len(payload); off += audioChunkSize {
		end := off + audioChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		cipher.Decrypt(payload[off:end])
	}

	format := ncmdump.DetectAudioFormat(payload[:4])
	d.log.Debugf("decoded %d bytes of %s audio", len(payload), format)
	return payload, format, nil
}
