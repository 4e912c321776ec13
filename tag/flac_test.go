package tag

import (
	"bytes"
	"testing"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ncmdump "github.com/devgianlu/go-ncmdump"
)

// minimalFlac builds the smallest stream go-flac will parse: the marker, an
// empty STREAMINFO block flagged as last, then the given frame bytes.
func minimalFlac(frames []byte) []byte {
	buf := []byte("fLaC")
	buf = append(buf, 0x80, 0x00, 0x00, 0x22)
	buf = append(buf, make([]byte, 34)...)
	return append(buf, frames...)
}

func parseComments(t *testing.T, data []byte) *flacvorbis.MetaDataBlockVorbisComment {
	f, err := flac.ParseBytes(bytes.NewReader(data))
	require.NoError(t, err)

	for _, block := range f.Meta {
		if block.Type == flac.VorbisComment {
			cmts, err := flacvorbis.ParseFromMetaDataBlock(*block)
			require.NoError(t, err)
			return cmts
		}
	}

	t.Fatal("no vorbis comment block found")
	return nil
}

func getField(t *testing.T, cmts *flacvorbis.MetaDataBlockVorbisComment, field string) []string {
	values, err := cmts.Get(field)
	require.NoError(t, err)
	return values
}

func TestApplyFlacTagsIdentity(t *testing.T) {
	audio := minimalFlac([]byte{0xff, 0xf8, 0x01, 0x02})

	out, err := ApplyFlacTags(audio, nil, nil)
	require.NoError(t, err)

	// not just equal bytes, the very same buffer
	assert.Same(t, &audio[0], &out[0])
	assert.Equal(t, audio, out)
}

func TestApplyFlacTagsComments(t *testing.T) {
	frames := []byte{0xff, 0xf8, 0xde, 0xad, 0xbe, 0xef}
	audio := minimalFlac(frames)

	meta := &ncmdump.Metadata{
		MusicName: "A",
		Album:     "B",
		Artist:    []ncmdump.Artist{{Name: "C", Id: 0}, {Name: "D", Id: 1}},
	}

	out, err := ApplyFlacTags(audio, nil, meta)
	require.NoError(t, err)

	cmts := parseComments(t, out)
	assert.Equal(t, []string{"A"}, getField(t, cmts, flacvorbis.FIELD_TITLE))
	assert.Equal(t, []string{"B"}, getField(t, cmts, flacvorbis.FIELD_ALBUM))
	assert.Equal(t, []string{"C", "D"}, getField(t, cmts, flacvorbis.FIELD_ARTIST))

	f, err := flac.ParseBytes(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, frames, f.Frames)
}

func TestApplyFlacTagsReplacesExisting(t *testing.T) {
	existing := flacvorbis.New()
	require.NoError(t, existing.Add(flacvorbis.FIELD_TITLE, "old title"))
	require.NoError(t, existing.Add(flacvorbis.FIELD_ARTIST, "old artist"))
	require.NoError(t, existing.Add("GENRE", "pop"))
	block := existing.Marshal()

	f, err := flac.ParseBytes(bytes.NewReader(minimalFlac([]byte{0xff, 0xf8})))
	require.NoError(t, err)
	f.Meta = append(f.Meta, &block)
	audio := f.Marshal()

	meta := &ncmdump.Metadata{MusicName: "new title", Album: "new album", Artist: []ncmdump.Artist{{Name: "new artist"}}}
	out, err := ApplyFlacTags(audio, nil, meta)
	require.NoError(t, err)

	cmts := parseComments(t, out)
	assert.Equal(t, []string{"new title"}, getField(t, cmts, flacvorbis.FIELD_TITLE))
	assert.Equal(t, []string{"new album"}, getField(t, cmts, flacvorbis.FIELD_ALBUM))
	assert.Equal(t, []string{"new artist"}, getField(t, cmts, flacvorbis.FIELD_ARTIST))

	// unrelated fields survive
	assert.Equal(t, []string{"pop"}, getField(t, cmts, "GENRE"))
}

func TestApplyFlacTagsPicture(t *testing.T) {
	audio := minimalFlac([]byte{0xff, 0xf8})
	image := &ncmdump.Image{Format: ncmdump.ImageFormatPNG, Data: []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x01}}

	out, err := ApplyFlacTags(audio, image, nil)
	require.NoError(t, err)

	f, err := flac.ParseBytes(bytes.NewReader(out))
	require.NoError(t, err)

	var pic *flacpicture.MetadataBlockPicture
	for _, block := range f.Meta {
		if block.Type == flac.Picture {
			pic, err = flacpicture.ParseFromMetaDataBlock(*block)
			require.NoError(t, err)
			break
		}
	}

	require.NotNil(t, pic, "no picture block found")
	assert.Equal(t, flacpicture.PictureTypeFrontCover, pic.PictureType)
	assert.Equal(t, "image/png", pic.MIME)
	assert.Equal(t, image.Data, pic.ImageData)
}

func TestApplyFlacTagsMalformed(t *testing.T) {
	meta := &ncmdump.Metadata{MusicName: "A"}

	_, err := ApplyFlacTags([]byte("definitely not flac"), nil, meta)
	assert.Error(t, err)
}
