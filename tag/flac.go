// Package tag rewrites FLAC and ID3 tags on in-memory audio buffers.
package tag

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"

	ncmdump "github.com/devgianlu/go-ncmdump"
)

// ApplyFlacTags sets the vorbis comment fields and the front cover picture
// on a FLAC stream. Everything after the metadata blocks is carried into
// the output untouched. When both image and meta are nil the input is
// returned as is.
func ApplyFlacTags(audio []byte, image *ncmdump.Image, meta *ncmdump.Metadata) ([]byte, error) {
	if image == nil && meta == nil {
		return audio, nil
	}

	f, err := flac.ParseBytes(bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("failed parsing flac stream: %w", err)
	}

	if meta != nil {
		if err := setVorbisComments(f, meta); err != nil {
			return nil, err
		}
	}

	if image != nil {
		// built by hand so the image bytes are stored untouched, the
		// picture constructor insists on decoding jpeg or png headers
		picture := &flacpicture.MetadataBlockPicture{
			PictureType: flacpicture.PictureTypeFrontCover,
			MIME:        image.Format.Mime(),
			ImageData:   image.Data,
		}
		block := picture.Marshal()
		f.Meta = append(f.Meta, &block)
	}

	return f.Marshal(), nil
}

// setVorbisComments replaces TITLE, ALBUM and ARTIST in the existing vorbis
// comment block, or in a fresh one when the stream has none. Artists are
// multi-valued, one ARTIST entry per name.
func setVorbisComments(f *flac.File, meta *ncmdump.Metadata) error {
	var existing *flac.MetaDataBlock
	for _, block := range f.Meta {
		if block.Type == flac.VorbisComment {
			existing = block
			break
		}
	}

	var comments *flacvorbis.MetaDataBlockVorbisComment
	if existing != nil {
		var err error
		comments, err = flacvorbis.ParseFromMetaDataBlock(*existing)
		if err != nil {
			return fmt.Errorf("failed parsing vorbis comments: %w", err)
		}
	} else {
		comments = flacvorbis.New()
	}

	removeComments(comments, flacvorbis.FIELD_TITLE)
	removeComments(comments, flacvorbis.FIELD_ALBUM)
	removeComments(comments, flacvorbis.FIELD_ARTIST)

	_ = comments.Add(flacvorbis.FIELD_TITLE, meta.MusicName)
	_ = comments.Add(flacvorbis.FIELD_ALBUM, meta.Album)
	for _, name := range meta.ArtistNames() {
		_ = comments.Add(flacvorbis.FIELD_ARTIST, name)
	}

	block := comments.Marshal()
	if existing != nil {
		*existing = block
	} else {
		f.Meta = append(f.Meta, &block)
	}
	return nil
}

// removeComments drops every comment for the given field, the field name
// comparison is case insensitive per the vorbis spec.
func removeComments(comments *flacvorbis.MetaDataBlockVorbisComment, field string) {
	prefix := field + "="
	kept := make([]string, 0, len(comments.Comments))
	for _, comment := range comments.Comments {
		if len(comment) >= len(prefix) && strings.EqualFold(comment[:len(prefix)], prefix) {
			continue
		}
		kept = append(kept, comment)
	}
	comments.Comments = kept
}
