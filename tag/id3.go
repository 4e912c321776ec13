package tag

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/bogem/id3v2/v2"

	ncmdump "github.com/devgianlu/go-ncmdump"
)

// ApplyId3Tags rewrites the ID3 tag of an MP3 stream and prefixes it onto
// the buffer. An existing tag is parsed and enriched, a stream without one
// gets a fresh tag. The output is always serialized as ID3v2.4. When both
// image and meta are nil the input is returned as is.
func ApplyId3Tags(audio []byte, image *ncmdump.Image, meta *ncmdump.Metadata) ([]byte, error) {
	if image == nil && meta == nil {
		return audio, nil
	}

	t, err := id3v2.ParseReader(bytes.NewReader(audio), id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("failed parsing id3 tag: %w", err)
	}

	t.SetVersion(4)

	if meta != nil {
		t.AddTextFrame("TIT2", id3v2.EncodingUTF8, meta.MusicName)
		t.AddTextFrame("TALB", id3v2.EncodingUTF8, meta.Album)
		// TPE1 carries all artists as one slash separated string
		t.AddTextFrame("TPE1", id3v2.EncodingUTF8, strings.Join(meta.ArtistNames(), "/"))
	}

	if image != nil {
		t.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    image.Format.Mime(),
			PictureType: id3v2.PTFrontCover,
			Picture:     image.Data,
		})
	}

	var buf bytes.Buffer
	buf.Grow(t.Size() + len(audio))
	if _, err := t.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed writing id3 tag: %w", err)
	}

	buf.Write(audio)
	return buf.Bytes(), nil
}
