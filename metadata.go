package go_ncmdump

import (
	"encoding/json"
	"fmt"
)

// Metadata is the track document embedded in an NCM container. Field names
// match the camelCase JSON produced by the encoder, so unmarshalling the
// embedded document and marshalling it back yields the same fields.
type Metadata struct {
	Format        string      `json:"format"`
	MusicId       int64       `json:"musicId"`
	MusicName     string      `json:"musicName"`
	Artist        []Artist    `json:"artist"`
	Album         string      `json:"album"`
	AlbumId       int64       `json:"albumId"`
	AlbumPicDocId json.Number `json:"albumPicDocId,omitempty"`
	AlbumPic      string      `json:"albumPic"`
	MvId          int64       `json:"mvId"`
	Flag          int64       `json:"flag"`
	Bitrate       int64       `json:"bitrate"`
	Duration      int64       `json:"duration"`
	TransNames    []string    `json:"transNames"`
}

// ArtistNames returns just the artist names, in document order.
func (m *Metadata) ArtistNames() []string {
	names := make([]string, 0, len(m.Artist))
	for _, a := range m.Artist {
		names = append(names, a.Name)
	}
	return names
}

// Artist is a single performer. The encoder stores artists as two-element
// [name, id] JSON arrays rather than objects.
type Artist struct {
	Name string
	Id   int64
}

func (a Artist) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{a.Name, a.Id})
}

func (a *Artist) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	} else if len(pair) != 2 {
		return fmt.Errorf("artist entry has %d elements, expected name and id", len(pair))
	}

	if err := json.Unmarshal(pair[0], &a.Name); err != nil {
		return fmt.Errorf("invalid artist name: %w", err)
	}
	if err := json.Unmarshal(pair[1], &a.Id); err != nil {
		return fmt.Errorf("invalid artist id: %w", err)
	}
	return nil
}
