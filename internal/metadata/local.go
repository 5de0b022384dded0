package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/dhowden/tag"
	"github.com/go-flac/go-flac"
)

// Album written into every imported narration.
const Album = "StoryPalace"

var ErrNoTitle = errors.New("metadata: no title tag")

// ReadTitle returns the embedded title of an mp3/flac/m4a/ogg stream.
func ReadTitle(r io.ReadSeeker) (string, error) {
	m, err := tag.ReadFrom(r)
	if err != nil {
		return "", err
	}
	title := strings.TrimSpace(m.Title())
	if title == "" {
		return "", ErrNoTitle
	}
	return title, nil
}

// StampMP3 writes the story title into the ID3v2 tag of path.
func StampMP3(path, title string) error {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer t.Close()

	t.SetTitle(title)
	t.SetAlbum(Album)
	t.SetGenre("Spoken Word")

	return t.Save()
}

// StampFLAC manually constructs a Vorbis Comment block since go-flac is low-level.
func StampFLAC(path, title string) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return err
	}

	// Drop existing comment blocks to avoid duplicates
	var meta []*flac.MetaDataBlock
	for _, m := range f.Meta {
		if m.Type != flac.VorbisComment {
			meta = append(meta, m)
		}
	}

	f.Meta = append(meta, &flac.MetaDataBlock{
		Type: flac.VorbisComment,
		Data: vorbisComment("StoryPalaceImporter", map[string]string{
			"TITLE": title,
			"ALBUM": Album,
			"GENRE": "Spoken Word",
		}),
	})

	return f.Save(path)
}

// vorbisComment encodes [vendor len][vendor][count]([len][KEY=VALUE])...
// in little endian, skipping empty values.
func vorbisComment(vendor string, tags map[string]string) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(vendor)))
	buf.WriteString(vendor)

	var comments []string
	for k, v := range tags {
		if v != "" {
			comments = append(comments, k+"="+v)
		}
	}
	binary.Write(&buf, binary.LittleEndian, uint32(len(comments)))
	for _, c := range comments {
		binary.Write(&buf, binary.LittleEndian, uint32(len(c)))
		buf.WriteString(c)
	}
	return buf.Bytes()
}
