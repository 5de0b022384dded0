package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"story-palace/internal/models"
)

var ErrEmpty = errors.New("catalog: no stories")

// Catalog is the fixed, ordered list of stories the knob walks through.
// It is built once at startup and never mutated afterwards.
type Catalog struct {
	stories []models.Story
}

// File matches the YAML layout of a catalog file.
type File struct {
	Stories []struct {
		Title string `yaml:"title"`
		Audio string `yaml:"audio"`
	} `yaml:"stories"`
}

// builtIn is the catalog shipped with the app.
var builtIn = [][2]string{
	{"The Magical Forest", "forest.mp3"},
	{"The Brave Knight", "knight.mp3"},
	{"The Lost Treasure", "treasure.mp3"},
	{"The Space Adventure", "space.mp3"},
}

func New(stories []models.Story) (*Catalog, error) {
	if len(stories) == 0 {
		return nil, ErrEmpty
	}
	for i, s := range stories {
		if strings.TrimSpace(s.Title) == "" {
			return nil, fmt.Errorf("catalog: story %d has no title", i)
		}
		if strings.TrimSpace(s.AudioRef) == "" {
			return nil, fmt.Errorf("catalog: story %q has no audio reference", s.Title)
		}
	}
	out := make([]models.Story, len(stories))
	copy(out, stories)
	return &Catalog{stories: out}, nil
}

// Default returns the built-in four-story catalog.
func Default() *Catalog {
	stories := make([]models.Story, 0, len(builtIn))
	for _, s := range builtIn {
		stories = append(stories, models.NewStory(s[0], s[1]))
	}
	return &Catalog{stories: stories}
}

// Load reads a YAML catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}
	stories := make([]models.Story, 0, len(f.Stories))
	for _, s := range f.Stories {
		stories = append(stories, models.NewStory(strings.TrimSpace(s.Title), strings.TrimSpace(s.Audio)))
	}
	return New(stories)
}

func (c *Catalog) Len() int { return len(c.stories) }

// At panics on an out-of-range index like a slice does; callers keep
// their index in [0, Len()).
func (c *Catalog) At(i int) models.Story { return c.stories[i] }

// Stories returns a copy so callers cannot reorder the catalog.
func (c *Catalog) Stories() []models.Story {
	out := make([]models.Story, len(c.stories))
	copy(out, c.stories)
	return out
}
