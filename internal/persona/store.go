package persona

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Card is a named block of system-prompt text representing an assistant
// personality. Cards are read-only to the pipeline.
type Card struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	System   string `yaml:"system" json:"system"`
	Style    string `yaml:"style,omitempty" json:"style,omitempty"`
	Scenario string `yaml:"scenario,omitempty" json:"scenario,omitempty"`
	Post     string `yaml:"post,omitempty" json:"post,omitempty"`
}

type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// List reads every persona card in the store directory. Malformed cards
// are skipped.
func (s *Store) List() []Card {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}

	var cards []Card
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		card, err := s.read(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		cards = append(cards, card)
	}
	return cards
}

func (s *Store) Get(id string) (Card, bool) {
	for _, c := range s.List() {
		if c.ID == id {
			return c, true
		}
	}
	return Card{}, false
}

func (s *Store) read(path string) (Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Card{}, err
	}

	var card Card
	if err := yaml.Unmarshal(data, &card); err != nil {
		return Card{}, err
	}
	if card.ID == "" {
		base := filepath.Base(path)
		card.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return card, nil
}

// Text concatenates the non-empty blocks of a card into the persona text
// used for prompt layering.
func Text(c Card) string {
	var parts []string
	for _, block := range []string{c.System, c.Style, c.Scenario, c.Post} {
		if strings.TrimSpace(block) != "" {
			parts = append(parts, strings.TrimSpace(block))
		}
	}
	return strings.Join(parts, "\n\n")
}
