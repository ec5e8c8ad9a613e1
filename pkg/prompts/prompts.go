package prompts

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultKey is the template key every store is guaranteed to resolve.
const DefaultKey = "default"

// Template is a named system prompt.
type Template struct {
	System      string `yaml:"system"`
	Description string `yaml:"description"`
}

func defaultTemplate() *Template {
	return &Template{
		System:      "You are a helpful assistant, good at conversation and careful reasoning.",
		Description: "Default system prompt",
	}
}

// Store holds the prompt templates loaded from a YAML file. A "default"
// entry is always present: it comes from the file when defined there, and is
// injected otherwise.
type Store struct {
	path      string
	templates map[string]*Template
}

// NewStore loads templates from the given path. A missing or unreadable file
// leaves the store with just the built-in default.
func NewStore(path string) *Store {
	ret := &Store{
		path: path,
	}
	ret.Reload()
	return ret
}

// Reload re-reads the template file, replacing the current set.
func (s *Store) Reload() {
	s.templates = map[string]*Template{
		DefaultKey: defaultTemplate(),
	}

	if s.path == "" {
		return
	}

	templates, err := loadTemplates(s.path)
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("could not load prompt templates, using defaults")
		return
	}
	for key, template := range templates {
		s.templates[key] = template
	}
}

func loadTemplates(path string) (map[string]*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not read prompt templates")
	}

	templates := map[string]*Template{}
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, errors.Wrap(err, "could not parse prompt templates")
	}
	return templates, nil
}

// Get resolves a template key, falling back to the default template for
// unknown keys.
func (s *Store) Get(key string) *Template {
	if template, ok := s.templates[key]; ok {
		return template
	}
	return s.templates[DefaultKey]
}

// Has reports whether the key is explicitly defined.
func (s *Store) Has(key string) bool {
	_, ok := s.templates[key]
	return ok
}

// Keys returns all template keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.templates))
	for key := range s.templates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
