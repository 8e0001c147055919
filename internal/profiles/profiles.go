package profiles

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultID is the profile applied when a submission names none.
const DefaultID = "educational"

// Profile describes how one output channel wants its videos shaped. Tone and
// pacing feed the script and narration prompts; the visual style guides
// concept description elaboration.
type Profile struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	Tone        string `yaml:"tone"`
	Pacing      string `yaml:"pacing"`
	VisualStyle string `yaml:"visual_style"`
	PromptHints string `yaml:"prompt_hints"`
}

type catalogFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// Catalog holds the known channel profiles in declaration order.
type Catalog struct {
	byID  map[string]Profile
	order []string
}

// Default returns the catalog built from the embedded defaults.
func Default() (*Catalog, error) {
	return parseCatalog(defaultsYAML, nil)
}

// Load returns the embedded catalog merged with the custom profile file at
// path. Custom profiles replace embedded ones with the same id and append
// otherwise. An empty path yields the embedded defaults alone.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}
	return parseCatalog(defaultsYAML, raw)
}

func parseCatalog(defaults, custom []byte) (*Catalog, error) {
	catalog := &Catalog{byID: make(map[string]Profile)}
	if err := catalog.merge(defaults); err != nil {
		return nil, fmt.Errorf("parse embedded profiles: %w", err)
	}
	if len(custom) > 0 {
		if err := catalog.merge(custom); err != nil {
			return nil, fmt.Errorf("parse custom profiles: %w", err)
		}
	}
	if len(catalog.order) == 0 {
		return nil, fmt.Errorf("profile catalog is empty")
	}
	if _, ok := catalog.byID[DefaultID]; !ok {
		return nil, fmt.Errorf("profile catalog missing %q default", DefaultID)
	}
	return catalog, nil
}

func (c *Catalog) merge(raw []byte) error {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return err
	}
	for _, profile := range file.Profiles {
		id := normalizeID(profile.ID)
		if id == "" {
			return fmt.Errorf("profile with empty id")
		}
		profile.ID = id
		if strings.TrimSpace(profile.DisplayName) == "" {
			profile.DisplayName = profile.ID
		}
		if _, seen := c.byID[id]; !seen {
			c.order = append(c.order, id)
		}
		c.byID[id] = profile
	}
	return nil
}

// Get returns the profile registered under id.
func (c *Catalog) Get(id string) (Profile, bool) {
	profile, ok := c.byID[normalizeID(id)]
	return profile, ok
}

// GetOrDefault returns the profile for id, falling back to the educational
// default when id is blank or unknown.
func (c *Catalog) GetOrDefault(id string) Profile {
	if profile, ok := c.Get(id); ok {
		return profile
	}
	return c.byID[DefaultID]
}

// List returns the profiles in catalog order.
func (c *Catalog) List() []Profile {
	out := make([]Profile, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// IDs returns the known profile identifiers in catalog order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
