// Package catalog exposes the ingestion categories each provider accepts.
package catalog

import (
	_ "embed"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/placesync/internal/model"
)

//go:embed categories.yaml
var categoriesYAML []byte

// Catalog maps providers to their accepted category tags.
type Catalog struct {
	byProvider map[model.Provider][]string
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(categoriesYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes a YAML document of provider -> category list.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "catalog: parse yaml")
	}
	c := &Catalog{byProvider: make(map[model.Provider][]string, len(raw))}
	for name, cats := range raw {
		p, err := model.ParseProvider(name)
		if err != nil {
			return nil, eris.Wrap(err, "catalog")
		}
		c.byProvider[p] = cats
	}
	return c, nil
}

// Categories returns the sorted categories accepted by p.
func (c *Catalog) Categories(p model.Provider) []string {
	out := append([]string(nil), c.byProvider[p]...)
	sort.Strings(out)
	return out
}

// Valid reports whether category is accepted by p.
func (c *Catalog) Valid(p model.Provider, category string) bool {
	for _, cat := range c.byProvider[p] {
		if cat == category {
			return true
		}
	}
	return false
}

// Check returns a descriptive error when category is not accepted by p.
func (c *Catalog) Check(p model.Provider, category string) error {
	if c.Valid(p, category) {
		return nil
	}
	return eris.Errorf("catalog: %q is not a %s category (valid: %v)", category, p, c.Categories(p))
}
