// Package catalog resolves tag, writer, and topic-type names for the
// validator. The catalog is a YAML document mapping category names to the
// tags they contain:
//
//	categories:
//	  Assigned Writer: [jdoe, asmith]
//	  Type: [Concept, Task, Reference]
//	  Technology: [Networking, Storage]
package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Well-known categories.
const (
	CategoryWriter = "Assigned Writer"
	CategoryType   = "Type"
)

// Tag is a resolved tag.
type Tag struct {
	Name     string
	Category string
}

// Lookup resolves names against a tag store. A false result with a nil error
// means the name does not exist; an error means the store could not be queried.
type Lookup interface {
	// Tag resolves name in any category.
	Tag(ctx context.Context, name string) (Tag, bool, error)
	// CategoryTag resolves name within category only.
	CategoryTag(ctx context.Context, category, name string) (Tag, bool, error)
}

// document is the on-disk YAML shape.
type document struct {
	Categories map[string][]string `yaml:"categories"`
}

// Catalog is an immutable, in-memory Lookup.
type Catalog struct {
	byName     map[string]Tag
	byCategory map[string]map[string]Tag
}

// New builds a Catalog from a category → tag names map. When a name appears in
// more than one category, Tag reports the alphabetically first category.
func New(categories map[string][]string) *Catalog {
	c := &Catalog{
		byName:     make(map[string]Tag),
		byCategory: make(map[string]map[string]Tag, len(categories)),
	}

	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, category := range names {
		tags := make(map[string]Tag, len(categories[category]))
		for _, name := range categories[category] {
			tag := Tag{Name: name, Category: category}
			tags[name] = tag
			if _, exists := c.byName[name]; !exists {
				c.byName[name] = tag
			}
		}
		c.byCategory[category] = tags
	}
	return c
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(doc.Categories), nil
}

// Load reads and decodes the catalog file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Tag implements Lookup.
func (c *Catalog) Tag(_ context.Context, name string) (Tag, bool, error) {
	tag, ok := c.byName[name]
	return tag, ok, nil
}

// CategoryTag implements Lookup.
func (c *Catalog) CategoryTag(_ context.Context, category, name string) (Tag, bool, error) {
	tag, ok := c.byCategory[category][name]
	return tag, ok, nil
}
