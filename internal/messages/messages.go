// Package messages holds the customer-facing message templates. Templates
// live in an embedded JSON file so copy changes never require a code edit.
package messages

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed messages.json
var templateFS embed.FS

// Template is one entry of messages.json. Variables appear in Text as
// {name} placeholders.
type Template struct {
	Text     string   `json:"text"`
	Options  []string `json:"options,omitempty"`
	File     string   `json:"file,omitempty"`
	Internal bool     `json:"isInternal,omitempty"`
}

// Catalog is the loaded template set.
type Catalog struct {
	templates map[string]Template
}

// Load parses the embedded template file.
func Load() (*Catalog, error) {
	raw, err := templateFS.ReadFile("messages.json")
	if err != nil {
		return nil, fmt.Errorf("read message templates: %w", err)
	}

	var templates map[string]Template
	if err := json.Unmarshal(raw, &templates); err != nil {
		return nil, fmt.Errorf("parse message templates: %w", err)
	}

	return &Catalog{templates: templates}, nil
}

// Get returns the raw template for key.
func (c *Catalog) Get(key string) (Template, bool) {
	t, ok := c.templates[key]
	return t, ok
}

// Render resolves key and substitutes {name} placeholders from variables.
// A placeholder with no matching variable is left as-is so the message is
// still deliverable.
func (c *Catalog) Render(key string, variables map[string]string) (Template, error) {
	t, ok := c.templates[key]
	if !ok {
		return Template{}, fmt.Errorf("unknown message key %q", key)
	}

	if len(variables) > 0 && t.Text != "" {
		pairs := make([]string, 0, len(variables)*2)
		for name, value := range variables {
			pairs = append(pairs, "{"+name+"}", value)
		}
		t.Text = strings.NewReplacer(pairs...).Replace(t.Text)
	}

	return t, nil
}

// Keys returns all template keys, for startup validation.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.templates))
	for k := range c.templates {
		keys = append(keys, k)
	}
	return keys
}
