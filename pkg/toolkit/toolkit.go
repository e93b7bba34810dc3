// Package toolkit provides shared types for the connect provider, registry,
// and polling layers. This package has zero internal dependencies to avoid
// import cycles between pkg/registry (which reads provider results) and the
// components that act on them.
package toolkit

import "strings"

// Toolkit describes one external SaaS integration as reported by the connect
// provider. The broker never mutates a Toolkit, it only mirrors the provider's
// view on each fetch.
type Toolkit struct {
	// Slug is the unique upper-case identifier (e.g. "GMAIL", "GITHUB").
	Slug string `json:"slug"`

	// Name is the human-readable display name.
	Name string `json:"name"`

	// Description summarizes what the toolkit can do.
	Description string `json:"description,omitempty"`

	// LogoURL points at the toolkit's logo image.
	LogoURL string `json:"logo_url,omitempty"`

	// Categories lists the provider's category tags.
	Categories []string `json:"categories,omitempty"`

	// IsConnected reports whether the user has an active connection.
	IsConnected bool `json:"is_connected"`

	// ConnectionID is the provider's connection identifier. Present only
	// when IsConnected is true.
	ConnectionID string `json:"connection_id,omitempty"`
}

// NormalizeSlug canonicalizes a toolkit slug. Provider slugs are upper-case;
// all internal lookups go through this so mixed-case input from callers and
// LLM output resolves consistently.
func NormalizeSlug(slug string) string {
	return strings.ToUpper(strings.TrimSpace(slug))
}

// FindBySlug returns the toolkit with the given slug from the list, or false
// when no exact match exists.
func FindBySlug(toolkits []Toolkit, slug string) (Toolkit, bool) {
	want := NormalizeSlug(slug)
	for _, tk := range toolkits {
		if tk.Slug == want {
			return tk, true
		}
	}
	return Toolkit{}, false
}
