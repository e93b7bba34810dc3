// Package marker extracts tool-activation markers from assistant output.
//
// When the model needs a toolkit the user has not connected, it emits an
// in-band marker of the form [TOOL_ACTIVATION_REQUIRED:GMAIL,GITHUB] instead
// of attempting the action. Parse pulls those markers out so the caller can
// show a connect affordance, and returns the text with markers removed.
// Parsing runs over fully assembled messages only; chunk-boundary handling
// is the stream assembler's concern.
package marker

import (
	"regexp"
	"strings"

	"github.com/relayops/toolbridge/pkg/toolkit"
)

// markerPattern matches every occurrence of the activation marker. The
// literal name is case-sensitive; the slug list is free-form and validated
// after the match.
var markerPattern = regexp.MustCompile(`\[TOOL_ACTIVATION_REQUIRED:([^\]]*)\]`)

// RequiredTool is one toolkit the assistant flagged as needed but not
// connected, resolved against the currently known registry.
type RequiredTool struct {
	Slug    string          `json:"slug"`
	Toolkit toolkit.Toolkit `json:"toolkit"`
}

// Result holds the outcome of a successful parse.
type Result struct {
	// RequiredTools lists the resolved toolkits, de-duplicated. Order is
	// not significant.
	RequiredTools []RequiredTool `json:"required_tools"`

	// CleanedText is the input with every marker occurrence removed and
	// surrounding whitespace trimmed.
	CleanedText string `json:"cleaned_text"`
}

// Parse scans messageText for activation markers and resolves the referenced
// slugs against knownToolkits. It returns nil when no marker is present,
// when every marker has an empty slug list, or when no referenced slug
// resolves. Slugs appearing in multiple markers yield a single entry.
// Unresolvable slugs are dropped silently.
//
// Parse is pure: no I/O, no side effects, deterministic for equal inputs.
func Parse(messageText string, knownToolkits []toolkit.Toolkit) *Result {
	matches := markerPattern.FindAllStringSubmatch(messageText, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var required []RequiredTool
	for _, m := range matches {
		for _, raw := range strings.Split(m[1], ",") {
			slug := toolkit.NormalizeSlug(raw)
			if slug == "" || seen[slug] {
				continue
			}
			seen[slug] = true

			tk, ok := toolkit.FindBySlug(knownToolkits, slug)
			if !ok {
				continue
			}
			required = append(required, RequiredTool{Slug: slug, Toolkit: tk})
		}
	}

	if len(required) == 0 {
		return nil
	}

	return &Result{
		RequiredTools: required,
		CleanedText:   strings.TrimSpace(markerPattern.ReplaceAllString(messageText, "")),
	}
}

// ContainsMarker reports whether messageText has at least one well-formed
// marker, without resolving slugs.
func ContainsMarker(messageText string) bool {
	return markerPattern.MatchString(messageText)
}
