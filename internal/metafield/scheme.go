package metafield

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"orderimages/internal/annotations"
)

// Scheme fixes the metafield type and how annotations are serialized into
// its value. One scheme is used for every write of a deployment; Shopify
// refuses to change the type of an existing metafield.
type Scheme interface {
	Type() string
	Encode(items []annotations.Annotation) (string, error)
}

// SchemeByName returns the scheme for METAFIELD_SCHEME.
func SchemeByName(name string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSONScheme{}, nil
	case "text":
		return TextScheme{}, nil
	default:
		return nil, fmt.Errorf("unknown metafield scheme %q", name)
	}
}

// JSONScheme stores the annotation list as a json metafield.
type JSONScheme struct{}

func (JSONScheme) Type() string { return "json" }

func (JSONScheme) Encode(items []annotations.Annotation) (string, error) {
	if items == nil {
		items = []annotations.Annotation{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// TextScheme stores a readable HTML rendering in a multi_line_text_field.
type TextScheme struct{}

func (TextScheme) Type() string { return "multi_line_text_field" }

func (TextScheme) Encode(items []annotations.Annotation) (string, error) {
	lines := make([]string, 0, len(items))
	for _, a := range items {
		lines = append(lines, fmt.Sprintf(
			`<p><strong>Item %d:</strong> %s (%s)<br><img src="%s" alt="%s"></p>`,
			a.ItemNumber,
			html.EscapeString(a.Product.Title),
			html.EscapeString(a.Product.Variant),
			html.EscapeString(a.ImageURL),
			html.EscapeString(a.Product.Title),
		))
	}
	return strings.Join(lines, "\n"), nil
}
