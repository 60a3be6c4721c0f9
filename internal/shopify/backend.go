package shopify

import (
	"fmt"
	"strings"

	"orderimages/internal/metafield"
)

// NewBackend returns the metafield backend selected by METAFIELD_BACKEND.
func NewBackend(name string, c *Client) (metafield.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "graphql":
		return NewGraphQLBackend(c), nil
	case "rest":
		return NewRESTBackend(c), nil
	default:
		return nil, fmt.Errorf("unknown metafield backend %q", name)
	}
}
