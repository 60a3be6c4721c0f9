// Package metafield keeps the product_images metafield of an order in sync
// with the annotations computed from the order.
package metafield

import "context"

const (
	Namespace = "custom"
	Key       = "product_images"
)

// Record is a metafield as stored by Shopify.
type Record struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

// Input is the value written on create or update.
type Input struct {
	Namespace string
	Key       string
	Type      string
	Value     string
}

// Backend is one Shopify API surface able to read and write order metafields.
// Query failures must carry apperr.KindRemoteQueryFailed, write failures
// apperr.KindRemoteUpsertFailed or apperr.KindRemoteRejected.
type Backend interface {
	Name() string
	Query(ctx context.Context, orderID, namespace, key string) ([]Record, error)
	Create(ctx context.Context, orderID string, in Input) (*Record, error)
	Update(ctx context.Context, orderID, metafieldID string, in Input) (*Record, error)
}
