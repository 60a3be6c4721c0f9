// Package annotations turns an order payload into the per-line-item image
// annotations stored on the order.
package annotations

import (
	"bytes"
	"encoding/json"
	"strings"

	"orderimages/internal/apperr"
)

const DefaultVariant = "Default"

// PlaceholderImageURL is used for every line item until per-item images exist.
const PlaceholderImageURL = "https://imagedelivery.net/lEHX3YUcvfDIImhkEJ2s3Q/generated-0b55469101668a1c0a543df650cec0a57e582c256a3acf6f9513c6cce104b05c-v1/public"

type LineItem struct {
	Title        string  `json:"title"`
	VariantTitle *string `json:"variant_title"`
}

type Order struct {
	ID        string
	LineItems []LineItem
}

type Product struct {
	Title   string `json:"title"`
	Variant string `json:"variant"`
}

type Annotation struct {
	ItemNumber int     `json:"item_number"`
	Product    Product `json:"product"`
	ImageURL   string  `json:"image_url"`
}

type orderPayload struct {
	ID        json.RawMessage `json:"id"`
	LineItems *[]LineItem     `json:"line_items"`
}

// ParseOrder decodes an orders/create payload. The body must be a JSON object
// with an id and a line_items array; anything else is a malformed payload.
func ParseOrder(raw []byte) (*Order, error) {
	var p orderPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperr.Wrap(apperr.KindMalformedPayload, "body is not a JSON order object", err)
	}

	id, err := orderID(p.ID)
	if err != nil {
		return nil, err
	}
	if p.LineItems == nil {
		return nil, apperr.New(apperr.KindMalformedPayload, "order has no line_items")
	}

	return &Order{ID: id, LineItems: *p.LineItems}, nil
}

// orderID accepts a JSON number or string and keeps it verbatim so large
// numeric ids don't lose precision.
func orderID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", apperr.New(apperr.KindMalformedPayload, "order has no id")
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", apperr.Wrap(apperr.KindMalformedPayload, "order id is not a string", err)
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", apperr.Wrap(apperr.KindMalformedPayload, "order id is not a number", err)
		}
		s = n.String()
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperr.New(apperr.KindMalformedPayload, "order has no id")
	}
	return s, nil
}

// Build produces one annotation per line item, in input order, numbered from 1.
func Build(o *Order, imageURL string) []Annotation {
	out := make([]Annotation, 0, len(o.LineItems))
	for i, item := range o.LineItems {
		variant := DefaultVariant
		if item.VariantTitle != nil && *item.VariantTitle != "" {
			variant = *item.VariantTitle
		}
		out = append(out, Annotation{
			ItemNumber: i + 1,
			Product: Product{
				Title:   item.Title,
				Variant: variant,
			},
			ImageURL: imageURL,
		})
	}
	return out
}
