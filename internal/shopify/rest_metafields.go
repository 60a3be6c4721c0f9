package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"orderimages/internal/apperr"
	"orderimages/internal/metafield"
)

// restMetafield is the REST shape. Ids are numbers and json values may come
// back either as a string or inline.
type restMetafield struct {
	ID        json.Number     `json:"id"`
	Namespace string          `json:"namespace"`
	Key       string          `json:"key"`
	Type      string          `json:"type"`
	Value     json.RawMessage `json:"value"`
}

func (m restMetafield) record() metafield.Record {
	return metafield.Record{
		ID:        m.ID.String(),
		Namespace: m.Namespace,
		Key:       m.Key,
		Type:      m.Type,
		Value:     rawValue(m.Value),
	}
}

func rawValue(v json.RawMessage) string {
	if len(v) == 0 || string(v) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}

type restMetafieldBody struct {
	Metafield map[string]any `json:"metafield"`
}

// RESTBackend uses the orders/<id>/metafields endpoints.
type RESTBackend struct {
	client *Client
}

func NewRESTBackend(c *Client) *RESTBackend {
	return &RESTBackend{client: c}
}

func (b *RESTBackend) Name() string { return "rest" }

func (b *RESTBackend) Query(ctx context.Context, orderID, namespace, key string) ([]metafield.Record, error) {
	id := LegacyID(orderID)
	q := url.Values{}
	q.Set("namespace", namespace)
	q.Set("key", key)

	status, raw, err := b.client.do(ctx, http.MethodGet, fmt.Sprintf("orders/%s/metafields.json", id), q, nil)
	if err != nil {
		return nil, apperr.Remote(apperr.KindRemoteQueryFailed, "list order metafields", status, raw, err)
	}
	if status < 200 || status >= 300 {
		return nil, apperr.Remote(apperr.KindRemoteQueryFailed, fmt.Sprintf("list order metafields: http %d", status), status, raw, nil)
	}

	var out struct {
		Metafields []restMetafield `json:"metafields"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperr.Remote(apperr.KindRemoteQueryFailed, "decode order metafields", status, raw, err)
	}

	recs := make([]metafield.Record, 0, len(out.Metafields))
	for _, m := range out.Metafields {
		recs = append(recs, m.record())
	}
	return recs, nil
}

func (b *RESTBackend) Create(ctx context.Context, orderID string, in metafield.Input) (*metafield.Record, error) {
	path := fmt.Sprintf("orders/%s/metafields.json", LegacyID(orderID))
	body := restMetafieldBody{Metafield: map[string]any{
		"namespace": in.Namespace,
		"key":       in.Key,
		"type":      in.Type,
		"value":     in.Value,
	}}
	return b.write(ctx, http.MethodPost, path, body, "create order metafield")
}

func (b *RESTBackend) Update(ctx context.Context, orderID, metafieldID string, in metafield.Input) (*metafield.Record, error) {
	mfID := LegacyID(metafieldID)
	path := fmt.Sprintf("orders/%s/metafields/%s.json", LegacyID(orderID), mfID)
	body := restMetafieldBody{Metafield: map[string]any{
		"type":  in.Type,
		"value": in.Value,
	}}
	return b.write(ctx, http.MethodPut, path, body, "update order metafield")
}

func (b *RESTBackend) write(ctx context.Context, method, path string, body restMetafieldBody, op string) (*metafield.Record, error) {
	status, raw, err := b.client.do(ctx, method, path, nil, body)
	if err != nil {
		return nil, apperr.Remote(apperr.KindRemoteUpsertFailed, op, status, raw, err)
	}
	if status == http.StatusUnprocessableEntity {
		var out struct {
			Errors json.RawMessage `json:"errors"`
		}
		_ = json.Unmarshal(raw, &out)
		return nil, rejected(op, status, raw, restErrors(out.Errors))
	}
	if status < 200 || status >= 300 {
		return nil, apperr.Remote(apperr.KindRemoteUpsertFailed, fmt.Sprintf("%s: http %d", op, status), status, raw, nil)
	}

	var out struct {
		Metafield *restMetafield `json:"metafield"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperr.Remote(apperr.KindRemoteUpsertFailed, "decode "+op, status, raw, err)
	}
	if out.Metafield == nil {
		return nil, apperr.Remote(apperr.KindRemoteUpsertFailed, op+" returned no metafield", status, raw, nil)
	}
	rec := out.Metafield.record()
	return &rec, nil
}

// restErrors flattens the REST errors field, which is either a string, a
// list of strings, or a map of field to messages, into UserErrors.
func restErrors(raw json.RawMessage) []UserError {
	if len(raw) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []UserError{{Message: s}}
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]UserError, 0, len(list))
		for _, m := range list {
			out = append(out, UserError{Message: m})
		}
		return out
	}

	var byField map[string][]string
	if err := json.Unmarshal(raw, &byField); err == nil {
		out := make([]UserError, 0, len(byField))
		for f, msgs := range byField {
			out = append(out, UserError{Field: []string{f}, Message: strings.Join(msgs, "; ")})
		}
		return out
	}

	return []UserError{{Message: string(raw)}}
}
