package shopify

import (
	"context"
	"fmt"

	"orderimages/internal/apperr"
	"orderimages/internal/metafield"
)

const orderMetafieldsQuery = `
query OrderMetafields($id: ID!, $namespace: String!, $keys: [String!]) {
  order(id: $id) {
    id
    metafields(first: 10, namespace: $namespace, keys: $keys) {
      nodes { id namespace key type value }
    }
  }
}`

const metafieldsSetMutation = `
mutation CreateOrderMetafield($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields { id namespace key type value }
    userErrors { field message code }
  }
}`

const orderUpdateMutation = `
mutation UpdateOrderMetafield($input: OrderInput!, $namespace: String!, $key: String!) {
  orderUpdate(input: $input) {
    order {
      id
      metafield(namespace: $namespace, key: $key) { id namespace key type value }
    }
    userErrors { field message }
  }
}`

// UserError is a validation error reported by a GraphQL mutation.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

type orderMetafieldsData struct {
	Order *struct {
		ID         string `json:"id"`
		Metafields struct {
			Nodes []metafield.Record `json:"nodes"`
		} `json:"metafields"`
	} `json:"order"`
}

type metafieldsSetData struct {
	MetafieldsSet *struct {
		Metafields []metafield.Record `json:"metafields"`
		UserErrors []UserError        `json:"userErrors"`
	} `json:"metafieldsSet"`
}

type orderUpdateData struct {
	OrderUpdate *struct {
		Order *struct {
			ID        string            `json:"id"`
			Metafield *metafield.Record `json:"metafield"`
		} `json:"order"`
		UserErrors []UserError `json:"userErrors"`
	} `json:"orderUpdate"`
}

// GraphQLBackend reads with order.metafields, creates with metafieldsSet and
// updates by metafield id through orderUpdate.
type GraphQLBackend struct {
	client *Client
}

func NewGraphQLBackend(c *Client) *GraphQLBackend {
	return &GraphQLBackend{client: c}
}

func (b *GraphQLBackend) Name() string { return "graphql" }

func (b *GraphQLBackend) Query(ctx context.Context, orderID, namespace, key string) ([]metafield.Record, error) {
	vars := map[string]any{
		"id":        OrderGID(orderID),
		"namespace": namespace,
		"keys":      []string{namespace + "." + key},
	}

	resp, status, raw, err := PostGraphQL[orderMetafieldsData](ctx, b.client, orderMetafieldsQuery, vars)
	if err != nil {
		return nil, apperr.Remote(apperr.KindRemoteQueryFailed, "query order metafields", status, raw, err)
	}
	if len(resp.Errors) > 0 {
		return nil, apperr.Remote(apperr.KindRemoteQueryFailed, "graphql errors: "+graphQLErrorText(resp.Errors), status, raw, nil)
	}
	if resp.Data.Order == nil {
		return nil, apperr.Remote(apperr.KindRemoteQueryFailed, fmt.Sprintf("order %s not found", orderID), status, raw, nil)
	}
	return resp.Data.Order.Metafields.Nodes, nil
}

func (b *GraphQLBackend) Create(ctx context.Context, orderID string, in metafield.Input) (*metafield.Record, error) {
	vars := map[string]any{
		"metafields": []map[string]any{{
			"ownerId":   OrderGID(orderID),
			"namespace": in.Namespace,
			"key":       in.Key,
			"type":      in.Type,
			"value":     in.Value,
		}},
	}

	resp, status, raw, err := PostGraphQL[metafieldsSetData](ctx, b.client, metafieldsSetMutation, vars)
	if err != nil {
		return nil, apperr.Remote(apperr.KindRemoteUpsertFailed, "metafieldsSet", status, raw, err)
	}
	if len(resp.Errors) > 0 {
		return nil, apperr.Remote(apperr.KindRemoteUpsertFailed, "graphql errors: "+graphQLErrorText(resp.Errors), status, raw, nil)
	}
	set := resp.Data.MetafieldsSet
	if set == nil {
		return nil, apperr.Remote(apperr.KindRemoteUpsertFailed, "metafieldsSet returned no payload", status, raw, nil)
	}
	if len(set.UserErrors) > 0 {
		return nil, rejected("metafieldsSet", status, raw, set.UserErrors)
	}
	if len(set.Metafields) == 0 {
		return nil, apperr.Remote(apperr.KindRemoteUpsertFailed, "metafieldsSet returned no metafield", status, raw, nil)
	}
	rec := set.Metafields[0]
	return &rec, nil
}

func (b *GraphQLBackend) Update(ctx context.Context, orderID, metafieldID string, in metafield.Input) (*metafield.Record, error) {
	vars := map[string]any{
		"input": map[string]any{
			"id": OrderGID(orderID),
			"metafields": []map[string]any{{
				"id":    metafieldID,
				"type":  in.Type,
				"value": in.Value,
			}},
		},
		"namespace": in.Namespace,
		"key":       in.Key,
	}

	resp, status, raw, err := PostGraphQL[orderUpdateData](ctx, b.client, orderUpdateMutation, vars)
	if err != nil {
		return nil, apperr.Remote(apperr.KindRemoteUpsertFailed, "orderUpdate", status, raw, err)
	}
	if len(resp.Errors) > 0 {
		return nil, apperr.Remote(apperr.KindRemoteUpsertFailed, "graphql errors: "+graphQLErrorText(resp.Errors), status, raw, nil)
	}
	upd := resp.Data.OrderUpdate
	if upd == nil {
		return nil, apperr.Remote(apperr.KindRemoteUpsertFailed, "orderUpdate returned no payload", status, raw, nil)
	}
	if len(upd.UserErrors) > 0 {
		return nil, rejected("orderUpdate", status, raw, upd.UserErrors)
	}
	if upd.Order != nil && upd.Order.Metafield != nil {
		rec := *upd.Order.Metafield
		return &rec, nil
	}
	return &metafield.Record{ID: metafieldID, Namespace: in.Namespace, Key: in.Key, Type: in.Type, Value: in.Value}, nil
}

func rejected(op string, status int, raw []byte, details any) error {
	e := apperr.Remote(apperr.KindRemoteRejected, op+" rejected the metafield", status, raw, nil)
	return e.WithDetails(details)
}
