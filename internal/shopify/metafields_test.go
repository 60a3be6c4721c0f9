package shopify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderimages/internal/apperr"
	"orderimages/internal/metafield"
)

type graphQLCall struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient("demo.myshopify.com", "2025-01", "shpat_test", 2*time.Second).WithBaseURL(srv.URL)
	return c, srv
}

func decodeGraphQL(t *testing.T, r *http.Request) graphQLCall {
	t.Helper()
	b, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var call graphQLCall
	require.NoError(t, json.Unmarshal(b, &call))
	return call
}

var testInput = metafield.Input{Namespace: "custom", Key: "product_images", Type: "json", Value: "[]"}

func TestGraphQLQuery(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2025-01/graphql.json", r.URL.Path)
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))

		call := decodeGraphQL(t, r)
		assert.Equal(t, "gid://shopify/Order/5001", call.Variables["id"])
		assert.Equal(t, "custom", call.Variables["namespace"])

		_, _ = io.WriteString(w, `{"data":{"order":{"id":"gid://shopify/Order/5001","metafields":{"nodes":[
			{"id":"gid://shopify/Metafield/9","namespace":"custom","key":"product_images","type":"json","value":"[]"}]}}}}`)
	})

	recs, err := NewGraphQLBackend(c).Query(context.Background(), "5001", "custom", "product_images")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "gid://shopify/Metafield/9", recs[0].ID)
}

func TestGraphQLQueryFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusServiceUnavailable, `unavailable`},
		{"top-level errors", http.StatusOK, `{"errors":[{"message":"Throttled","extensions":{"code":"THROTTLED"}}]}`},
		{"missing order", http.StatusOK, `{"data":{"order":null}}`},
		{"bad json", http.StatusOK, `{"data":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := NewGraphQLBackend(c).Query(context.Background(), "5001", "custom", "product_images")
			ae, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, apperr.KindRemoteQueryFailed, ae.Kind)
			assert.Equal(t, tt.status, ae.RemoteStatus)
			assert.Equal(t, tt.body, ae.RemoteBody)
		})
	}
}

func TestGraphQLCreate(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		call := decodeGraphQL(t, r)
		assert.Contains(t, call.Query, "metafieldsSet")
		mfs := call.Variables["metafields"].([]any)
		require.Len(t, mfs, 1)
		mf := mfs[0].(map[string]any)
		assert.Equal(t, "gid://shopify/Order/5001", mf["ownerId"])
		assert.Equal(t, "product_images", mf["key"])
		assert.Equal(t, "json", mf["type"])

		_, _ = io.WriteString(w, `{"data":{"metafieldsSet":{"metafields":[
			{"id":"gid://shopify/Metafield/1","namespace":"custom","key":"product_images","type":"json","value":"[]"}],"userErrors":[]}}}`)
	})

	rec, err := NewGraphQLBackend(c).Create(context.Background(), "5001", testInput)
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Metafield/1", rec.ID)
}

func TestGraphQLCreateUserErrorsAreRejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"metafieldsSet":{"metafields":[],"userErrors":[
			{"field":["metafields","0","value"],"message":"Value is invalid JSON","code":"INVALID_VALUE"}]}}}`)
	})

	_, err := NewGraphQLBackend(c).Create(context.Background(), "5001", testInput)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindRemoteRejected, ae.Kind)
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(err))

	ues, ok := ae.Details.([]UserError)
	require.True(t, ok)
	require.Len(t, ues, 1)
	assert.Equal(t, "INVALID_VALUE", ues[0].Code)
}

func TestGraphQLUpdate(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		call := decodeGraphQL(t, r)
		assert.Contains(t, call.Query, "orderUpdate")
		input := call.Variables["input"].(map[string]any)
		assert.Equal(t, "gid://shopify/Order/5001", input["id"])
		mf := input["metafields"].([]any)[0].(map[string]any)
		assert.Equal(t, "gid://shopify/Metafield/9", mf["id"])

		_, _ = io.WriteString(w, `{"data":{"orderUpdate":{"order":{"id":"gid://shopify/Order/5001","metafield":
			{"id":"gid://shopify/Metafield/9","namespace":"custom","key":"product_images","type":"json","value":"[]"}},"userErrors":[]}}}`)
	})

	rec, err := NewGraphQLBackend(c).Update(context.Background(), "5001", "gid://shopify/Metafield/9", testInput)
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Metafield/9", rec.ID)
}

func TestGraphQLTransportTimeout(t *testing.T) {
	block := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-block
	})
	defer close(block)
	c.http.Timeout = 50 * time.Millisecond

	_, err := NewGraphQLBackend(c).Update(context.Background(), "5001", "gid://shopify/Metafield/9", testInput)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindRemoteUpsertFailed, ae.Kind)
	assert.Equal(t, 0, ae.RemoteStatus)
}

func TestRESTQueryAndUpdate(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/admin/api/2025-01/orders/5001/metafields.json":
			assert.Equal(t, "custom", r.URL.Query().Get("namespace"))
			assert.Equal(t, "product_images", r.URL.Query().Get("key"))
			_, _ = io.WriteString(w, `{"metafields":[{"id":77,"namespace":"custom","key":"product_images","type":"json","value":"[]"}]}`)
		case r.Method == http.MethodPut && r.URL.Path == "/admin/api/2025-01/orders/5001/metafields/77.json":
			var body struct {
				Metafield map[string]any `json:"metafield"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "json", body.Metafield["type"])
			_, _ = io.WriteString(w, `{"metafield":{"id":77,"namespace":"custom","key":"product_images","type":"json","value":[{"item_number":1}]}}`)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	be := NewRESTBackend(c)

	recs, err := be.Query(context.Background(), "gid://shopify/Order/5001", "custom", "product_images")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "77", recs[0].ID)
	assert.Equal(t, "[]", recs[0].Value)

	rec, err := be.Update(context.Background(), "5001", recs[0].ID, testInput)
	require.NoError(t, err)
	assert.Equal(t, `[{"item_number":1}]`, rec.Value)
}

func TestRESTCreateRejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"errors":{"value":["is invalid"]}}`)
	})

	_, err := NewRESTBackend(c).Create(context.Background(), "5001", testInput)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindRemoteRejected, ae.Kind)
	ues := ae.Details.([]UserError)
	require.Len(t, ues, 1)
	assert.Equal(t, []string{"value"}, ues[0].Field)
	assert.Equal(t, "is invalid", ues[0].Message)
}

func TestRESTCreateServerError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"errors":"boom"}`)
	})

	_, err := NewRESTBackend(c).Create(context.Background(), "5001", testInput)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindRemoteUpsertFailed, ae.Kind)
	assert.Equal(t, http.StatusInternalServerError, ae.RemoteStatus)
}

func TestNewBackend(t *testing.T) {
	c := NewClient("demo.myshopify.com", "2025-01", "x", 0)

	be, err := NewBackend("", c)
	require.NoError(t, err)
	assert.Equal(t, "graphql", be.Name())

	be, err = NewBackend("REST", c)
	require.NoError(t, err)
	assert.Equal(t, "rest", be.Name())

	_, err = NewBackend("soap", c)
	assert.Error(t, err)
}

func TestIDHelpers(t *testing.T) {
	assert.Equal(t, "gid://shopify/Order/1", OrderGID("1"))
	assert.Equal(t, "gid://shopify/Order/1", OrderGID("gid://shopify/Order/1"))
	assert.Equal(t, "1", LegacyID("gid://shopify/Order/1"))
	assert.Equal(t, "1", LegacyID("1"))

	assert.True(t, IsValidShopDomain("demo.myshopify.com"))
	assert.False(t, IsValidShopDomain("demo.example.com"))
	assert.False(t, IsValidShopDomain("evil.com/x.myshopify.com"))
}
