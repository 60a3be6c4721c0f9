package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

type storedMetafield struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

// fakeShopify is an in-memory Admin API serving the GraphQL and REST
// metafield operations used by the backends.
type fakeShopify struct {
	mu        sync.Mutex
	metafield map[string][]storedMetafield // order legacy id -> metafields
	calls     []string
	nextID    int
	userError string
}

func newFakeShopify(t *testing.T) (*fakeShopify, *httptest.Server) {
	t.Helper()
	f := &fakeShopify{metafield: map[string][]storedMetafield{}}

	r := mux.NewRouter()
	api := r.PathPrefix("/admin/api/{version}").Subrouter()
	api.HandleFunc("/graphql.json", f.graphql).Methods(http.MethodPost)
	api.HandleFunc("/orders/{order}/metafields.json", f.restList).Methods(http.MethodGet)
	api.HandleFunc("/orders/{order}/metafields.json", f.restCreate).Methods(http.MethodPost)
	api.HandleFunc("/orders/{order}/metafields/{id}.json", f.restUpdate).Methods(http.MethodPut)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeShopify) seed(orderID string, mf storedMetafield) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metafield[orderID] = append(f.metafield[orderID], mf)
}

func (f *fakeShopify) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeShopify) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func legacy(gid string) string {
	return gid[strings.LastIndex(gid, "/")+1:]
}

func (f *fakeShopify) graphql(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string          `json:"query"`
		Variables json.RawMessage `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch {
	case strings.Contains(req.Query, "metafieldsSet"):
		f.record("create")
		var v struct {
			Metafields []struct {
				OwnerID, Namespace, Key, Type, Value string
			} `json:"metafields"`
		}
		_ = json.Unmarshal(req.Variables, &v)
		if f.userError != "" {
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"metafieldsSet": map[string]any{
				"metafields": []any{},
				"userErrors": []any{map[string]any{"field": []string{"metafields", "0", "value"}, "message": f.userError}},
			}}})
			return
		}
		in := v.Metafields[0]
		mf := f.add(legacy(in.OwnerID), in.Namespace, in.Key, in.Type, in.Value)
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"metafieldsSet": map[string]any{
			"metafields": []any{mf}, "userErrors": []any{},
		}}})

	case strings.Contains(req.Query, "orderUpdate"):
		f.record("update")
		var v struct {
			Input struct {
				ID         string `json:"id"`
				Metafields []struct {
					ID, Type, Value string
				} `json:"metafields"`
			} `json:"input"`
		}
		_ = json.Unmarshal(req.Variables, &v)
		in := v.Input.Metafields[0]
		mf, ok := f.set(legacy(v.Input.ID), in.ID, in.Type, in.Value)
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"errors": []any{map[string]any{"message": "metafield not found"}}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"orderUpdate": map[string]any{
			"order": map[string]any{"id": v.Input.ID, "metafield": mf}, "userErrors": []any{},
		}}})

	default:
		f.record("query")
		var v struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(req.Variables, &v)
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"order": map[string]any{
			"id": v.ID, "metafields": map[string]any{"nodes": f.list(legacy(v.ID))},
		}}})
	}
}

func (f *fakeShopify) restList(w http.ResponseWriter, r *http.Request) {
	f.record("query")
	list := f.list(mux.Vars(r)["order"])
	out := make([]map[string]any, 0, len(list))
	for _, mf := range list {
		out = append(out, restView(mf))
	}
	writeJSON(w, http.StatusOK, map[string]any{"metafields": out})
}

func (f *fakeShopify) restCreate(w http.ResponseWriter, r *http.Request) {
	f.record("create")
	var body struct {
		Metafield struct{ Namespace, Key, Type, Value string } `json:"metafield"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if f.userError != "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": map[string][]string{"value": {f.userError}}})
		return
	}
	in := body.Metafield
	mf := f.add(mux.Vars(r)["order"], in.Namespace, in.Key, in.Type, in.Value)
	writeJSON(w, http.StatusCreated, map[string]any{"metafield": restView(mf)})
}

func (f *fakeShopify) restUpdate(w http.ResponseWriter, r *http.Request) {
	f.record("update")
	var body struct {
		Metafield struct{ Type, Value string } `json:"metafield"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	mf, ok := f.set(mux.Vars(r)["order"], mux.Vars(r)["id"], body.Metafield.Type, body.Metafield.Value)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"errors": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metafield": restView(mf)})
}

// restView renders ids as JSON numbers, as the REST API does. Seeded ids
// must be numeric for REST tests.
func restView(mf storedMetafield) map[string]any {
	return map[string]any{
		"id":        json.Number(mf.ID),
		"namespace": mf.Namespace,
		"key":       mf.Key,
		"type":      mf.Type,
		"value":     mf.Value,
	}
}

func (f *fakeShopify) list(orderID string) []storedMetafield {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storedMetafield{}, f.metafield[orderID]...)
}

func (f *fakeShopify) add(orderID, namespace, key, typ, value string) storedMetafield {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	mf := storedMetafield{ID: fmt.Sprintf("%d", 9000+f.nextID), Namespace: namespace, Key: key, Type: typ, Value: value}
	f.metafield[orderID] = append(f.metafield[orderID], mf)
	return mf
}

func (f *fakeShopify) set(orderID, id, typ, value string) (storedMetafield, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, mf := range f.metafield[orderID] {
		if mf.ID == id || legacy(id) == mf.ID {
			f.metafield[orderID][i].Type = typ
			f.metafield[orderID][i].Value = value
			return f.metafield[orderID][i], true
		}
	}
	return storedMetafield{}, false
}
