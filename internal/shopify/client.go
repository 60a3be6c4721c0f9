package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultTimeout = 10 * time.Second

// Client talks to one store's Admin API. It is safe for concurrent use.
type Client struct {
	shopDomain  string
	apiVersion  string
	accessToken string
	baseURL     string
	http        *http.Client
}

func NewClient(shopDomain, apiVersion, accessToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		shopDomain:  shopDomain,
		apiVersion:  apiVersion,
		accessToken: accessToken,
		baseURL:     "https://" + shopDomain,
		http:        &http.Client{Timeout: timeout},
	}
}

// WithBaseURL points the client at another host (a proxy or a test server).
func (c *Client) WithBaseURL(base string) *Client {
	cp := *c
	cp.baseURL = strings.TrimRight(base, "/")
	return &cp
}

func (c *Client) ShopDomain() string { return c.shopDomain }

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/admin/api/%s/%s", c.baseURL, c.apiVersion, strings.TrimLeft(path, "/"))
}

// do sends one request and returns the status and raw body. A transport
// error (including timeout) returns status 0.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) (int, []byte, error) {
	u := c.endpoint(path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)

	res, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, raw, err
	}
	return res.StatusCode, raw, nil
}

type GraphQLError struct {
	Message    string `json:"message"`
	Path       []any  `json:"path,omitempty"`
	Extensions struct {
		Code string `json:"code,omitempty"`
	} `json:"extensions,omitempty"`
}

type GraphQLResponse[T any] struct {
	Data   T              `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

// PostGraphQL posts one operation to graphql.json. The status and raw body
// are returned for diagnostics even when decoding fails.
func PostGraphQL[T any](ctx context.Context, c *Client, query string, variables any) (*GraphQLResponse[T], int, []byte, error) {
	status, raw, err := c.do(ctx, http.MethodPost, "graphql.json", nil, map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, status, raw, err
	}
	if status < 200 || status >= 300 {
		return nil, status, raw, fmt.Errorf("graphql http %d", status)
	}

	var out GraphQLResponse[T]
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, status, raw, err
	}
	return &out, status, raw, nil
}

func graphQLErrorText(errs []GraphQLError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Extensions.Code != "" {
			msgs = append(msgs, e.Message+" ("+e.Extensions.Code+")")
		} else {
			msgs = append(msgs, e.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

// OrderGID converts a numeric REST order id into its GraphQL global id.
func OrderGID(orderID string) string {
	if strings.HasPrefix(orderID, "gid://") {
		return orderID
	}
	return "gid://shopify/Order/" + orderID
}

// LegacyID returns the trailing numeric segment of a global id.
func LegacyID(gid string) string {
	if i := strings.LastIndex(gid, "/"); i >= 0 {
		return gid[i+1:]
	}
	return gid
}

// IsValidShopDomain accepts your-store.myshopify.com style hosts.
func IsValidShopDomain(shop string) bool {
	if !strings.HasSuffix(shop, ".myshopify.com") {
		return false
	}
	if strings.Contains(shop, "/") || strings.Contains(shop, " ") {
		return false
	}
	return len(shop) >= len("a.myshopify.com")
}
