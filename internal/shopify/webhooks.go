package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const TopicOrdersCreate = "orders/create"

type webhookCreateReq struct {
	Webhook struct {
		Address string `json:"address"`
		Topic   string `json:"topic"`
		Format  string `json:"format"`
	} `json:"webhook"`
}

type Webhook struct {
	ID      json.Number `json:"id"`
	Address string      `json:"address"`
	Topic   string      `json:"topic"`
	Format  string      `json:"format"`
}

// CreateWebhook subscribes address to topic. address is either an HTTPS
// endpoint or an EventBridge partner event source ARN; Shopify then delivers
// events to the endpoint or the partner event bus.
func (c *Client) CreateWebhook(ctx context.Context, topic, address string) (*Webhook, error) {
	var payload webhookCreateReq
	payload.Webhook.Address = address
	payload.Webhook.Topic = topic
	payload.Webhook.Format = "json"

	status, raw, err := c.do(ctx, http.MethodPost, "webhooks.json", nil, payload)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("create webhook failed: http %d: %s", status, string(raw))
	}

	var out struct {
		Webhook *Webhook `json:"webhook"`
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
	}
	if out.Webhook == nil {
		// Some API versions answer 201 with an empty body.
		return &Webhook{Address: address, Topic: topic, Format: "json"}, nil
	}
	return out.Webhook, nil
}

// ListWebhooks returns the existing subscriptions for topic.
func (c *Client) ListWebhooks(ctx context.Context, topic string) ([]Webhook, error) {
	q := url.Values{"topic": {topic}}
	status, raw, err := c.do(ctx, http.MethodGet, "webhooks.json", q, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("list webhooks failed: http %d: %s", status, string(raw))
	}
	var out struct {
		Webhooks []Webhook `json:"webhooks"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out.Webhooks, nil
}

// EnsureWebhook creates the subscription unless one for the same topic and
// address already exists. The bool reports whether a webhook was created.
func (c *Client) EnsureWebhook(ctx context.Context, topic, address string) (*Webhook, bool, error) {
	existing, err := c.ListWebhooks(ctx, topic)
	if err != nil {
		return nil, false, err
	}
	for i := range existing {
		if existing[i].Address == address {
			return &existing[i], false, nil
		}
	}
	w, err := c.CreateWebhook(ctx, topic, address)
	if err != nil {
		return nil, false, err
	}
	return w, true, nil
}
