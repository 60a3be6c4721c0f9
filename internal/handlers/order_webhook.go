package handlers

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"orderimages/internal/apperr"
	"orderimages/internal/orders"
	"orderimages/internal/webhook"
)

// Shopify bodies are small; anything larger is not an order.
const maxBodyBytes = 5 << 20

// OrderWebhook serves Shopify's orders/create delivery, both behind API
// Gateway (Handle) and as a plain net/http handler.
type OrderWebhook struct {
	proc *orders.Processor
}

func NewOrderWebhook(proc *orders.Processor) *OrderWebhook {
	return &OrderWebhook{proc: proc}
}

func (h *OrderWebhook) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if m := req.RequestContext.HTTP.Method; m != "" && m != http.MethodPost {
		return errResp(http.StatusMethodNotAllowed, "method not allowed")
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return jsonResp(outcomeResponse(nil, apperr.Wrap(apperr.KindMalformedPayload, "body is not valid base64", err)))
		}
		body = b
	}

	out, err := h.proc.Process(ctx, orders.Event{
		Body:       body,
		Signature:  header(req.Headers, webhook.HeaderHmac),
		Topic:      header(req.Headers, webhook.HeaderTopic),
		ShopDomain: header(req.Headers, webhook.HeaderShopDomain),
		WebhookID:  header(req.Headers, webhook.HeaderWebhookID),
		Source:     orders.SourceWebhook,
	})
	return jsonResp(outcomeResponse(out, err))
}

func (h *OrderWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		status, v := outcomeResponse(nil, apperr.Wrap(apperr.KindMalformedPayload, "read body", err))
		writeJSON(w, status, v)
		return
	}

	out, err := h.proc.Process(r.Context(), orders.Event{
		Body:       body,
		Signature:  r.Header.Get(webhook.HeaderHmac),
		Topic:      r.Header.Get(webhook.HeaderTopic),
		ShopDomain: r.Header.Get(webhook.HeaderShopDomain),
		WebhookID:  r.Header.Get(webhook.HeaderWebhookID),
		Source:     orders.SourceWebhook,
	})
	status, v := outcomeResponse(out, err)
	writeJSON(w, status, v)
}

// header looks name up case-insensitively. API Gateway lowercases header
// names but direct invocations may not.
func header(h map[string]string, name string) string {
	if v, ok := h[name]; ok {
		return v
	}
	if v, ok := h[strings.ToLower(name)]; ok {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
