package handlers

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

const serviceName = "order-images"

type HealthResponse struct {
	OK         bool   `json:"ok"`
	Service    string `json:"service"`
	Configured bool   `json:"configured"`
}

// Health reports liveness. configured is false when the deployment runs
// without a usable configuration and every order will fail.
type Health struct {
	Configured bool
}

func (h Health) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return jsonResp(http.StatusOK, h.body())
}

func (h Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.body())
}

func (h Health) body() HealthResponse {
	return HealthResponse{OK: true, Service: serviceName, Configured: h.Configured}
}

// Router dispatches API Gateway requests: GET /health to Health, everything
// else to the order webhook, so the function can be mounted on any route.
type Router struct {
	Webhook *OrderWebhook
	Health  Health
}

func (rt Router) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if req.RawPath == "/health" && req.RequestContext.HTTP.Method == http.MethodGet {
		return rt.Health.Handle(ctx, req)
	}
	return rt.Webhook.Handle(ctx, req)
}
