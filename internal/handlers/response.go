package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"orderimages/internal/annotations"
	"orderimages/internal/apperr"
	"orderimages/internal/config"
	"orderimages/internal/metafield"
	"orderimages/internal/orders"
)

const successMessage = "Metafield set successfully"

type successBody struct {
	Message   string                   `json:"message"`
	OrderID   string                   `json:"order_id"`
	Saved     []annotations.Annotation `json:"saved"`
	Metafield *metafield.Record        `json:"metafield"`
	Action    metafield.Action         `json:"action"`
}

type errorBody struct {
	Message      string             `json:"message"`
	Kind         apperr.Kind        `json:"kind"`
	OrderID      string             `json:"order_id,omitempty"`
	Errors       any                `json:"errors,omitempty"`
	Conflicts    []metafield.Record `json:"conflicts,omitempty"`
	Missing      []string           `json:"missing,omitempty"`
	Invalid      []string           `json:"invalid,omitempty"`
	RemoteStatus int                `json:"remote_status,omitempty"`
	RemoteBody   string             `json:"remote_body,omitempty"`
}

// outcomeResponse maps a terminal state to its status and body.
func outcomeResponse(out *orders.Outcome, err error) (int, any) {
	if err == nil {
		return http.StatusOK, successBody{
			Message:   successMessage,
			OrderID:   out.OrderID,
			Saved:     out.Saved,
			Metafield: out.Result.Metafield,
			Action:    out.Result.Action,
		}
	}

	status := apperr.HTTPStatus(err)
	ae, ok := apperr.As(err)
	if !ok {
		return status, errorBody{Message: "Server error", Kind: apperr.KindInternal}
	}

	body := errorBody{Message: ae.Message, Kind: ae.Kind}
	if out != nil {
		body.OrderID = out.OrderID
	}

	switch ae.Kind {
	case apperr.KindInternal:
		body.Message = "Server error"
	case apperr.KindRemoteRejected:
		body.Errors = ae.Details
	case apperr.KindAmbiguousMetafieldState:
		body.Conflicts, _ = ae.Details.([]metafield.Record)
	case apperr.KindConfigurationMissing:
		if p, ok := ae.Details.(config.Problems); ok {
			body.Missing = p.Missing
			body.Invalid = p.Invalid
		}
	case apperr.KindRemoteQueryFailed, apperr.KindRemoteUpsertFailed:
		body.RemoteStatus = ae.RemoteStatus
		body.RemoteBody = ae.RemoteBody
	}
	return status, body
}

func jsonResp(status int, v any) (events.APIGatewayV2HTTPResponse, error) {
	b, _ := json.Marshal(v)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers: map[string]string{
			"content-type":                "application/json",
			"access-control-allow-origin": "*",
		},
		Body: string(b),
	}, nil
}

func errResp(status int, msg string) (events.APIGatewayV2HTTPResponse, error) {
	return jsonResp(status, map[string]any{
		"message": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
