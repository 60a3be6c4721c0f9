package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	"orderimages/internal/apperr"
	"orderimages/internal/logging"
	"orderimages/internal/orders"
	"orderimages/internal/shopify"
	"orderimages/internal/webhook"
)

// EBEvent is a Shopify partner event as delivered by EventBridge. Detail
// keeps the payload raw so numeric order ids survive untouched.
type EBEvent struct {
	DetailType string `json:"detail-type"`
	Source     string `json:"source"`
	Time       string `json:"time"`
	Detail     struct {
		Metadata map[string]string `json:"metadata"`
		Payload  json.RawMessage   `json:"payload"`
	} `json:"detail"`
}

// OrderWorker consumes SQS messages carrying EventBridge orders/create
// events. The events are authenticated by AWS, so no HMAC check is made.
type OrderWorker struct {
	proc *orders.Processor
	log  logging.Logger
}

func NewOrderWorker(proc *orders.Processor, log logging.Logger) *OrderWorker {
	if log == nil {
		log = logging.Nop()
	}
	return &OrderWorker{proc: proc, log: log}
}

// Handle processes each record independently; failed records are returned
// as batch item failures so only they are redelivered.
func (h *OrderWorker) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	failures := make([]events.SQSBatchItemFailure, 0)

	for _, rec := range sqsEvent.Records {
		if err := h.processOne(ctx, rec); err != nil {
			h.log.Error("order event failed", err, logging.F("message_id", rec.MessageId))
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}

	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

func (h *OrderWorker) processOne(ctx context.Context, rec events.SQSMessage) error {
	var e EBEvent
	if err := json.Unmarshal([]byte(rec.Body), &e); err != nil {
		return fmt.Errorf("unmarshal eb event: %w", err)
	}

	meta := e.Detail.Metadata
	topic := header(meta, webhook.HeaderTopic)
	if topic != shopify.TopicOrdersCreate {
		// Not ours; the rule filter should have dropped it.
		h.log.Debug("ignoring event", logging.F("message_id", rec.MessageId), logging.F("topic", topic))
		return nil
	}

	_, err := h.proc.Apply(ctx, orders.Event{
		Body:       e.Detail.Payload,
		Topic:      topic,
		ShopDomain: header(meta, webhook.HeaderShopDomain),
		WebhookID:  header(meta, webhook.HeaderWebhookID),
		Source:     orders.SourceEventBridge,
	})
	if err != nil && !retryable(err) {
		// Already logged and alerted by the processor; redelivery would
		// fail the same way.
		return nil
	}
	return err
}

func retryable(err error) bool {
	switch apperr.KindOf(err) {
	case apperr.KindMalformedPayload, apperr.KindAmbiguousMetafieldState, apperr.KindRemoteRejected:
		return false
	default:
		return true
	}
}
