// Package alerts publishes operator notifications to an SNS topic.
package alerts

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNS subjects are limited to 100 characters.
const maxSubject = 100

// Publisher is the subset of *sns.Client used here.
type Publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Alert struct {
	Subject string         `json:"subject"`
	Kind    string         `json:"kind"`
	Shop    string         `json:"shop,omitempty"`
	OrderID string         `json:"order_id,omitempty"`
	Message string         `json:"message"`
	Details any            `json:"details,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// New returns an SNS notifier, or a no-op one when topicArn is empty.
func New(client Publisher, topicArn string) Notifier {
	if client == nil || strings.TrimSpace(topicArn) == "" {
		return Nop{}
	}
	return &SNSNotifier{client: client, topicArn: topicArn}
}

type SNSNotifier struct {
	client   Publisher
	topicArn string
}

func (n *SNSNotifier) Notify(ctx context.Context, a Alert) error {
	body, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicArn),
		Subject:  aws.String(subject(a.Subject)),
		Message:  aws.String(string(body)),
	})
	return err
}

func subject(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		s = "order-images alert"
	}
	if len(s) > maxSubject {
		s = s[:maxSubject]
	}
	return s
}

type Nop struct{}

func (Nop) Notify(context.Context, Alert) error { return nil }

// Once forwards only the first alert of each kind for the life of the
// process.
type Once struct {
	next Notifier
	mu   sync.Mutex
	sent map[string]bool
}

func NewOnce(next Notifier) *Once {
	return &Once{next: next, sent: map[string]bool{}}
}

func (o *Once) Notify(ctx context.Context, a Alert) error {
	o.mu.Lock()
	if o.sent[a.Kind] {
		o.mu.Unlock()
		return nil
	}
	o.sent[a.Kind] = true
	o.mu.Unlock()
	return o.next.Notify(ctx, a)
}
