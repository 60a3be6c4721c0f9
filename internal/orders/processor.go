// Package orders runs one orders/create event through authentication, the
// annotation transform and the metafield upsert.
package orders

import (
	"context"
	"fmt"
	"time"

	"orderimages/internal/alerts"
	"orderimages/internal/annotations"
	"orderimages/internal/apperr"
	"orderimages/internal/config"
	"orderimages/internal/logging"
	"orderimages/internal/metafield"
	"orderimages/internal/metrics"
	"orderimages/internal/shopify"
	"orderimages/internal/webhook"
)

const maxLoggedBody = 4096

const (
	SourceWebhook     = "webhook"
	SourceEventBridge = "eventbridge"
)

// Event is one delivery. Signature is the X-Shopify-Hmac-Sha256 header; it
// is ignored by Apply.
type Event struct {
	Body       []byte
	Signature  string
	Topic      string
	ShopDomain string
	WebhookID  string
	Source     string
}

type Outcome struct {
	OrderID string
	Saved   []annotations.Annotation
	Result  *metafield.Result
}

type Processor struct {
	auth     *webhook.Authenticator
	upserter *metafield.Upserter
	imageURL string
	log      logging.Logger

	notifier alerts.Notifier
	// configNotifier alerts on configuration problems once per process.
	configNotifier alerts.Notifier

	// unavailable is returned for every event when the deployment could
	// not be configured.
	unavailable error
}

// NewProcessor wires a processor. auth may be nil for processors that only
// receive pre-authenticated events through Apply.
func NewProcessor(auth *webhook.Authenticator, upserter *metafield.Upserter, imageURL string, notifier alerts.Notifier, log logging.Logger) *Processor {
	if notifier == nil {
		notifier = alerts.Nop{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Processor{
		auth:           auth,
		upserter:       upserter,
		imageURL:       imageURL,
		notifier:       notifier,
		configNotifier: alerts.NewOnce(notifier),
		log:            log,
	}
}

// Unavailable returns a processor that fails every event with cfgErr before
// any remote call. Operators are alerted once per process.
func Unavailable(cfgErr error, notifier alerts.Notifier, log logging.Logger) *Processor {
	if notifier == nil {
		notifier = alerts.Nop{}
	}
	if log == nil {
		log = logging.Nop()
	}
	if _, ok := apperr.As(cfgErr); !ok {
		cfgErr = apperr.Wrap(apperr.KindConfigurationMissing, "configuration failed", cfgErr)
	}
	return &Processor{
		unavailable:    cfgErr,
		notifier:       notifier,
		configNotifier: alerts.NewOnce(notifier),
		log:            log,
	}
}

// FromConfig builds the processor for cfg.
func FromConfig(cfg *config.Config, notifier alerts.Notifier, log logging.Logger) (*Processor, error) {
	var auth *webhook.Authenticator
	if cfg.WebhookSecret != "" {
		a, err := webhook.NewAuthenticator(cfg.WebhookSecret)
		if err != nil {
			return nil, err
		}
		auth = a
	}

	backend, err := shopify.NewBackend(cfg.MetafieldBackend, cfg.ShopifyClient())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfigurationMissing, "METAFIELD_BACKEND", err)
	}
	scheme, err := metafield.SchemeByName(cfg.MetafieldScheme)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfigurationMissing, "METAFIELD_SCHEME", err)
	}

	log = log.WithFields(
		logging.F("shop", cfg.ShopDomain),
		logging.F("backend", backend.Name()),
		logging.F("scheme", scheme.Type()),
	)
	return NewProcessor(auth, metafield.NewUpserter(backend, scheme), cfg.ImageURL, notifier, log), nil
}

// Process authenticates ev and applies it. A forged event never reaches
// the payload parser or Shopify.
func (p *Processor) Process(ctx context.Context, ev Event) (*Outcome, error) {
	start := time.Now()

	if p.unavailable != nil {
		return nil, p.finish(ctx, ev, start, nil, p.unavailable)
	}
	if p.auth == nil {
		return nil, p.finish(ctx, ev, start, nil,
			apperr.New(apperr.KindConfigurationMissing, "SHOPIFY_WEBHOOK_SECRET not set"))
	}
	if p.auth.Verify(ev.Body, ev.Signature) != webhook.Authentic {
		return nil, p.finish(ctx, ev, start, nil,
			apperr.New(apperr.KindAuthenticationFailed, "webhook signature mismatch"))
	}

	return p.apply(ctx, ev, start)
}

// Apply runs an event whose origin is already trusted (EventBridge).
func (p *Processor) Apply(ctx context.Context, ev Event) (*Outcome, error) {
	start := time.Now()
	if p.unavailable != nil {
		return nil, p.finish(ctx, ev, start, nil, p.unavailable)
	}
	return p.apply(ctx, ev, start)
}

func (p *Processor) apply(ctx context.Context, ev Event, start time.Time) (*Outcome, error) {
	order, err := annotations.ParseOrder(ev.Body)
	if err != nil {
		return nil, p.finish(ctx, ev, start, nil, err)
	}

	out := &Outcome{
		OrderID: order.ID,
		Saved:   annotations.Build(order, p.imageURL),
	}

	res, err := p.upserter.Upsert(ctx, order.ID, out.Saved)
	if err != nil {
		return out, p.finish(ctx, ev, start, out, err)
	}
	out.Result = res
	return out, p.finish(ctx, ev, start, out, nil)
}

// finish logs, counts and, where operators must act, alerts on the terminal
// state of ev. It returns err unchanged.
func (p *Processor) finish(ctx context.Context, ev Event, start time.Time, out *Outcome, err error) error {
	source := ev.Source
	if source == "" {
		source = SourceWebhook
	}

	fields := []logging.Field{
		logging.F("source", source),
		logging.F("topic", ev.Topic),
		logging.F("shop_domain", ev.ShopDomain),
		logging.F("webhook_id", ev.WebhookID),
		logging.F("duration_ms", time.Since(start).Milliseconds()),
	}
	orderID := ""
	if out != nil {
		orderID = out.OrderID
		fields = append(fields, logging.F("order_id", orderID), logging.F("line_items", len(out.Saved)))
	}

	if err == nil {
		fields = append(fields,
			logging.F("action", string(out.Result.Action)),
			logging.F("metafield_id", out.Result.Metafield.ID),
		)
		p.log.Info("order annotations saved", fields...)
		metrics.ObserveOrder(source, string(out.Result.Action), start)
		metrics.AnnotationsPerOrder.Observe(float64(len(out.Saved)))
		return nil
	}

	kind := apperr.KindOf(err)
	fields = append(fields, logging.F("kind", string(kind)))
	if ae, ok := apperr.As(err); ok && ae.RemoteStatus != 0 {
		fields = append(fields, logging.F("remote_status", ae.RemoteStatus))
	}
	metrics.ObserveOrder(source, string(kind), start)

	switch kind {
	case apperr.KindAuthenticationFailed:
		p.log.Warn("webhook rejected", fields...)
	case apperr.KindMalformedPayload:
		p.log.Error("malformed order payload", err, append(fields, logging.F("body", truncate(ev.Body)))...)
	case apperr.KindAmbiguousMetafieldState:
		p.log.Error("ambiguous metafield state", err, fields...)
		p.alert(ctx, p.notifier, alerts.Alert{
			Subject: fmt.Sprintf("Ambiguous %s.%s metafield on order %s", metafield.Namespace, metafield.Key, orderID),
			Kind:    string(kind),
			Shop:    ev.ShopDomain,
			OrderID: orderID,
			Message: err.Error(),
			Details: details(err),
		})
	case apperr.KindConfigurationMissing:
		p.log.Error("configuration missing", err, fields...)
		p.alert(ctx, p.configNotifier, alerts.Alert{
			Subject: "Order image webhook is not configured",
			Kind:    string(kind),
			Shop:    ev.ShopDomain,
			Message: err.Error(),
			Details: details(err),
		})
	default:
		p.log.Error("order annotations failed", err, fields...)
	}
	return err
}

func (p *Processor) alert(ctx context.Context, n alerts.Notifier, a alerts.Alert) {
	if err := n.Notify(ctx, a); err != nil {
		p.log.Error("alert publish failed", err, logging.F("alert_kind", a.Kind))
	}
}

func details(err error) any {
	if ae, ok := apperr.As(err); ok {
		return ae.Details
	}
	return nil
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "...(truncated)"
	}
	return string(b)
}
