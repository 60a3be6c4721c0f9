// Package app wires the order processor for the entry points.
package app

import (
	"context"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sns"

	"orderimages/internal/alerts"
	"orderimages/internal/config"
	"orderimages/internal/logging"
	"orderimages/internal/orders"
)

// NewProcessor loads the configuration and builds the processor. When the
// configuration is unusable the returned processor fails every event with a
// ConfigurationMissing error, and configured is false; the entry point keeps
// serving so Shopify gets a 500 instead of a connection error.
func NewProcessor(ctx context.Context, loader *config.Loader, log logging.Logger) (proc *orders.Processor, configured bool) {
	notifier := newNotifier(ctx, loader, log)

	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Error("configuration invalid", err)
		return orders.Unavailable(err, notifier, log), false
	}

	proc, err = orders.FromConfig(cfg, notifier, log)
	if err != nil {
		log.Error("processor setup failed", err)
		return orders.Unavailable(err, notifier, log), false
	}

	log.Info("processor ready",
		logging.F("shop", cfg.ShopDomain),
		logging.F("api_version", cfg.APIVersion),
		logging.F("backend", cfg.MetafieldBackend),
		logging.F("scheme", cfg.MetafieldScheme),
		logging.F("token_source", cfg.TokenSource),
		logging.F("alerts", cfg.AlertsTopicARN != ""),
	)
	return proc, true
}

// newNotifier is built before the rest of the configuration so that a
// missing setting can still be alerted on.
func newNotifier(ctx context.Context, loader *config.Loader, log logging.Logger) alerts.Notifier {
	get := loader.Getenv
	if get == nil {
		get = os.Getenv
	}
	topic := strings.TrimSpace(get("ALERTS_TOPIC_ARN"))
	if topic == "" {
		return alerts.Nop{}
	}

	awsCfg, err := loader.AWS(ctx)
	if err != nil {
		log.Error("alerts disabled: load aws config", err)
		return alerts.Nop{}
	}
	return alerts.New(sns.NewFromConfig(awsCfg), topic)
}
