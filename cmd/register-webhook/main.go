// Command register-webhook subscribes the configured store to orders/create.
//
//	register-webhook -address https://hooks.example.com/webhooks/orders/create
//	register-webhook -address arn:aws:events:us-east-1::event-source/aws.partner/shopify.com/123/orders
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"orderimages/internal/config"
	"orderimages/internal/logging"
	"orderimages/internal/shopify"
)

func main() {
	address := flag.String("address", "", "HTTPS endpoint or EventBridge partner event source ARN")
	topic := flag.String("topic", shopify.TopicOrdersCreate, "webhook topic")
	flag.Parse()

	_ = godotenv.Load()
	log := logging.FromEnv().WithFields(logging.F("service", "register-webhook"))

	if strings.TrimSpace(*address) == "" {
		log.Error("missing -address", nil)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	loader := config.NewLoader()
	loader.WebhookSecretOptional = true
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Error("configuration invalid", err)
		os.Exit(1)
	}

	wh, created, err := cfg.ShopifyClient().EnsureWebhook(ctx, *topic, *address)
	if err != nil {
		log.Error("register webhook failed", err, logging.F("shop", cfg.ShopDomain), logging.F("topic", *topic))
		os.Exit(1)
	}

	log.Info("webhook registered",
		logging.F("shop", cfg.ShopDomain),
		logging.F("topic", wh.Topic),
		logging.F("address", wh.Address),
		logging.F("webhook_id", wh.ID.String()),
		logging.F("created", created),
	)
}
