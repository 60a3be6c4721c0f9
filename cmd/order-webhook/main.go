package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"orderimages/internal/app"
	"orderimages/internal/config"
	"orderimages/internal/handlers"
	"orderimages/internal/logging"
)

func main() {
	log := logging.FromEnv().WithFields(logging.F("service", "order-webhook"))

	proc, configured := app.NewProcessor(context.Background(), config.NewLoader(), log)

	router := handlers.Router{
		Webhook: handlers.NewOrderWebhook(proc),
		Health:  handlers.Health{Configured: configured},
	}
	lambda.Start(router.Handle)
}
