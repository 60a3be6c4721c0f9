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
	log := logging.FromEnv().WithFields(logging.F("service", "order-annotations-worker"))

	loader := config.NewLoader()
	loader.WebhookSecretOptional = true

	proc, _ := app.NewProcessor(context.Background(), loader, log)
	lambda.Start(handlers.NewOrderWorker(proc, log).Handle)
}
