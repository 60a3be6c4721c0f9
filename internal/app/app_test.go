package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderimages/internal/apperr"
	"orderimages/internal/config"
	"orderimages/internal/logging"
	"orderimages/internal/orders"
)

func TestNewProcessorUnconfigured(t *testing.T) {
	loader := &config.Loader{Getenv: func(string) string { return "" }}

	proc, configured := NewProcessor(context.Background(), loader, logging.Nop())
	require.NotNil(t, proc)
	assert.False(t, configured)

	_, err := proc.Process(context.Background(), orders.Event{Body: []byte(`{}`)})
	assert.Equal(t, apperr.KindConfigurationMissing, apperr.KindOf(err))
}

func TestNewProcessorConfigured(t *testing.T) {
	env := map[string]string{
		"SHOPIFY_WEBHOOK_SECRET":     "whsec",
		"SHOPIFY_STORE_DOMAIN":       "demo.myshopify.com",
		"SHOPIFY_API_VERSION":        "2025-01",
		"SHOPIFY_ADMIN_ACCESS_TOKEN": "shpat",
	}
	loader := &config.Loader{Getenv: func(k string) string { return env[k] }}

	proc, configured := NewProcessor(context.Background(), loader, logging.Nop())
	require.NotNil(t, proc)
	assert.True(t, configured)

	_, err := proc.Process(context.Background(), orders.Event{Body: []byte(`{}`), Signature: "forged"})
	assert.Equal(t, apperr.KindAuthenticationFailed, apperr.KindOf(err))
}
