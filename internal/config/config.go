// Package config loads the deployment settings from the environment.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"orderimages/internal/apperr"
	"orderimages/internal/images"
	"orderimages/internal/metafield"
	"orderimages/internal/security"
	"orderimages/internal/shopify"
)

const (
	TokenSourceEnv       = "env"
	TokenSourceEncrypted = "encrypted"
	TokenSourceDynamoDB  = "dynamodb"
)

type Config struct {
	WebhookSecret string

	ShopDomain  string
	APIVersion  string
	AccessToken string
	TokenSource string
	// APIBaseURL overrides https://<ShopDomain>, e.g. for an egress proxy.
	APIBaseURL  string
	HTTPTimeout time.Duration

	MetafieldBackend string
	MetafieldScheme  string
	ImageURL         string

	AlertsTopicARN string
	LogLevel       string
	Port           string
}

// Problems lists what made a configuration unusable. It is attached to the
// ConfigurationMissing error as Details.
type Problems struct {
	Missing []string `json:"missing,omitempty"`
	Invalid []string `json:"invalid,omitempty"`
}

func (p *Problems) missing(name string) { p.Missing = append(p.Missing, name) }

func (p *Problems) invalid(format string, args ...any) {
	p.Invalid = append(p.Invalid, fmt.Sprintf(format, args...))
}

func (p *Problems) empty() bool { return len(p.Missing) == 0 && len(p.Invalid) == 0 }

func (p *Problems) message() string {
	var parts []string
	if len(p.Missing) > 0 {
		parts = append(parts, strings.Join(p.Missing, ", ")+" not set")
	}
	parts = append(parts, p.Invalid...)
	return strings.Join(parts, "; ")
}

// Loader reads Config. Parameters and Dynamo are created from the default AWS
// config on first use when left nil.
type Loader struct {
	Getenv     func(string) string
	Parameters ParameterStore
	Dynamo     shopify.DDBClient

	// WebhookSecretOptional is set by consumers that receive orders through
	// AWS rather than Shopify HTTP delivery.
	WebhookSecretOptional bool

	awsCfg *aws.Config
}

func NewLoader() *Loader {
	return &Loader{Getenv: os.Getenv}
}

func (l *Loader) env(name string) string {
	get := l.Getenv
	if get == nil {
		get = os.Getenv
	}
	return strings.TrimSpace(get(name))
}

func (l *Loader) envDefault(name, def string) string {
	if v := l.env(name); v != "" {
		return v
	}
	return def
}

// AWS returns the shared AWS config, loading it once.
func (l *Loader) AWS(ctx context.Context) (aws.Config, error) {
	if l.awsCfg != nil {
		return *l.awsCfg, nil
	}
	cfg, err := LoadAWS(ctx)
	if err != nil {
		return aws.Config{}, err
	}
	l.awsCfg = &cfg
	return cfg, nil
}

// secret returns name's value, following an ssm: reference if present.
func (l *Loader) secret(ctx context.Context, name string) (string, error) {
	v := l.env(name)
	if !isSSMRef(v) {
		return v, nil
	}
	if l.Parameters == nil {
		cfg, err := l.AWS(ctx)
		if err != nil {
			return "", fmt.Errorf("%s: load aws config: %w", name, err)
		}
		l.Parameters = ssm.NewFromConfig(cfg)
	}
	val, err := resolveParameter(ctx, l.Parameters, v)
	if err != nil {
		return "", fmt.Errorf("%s: resolve %s: %w", name, v, err)
	}
	return val, nil
}

// Load reads and validates every setting. All missing or invalid settings
// are reported together in one ConfigurationMissing error.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	var p Problems

	cfg := &Config{
		ShopDomain:       strings.ToLower(l.env("SHOPIFY_STORE_DOMAIN")),
		APIVersion:       l.env("SHOPIFY_API_VERSION"),
		APIBaseURL:       l.env("SHOPIFY_API_BASE_URL"),
		MetafieldBackend: strings.ToLower(l.envDefault("METAFIELD_BACKEND", "graphql")),
		MetafieldScheme:  strings.ToLower(l.envDefault("METAFIELD_SCHEME", "json")),
		AlertsTopicARN:   l.env("ALERTS_TOPIC_ARN"),
		LogLevel:         l.envDefault("LOG_LEVEL", "info"),
		Port:             l.envDefault("PORT", "8080"),
		HTTPTimeout:      shopify.DefaultTimeout,
	}

	secret, err := l.secret(ctx, "SHOPIFY_WEBHOOK_SECRET")
	switch {
	case err != nil:
		p.invalid("%v", err)
	case secret == "" && !l.WebhookSecretOptional:
		p.missing("SHOPIFY_WEBHOOK_SECRET")
	}
	cfg.WebhookSecret = secret

	switch {
	case cfg.ShopDomain == "":
		p.missing("SHOPIFY_STORE_DOMAIN")
	case !shopify.IsValidShopDomain(cfg.ShopDomain):
		p.invalid("SHOPIFY_STORE_DOMAIN %q is not a *.myshopify.com domain", cfg.ShopDomain)
	}
	if cfg.APIVersion == "" {
		p.missing("SHOPIFY_API_VERSION")
	}

	if v := l.env("SHOPIFY_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			p.invalid("SHOPIFY_HTTP_TIMEOUT %q is not a positive duration", v)
		} else {
			cfg.HTTPTimeout = d
		}
	}

	if _, err := shopify.NewBackend(cfg.MetafieldBackend, nil); err != nil {
		p.invalid("METAFIELD_BACKEND: %v", err)
	}
	if _, err := metafield.SchemeByName(cfg.MetafieldScheme); err != nil {
		p.invalid("METAFIELD_SCHEME: %v", err)
	}

	imageURL, err := images.Resolve(l.env("CLOUDINARY_URL"), l.env("PRODUCT_IMAGE_PUBLIC_ID"), l.env("PRODUCT_IMAGE_URL"))
	if err != nil {
		p.invalid("product image: %v", err)
	}
	cfg.ImageURL = imageURL

	// The token lookup needs a valid domain; skip it rather than report a
	// second problem for the same cause.
	if cfg.ShopDomain != "" && shopify.IsValidShopDomain(cfg.ShopDomain) {
		l.loadAccessToken(ctx, cfg, &p)
	}

	if !p.empty() {
		return nil, apperr.New(apperr.KindConfigurationMissing, p.message()).WithDetails(p)
	}
	return cfg, nil
}

func (l *Loader) loadAccessToken(ctx context.Context, cfg *Config, p *Problems) {
	if strings.EqualFold(l.env("SHOPIFY_TOKEN_SOURCE"), TokenSourceDynamoDB) {
		cfg.TokenSource = TokenSourceDynamoDB
		l.loadTokenFromDynamo(ctx, cfg, p)
		return
	}

	token, err := l.secret(ctx, "SHOPIFY_ADMIN_ACCESS_TOKEN")
	if err != nil {
		p.invalid("%v", err)
		return
	}
	if token != "" {
		cfg.TokenSource = TokenSourceEnv
		cfg.AccessToken = token
		return
	}

	enc := l.env("SHOPIFY_ADMIN_ACCESS_TOKEN_ENC")
	if enc == "" {
		p.missing("SHOPIFY_ADMIN_ACCESS_TOKEN")
		return
	}
	cfg.TokenSource = TokenSourceEncrypted

	key, ok := l.tokenKey(ctx, p)
	if !ok {
		return
	}
	token, err = security.DecryptAESGCM(key, enc)
	if err != nil {
		p.invalid("SHOPIFY_ADMIN_ACCESS_TOKEN_ENC: failed to decrypt token: %v", err)
		return
	}
	cfg.AccessToken = token
}

func (l *Loader) loadTokenFromDynamo(ctx context.Context, cfg *Config, p *Problems) {
	store := &shopify.IntegrationStore{
		IntegrationsTable: l.env("INTEGRATIONS_TABLE"),
		ShopToUserTable:   l.env("SHOP_TO_USER_TABLE"),
	}
	if store.IntegrationsTable == "" {
		p.missing("INTEGRATIONS_TABLE")
	}
	if store.ShopToUserTable == "" {
		p.missing("SHOP_TO_USER_TABLE")
	}
	key, ok := l.tokenKey(ctx, p)
	if !ok || store.IntegrationsTable == "" || store.ShopToUserTable == "" {
		return
	}
	store.Key = key

	if l.Dynamo == nil {
		awsCfg, err := l.AWS(ctx)
		if err != nil {
			p.invalid("load aws config: %v", err)
			return
		}
		l.Dynamo = dynamodb.NewFromConfig(awsCfg)
	}
	store.DDB = l.Dynamo

	token, err := store.AccessToken(ctx, cfg.ShopDomain)
	if err != nil {
		p.invalid("access token for %s: %v", cfg.ShopDomain, err)
		return
	}
	cfg.AccessToken = token
}

func (l *Loader) tokenKey(ctx context.Context, p *Problems) ([]byte, bool) {
	keyB64, err := l.secret(ctx, "TOKEN_ENC_KEY_B64")
	if err != nil {
		p.invalid("%v", err)
		return nil, false
	}
	if keyB64 == "" {
		p.missing("TOKEN_ENC_KEY_B64")
		return nil, false
	}
	key, err := security.LoadKeyFromBase64(keyB64)
	if err != nil {
		p.invalid("invalid TOKEN_ENC_KEY_B64: %v", err)
		return nil, false
	}
	return key, true
}

// ShopifyClient builds the Admin API client for cfg.
func (c *Config) ShopifyClient() *shopify.Client {
	cl := shopify.NewClient(c.ShopDomain, c.APIVersion, c.AccessToken, c.HTTPTimeout)
	if c.APIBaseURL != "" {
		cl = cl.WithBaseURL(c.APIBaseURL)
	}
	return cl
}
