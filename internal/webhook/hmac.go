package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"orderimages/internal/apperr"
)

// Shopify webhook delivery headers.
const (
	HeaderHmac       = "X-Shopify-Hmac-Sha256"
	HeaderTopic      = "X-Shopify-Topic"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderWebhookID  = "X-Shopify-Webhook-Id"
)

type Verdict int

const (
	Forged Verdict = iota
	Authentic
)

func (v Verdict) String() string {
	if v == Authentic {
		return "authentic"
	}
	return "forged"
}

// Authenticator checks webhook bodies against the app's shared secret.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator fails with a configuration error when secret is empty.
func NewAuthenticator(secret string) (*Authenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, apperr.New(apperr.KindConfigurationMissing, "SHOPIFY_WEBHOOK_SECRET not set")
	}
	return &Authenticator{secret: []byte(secret)}, nil
}

// Verify computes base64(HMAC-SHA256(secret, body)) over the raw bytes and
// compares it with the claimed header value in constant time.
func (a *Authenticator) Verify(body []byte, claimed string) Verdict {
	if claimed == "" {
		return Forged
	}
	expected := Sign(a.secret, body)
	if hmac.Equal([]byte(expected), []byte(claimed)) {
		return Authentic
	}
	return Forged
}

// Sign returns the header value Shopify would send for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
