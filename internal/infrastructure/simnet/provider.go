package simnet

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keyvend/keyvend/internal/domain/payment"
)

// Provider is a simulated payment-order creation capability. It returns
// a synthetic checkout reference; the matching confirmation must be
// posted to the callback endpoint by hand or by tooling.
type Provider struct {
	baseURL string
	logger  zerolog.Logger
}

func NewProvider(baseURL string, logger zerolog.Logger) *Provider {
	if baseURL == "" {
		baseURL = "https://pay.example.invalid/checkouts/"
	}
	return &Provider{baseURL: baseURL, logger: logger.With().Str("service", "simnet-provider").Logger()}
}

func (p *Provider) CreateOrder(_ context.Context, displayName string, price payment.Price, customData json.RawMessage, description string) (string, error) {
	code := uuid.NewString()
	p.logger.Info().
		Str("name", displayName).
		Str("price", price.String()).
		Str("description", description).
		RawJSON("custom", customData).
		Str("code", code).
		Msg("checkout order created")
	return p.baseURL + code, nil
}
