package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/go-resty/resty/v2"

	"github.com/nextlevelbuilder/parrot/internal/config"
	"github.com/nextlevelbuilder/parrot/internal/providers"
	"github.com/nextlevelbuilder/parrot/internal/tracing"
)

const xDefaultBase = "https://api.twitter.com"

// X posts through the v2 API with OAuth 1.0a user-context auth.
type X struct {
	client *resty.Client
}

func NewX(cfg config.XConfig) (*X, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" || cfg.AccessToken == "" || cfg.AccessSecret == "" {
		return nil, fmt.Errorf("x: api key, api secret, access token and access secret are required")
	}
	base := cfg.APIBase
	if base == "" {
		base = xDefaultBase
	}

	oauthCfg := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
	httpClient := oauthCfg.Client(context.Background(), oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret))

	client := resty.NewWithClient(httpClient).
		SetBaseURL(strings.TrimRight(base, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json")
	tracing.InstrumentResty(client)

	return &X{client: client}, nil
}

func (x *X) Name() string { return "x" }

type xTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// Publish creates a post via POST /2/tweets.
func (x *X) Publish(ctx context.Context, text string) (string, error) {
	res, err := x.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": text}).
		Post("/2/tweets")
	if err != nil {
		return "", fmt.Errorf("x request failed: %w", err)
	}
	if res.IsError() {
		return "", &providers.APIError{Provider: "x", Status: res.StatusCode(), Body: res.String()}
	}

	var out xTweetResponse
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return "", fmt.Errorf("x: decode response: %w", err)
	}
	return out.Data.ID, nil
}
