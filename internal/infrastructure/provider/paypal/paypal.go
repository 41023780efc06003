package paypal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/config"
	"github.com/pagebound/payment-service/internal/domain/entity"
	"github.com/pagebound/payment-service/internal/domain/provider"
)

// Gateway implements provider.PaymentGateway on the PayPal REST API.
// PayPal has no standalone customer object for orders, so EnsureCustomer
// synthesizes a stable id from the owner; the mapping table still gives
// webhook events a way back to the owner.
type Gateway struct {
	baseURL      string
	clientID     string
	clientSecret string
	webhookID    string
	returnURL    string
	cancelURL    string
	client       *http.Client
	logger       *zap.Logger

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time

	certMu    sync.Mutex
	certCache map[string][]byte
}

// NewGateway creates the PayPal gateway
func NewGateway(cfg *config.PayPalConfig, logger *zap.Logger) *Gateway {
	return &Gateway{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		webhookID:    cfg.WebhookID,
		returnURL:    cfg.ReturnURL,
		cancelURL:    cfg.CancelURL,
		client:       &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
		certCache:    make(map[string][]byte),
	}
}

// Name returns the gateway identifier
func (g *Gateway) Name() entity.Gateway {
	return entity.GatewayPayPal
}

// EnsureCustomer returns a synthetic stable customer id for the owner.
// Orders and subscriptions carry the owner in custom_id instead.
func (g *Gateway) EnsureCustomer(_ context.Context, ownerID, _ string) (string, error) {
	return "pp-" + ownerID, nil
}

// token returns a valid OAuth access token, refreshing when within a
// minute of expiry
func (g *Gateway) token(ctx context.Context) (string, error) {
	g.tokenMu.Lock()
	defer g.tokenMu.Unlock()

	if g.accessToken != "" && time.Now().Add(time.Minute).Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", &provider.ProviderError{
			Code:    "REQUEST_ERROR",
			Message: "Failed to create token request",
			Details: err.Error(),
		}
	}

	auth := base64.StdEncoding.EncodeToString([]byte(g.clientID + ":" + g.clientSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &provider.ProviderError{
			Code:    "API_ERROR",
			Message: "PayPal token request failed",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &provider.ProviderError{
			Code:    "RESPONSE_ERROR",
			Message: "Failed to read token response",
			Details: err.Error(),
		}
	}

	if resp.StatusCode != http.StatusOK {
		g.logger.Error("PayPal token request rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(body)))
		return "", &provider.ProviderError{
			Code:    "AUTH_ERROR",
			Message: "PayPal authentication failed",
			Details: string(body),
		}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse token response",
			Details: err.Error(),
		}
	}

	g.accessToken = tokenResp.AccessToken
	g.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)

	return g.accessToken, nil
}

// call issues one authenticated JSON request and returns the response body.
// Non-2xx responses are turned into ProviderError with PayPal's own
// error name and message when present.
func (g *Gateway) call(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	token, err := g.token(ctx)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, &provider.ProviderError{
				Code:    "MARSHAL_ERROR",
				Message: "Failed to prepare request",
				Details: err.Error(),
			}
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "REQUEST_ERROR",
			Message: "Failed to create request",
			Details: err.Error(),
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error("PayPal API request failed",
			zap.String("path", path),
			zap.Error(err))
		return nil, &provider.ProviderError{
			Code:    "API_ERROR",
			Message: "PayPal API request failed",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "RESPONSE_ERROR",
			Message: "Failed to read response",
			Details: err.Error(),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &errResp)

		g.logger.Error("PayPal API call rejected",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(respBody)))

		return nil, &provider.ProviderError{
			Code:    errResp.Name,
			Message: errResp.Message,
			Details: string(respBody),
		}
	}

	return respBody, nil
}
