package paypal

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/provider"
)

// certHostSuffix is the only host family webhook signing certificates may
// be fetched from. Anything else is treated as a forged delivery.
const certHostSuffix = ".paypal.com"

// VerifyWebhook authenticates a delivery with PayPal's detached signature
// scheme: the signing certificate named in the headers is fetched from a
// whitelisted host, its chain checked, and the signature verified over
// transmission id, timestamp, webhook id and a CRC32 of the raw body.
// Thin notifications are dereferenced into the full resource before the
// event is returned.
func (g *Gateway) VerifyWebhook(ctx context.Context, body []byte, header http.Header) (*provider.RawEvent, error) {
	transmissionID := header.Get("Paypal-Transmission-Id")
	transmissionTime := header.Get("Paypal-Transmission-Time")
	signature := header.Get("Paypal-Transmission-Sig")
	certURL := header.Get("Paypal-Cert-Url")
	authAlgo := header.Get("Paypal-Auth-Algo")

	if transmissionID == "" || transmissionTime == "" || signature == "" || certURL == "" {
		return nil, &provider.ProviderError{
			Code:    "MISSING_HEADERS",
			Message: "webhook signature headers missing",
		}
	}
	if authAlgo != "SHA256withRSA" {
		return nil, &provider.ProviderError{
			Code:    "UNEXPECTED_ALGORITHM",
			Message: "unexpected webhook signing algorithm",
			Details: authAlgo,
		}
	}

	cert, err := g.signingCert(ctx, certURL)
	if err != nil {
		return nil, err
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "BAD_SIGNATURE",
			Message: "webhook signature is not valid base64",
			Details: err.Error(),
		}
	}

	message := fmt.Sprintf("%s|%s|%s|%d",
		transmissionID, transmissionTime, g.webhookID, crc32.ChecksumIEEE(body))
	digest := sha256.Sum256([]byte(message))

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, &provider.ProviderError{
			Code:    "BAD_CERTIFICATE",
			Message: "signing certificate does not carry an RSA key",
		}
	}
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		g.logger.Warn("PayPal webhook signature rejected",
			zap.String("transmission_id", transmissionID))
		return nil, &provider.ProviderError{
			Code:    "SIGNATURE_MISMATCH",
			Message: "webhook signature verification failed",
		}
	}

	var event struct {
		ID         string          `json:"id"`
		EventType  string          `json:"event_type"`
		CreateTime time.Time       `json:"create_time"`
		Resource   json.RawMessage `json:"resource"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse webhook event",
			Details: err.Error(),
		}
	}

	resource, err := g.dereference(ctx, event.Resource)
	if err != nil {
		return nil, err
	}

	return &provider.RawEvent{
		ID:         event.ID,
		Type:       event.EventType,
		OccurredAt: event.CreateTime,
		Data:       resource,
	}, nil
}

// signingCert fetches and validates the webhook signing certificate,
// caching it per URL. The host whitelist runs before any network call.
func (g *Gateway) signingCert(ctx context.Context, certURL string) (*x509.Certificate, error) {
	parsed, err := url.Parse(certURL)
	if err != nil || parsed.Scheme != "https" || !strings.HasSuffix(parsed.Hostname(), certHostSuffix) {
		return nil, &provider.ProviderError{
			Code:    "UNTRUSTED_CERT_URL",
			Message: "webhook certificate URL is not a PayPal host",
			Details: certURL,
		}
	}

	g.certMu.Lock()
	cached, ok := g.certCache[certURL]
	g.certMu.Unlock()

	if !ok {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, certURL, nil)
		if err != nil {
			return nil, &provider.ProviderError{
				Code:    "REQUEST_ERROR",
				Message: "Failed to create certificate request",
				Details: err.Error(),
			}
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return nil, &provider.ProviderError{
				Code:    "CERT_FETCH_FAILED",
				Message: "Failed to fetch signing certificate",
				Details: err.Error(),
			}
		}
		defer resp.Body.Close()

		cached, err = io.ReadAll(resp.Body)
		if err != nil || resp.StatusCode != http.StatusOK {
			return nil, &provider.ProviderError{
				Code:    "CERT_FETCH_FAILED",
				Message: "Failed to read signing certificate",
			}
		}

		g.certMu.Lock()
		g.certCache[certURL] = cached
		g.certMu.Unlock()
	}

	block, _ := pem.Decode(cached)
	if block == nil {
		return nil, &provider.ProviderError{
			Code:    "BAD_CERTIFICATE",
			Message: "signing certificate is not valid PEM",
		}
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "BAD_CERTIFICATE",
			Message: "Failed to parse signing certificate",
			Details: err.Error(),
		}
	}

	now := time.Now()
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		// Expired cached cert gets dropped so the next delivery refetches
		g.certMu.Lock()
		delete(g.certCache, certURL)
		g.certMu.Unlock()
		return nil, &provider.ProviderError{
			Code:    "BAD_CERTIFICATE",
			Message: "signing certificate is outside its validity window",
		}
	}

	if _, err := cert.Verify(x509.VerifyOptions{CurrentTime: now}); err != nil {
		return nil, &provider.ProviderError{
			Code:    "BAD_CERTIFICATE",
			Message: "signing certificate chain verification failed",
			Details: err.Error(),
		}
	}

	return cert, nil
}

// dereference expands a thin notification into the full resource. A thin
// resource carries nothing beyond its id and links; anything richer is
// returned as-is.
func (g *Gateway) dereference(ctx context.Context, resource json.RawMessage) (json.RawMessage, error) {
	if len(resource) == 0 {
		return resource, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(resource, &fields); err != nil {
		return resource, nil
	}

	for key := range fields {
		if key != "id" && key != "links" {
			return resource, nil
		}
	}

	var links []linkJSON
	if err := json.Unmarshal(fields["links"], &links); err != nil {
		return resource, nil
	}
	var self string
	for _, l := range links {
		if l.Rel == "self" {
			self = l.Href
			break
		}
	}
	if self == "" {
		return resource, nil
	}

	full, err := g.fetchResource(ctx, self)
	if err != nil {
		return nil, err
	}

	g.logger.Info("Thin webhook resource dereferenced", zap.String("href", self))
	return full, nil
}

// fetchResource retrieves a linked resource by absolute URL
func (g *Gateway) fetchResource(ctx context.Context, href string) (json.RawMessage, error) {
	if strings.HasPrefix(href, g.baseURL) {
		return g.call(ctx, http.MethodGet, strings.TrimPrefix(href, g.baseURL), nil)
	}

	parsed, err := url.Parse(href)
	if err != nil || parsed.Scheme != "https" || !strings.HasSuffix(parsed.Hostname(), certHostSuffix) {
		return nil, &provider.ProviderError{
			Code:    "UNTRUSTED_RESOURCE_URL",
			Message: "linked resource URL is not a PayPal host",
			Details: href,
		}
	}

	token, err := g.token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "REQUEST_ERROR",
			Message: "Failed to create resource request",
			Details: err.Error(),
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "API_ERROR",
			Message: "Failed to fetch linked resource",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		return nil, &provider.ProviderError{
			Code:    "RESPONSE_ERROR",
			Message: "Failed to read linked resource",
		}
	}

	return body, nil
}
