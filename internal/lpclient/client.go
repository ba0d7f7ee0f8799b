package lpclient

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/vediex/book-api/internal/provider"
)

// Client issues authenticated HTTP requests to liquidity providers.
// Every request is signed with HMAC-SHA256 over
// timestamp + method + path + body, keyed by the provider's secret key.
type Client struct {
	registry *provider.Registry
	http     *resty.Client
}

func New(registry *provider.Registry) *Client {
	return &Client{
		registry: registry,
		http:     resty.New(),
	}
}

// Result is the normalized outcome of a provider call. Transport
// failures degrade to Success=false with Status 0 instead of an error
// return, so callers branch uniformly on Success.
type Result struct {
	Success bool
	Status  int
	Data    map[string]interface{}
	Raw     string
	Err     string
}

// ErrorMessage extracts the most specific failure description the
// provider gave us.
func (r Result) ErrorMessage() string {
	if r.Err != "" {
		return r.Err
	}
	if msg, ok := r.Data["message"].(string); ok && msg != "" {
		return msg
	}
	return "LP order failed"
}

// Request performs one signed call against the provider. The provider's
// configured timeout bounds the call and its rate ceiling is honored
// before the request leaves the process.
func (c *Client) Request(ctx context.Context, p *provider.LPProvider, method, path string, body interface{}) Result {
	logger := log.With().
		Str("provider", p.ProviderCode).
		Str("method", method).
		Str("path", path).
		Logger()

	bodyJSON := ""
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return Result{Success: false, Status: 0, Err: err.Error()}
		}
		bodyJSON = string(raw)
	}

	timeout := time.Duration(p.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Both configured ceilings apply: per-second and per-minute.
	if err := c.registry.Limiter(p.ProviderCode).Wait(ctx); err != nil {
		logger.Warn().Err(err).Msg("rate ceiling wait aborted")
		return Result{Success: false, Status: 0, Err: err.Error()}
	}
	if err := c.registry.MinuteLimiter(p.ProviderCode).Wait(ctx); err != nil {
		logger.Warn().Err(err).Msg("minute rate ceiling wait aborted")
		return Result{Success: false, Status: 0, Err: err.Error()}
	}

	creds := c.registry.Credentials(p)
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	signature := Sign(creds.SecretKey, timestamp, method, path, bodyJSON)

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-API-KEY", creds.APIKey).
		SetHeader("X-TIMESTAMP", timestamp).
		SetHeader("X-SIGNATURE", signature)

	if creds.AccountID != "" {
		req.SetHeader("X-ACCOUNT-ID", creds.AccountID)
	}
	if creds.Passphrase != "" {
		req.SetHeader("X-PASSPHRASE", creds.Passphrase)
	}

	if bodyJSON != "" && method != http.MethodGet {
		req.SetBody(bodyJSON)
	}

	resp, err := req.Execute(method, p.APIBaseURL+path)
	if err != nil {
		logger.Error().Err(err).Msg("LP request failed")
		return Result{Success: false, Status: 0, Err: err.Error()}
	}

	result := Result{
		Success: resp.IsSuccess(),
		Status:  resp.StatusCode(),
		Raw:     string(resp.Body()),
	}
	if err := json.Unmarshal(resp.Body(), &result.Data); err != nil {
		result.Data = map[string]interface{}{}
	}

	logger.Debug().Int("status", result.Status).Bool("success", result.Success).Msg("LP request completed")
	return result
}

// Sign computes the request signature: hex-encoded HMAC-SHA256 over
// timestamp + method + path + body.
func Sign(secretKey, timestamp, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(timestamp + method + path + body))
	return hex.EncodeToString(mac.Sum(nil))
}
